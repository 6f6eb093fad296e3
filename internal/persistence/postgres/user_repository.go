package postgres

import (
	"context"
	"strings"

	"github.com/example/club-registration/internal/persistence"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, password_hash, first_name, last_name, student_id, phone, department, year, role, is_active, created_at, updated_at`

// UserRepository implements persistence.UserRepository on PostgreSQL.
type UserRepository struct {
	db querier
}

// CreateUser inserts a new user.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		user.ID, strings.ToLower(strings.TrimSpace(user.Email)), user.PasswordHash, user.FirstName, user.LastName,
		user.StudentID, user.Phone, user.Department, user.Year, user.Role, user.IsActive,
		user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	return mapError(err)
}

// UpdateUser replaces the mutable columns of an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET email = $2, password_hash = $3, first_name = $4, last_name = $5, student_id = $6,
		    phone = $7, department = $8, year = $9, role = $10, is_active = $11, updated_at = $12
		WHERE id = $1`,
		user.ID, strings.ToLower(strings.TrimSpace(user.Email)), user.PasswordHash, user.FirstName, user.LastName,
		user.StudentID, user.Phone, user.Department, user.Year, user.Role, user.IsActive, user.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	))
}

// ListUsers returns all users ordered by creation time.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (persistence.User, error) {
	var user persistence.User
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.StudentID,
		&user.Phone, &user.Department, &user.Year, &user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	return user, nil
}
