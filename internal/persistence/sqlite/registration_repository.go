package sqlite

import (
	"context"
	"database/sql"
	"sync"

	"github.com/example/club-registration/internal/persistence"
)

const registrationColumns = `id, user_id, event_id, status, payment_status, payment_amount, notes, attendance_status,
	feedback_rating, feedback_comment, feedback_submitted_at, registration_number, created_at, updated_at`

// RegistrationRepository implements persistence.RegistrationStore using SQLite.
type RegistrationRepository struct {
	pool *ConnectionPool
	// SQLite admits one writer at a time; event scopes queue here instead of
	// failing with SQLITE_BUSY when the pool has more than one connection.
	writeMu sync.Mutex
}

// NewRegistrationRepository creates a SQLite registration repository.
func NewRegistrationRepository(pool *ConnectionPool) *RegistrationRepository {
	return &RegistrationRepository{pool: pool}
}

// InEventScope runs fn in a transaction after checking the event exists.
func (r *RegistrationRepository) InEventScope(ctx context.Context, eventID string, fn func(ctx context.Context, tx persistence.LedgerTx) error) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, eventID).Scan(&exists); err != nil {
			return mapError(err)
		}
		return fn(ctx, &ledgerTx{q: tx})
	})
}

// GetRegistration retrieves a registration by ID.
func (r *RegistrationRepository) GetRegistration(ctx context.Context, id string) (persistence.Registration, error) {
	return getRegistration(ctx, r.pool.DB(), id)
}

// ListRegistrationsByUser returns the user's registrations, newest first.
func (r *RegistrationRepository) ListRegistrationsByUser(ctx context.Context, userID string) ([]persistence.Registration, error) {
	return listRegistrations(ctx, r.pool.DB(), `user_id = ?`, userID)
}

// ListRegistrationsByEvent returns the event's registrations, newest first.
func (r *RegistrationRepository) ListRegistrationsByEvent(ctx context.Context, eventID string) ([]persistence.Registration, error) {
	return listRegistrations(ctx, r.pool.DB(), `event_id = ?`, eventID)
}

// CountByStatus aggregates the event's registrations by status.
func (r *RegistrationRepository) CountByStatus(ctx context.Context, eventID string) (persistence.StatusCounts, error) {
	return countByStatus(ctx, r.pool.DB(), eventID)
}

type ledgerTx struct {
	q queryer
}

func (tx *ledgerTx) CountByStatus(ctx context.Context, eventID string) (persistence.StatusCounts, error) {
	return countByStatus(ctx, tx.q, eventID)
}

func (tx *ledgerTx) CountRegistrations(ctx context.Context) (int, error) {
	var count int
	if err := tx.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&count); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func (tx *ledgerTx) GetRegistration(ctx context.Context, id string) (persistence.Registration, error) {
	return getRegistration(ctx, tx.q, id)
}

func (tx *ledgerTx) FindForUser(ctx context.Context, eventID, userID string) (persistence.Registration, error) {
	row := tx.q.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = ? AND user_id = ?`,
		eventID, userID,
	)
	return scanRegistration(row)
}

func (tx *ledgerTx) OldestWaitlisted(ctx context.Context, eventID string) (persistence.Registration, error) {
	row := tx.q.QueryRowContext(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE event_id = ? AND status = 'waitlist'
		ORDER BY created_at ASC, id ASC
		LIMIT 1`,
		eventID,
	)
	return scanRegistration(row)
}

func (tx *ledgerTx) RegistrationNumberExists(ctx context.Context, number string) (bool, error) {
	var exists int
	err := tx.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE registration_number = ?)`, number,
	).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists != 0, nil
}

func (tx *ledgerTx) InsertRegistration(ctx context.Context, reg persistence.Registration) error {
	rating, comment, submittedAt := feedbackColumns(reg.Feedback)
	_, err := tx.q.ExecContext(ctx, `
		INSERT INTO registrations (`+registrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.ID,
		reg.UserID,
		reg.EventID,
		reg.Status,
		reg.PaymentStatus,
		reg.PaymentAmount,
		reg.Notes,
		reg.AttendanceStatus,
		rating,
		comment,
		submittedAt,
		reg.RegistrationNumber,
		formatTime(reg.CreatedAt),
		formatTime(reg.UpdatedAt),
	)
	return mapError(err)
}

func (tx *ledgerTx) UpdateRegistration(ctx context.Context, reg persistence.Registration) error {
	rating, comment, submittedAt := feedbackColumns(reg.Feedback)
	result, err := tx.q.ExecContext(ctx, `
		UPDATE registrations
		SET status = ?, payment_status = ?, payment_amount = ?, notes = ?, attendance_status = ?,
		    feedback_rating = ?, feedback_comment = ?, feedback_submitted_at = ?, updated_at = ?
		WHERE id = ?`,
		reg.Status,
		reg.PaymentStatus,
		reg.PaymentAmount,
		reg.Notes,
		reg.AttendanceStatus,
		rating,
		comment,
		submittedAt,
		formatTime(reg.UpdatedAt),
		reg.ID,
	)
	if err != nil {
		return mapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func getRegistration(ctx context.Context, q queryer, id string) (persistence.Registration, error) {
	row := q.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = ?`, id)
	return scanRegistration(row)
}

func listRegistrations(ctx context.Context, q queryer, where string, arg any) ([]persistence.Registration, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE `+where+` ORDER BY created_at DESC, id DESC`,
		arg,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	registrations := make([]persistence.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		registrations = append(registrations, reg)
	}
	return registrations, rows.Err()
}

func countByStatus(ctx context.Context, q queryer, eventID string) (persistence.StatusCounts, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM registrations WHERE event_id = ? GROUP BY status`,
		eventID,
	)
	if err != nil {
		return persistence.StatusCounts{}, mapError(err)
	}
	defer rows.Close()

	var counts persistence.StatusCounts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return persistence.StatusCounts{}, mapError(err)
		}
		switch status {
		case "confirmed":
			counts.Confirmed = n
		case "waitlist":
			counts.Waitlist = n
		case "cancelled":
			counts.Cancelled = n
		}
	}
	return counts, rows.Err()
}

func scanRegistration(row rowScanner) (persistence.Registration, error) {
	var (
		reg                  persistence.Registration
		rating               sql.NullInt64
		comment, submittedAt sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&reg.ID,
		&reg.UserID,
		&reg.EventID,
		&reg.Status,
		&reg.PaymentStatus,
		&reg.PaymentAmount,
		&reg.Notes,
		&reg.AttendanceStatus,
		&rating,
		&comment,
		&submittedAt,
		&reg.RegistrationNumber,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Registration{}, mapError(err)
	}

	if reg.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Registration{}, err
	}
	if reg.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Registration{}, err
	}
	if rating.Valid {
		reg.Feedback = &persistence.Feedback{Rating: int(rating.Int64), Comment: comment.String}
		if submittedAt.Valid {
			if reg.Feedback.SubmittedAt, err = parseTime(submittedAt.String); err != nil {
				return persistence.Registration{}, err
			}
		}
	}
	return reg, nil
}

func feedbackColumns(feedback *persistence.Feedback) (any, any, any) {
	if feedback == nil {
		return nil, nil, nil
	}
	return feedback.Rating, feedback.Comment, formatTime(feedback.SubmittedAt)
}
