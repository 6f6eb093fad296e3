package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/example/club-registration/internal/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const registrationColumns = `id, user_id, event_id, status, payment_status, payment_amount, notes, attendance_status,
	feedback_rating, feedback_comment, feedback_submitted_at, registration_number, created_at, updated_at`

// RegistrationRepository implements persistence.RegistrationStore on PostgreSQL.
type RegistrationRepository struct {
	pool *pgxpool.Pool
}

// InEventScope locks the event row and runs fn in the same transaction.
func (r *RegistrationRepository) InEventScope(ctx context.Context, eventID string, fn func(ctx context.Context, tx persistence.LedgerTx) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var locked string
	if err = tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&locked); err != nil {
		err = mapError(err)
		return err
	}

	if err = fn(ctx, &ledgerTx{q: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		err = fmt.Errorf("postgres: commit: %w", mapError(err))
		return err
	}
	return nil
}

// GetRegistration retrieves a registration by ID.
func (r *RegistrationRepository) GetRegistration(ctx context.Context, id string) (persistence.Registration, error) {
	return (&ledgerTx{q: r.pool}).GetRegistration(ctx, id)
}

// ListRegistrationsByUser returns the user's registrations, newest first.
func (r *RegistrationRepository) ListRegistrationsByUser(ctx context.Context, userID string) ([]persistence.Registration, error) {
	return listRegistrations(ctx, r.pool, `user_id = $1`, userID)
}

// ListRegistrationsByEvent returns the event's registrations, newest first.
func (r *RegistrationRepository) ListRegistrationsByEvent(ctx context.Context, eventID string) ([]persistence.Registration, error) {
	return listRegistrations(ctx, r.pool, `event_id = $1`, eventID)
}

// CountByStatus aggregates the event's registrations by status.
func (r *RegistrationRepository) CountByStatus(ctx context.Context, eventID string) (persistence.StatusCounts, error) {
	return (&ledgerTx{q: r.pool}).CountByStatus(ctx, eventID)
}

type ledgerTx struct {
	q querier
}

func (tx *ledgerTx) CountByStatus(ctx context.Context, eventID string) (persistence.StatusCounts, error) {
	var counts persistence.StatusCounts
	err := tx.q.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'waitlist'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM registrations
		WHERE event_id = $1`,
		eventID,
	).Scan(&counts.Confirmed, &counts.Waitlist, &counts.Cancelled)
	if err != nil {
		return persistence.StatusCounts{}, mapError(err)
	}
	return counts, nil
}

func (tx *ledgerTx) CountRegistrations(ctx context.Context) (int, error) {
	var count int
	if err := tx.q.QueryRow(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&count); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func (tx *ledgerTx) GetRegistration(ctx context.Context, id string) (persistence.Registration, error) {
	return scanRegistration(tx.q.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
}

func (tx *ledgerTx) FindForUser(ctx context.Context, eventID, userID string) (persistence.Registration, error) {
	return scanRegistration(tx.q.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	))
}

func (tx *ledgerTx) OldestWaitlisted(ctx context.Context, eventID string) (persistence.Registration, error) {
	return scanRegistration(tx.q.QueryRow(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE event_id = $1 AND status = 'waitlist'
		ORDER BY created_at ASC, id ASC
		LIMIT 1`,
		eventID,
	))
}

func (tx *ledgerTx) RegistrationNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := tx.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE registration_number = $1)`, number,
	).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (tx *ledgerTx) InsertRegistration(ctx context.Context, reg persistence.Registration) error {
	rating, comment, submittedAt := feedbackColumns(reg.Feedback)
	_, err := tx.q.Exec(ctx, `
		INSERT INTO registrations (`+registrationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		reg.ID, reg.UserID, reg.EventID, reg.Status, reg.PaymentStatus, reg.PaymentAmount, reg.Notes,
		reg.AttendanceStatus, rating, comment, submittedAt, reg.RegistrationNumber,
		reg.CreatedAt.UTC(), reg.UpdatedAt.UTC(),
	)
	return mapError(err)
}

func (tx *ledgerTx) UpdateRegistration(ctx context.Context, reg persistence.Registration) error {
	rating, comment, submittedAt := feedbackColumns(reg.Feedback)
	tag, err := tx.q.Exec(ctx, `
		UPDATE registrations
		SET status = $2, payment_status = $3, payment_amount = $4, notes = $5, attendance_status = $6,
		    feedback_rating = $7, feedback_comment = $8, feedback_submitted_at = $9, updated_at = $10
		WHERE id = $1`,
		reg.ID, reg.Status, reg.PaymentStatus, reg.PaymentAmount, reg.Notes, reg.AttendanceStatus,
		rating, comment, submittedAt, reg.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func listRegistrations(ctx context.Context, q querier, where string, arg any) ([]persistence.Registration, error) {
	rows, err := q.Query(ctx,
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

func scanRegistration(row pgx.Row) (persistence.Registration, error) {
	var (
		reg         persistence.Registration
		rating      *int
		comment     *string
		submittedAt *time.Time
	)
	err := row.Scan(
		&reg.ID, &reg.UserID, &reg.EventID, &reg.Status, &reg.PaymentStatus, &reg.PaymentAmount, &reg.Notes,
		&reg.AttendanceStatus, &rating, &comment, &submittedAt, &reg.RegistrationNumber, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return persistence.Registration{}, mapError(err)
	}
	if rating != nil {
		reg.Feedback = &persistence.Feedback{Rating: *rating}
		if comment != nil {
			reg.Feedback.Comment = *comment
		}
		if submittedAt != nil {
			reg.Feedback.SubmittedAt = *submittedAt
		}
	}
	return reg, nil
}

func feedbackColumns(feedback *persistence.Feedback) (*int, *string, *time.Time) {
	if feedback == nil {
		return nil, nil, nil
	}
	rating := feedback.Rating
	comment := feedback.Comment
	submittedAt := feedback.SubmittedAt.UTC()
	return &rating, &comment, &submittedAt
}
