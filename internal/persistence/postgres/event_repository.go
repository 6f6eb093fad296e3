package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/club-registration/internal/persistence"
	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, title, description, category, organizer, venue, event_date, start_time, end_time,
	registration_deadline, max_participants, registration_fee, requirements, tags, image_url, is_active,
	created_by, created_at, updated_at`

// EventRepository implements persistence.EventRepository on PostgreSQL.
type EventRepository struct {
	db querier
}

// CreateEvent inserts a new event.
func (r *EventRepository) CreateEvent(ctx context.Context, e persistence.Event) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		e.ID, e.Title, e.Description, e.Category, e.Organizer, e.Venue, e.EventDate.UTC(), e.StartTime, e.EndTime,
		e.RegistrationDeadline.UTC(), e.MaxParticipants, e.RegistrationFee, nonNil(e.Requirements), nonNil(e.Tags),
		e.ImageURL, e.IsActive, e.CreatedBy, e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	)
	return mapError(err)
}

// UpdateEvent replaces the mutable columns of an existing event.
func (r *EventRepository) UpdateEvent(ctx context.Context, e persistence.Event) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE events
		SET title = $2, description = $3, category = $4, organizer = $5, venue = $6, event_date = $7,
		    start_time = $8, end_time = $9, registration_deadline = $10, max_participants = $11,
		    registration_fee = $12, requirements = $13, tags = $14, image_url = $15, is_active = $16, updated_at = $17
		WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Category, e.Organizer, e.Venue, e.EventDate.UTC(), e.StartTime, e.EndTime,
		e.RegistrationDeadline.UTC(), e.MaxParticipants, e.RegistrationFee, nonNil(e.Requirements), nonNil(e.Tags),
		e.ImageURL, e.IsActive, e.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetEvent retrieves an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	return scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// ListEvents returns events matching query ordered by event date.
func (r *EventRepository) ListEvents(ctx context.Context, query persistence.EventQuery) ([]persistence.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if query.CreatedBy != "" {
		args = append(args, query.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if query.ActiveOnly {
		clauses = append(clauses, "is_active")
	}

	stmt := `SELECT ` + eventColumns + ` FROM events`
	if len(clauses) > 0 {
		stmt += " WHERE " + strings.Join(clauses, " AND ")
	}
	stmt += " ORDER BY event_date ASC, id ASC"

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteEvent removes an event; the registrations foreign key rejects events in use.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (persistence.Event, error) {
	var e persistence.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Category, &e.Organizer, &e.Venue, &e.EventDate, &e.StartTime,
		&e.EndTime, &e.RegistrationDeadline, &e.MaxParticipants, &e.RegistrationFee, &e.Requirements, &e.Tags,
		&e.ImageURL, &e.IsActive, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return persistence.Event{}, mapError(err)
	}
	return e, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
