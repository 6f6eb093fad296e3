package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/club-registration/internal/persistence"
)

const eventColumns = `id, title, description, category, organizer, venue, event_date, start_time, end_time,
	registration_deadline, max_participants, registration_fee, requirements, tags, image_url, is_active,
	created_by, created_at, updated_at`

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool *ConnectionPool
}

// NewEventRepository creates a SQLite event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool}
}

// CreateEvent inserts a new event.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	requirements, tags, err := encodeEventLists(event)
	if err != nil {
		return err
	}

	_, err = r.pool.DB().ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Title,
		event.Description,
		event.Category,
		event.Organizer,
		event.Venue,
		formatTime(event.EventDate),
		event.StartTime,
		event.EndTime,
		formatTime(event.RegistrationDeadline),
		event.MaxParticipants,
		event.RegistrationFee,
		requirements,
		tags,
		event.ImageURL,
		boolToInt(event.IsActive),
		event.CreatedBy,
		formatTime(event.CreatedAt),
		formatTime(event.UpdatedAt),
	)
	return mapError(err)
}

// UpdateEvent replaces the mutable columns of an existing event.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	requirements, tags, err := encodeEventLists(event)
	if err != nil {
		return err
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE events
		SET title = ?, description = ?, category = ?, organizer = ?, venue = ?, event_date = ?,
		    start_time = ?, end_time = ?, registration_deadline = ?, max_participants = ?,
		    registration_fee = ?, requirements = ?, tags = ?, image_url = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		event.Title,
		event.Description,
		event.Category,
		event.Organizer,
		event.Venue,
		formatTime(event.EventDate),
		event.StartTime,
		event.EndTime,
		formatTime(event.RegistrationDeadline),
		event.MaxParticipants,
		event.RegistrationFee,
		requirements,
		tags,
		event.ImageURL,
		boolToInt(event.IsActive),
		formatTime(event.UpdatedAt),
		event.ID,
	)
	if err != nil {
		return mapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetEvent retrieves an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

// ListEvents returns events matching query ordered by event date.
func (r *EventRepository) ListEvents(ctx context.Context, query persistence.EventQuery) ([]persistence.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if query.CreatedBy != "" {
		clauses = append(clauses, "created_by = ?")
		args = append(args, query.CreatedBy)
	}
	if query.ActiveOnly {
		clauses = append(clauses, "is_active = 1")
	}

	stmt := `SELECT ` + eventColumns + ` FROM events`
	if len(clauses) > 0 {
		stmt += " WHERE " + strings.Join(clauses, " AND ")
	}
	stmt += " ORDER BY event_date ASC, id ASC"

	rows, err := r.pool.DB().QueryContext(ctx, stmt, args...)
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

// DeleteEvent removes an event. The registrations foreign key rejects the
// delete while any registration references the event.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func encodeEventLists(event persistence.Event) (string, string, error) {
	requirements, err := json.Marshal(nonNil(event.Requirements))
	if err != nil {
		return "", "", fmt.Errorf("encode requirements: %w", err)
	}
	tags, err := json.Marshal(nonNil(event.Tags))
	if err != nil {
		return "", "", fmt.Errorf("encode tags: %w", err)
	}
	return string(requirements), string(tags), nil
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                persistence.Event
		eventDate, deadline  string
		requirements, tags   string
		isActive             int
		createdAt, updatedAt string
	)
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Category,
		&event.Organizer,
		&event.Venue,
		&eventDate,
		&event.StartTime,
		&event.EndTime,
		&deadline,
		&event.MaxParticipants,
		&event.RegistrationFee,
		&requirements,
		&tags,
		&event.ImageURL,
		&isActive,
		&event.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Event{}, mapError(err)
	}

	event.IsActive = isActive != 0
	if event.EventDate, err = parseTime(eventDate); err != nil {
		return persistence.Event{}, err
	}
	if event.RegistrationDeadline, err = parseTime(deadline); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Event{}, err
	}

	if err := json.Unmarshal([]byte(requirements), &event.Requirements); err != nil {
		return persistence.Event{}, fmt.Errorf("decode requirements: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &event.Tags); err != nil {
		return persistence.Event{}, fmt.Errorf("decode tags: %w", err)
	}
	return event, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
