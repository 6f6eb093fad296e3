package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/example/club-registration/internal/persistence"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 2000
	maxEventParticipants = 10000
	defaultEventPageSize = 10
)

var clockTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// EventService manages the event catalog.
type EventService struct {
	catalog       *EventCatalog
	registrations persistence.RegistrationStore
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewEventService constructs an event service with the provided dependencies.
func NewEventService(catalog *EventCatalog, registrations persistence.RegistrationStore, idGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(catalog, registrations, idGenerator, now, nil)
}

// NewEventServiceWithLogger constructs an event service with a specified logger.
func NewEventServiceWithLogger(catalog *EventCatalog, registrations persistence.RegistrationStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		catalog:       catalog,
		registrations: registrations,
		idGenerator:   idGenerator,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent validates input and stores a new event owned by the principal.
func (s *EventService) CreateEvent(ctx context.Context, principal Principal, input EventInput) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event created")
	}()

	if principal.UserID == "" {
		err = ErrForbidden
		return
	}

	now := s.now()
	input = normalizeEventInput(input)
	vErr := validateEventInput(input)
	if !input.EventDate.IsZero() && !input.EventDate.After(now) {
		vErr.add("eventDate", "event date must be in the future")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	record := persistence.Event{
		ID:        s.idGenerator(),
		IsActive:  true,
		CreatedBy: principal.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyEventInput(&record, input)

	if err = s.catalog.Create(ctx, record); err != nil {
		if errors.Is(err, persistence.ErrConstraintViolation) {
			err = ErrUnauthenticated
		}
		return
	}

	event = enrichEvent(record, persistence.StatusCounts{}, now)
	return
}

// UpdateEvent replaces the editable fields of an event. Only the creator or an
// administrator may edit it, and capacity cannot drop below the confirmed count.
func (s *EventService) UpdateEvent(ctx context.Context, principal Principal, eventID string, input EventInput) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent", "principal_id", principal.UserID, "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated")
	}()

	input = normalizeEventInput(input)
	err = s.catalog.withEvent(eventID, func() error {
		existing, err := s.ownedEvent(ctx, principal, eventID)
		if err != nil {
			return err
		}

		vErr := validateEventInput(input)
		counts, err := s.registrations.CountByStatus(ctx, eventID)
		if err != nil {
			return err
		}
		if input.MaxParticipants > 0 && input.MaxParticipants < counts.Confirmed {
			vErr.add("maxParticipants", fmt.Sprintf("max participants cannot be lower than the %d confirmed registrations", counts.Confirmed))
		}
		if vErr.HasErrors() {
			return vErr
		}

		updated := existing
		applyEventInput(&updated, input)
		updated.UpdatedAt = s.now()
		if err := s.catalog.Update(ctx, updated); err != nil {
			return mapEventRepoError(err)
		}

		event = enrichEvent(updated, counts, s.now())
		return nil
	})
	return
}

// DeleteEvent removes an event that has never been registered for.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID string) (err error) {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteEvent", "principal_id", principal.UserID, "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	err = s.catalog.withEvent(eventID, func() error {
		if _, err := s.ownedEvent(ctx, principal, eventID); err != nil {
			return err
		}
		counts, err := s.registrations.CountByStatus(ctx, eventID)
		if err != nil {
			return err
		}
		if counts.All() > 0 {
			return ErrEventHasRegistrations
		}
		return mapEventRepoError(s.catalog.Delete(ctx, eventID))
	})
	return
}

// ToggleEventStatus flips the active flag of an event.
func (s *EventService) ToggleEventStatus(ctx context.Context, principal Principal, eventID string) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ToggleEventStatus", "principal_id", principal.UserID, "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to toggle event status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("is_active", event.IsActive).InfoContext(ctx, "event status toggled")
	}()

	err = s.catalog.withEvent(eventID, func() error {
		record, err := s.ownedEvent(ctx, principal, eventID)
		if err != nil {
			return err
		}
		record.IsActive = !record.IsActive
		record.UpdatedAt = s.now()
		if err := s.catalog.Update(ctx, record); err != nil {
			return mapEventRepoError(err)
		}

		counts, err := s.registrations.CountByStatus(ctx, eventID)
		if err != nil {
			return err
		}
		event = enrichEvent(record, counts, s.now())
		return nil
	})
	return
}

// GetEvent returns an event with its derived registration figures.
func (s *EventService) GetEvent(ctx context.Context, eventID string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	record, err := s.catalog.FindByID(ctx, eventID)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}
	counts, err := s.registrations.CountByStatus(ctx, eventID)
	if err != nil {
		return Event{}, err
	}
	return enrichEvent(record, counts, s.now()), nil
}

// ListEvents returns the public catalog filtered, sorted and paginated.
func (s *EventService) ListEvents(ctx context.Context, filter EventFilter) (EventList, error) {
	return s.list(ctx, persistence.EventQuery{}, filter)
}

// ListMyEvents returns the events created by the principal.
func (s *EventService) ListMyEvents(ctx context.Context, principal Principal, filter EventFilter) (EventList, error) {
	if principal.UserID == "" {
		return EventList{}, ErrForbidden
	}
	return s.list(ctx, persistence.EventQuery{CreatedBy: principal.UserID}, filter)
}

func (s *EventService) list(ctx context.Context, query persistence.EventQuery, filter EventFilter) (list EventList, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListEvents", "created_by", query.CreatedBy, "status", filter.Status)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(list.Events)).DebugContext(ctx, "events listed")
	}()

	status := strings.ToLower(strings.TrimSpace(filter.Status))
	if status == "" {
		status = "active"
	}
	if status != "active" && status != "past" && status != "all" {
		err = NewValidationError(map[string]string{"status": "status must be one of active, past, all"})
		return
	}
	query.ActiveOnly = status == "active"

	var records []persistence.Event
	if records, err = s.catalog.List(ctx, query); err != nil {
		return
	}

	now := s.now()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	category := strings.TrimSpace(filter.Category)

	matched := make([]persistence.Event, 0, len(records))
	for _, record := range records {
		switch status {
		case "active":
			if record.EventDate.Before(now) {
				continue
			}
		case "past":
			if !record.EventDate.Before(now) {
				continue
			}
		}
		if category != "" && !strings.EqualFold(category, "all") && record.Category != category {
			continue
		}
		if search != "" && !matchesSearch(record, search) {
			continue
		}
		matched = append(matched, record)
	}

	sortEvents(matched, filter.SortBy, strings.EqualFold(filter.Order, "desc"))
	page, info := paginate(matched, filter.Page, defaultEventPageSize)

	list.Events = make([]Event, 0, len(page))
	for _, record := range page {
		var counts persistence.StatusCounts
		if counts, err = s.registrations.CountByStatus(ctx, record.ID); err != nil {
			return
		}
		list.Events = append(list.Events, enrichEvent(record, counts, now))
	}
	list.PageInfo = info
	return
}

// ownedEvent loads an event the principal may manage.
func (s *EventService) ownedEvent(ctx context.Context, principal Principal, eventID string) (persistence.Event, error) {
	record, err := s.catalog.fresh(ctx, eventID)
	if err != nil {
		return persistence.Event{}, mapEventRepoError(err)
	}
	if !canManageEvent(principal, record) {
		return persistence.Event{}, ErrForbidden
	}
	return record, nil
}

func canManageEvent(principal Principal, event persistence.Event) bool {
	return principal.IsAdmin() || (principal.UserID != "" && principal.UserID == event.CreatedBy)
}

// enrichEvent derives counts and status from the ledger figures.
func enrichEvent(record persistence.Event, counts persistence.StatusCounts, now time.Time) Event {
	available := record.MaxParticipants - counts.Confirmed
	if available < 0 {
		available = 0
	}

	event := Event{
		Event:             record,
		RegistrationCount: counts.Active(),
		AvailableSpots:    available,
	}
	event.IsRegistrationOpen = record.IsActive && available > 0 &&
		now.Before(record.RegistrationDeadline) && now.Before(record.EventDate)

	switch {
	case record.EventDate.Before(now):
		event.Status = EventStatusCompleted
	case record.RegistrationDeadline.Before(now):
		event.Status = EventStatusRegistrationClosed
	case available <= 0:
		event.Status = EventStatusFull
	case !record.IsActive:
		event.Status = EventStatusCancelled
	default:
		event.Status = EventStatusOpen
	}
	return event
}

func matchesSearch(record persistence.Event, needle string) bool {
	return strings.Contains(strings.ToLower(record.Title), needle) ||
		strings.Contains(strings.ToLower(record.Description), needle) ||
		strings.Contains(strings.ToLower(record.Organizer), needle)
}

func sortEvents(events []persistence.Event, sortBy string, desc bool) {
	less := func(a, b persistence.Event) bool {
		switch sortBy {
		case "createdAt":
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case "title":
			if !strings.EqualFold(a.Title, b.Title) {
				return strings.ToLower(a.Title) < strings.ToLower(b.Title)
			}
		default:
			if !a.EventDate.Equal(b.EventDate) {
				return a.EventDate.Before(b.EventDate)
			}
		}
		return a.ID < b.ID
	}
	sort.SliceStable(events, func(i, j int) bool {
		if desc {
			return less(events[j], events[i])
		}
		return less(events[i], events[j])
	})
}

func normalizeEventInput(input EventInput) EventInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	input.Organizer = strings.TrimSpace(input.Organizer)
	input.Venue = strings.TrimSpace(input.Venue)
	input.StartTime = strings.TrimSpace(input.StartTime)
	input.EndTime = strings.TrimSpace(input.EndTime)
	input.ImageURL = strings.TrimSpace(input.ImageURL)
	input.Requirements = compactStrings(input.Requirements)
	input.Tags = compactStrings(input.Tags)
	return input
}

func validateEventInput(input EventInput) *ValidationError {
	vErr := &ValidationError{}

	switch {
	case input.Title == "":
		vErr.add("title", "title is required")
	case len([]rune(input.Title)) > maxTitleLength:
		vErr.add("title", fmt.Sprintf("title cannot exceed %d characters", maxTitleLength))
	}
	switch {
	case input.Description == "":
		vErr.add("description", "description is required")
	case len([]rune(input.Description)) > maxDescriptionLength:
		vErr.add("description", fmt.Sprintf("description cannot exceed %d characters", maxDescriptionLength))
	}
	if !slices.Contains(EventCategories, input.Category) {
		vErr.add("category", "category must be one of "+strings.Join(EventCategories, ", "))
	}
	if input.Organizer == "" {
		vErr.add("organizer", "organizer is required")
	}
	if input.Venue == "" {
		vErr.add("venue", "venue is required")
	}
	if input.EventDate.IsZero() {
		vErr.add("eventDate", "event date is required")
	}
	if !clockTimePattern.MatchString(input.StartTime) {
		vErr.add("startTime", "start time must use HH:MM")
	}
	if !clockTimePattern.MatchString(input.EndTime) {
		vErr.add("endTime", "end time must use HH:MM")
	}
	switch {
	case input.RegistrationDeadline.IsZero():
		vErr.add("registrationDeadline", "registration deadline is required")
	case !input.EventDate.IsZero() && input.RegistrationDeadline.After(input.EventDate):
		vErr.add("registrationDeadline", "registration deadline must be before the event date")
	}
	if input.MaxParticipants < 1 || input.MaxParticipants > maxEventParticipants {
		vErr.add("maxParticipants", fmt.Sprintf("max participants must be between 1 and %d", maxEventParticipants))
	}
	if input.RegistrationFee < 0 {
		vErr.add("registrationFee", "registration fee cannot be negative")
	}

	return vErr
}

func applyEventInput(record *persistence.Event, input EventInput) {
	record.Title = input.Title
	record.Description = input.Description
	record.Category = input.Category
	record.Organizer = input.Organizer
	record.Venue = input.Venue
	record.EventDate = input.EventDate
	record.StartTime = input.StartTime
	record.EndTime = input.EndTime
	record.RegistrationDeadline = input.RegistrationDeadline
	record.MaxParticipants = input.MaxParticipants
	record.RegistrationFee = input.RegistrationFee
	record.Requirements = input.Requirements
	record.Tags = input.Tags
	record.ImageURL = input.ImageURL
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mapEventRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		return ErrEventHasRegistrations
	}
	return err
}
