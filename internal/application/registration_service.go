package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/club-registration/internal/persistence"
)

const (
	maxNotesLength          = 500
	maxFeedbackLength       = 1000
	defaultMinePageSize     = 10
	defaultRosterPageSize   = 20
	minFeedbackRating       = 1
	maxFeedbackRating       = 5
	statusFilterAll         = "all"
	registrationServiceName = "RegistrationService"
)

// RegistrationService owns the registration lifecycle: signup, waitlist
// promotion, cancellation, overrides and feedback. Every mutation of an
// event's ledger runs under that event's lock and inside one store scope, and
// reads the event from the repository rather than the cache.
type RegistrationService struct {
	catalog       *EventCatalog
	registrations persistence.RegistrationStore
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewRegistrationService constructs a registration service with the provided dependencies.
func NewRegistrationService(catalog *EventCatalog, registrations persistence.RegistrationStore, idGenerator func() string, now func() time.Time) *RegistrationService {
	return NewRegistrationServiceWithLogger(catalog, registrations, idGenerator, now, nil)
}

// NewRegistrationServiceWithLogger constructs a registration service with a specified logger.
func NewRegistrationServiceWithLogger(catalog *EventCatalog, registrations persistence.RegistrationStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RegistrationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RegistrationService{
		catalog:       catalog,
		registrations: registrations,
		idGenerator:   idGenerator,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

func (s *RegistrationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, registrationServiceName, operation, attrs...)
}

// Register signs the principal up for an event. The new registration is
// confirmed while confirmed plus waitlisted registrations are below capacity
// and waitlisted otherwise.
func (s *RegistrationService) Register(ctx context.Context, params RegisterParams) (registration Registration, err error) {
	if s == nil {
		err = fmt.Errorf("RegistrationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Register", "principal_id", params.Principal.UserID, "event_id", params.EventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register for event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"registration_id", registration.ID,
			"status", registration.Status,
			"registration_number", registration.RegistrationNumber,
		).InfoContext(ctx, "registration created")
	}()

	if params.Principal.UserID == "" {
		err = ErrForbidden
		return
	}
	notes := strings.TrimSpace(params.Notes)
	if len([]rune(notes)) > maxNotesLength {
		err = NewValidationError(map[string]string{"notes": fmt.Sprintf("notes cannot exceed %d characters", maxNotesLength)})
		return
	}

	err = s.catalog.withEvent(params.EventID, func() error {
		event, err := s.catalog.fresh(ctx, params.EventID)
		if err != nil {
			return mapEventRepoError(err)
		}

		now := s.now()
		switch {
		case !event.IsActive:
			return ErrEventInactive
		case !now.Before(event.RegistrationDeadline):
			return ErrDeadlinePassed
		case !now.Before(event.EventDate):
			return ErrEventAlreadyOccurred
		}

		return s.registrations.InEventScope(ctx, event.ID, func(ctx context.Context, tx persistence.LedgerTx) error {
			if _, err := tx.FindForUser(ctx, event.ID, params.Principal.UserID); err == nil {
				return ErrDuplicateRegistration
			} else if !errors.Is(err, persistence.ErrNotFound) {
				return err
			}

			counts, err := tx.CountByStatus(ctx, event.ID)
			if err != nil {
				return err
			}

			number, err := nextRegistrationNumber(ctx, tx, event.ID, now)
			if err != nil {
				return err
			}

			payment := PaymentPending
			if event.RegistrationFee == 0 {
				payment = PaymentNotRequired
			}

			record := persistence.Registration{
				ID:                 s.idGenerator(),
				UserID:             params.Principal.UserID,
				EventID:            event.ID,
				Status:             string(decideStatus(counts.Active(), event.MaxParticipants)),
				PaymentStatus:      string(payment),
				PaymentAmount:      event.RegistrationFee,
				Notes:              notes,
				AttendanceStatus:   string(AttendanceNotAttended),
				RegistrationNumber: number,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := tx.InsertRegistration(ctx, record); err != nil {
				if errors.Is(err, persistence.ErrDuplicate) {
					return ErrDuplicateRegistration
				}
				return err
			}

			registration = toRegistration(record)
			return nil
		})
	})
	if err != nil {
		err = mapRegistrationError(err)
	}
	return
}

// Cancel marks the principal's registration cancelled. When a confirmed seat
// is released the oldest waitlisted registration of the event is promoted.
// Cancelling an already cancelled registration returns it unchanged.
func (s *RegistrationService) Cancel(ctx context.Context, principal Principal, registrationID string) (registration Registration, err error) {
	if s == nil {
		err = fmt.Errorf("RegistrationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Cancel", "principal_id", principal.UserID, "registration_id", registrationID)
	var promoted *persistence.Registration
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel registration", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if promoted != nil {
			logger = logger.With("promoted_registration_id", promoted.ID)
		}
		logger.InfoContext(ctx, "registration cancelled")
	}()

	var existing persistence.Registration
	if existing, err = s.registrations.GetRegistration(ctx, registrationID); err != nil {
		err = mapRegistrationError(err)
		return
	}
	if existing.UserID != principal.UserID {
		err = ErrForbidden
		return
	}

	err = s.catalog.withEvent(existing.EventID, func() error {
		event, err := s.catalog.fresh(ctx, existing.EventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		now := s.now()
		if !now.Before(event.RegistrationDeadline) {
			return ErrCancellationClosed
		}

		return s.registrations.InEventScope(ctx, event.ID, func(ctx context.Context, tx persistence.LedgerTx) error {
			current, err := tx.GetRegistration(ctx, registrationID)
			if err != nil {
				return err
			}
			if current.Status == string(StatusCancelled) {
				registration = toRegistration(current)
				return nil
			}

			prior := current.Status
			current.Status = string(StatusCancelled)
			current.UpdatedAt = now
			if err := tx.UpdateRegistration(ctx, current); err != nil {
				return err
			}
			registration = toRegistration(current)

			if prior != string(StatusConfirmed) {
				return nil
			}
			promoted, err = promoteNext(ctx, tx, event.ID, event.MaxParticipants, now)
			return err
		})
	})
	if err != nil {
		err = mapRegistrationError(err)
	}
	return
}

// UpdateStatus lets the event creator or an administrator set any status.
// Capacity is not enforced and nothing is promoted; the result reports when
// the event ends up with more confirmed registrations than seats.
func (s *RegistrationService) UpdateStatus(ctx context.Context, params UpdateStatusParams) (result UpdateStatusResult, err error) {
	if s == nil {
		err = fmt.Errorf("RegistrationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateStatus",
		"principal_id", params.Principal.UserID,
		"registration_id", params.RegistrationID,
		"status", params.Status,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update registration status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if result.CapacityOverride {
			logger.WarnContext(ctx, "registration status overridden beyond capacity")
			return
		}
		logger.InfoContext(ctx, "registration status updated")
	}()

	if !params.Status.Valid() {
		err = ErrInvalidStatus
		return
	}
	if params.Notes != nil && len([]rune(*params.Notes)) > maxNotesLength {
		err = NewValidationError(map[string]string{"notes": fmt.Sprintf("notes cannot exceed %d characters", maxNotesLength)})
		return
	}

	err = s.mutateManaged(ctx, params.Principal, params.RegistrationID, func(ctx context.Context, tx persistence.LedgerTx, event persistence.Event, record *persistence.Registration) error {
		record.Status = string(params.Status)
		if params.Notes != nil {
			record.Notes = strings.TrimSpace(*params.Notes)
		}
		record.UpdatedAt = s.now()
		if err := tx.UpdateRegistration(ctx, *record); err != nil {
			return err
		}

		counts, err := tx.CountByStatus(ctx, event.ID)
		if err != nil {
			return err
		}
		result.Registration = toRegistration(*record)
		result.CapacityOverride = counts.Confirmed > event.MaxParticipants
		return nil
	})
	return
}

// UpdateAttendance records whether the registrant attended the event.
func (s *RegistrationService) UpdateAttendance(ctx context.Context, principal Principal, registrationID string, status AttendanceStatus) (registration Registration, err error) {
	if s == nil {
		err = fmt.Errorf("RegistrationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateAttendance", "principal_id", principal.UserID, "registration_id", registrationID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update attendance", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("attendance_status", registration.AttendanceStatus).InfoContext(ctx, "attendance updated")
	}()

	if !status.Valid() {
		err = ErrInvalidStatus
		return
	}

	err = s.mutateManaged(ctx, principal, registrationID, func(ctx context.Context, tx persistence.LedgerTx, _ persistence.Event, record *persistence.Registration) error {
		record.AttendanceStatus = string(status)
		record.UpdatedAt = s.now()
		if err := tx.UpdateRegistration(ctx, *record); err != nil {
			return err
		}
		registration = toRegistration(*record)
		return nil
	})
	return
}

// UpdatePayment records the fee state of a registration. not_required is only
// accepted for free events.
func (s *RegistrationService) UpdatePayment(ctx context.Context, principal Principal, registrationID string, status PaymentStatus) (registration Registration, err error) {
	if s == nil {
		err = fmt.Errorf("RegistrationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdatePayment", "principal_id", principal.UserID, "registration_id", registrationID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update payment status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("payment_status", registration.PaymentStatus).InfoContext(ctx, "payment status updated")
	}()

	if !status.Valid() {
		err = ErrInvalidStatus
		return
	}

	err = s.mutateManaged(ctx, principal, registrationID, func(ctx context.Context, tx persistence.LedgerTx, event persistence.Event, record *persistence.Registration) error {
		if status == PaymentNotRequired && event.RegistrationFee > 0 {
			return NewValidationError(map[string]string{"paymentStatus": "payment is required for this event"})
		}
		record.PaymentStatus = string(status)
		record.UpdatedAt = s.now()
		if err := tx.UpdateRegistration(ctx, *record); err != nil {
			return err
		}
		registration = toRegistration(*record)
		return nil
	})
	return
}

// SubmitFeedback stores the owner's rating once the event has taken place.
// A new submission replaces the previous one.
func (s *RegistrationService) SubmitFeedback(ctx context.Context, params FeedbackParams) (registration Registration, err error) {
	if s == nil {
		err = fmt.Errorf("RegistrationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SubmitFeedback", "principal_id", params.Principal.UserID, "registration_id", params.RegistrationID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit feedback", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("rating", params.Rating).InfoContext(ctx, "feedback submitted")
	}()

	var existing persistence.Registration
	if existing, err = s.registrations.GetRegistration(ctx, params.RegistrationID); err != nil {
		err = mapRegistrationError(err)
		return
	}
	if existing.UserID != params.Principal.UserID {
		err = ErrForbidden
		return
	}

	comment := strings.TrimSpace(params.Comment)
	vErr := &ValidationError{}
	if params.Rating < minFeedbackRating || params.Rating > maxFeedbackRating {
		vErr.add("rating", fmt.Sprintf("rating must be between %d and %d", minFeedbackRating, maxFeedbackRating))
	}
	if len([]rune(comment)) > maxFeedbackLength {
		vErr.add("comment", fmt.Sprintf("comment cannot exceed %d characters", maxFeedbackLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.catalog.withEvent(existing.EventID, func() error {
		event, err := s.catalog.fresh(ctx, existing.EventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		now := s.now()
		if now.Before(event.EventDate) {
			return ErrEventNotYetOccurred
		}

		return s.registrations.InEventScope(ctx, event.ID, func(ctx context.Context, tx persistence.LedgerTx) error {
			current, err := tx.GetRegistration(ctx, params.RegistrationID)
			if err != nil {
				return err
			}
			current.Feedback = &persistence.Feedback{
				Rating:      params.Rating,
				Comment:     comment,
				SubmittedAt: now,
			}
			current.UpdatedAt = now
			if err := tx.UpdateRegistration(ctx, current); err != nil {
				return err
			}
			registration = toRegistration(current)
			return nil
		})
	})
	if err != nil {
		err = mapRegistrationError(err)
	}
	return
}

// GetRegistration returns a registration visible to its owner, the event
// creator or an administrator.
func (s *RegistrationService) GetRegistration(ctx context.Context, principal Principal, registrationID string) (Registration, error) {
	if s == nil {
		return Registration{}, fmt.Errorf("RegistrationService is nil")
	}
	record, err := s.registrations.GetRegistration(ctx, registrationID)
	if err != nil {
		return Registration{}, mapRegistrationError(err)
	}
	if record.UserID == principal.UserID || principal.IsAdmin() {
		return toRegistration(record), nil
	}

	event, err := s.catalog.FindByID(ctx, record.EventID)
	if err != nil {
		return Registration{}, mapEventRepoError(err)
	}
	if !canManageEvent(principal, event) {
		return Registration{}, ErrForbidden
	}
	return toRegistration(record), nil
}

// ListMine returns the principal's registrations, newest first.
func (s *RegistrationService) ListMine(ctx context.Context, params ListMineParams) (list RegistrationList, err error) {
	if s == nil {
		err = fmt.Errorf("RegistrationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListMine", "principal_id", params.Principal.UserID, "status", params.Status)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list registrations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(list.Registrations)).DebugContext(ctx, "registrations listed")
	}()

	if params.Principal.UserID == "" {
		err = ErrForbidden
		return
	}
	var status string
	if status, err = parseStatusFilter(params.Status); err != nil {
		return
	}

	var records []persistence.Registration
	if records, err = s.registrations.ListRegistrationsByUser(ctx, params.Principal.UserID); err != nil {
		return
	}

	page, info := paginate(filterByStatus(records, status), params.Page, defaultMinePageSize)
	list = RegistrationList{Registrations: toRegistrations(page), PageInfo: info}
	return
}

// EventRegistrations returns one event's registrations and stats to its
// creator or an administrator.
func (s *RegistrationService) EventRegistrations(ctx context.Context, params EventRegistrationsParams) (result EventRegistrations, err error) {
	if s == nil {
		err = fmt.Errorf("RegistrationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "EventRegistrations", "principal_id", params.Principal.UserID, "event_id", params.EventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list event registrations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(result.Registrations)).DebugContext(ctx, "event registrations listed")
	}()

	var event persistence.Event
	if event, err = s.catalog.FindByID(ctx, params.EventID); err != nil {
		err = mapEventRepoError(err)
		return
	}
	if !canManageEvent(params.Principal, event) {
		err = ErrForbidden
		return
	}
	var status string
	if status, err = parseStatusFilter(params.Status); err != nil {
		return
	}

	var counts persistence.StatusCounts
	if counts, err = s.registrations.CountByStatus(ctx, event.ID); err != nil {
		return
	}
	var records []persistence.Registration
	if records, err = s.registrations.ListRegistrationsByEvent(ctx, event.ID); err != nil {
		return
	}

	page, info := paginate(filterByStatus(records, status), params.Page, defaultRosterPageSize)
	result = EventRegistrations{
		Event:         enrichEvent(event, counts, s.now()),
		Registrations: toRegistrations(page),
		PageInfo:      info,
		Stats:         statsFromCounts(counts),
	}
	return
}

// Stats returns the registration figures of an event.
func (s *RegistrationService) Stats(ctx context.Context, eventID string) (RegistrationStats, error) {
	if s == nil {
		return RegistrationStats{}, fmt.Errorf("RegistrationService is nil")
	}
	if _, err := s.catalog.FindByID(ctx, eventID); err != nil {
		return RegistrationStats{}, mapEventRepoError(err)
	}
	counts, err := s.registrations.CountByStatus(ctx, eventID)
	if err != nil {
		return RegistrationStats{}, err
	}
	return statsFromCounts(counts), nil
}

type managedMutation func(ctx context.Context, tx persistence.LedgerTx, event persistence.Event, record *persistence.Registration) error

// mutateManaged runs fn on a registration inside its event scope after
// checking that the principal manages the event.
func (s *RegistrationService) mutateManaged(ctx context.Context, principal Principal, registrationID string, fn managedMutation) error {
	existing, err := s.registrations.GetRegistration(ctx, registrationID)
	if err != nil {
		return mapRegistrationError(err)
	}

	err = s.catalog.withEvent(existing.EventID, func() error {
		event, err := s.catalog.fresh(ctx, existing.EventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		if !canManageEvent(principal, event) {
			return ErrForbidden
		}

		return s.registrations.InEventScope(ctx, event.ID, func(ctx context.Context, tx persistence.LedgerTx) error {
			current, err := tx.GetRegistration(ctx, registrationID)
			if err != nil {
				return err
			}
			return fn(ctx, tx, event, &current)
		})
	})
	return mapRegistrationError(err)
}

func parseStatusFilter(raw string) (string, error) {
	status := strings.ToLower(strings.TrimSpace(raw))
	if status == "" || status == statusFilterAll {
		return statusFilterAll, nil
	}
	if !RegistrationStatus(status).Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

func filterByStatus(records []persistence.Registration, status string) []persistence.Registration {
	if status == statusFilterAll {
		return records
	}
	filtered := make([]persistence.Registration, 0, len(records))
	for _, record := range records {
		if record.Status == status {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

func statsFromCounts(counts persistence.StatusCounts) RegistrationStats {
	return RegistrationStats{
		Total:     counts.Active(),
		Confirmed: counts.Confirmed,
		Waitlist:  counts.Waitlist,
		Cancelled: counts.Cancelled,
	}
}

func toRegistration(record persistence.Registration) Registration {
	registration := Registration{
		ID:                 record.ID,
		UserID:             record.UserID,
		EventID:            record.EventID,
		Status:             RegistrationStatus(record.Status),
		PaymentStatus:      PaymentStatus(record.PaymentStatus),
		PaymentAmount:      record.PaymentAmount,
		Notes:              record.Notes,
		AttendanceStatus:   AttendanceStatus(record.AttendanceStatus),
		RegistrationNumber: record.RegistrationNumber,
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}
	if record.Feedback != nil {
		registration.Feedback = &Feedback{
			Rating:      record.Feedback.Rating,
			Comment:     record.Feedback.Comment,
			SubmittedAt: record.Feedback.SubmittedAt,
		}
	}
	return registration
}

func toRegistrations(records []persistence.Registration) []Registration {
	out := make([]Registration, 0, len(records))
	for _, record := range records {
		out = append(out, toRegistration(record))
	}
	return out
}

func mapRegistrationError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrDuplicateRegistration
	}
	return err
}
