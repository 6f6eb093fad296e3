package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/club-registration/internal/persistence"
)

var (
	userCounter         uint64
	eventCounter        uint64
	registrationCounter uint64
)

var referenceTime = time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the baseline instant fixtures are built around.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Users -----------------------------

// UserOption customises a user fixture.
type UserOption func(*persistence.User)

// NewUser returns an active student with unique identifiers.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	user := persistence.User{
		ID:           id,
		Email:        id + "@example.edu",
		PasswordHash: "unused",
		FirstName:    "Student",
		LastName:     fmt.Sprintf("%03d", idx),
		Department:   "Computer Science",
		Year:         2,
		Role:         "student",
		IsActive:     true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the user identifier.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) { u.ID = id }
}

// WithEmail overrides the email address.
func WithEmail(email string) UserOption {
	return func(u *persistence.User) { u.Email = email }
}

// WithPasswordHash stores an encoded password hash.
func WithPasswordHash(hash string) UserOption {
	return func(u *persistence.User) { u.PasswordHash = hash }
}

// AsAdmin grants the administrator role.
func AsAdmin() UserOption {
	return func(u *persistence.User) { u.Role = "admin" }
}

// Deactivated marks the account inactive.
func Deactivated() UserOption {
	return func(u *persistence.User) { u.IsActive = false }
}

// WithStudentID assigns a student number.
func WithStudentID(studentID string) UserOption {
	return func(u *persistence.User) { u.StudentID = &studentID }
}

// ----------------------------- Events -----------------------------

// EventOption customises an event fixture.
type EventOption func(*persistence.Event)

// NewEvent returns an active free event owned by createdBy. Registration
// closes seven days and the event takes place fourteen days after ReferenceTime.
func NewEvent(createdBy string, opts ...EventOption) persistence.Event {
	idx := atomic.AddUint64(&eventCounter, 1)
	id := fmt.Sprintf("event-%04d", idx)
	event := persistence.Event{
		ID:                   id,
		Title:                fmt.Sprintf("Club Meetup %d", idx),
		Description:          "Monthly gathering of the programming club.",
		Category:             "Technical",
		Organizer:            "Programming Club",
		Venue:                "Hall A",
		EventDate:            referenceTime.Add(14 * 24 * time.Hour),
		StartTime:            "10:00",
		EndTime:              "12:00",
		RegistrationDeadline: referenceTime.Add(7 * 24 * time.Hour),
		MaxParticipants:      10,
		Requirements:         []string{},
		Tags:                 []string{},
		IsActive:             true,
		CreatedBy:            createdBy,
		CreatedAt:            referenceTime.Add(-24 * time.Hour),
		UpdatedAt:            referenceTime.Add(-24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

// WithEventID overrides the event identifier.
func WithEventID(id string) EventOption {
	return func(e *persistence.Event) { e.ID = id }
}

// WithTitle overrides the title.
func WithTitle(title string) EventOption {
	return func(e *persistence.Event) { e.Title = title }
}

// WithCategory overrides the category.
func WithCategory(category string) EventOption {
	return func(e *persistence.Event) { e.Category = category }
}

// WithCapacity sets maxParticipants.
func WithCapacity(n int) EventOption {
	return func(e *persistence.Event) { e.MaxParticipants = n }
}

// WithFee sets the registration fee.
func WithFee(fee float64) EventOption {
	return func(e *persistence.Event) { e.RegistrationFee = fee }
}

// WithSchedule sets the registration deadline and the event date.
func WithSchedule(deadline, eventDate time.Time) EventOption {
	return func(e *persistence.Event) {
		e.RegistrationDeadline = deadline
		e.EventDate = eventDate
	}
}

// InactiveEvent clears the active flag.
func InactiveEvent() EventOption {
	return func(e *persistence.Event) { e.IsActive = false }
}

// ----------------------------- Registrations -----------------------------

// RegistrationOption customises a registration fixture.
type RegistrationOption func(*persistence.Registration)

// NewRegistration returns a confirmed free registration of userID for eventID.
func NewRegistration(eventID, userID string, opts ...RegistrationOption) persistence.Registration {
	idx := atomic.AddUint64(&registrationCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Second)
	reg := persistence.Registration{
		ID:                 fmt.Sprintf("reg-%04d", idx),
		UserID:             userID,
		EventID:            eventID,
		Status:             "confirmed",
		PaymentStatus:      "not_required",
		AttendanceStatus:   "not_attended",
		RegistrationNumber: fmt.Sprintf("REGFIX%06d", idx),
		CreatedAt:          created,
		UpdatedAt:          created,
	}
	for _, opt := range opts {
		opt(&reg)
	}
	return reg
}

// WithStatus overrides the seat status.
func WithStatus(status string) RegistrationOption {
	return func(r *persistence.Registration) { r.Status = status }
}

// CreatedAt overrides the creation time, which orders the waitlist.
func CreatedAt(t time.Time) RegistrationOption {
	return func(r *persistence.Registration) {
		r.CreatedAt = t
		r.UpdatedAt = t
	}
}
