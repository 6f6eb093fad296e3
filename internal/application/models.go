package application

import (
	"time"

	"github.com/example/club-registration/internal/persistence"
)

// Role is the coarse permission level of an account.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal holds the administrator role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// RegistrationStatus is the seat state of a registration.
type RegistrationStatus string

const (
	StatusConfirmed RegistrationStatus = "confirmed"
	StatusWaitlist  RegistrationStatus = "waitlist"
	StatusCancelled RegistrationStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusWaitlist, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus tracks the recorded fee state. No payment is ever collected.
type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "pending"
	PaymentPaid        PaymentStatus = "paid"
	PaymentRefunded    PaymentStatus = "refunded"
	PaymentNotRequired PaymentStatus = "not_required"
)

// Valid reports whether s is one of the known payment states.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentRefunded, PaymentNotRequired:
		return true
	}
	return false
}

// AttendanceStatus records whether the registrant showed up.
type AttendanceStatus string

const (
	AttendanceNotAttended       AttendanceStatus = "not_attended"
	AttendanceAttended          AttendanceStatus = "attended"
	AttendancePartiallyAttended AttendanceStatus = "partially_attended"
)

// Valid reports whether s is one of the known attendance states.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceNotAttended, AttendanceAttended, AttendancePartiallyAttended:
		return true
	}
	return false
}

// EventStatus is derived from an event and its counts at read time.
type EventStatus string

const (
	EventStatusOpen               EventStatus = "open"
	EventStatusFull               EventStatus = "full"
	EventStatusRegistrationClosed EventStatus = "registration_closed"
	EventStatusCompleted          EventStatus = "completed"
	EventStatusCancelled          EventStatus = "cancelled"
)

// Event categories accepted by the catalog.
var EventCategories = []string{
	"Technical", "Cultural", "Sports", "Workshop", "Seminar", "Competition", "Social", "Other",
}

// Event is a catalog entry enriched with values derived from the ledger.
type Event struct {
	persistence.Event

	RegistrationCount  int
	AvailableSpots     int
	IsRegistrationOpen bool
	Status             EventStatus
}

// Feedback is the post-event rating left by a registrant.
type Feedback struct {
	Rating      int
	Comment     string
	SubmittedAt time.Time
}

// Registration is a user's registration for an event.
type Registration struct {
	ID                 string
	UserID             string
	EventID            string
	Status             RegistrationStatus
	PaymentStatus      PaymentStatus
	PaymentAmount      float64
	Notes              string
	AttendanceStatus   AttendanceStatus
	Feedback           *Feedback
	RegistrationNumber string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RegistrationStats summarises an event's registrations. Total excludes cancellations.
type RegistrationStats struct {
	Total     int
	Confirmed int
	Waitlist  int
	Cancelled int
}

// Page requests one page of a listing. Zero values select the defaults.
type Page struct {
	Number int
	Limit  int
}

// PageInfo describes the page returned by a listing.
type PageInfo struct {
	CurrentPage int
	TotalPages  int
	TotalItems  int
}

// RegisterParams carries the input of a signup.
type RegisterParams struct {
	Principal Principal
	EventID   string
	Notes     string
}

// UpdateStatusParams carries an administrative status override.
type UpdateStatusParams struct {
	Principal      Principal
	RegistrationID string
	Status         RegistrationStatus
	Notes          *string
}

// UpdateStatusResult reports the override outcome.
type UpdateStatusResult struct {
	Registration Registration
	// CapacityOverride is set when the override leaves more confirmed
	// registrations than the event allows.
	CapacityOverride bool
}

// FeedbackParams carries a feedback submission.
type FeedbackParams struct {
	Principal      Principal
	RegistrationID string
	Rating         int
	Comment        string
}

// ListMineParams selects the principal's registrations.
type ListMineParams struct {
	Principal Principal
	Status    string
	Page      Page
}

// EventRegistrationsParams selects the registrations of one event.
type EventRegistrationsParams struct {
	Principal Principal
	EventID   string
	Status    string
	Page      Page
}

// RegistrationList is a page of registrations.
type RegistrationList struct {
	Registrations []Registration
	PageInfo      PageInfo
}

// EventRegistrations is a page of an event's registrations with its stats.
type EventRegistrations struct {
	Event         Event
	Registrations []Registration
	PageInfo      PageInfo
	Stats         RegistrationStats
}

// User is an account without its password hash.
type User struct {
	ID         string
	Email      string
	FirstName  string
	LastName   string
	StudentID  *string
	Phone      string
	Department string
	Year       int
	Role       Role
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FullName joins the first and last name.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// SignupInput carries the fields of a new student account.
type SignupInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	StudentID  string
	Phone      string
	Department string
	Year       int
}

// ProfileInput carries self-service profile edits.
type ProfileInput struct {
	FirstName  string
	LastName   string
	Phone      string
	Department string
	Year       int
}

// AuthenticateParams carries login credentials.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult is the outcome of a successful login.
type AuthenticateResult struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// EventInput carries caller supplied event fields.
type EventInput struct {
	Title                string
	Description          string
	Category             string
	Organizer            string
	Venue                string
	EventDate            time.Time
	StartTime            string
	EndTime              string
	RegistrationDeadline time.Time
	MaxParticipants      int
	RegistrationFee      float64
	Requirements         []string
	Tags                 []string
	ImageURL             string
}

// EventFilter narrows the public event listing.
type EventFilter struct {
	// Status is "active" (upcoming and active, the default), "past" or "all".
	Status   string
	Category string
	Search   string
	// SortBy is "eventDate" (default), "createdAt" or "title".
	SortBy string
	// Order is "asc" (default) or "desc".
	Order string
	Page  Page
}

// EventList is a page of events.
type EventList struct {
	Events   []Event
	PageInfo PageInfo
}
