package persistence

import "time"

// User represents a club member or administrator account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	StudentID    *string
	Phone        string
	Department   string
	Year         int
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Event represents a club event definition.
type Event struct {
	ID                   string
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
	IsActive             bool
	CreatedBy            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Feedback is the optional post-event rating attached to a registration.
type Feedback struct {
	Rating      int
	Comment     string
	SubmittedAt time.Time
}

// Registration is one user's attempt to attend one event.
type Registration struct {
	ID                 string
	UserID             string
	EventID            string
	Status             string
	PaymentStatus      string
	PaymentAmount      float64
	Notes              string
	AttendanceStatus   string
	Feedback           *Feedback
	RegistrationNumber string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StatusCounts aggregates registrations of a single event by status.
type StatusCounts struct {
	Confirmed int
	Waitlist  int
	Cancelled int
}

// Active returns the number of registrations holding or waiting for a seat.
func (c StatusCounts) Active() int {
	return c.Confirmed + c.Waitlist
}

// All returns the number of registrations regardless of status.
func (c StatusCounts) All() int {
	return c.Confirmed + c.Waitlist + c.Cancelled
}
