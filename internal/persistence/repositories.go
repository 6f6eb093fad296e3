package persistence

import "context"

// UserRepository exposes CRUD operations for user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// EventQuery narrows event listings. Zero values match everything.
type EventQuery struct {
	CreatedBy  string
	ActiveOnly bool
}

// EventRepository exposes CRUD operations for events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, query EventQuery) ([]Event, error)
	// DeleteEvent returns ErrConstraintViolation when registrations reference the event.
	DeleteEvent(ctx context.Context, id string) error
}

// LedgerTx is the view of the registration ledger available inside an event scope.
// Every read observes the writes made earlier in the same scope.
type LedgerTx interface {
	CountByStatus(ctx context.Context, eventID string) (StatusCounts, error)
	// CountRegistrations returns the number of registrations across all events.
	CountRegistrations(ctx context.Context) (int, error)
	GetRegistration(ctx context.Context, id string) (Registration, error)
	FindForUser(ctx context.Context, eventID, userID string) (Registration, error)
	// OldestWaitlisted returns the earliest created waitlist entry, or ErrNotFound.
	OldestWaitlisted(ctx context.Context, eventID string) (Registration, error)
	RegistrationNumberExists(ctx context.Context, number string) (bool, error)
	InsertRegistration(ctx context.Context, registration Registration) error
	UpdateRegistration(ctx context.Context, registration Registration) error
}

// RegistrationStore persists registrations. Mutations go through InEventScope,
// which serialises all writers of a single event and commits fn's writes
// atomically; scopes of different events do not block each other beyond what
// the backing store requires.
type RegistrationStore interface {
	InEventScope(ctx context.Context, eventID string, fn func(ctx context.Context, tx LedgerTx) error) error
	GetRegistration(ctx context.Context, id string) (Registration, error)
	ListRegistrationsByUser(ctx context.Context, userID string) ([]Registration, error)
	ListRegistrationsByEvent(ctx context.Context, eventID string) ([]Registration, error)
	CountByStatus(ctx context.Context, eventID string) (StatusCounts, error)
}

// Storage bundles every repository of one backing store with its lifecycle.
type Storage interface {
	UserRepository
	EventRepository
	RegistrationStore
	Migrate(ctx context.Context) error
	Close() error
}
