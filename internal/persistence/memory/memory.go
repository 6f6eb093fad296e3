// Package memory provides a map backed implementation of the persistence
// repositories. It is used by tests and by the "memory" storage driver.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/example/club-registration/internal/persistence"
)

// Storage keeps every record in process memory.
type Storage struct {
	mu     sync.RWMutex
	users  map[string]persistence.User
	events map[string]persistence.Event

	// regMu guards registrations. When both locks are needed, mu is taken first.
	regMu         sync.RWMutex
	registrations map[string]persistence.Registration
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		users:         make(map[string]persistence.User),
		events:        make(map[string]persistence.Event),
		registrations: make(map[string]persistence.Registration),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Migrate initialises the storage. No-op for the in-memory implementation.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.ensureUniqueUserLocked(user); err != nil {
		return err
	}

	s.users[user.ID] = cloneUser(user)
	return nil
}

// UpdateUser replaces an existing user.
func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueUserLocked(user); err != nil {
		return err
	}

	s.users[user.ID] = cloneUser(user)
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return cloneUser(user), nil
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return cloneUser(user), nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns all users ordered by CreatedAt ascending.
func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, cloneUser(user))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Storage) ensureUniqueUserLocked(user persistence.User) error {
	for id, existing := range s.users {
		if id == user.ID {
			continue
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return persistence.ErrDuplicate
		}
		if user.StudentID != nil && existing.StudentID != nil && *user.StudentID == *existing.StudentID {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

// --- EventRepository implementation ---

// CreateEvent stores a new event.
func (s *Storage) CreateEvent(ctx context.Context, event persistence.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; ok {
		return persistence.ErrDuplicate
	}
	if _, ok := s.users[event.CreatedBy]; !ok {
		return persistence.ErrConstraintViolation
	}
	s.events[event.ID] = cloneEvent(event)
	return nil
}

// UpdateEvent replaces an existing event.
func (s *Storage) UpdateEvent(ctx context.Context, event persistence.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.events[event.ID] = cloneEvent(event)
	return nil
}

// GetEvent retrieves an event by ID.
func (s *Storage) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return cloneEvent(event), nil
}

// ListEvents returns events matching the query ordered by EventDate ascending.
func (s *Storage) ListEvents(ctx context.Context, query persistence.EventQuery) ([]persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]persistence.Event, 0, len(s.events))
	for _, event := range s.events {
		if query.CreatedBy != "" && event.CreatedBy != query.CreatedBy {
			continue
		}
		if query.ActiveOnly && !event.IsActive {
			continue
		}
		events = append(events, cloneEvent(event))
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].EventDate.Equal(events[j].EventDate) {
			return events[i].ID < events[j].ID
		}
		return events[i].EventDate.Before(events[j].EventDate)
	})
	return events, nil
}

// DeleteEvent removes an event that no registration references.
func (s *Storage) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return persistence.ErrNotFound
	}

	s.regMu.RLock()
	defer s.regMu.RUnlock()
	for _, reg := range s.registrations {
		if reg.EventID == id {
			return persistence.ErrConstraintViolation
		}
	}

	delete(s.events, id)
	return nil
}

// --- RegistrationStore implementation ---

// InEventScope runs fn against a staged view of the ledger and applies the
// staged writes only when fn succeeds.
func (s *Storage) InEventScope(ctx context.Context, eventID string, fn func(ctx context.Context, tx persistence.LedgerTx) error) error {
	s.mu.RLock()
	_, ok := s.events[eventID]
	s.mu.RUnlock()
	if !ok {
		return persistence.ErrNotFound
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()

	tx := &ledgerTx{storage: s, staged: make(map[string]persistence.Registration)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, reg := range tx.staged {
		s.registrations[id] = reg
	}
	return nil
}

// GetRegistration retrieves a registration by ID.
func (s *Storage) GetRegistration(ctx context.Context, id string) (persistence.Registration, error) {
	s.regMu.RLock()
	defer s.regMu.RUnlock()

	reg, ok := s.registrations[id]
	if !ok {
		return persistence.Registration{}, persistence.ErrNotFound
	}
	return cloneRegistration(reg), nil
}

// ListRegistrationsByUser returns the user's registrations, newest first.
func (s *Storage) ListRegistrationsByUser(ctx context.Context, userID string) ([]persistence.Registration, error) {
	return s.listRegistrations(func(reg persistence.Registration) bool { return reg.UserID == userID }), nil
}

// ListRegistrationsByEvent returns the event's registrations, newest first.
func (s *Storage) ListRegistrationsByEvent(ctx context.Context, eventID string) ([]persistence.Registration, error) {
	return s.listRegistrations(func(reg persistence.Registration) bool { return reg.EventID == eventID }), nil
}

// CountByStatus aggregates the event's registrations by status.
func (s *Storage) CountByStatus(ctx context.Context, eventID string) (persistence.StatusCounts, error) {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	return countByStatus(s.registrations, nil, eventID), nil
}

func (s *Storage) listRegistrations(match func(persistence.Registration) bool) []persistence.Registration {
	s.regMu.RLock()
	defer s.regMu.RUnlock()

	result := make([]persistence.Registration, 0)
	for _, reg := range s.registrations {
		if match(reg) {
			result = append(result, cloneRegistration(reg))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// ledgerTx overlays staged writes on top of the committed registrations.
// The owning Storage holds regMu for the lifetime of the transaction.
type ledgerTx struct {
	storage *Storage
	staged  map[string]persistence.Registration
}

func (tx *ledgerTx) view() []persistence.Registration {
	out := make([]persistence.Registration, 0, len(tx.storage.registrations)+len(tx.staged))
	for id, reg := range tx.storage.registrations {
		if _, ok := tx.staged[id]; ok {
			continue
		}
		out = append(out, reg)
	}
	for _, reg := range tx.staged {
		out = append(out, reg)
	}
	return out
}

func (tx *ledgerTx) lookup(id string) (persistence.Registration, bool) {
	if reg, ok := tx.staged[id]; ok {
		return reg, true
	}
	reg, ok := tx.storage.registrations[id]
	return reg, ok
}

func (tx *ledgerTx) CountByStatus(ctx context.Context, eventID string) (persistence.StatusCounts, error) {
	return countByStatus(tx.storage.registrations, tx.staged, eventID), nil
}

func (tx *ledgerTx) CountRegistrations(ctx context.Context) (int, error) {
	return len(tx.view()), nil
}

func (tx *ledgerTx) GetRegistration(ctx context.Context, id string) (persistence.Registration, error) {
	reg, ok := tx.lookup(id)
	if !ok {
		return persistence.Registration{}, persistence.ErrNotFound
	}
	return cloneRegistration(reg), nil
}

func (tx *ledgerTx) FindForUser(ctx context.Context, eventID, userID string) (persistence.Registration, error) {
	for _, reg := range tx.view() {
		if reg.EventID == eventID && reg.UserID == userID {
			return cloneRegistration(reg), nil
		}
	}
	return persistence.Registration{}, persistence.ErrNotFound
}

func (tx *ledgerTx) OldestWaitlisted(ctx context.Context, eventID string) (persistence.Registration, error) {
	var (
		oldest persistence.Registration
		found  bool
	)
	for _, reg := range tx.view() {
		if reg.EventID != eventID || reg.Status != "waitlist" {
			continue
		}
		if !found || reg.CreatedAt.Before(oldest.CreatedAt) ||
			(reg.CreatedAt.Equal(oldest.CreatedAt) && reg.ID < oldest.ID) {
			oldest = reg
			found = true
		}
	}
	if !found {
		return persistence.Registration{}, persistence.ErrNotFound
	}
	return cloneRegistration(oldest), nil
}

func (tx *ledgerTx) RegistrationNumberExists(ctx context.Context, number string) (bool, error) {
	for _, reg := range tx.view() {
		if reg.RegistrationNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (tx *ledgerTx) InsertRegistration(ctx context.Context, registration persistence.Registration) error {
	for _, reg := range tx.view() {
		if reg.ID == registration.ID || reg.RegistrationNumber == registration.RegistrationNumber {
			return persistence.ErrDuplicate
		}
		if reg.EventID == registration.EventID && reg.UserID == registration.UserID {
			return persistence.ErrDuplicate
		}
	}
	tx.staged[registration.ID] = cloneRegistration(registration)
	return nil
}

func (tx *ledgerTx) UpdateRegistration(ctx context.Context, registration persistence.Registration) error {
	if _, ok := tx.lookup(registration.ID); !ok {
		return persistence.ErrNotFound
	}
	tx.staged[registration.ID] = cloneRegistration(registration)
	return nil
}

func countByStatus(committed, staged map[string]persistence.Registration, eventID string) persistence.StatusCounts {
	var counts persistence.StatusCounts
	tally := func(reg persistence.Registration) {
		if reg.EventID != eventID {
			return
		}
		switch reg.Status {
		case "confirmed":
			counts.Confirmed++
		case "waitlist":
			counts.Waitlist++
		case "cancelled":
			counts.Cancelled++
		}
	}
	for id, reg := range committed {
		if _, ok := staged[id]; ok {
			continue
		}
		tally(reg)
	}
	for _, reg := range staged {
		tally(reg)
	}
	return counts
}

func cloneUser(user persistence.User) persistence.User {
	if user.StudentID != nil {
		copy := *user.StudentID
		user.StudentID = &copy
	}
	return user
}

func cloneEvent(event persistence.Event) persistence.Event {
	event.Requirements = cloneStrings(event.Requirements)
	event.Tags = cloneStrings(event.Tags)
	return event
}

func cloneRegistration(reg persistence.Registration) persistence.Registration {
	if reg.Feedback != nil {
		copy := *reg.Feedback
		reg.Feedback = &copy
	}
	return reg
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
