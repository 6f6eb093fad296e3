package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/club-registration/internal/persistence"
	"github.com/example/club-registration/internal/persistence/memory"
	"github.com/example/club-registration/internal/persistence/sqlite"
)

// Harness wraps a migrated store with seeding helpers.
type Harness struct {
	Store persistence.Storage
}

// NewMemoryHarness returns a harness over the in-memory store.
func NewMemoryHarness(tb testing.TB) *Harness {
	tb.Helper()
	return &Harness{Store: memory.New()}
}

// NewSQLiteHarness returns a harness over a migrated SQLite database in a
// temporary directory. The database is closed when the test ends.
func NewSQLiteHarness(tb testing.TB) *Harness {
	tb.Helper()

	storage, err := sqlite.Open(filepath.Join(tb.TempDir(), "clubevents.db"))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return &Harness{Store: storage}
}

// SeedUser stores user and returns it.
func (h *Harness) SeedUser(tb testing.TB, user persistence.User) persistence.User {
	tb.Helper()
	if err := h.Store.CreateUser(context.Background(), user); err != nil {
		tb.Fatalf("seed user %s: %v", user.ID, err)
	}
	return user
}

// SeedEvent stores event and returns it. The creator must already exist.
func (h *Harness) SeedEvent(tb testing.TB, event persistence.Event) persistence.Event {
	tb.Helper()
	if err := h.Store.CreateEvent(context.Background(), event); err != nil {
		tb.Fatalf("seed event %s: %v", event.ID, err)
	}
	return event
}

// SeedRegistration inserts reg directly into the ledger, bypassing capacity rules.
func (h *Harness) SeedRegistration(tb testing.TB, reg persistence.Registration) persistence.Registration {
	tb.Helper()
	err := h.Store.InEventScope(context.Background(), reg.EventID, func(ctx context.Context, tx persistence.LedgerTx) error {
		return tx.InsertRegistration(ctx, reg)
	})
	if err != nil {
		tb.Fatalf("seed registration %s: %v", reg.ID, err)
	}
	return reg
}

// Registration reloads a registration or fails the test.
func (h *Harness) Registration(tb testing.TB, id string) persistence.Registration {
	tb.Helper()
	reg, err := h.Store.GetRegistration(context.Background(), id)
	if err != nil {
		tb.Fatalf("load registration %s: %v", id, err)
	}
	return reg
}
