package application

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/example/club-registration/internal/persistence"
)

// EventCatalog serves event lookups through an LRU cache in front of the
// event repository. All writes go through the catalog so cached entries are
// evicted before the next read. It also owns the per-event lock table shared
// by event edits and ledger mutations.
type EventCatalog struct {
	repo  persistence.EventRepository
	cache *lru.Cache[string, persistence.Event]
	locks *eventLocks

	// generation advances on every eviction; a read-through only fills the
	// cache when no eviction happened while it was reading.
	mu         sync.Mutex
	generation uint64
}

// NewEventCatalog wraps repo. A size of zero or less disables caching.
func NewEventCatalog(repo persistence.EventRepository, size int) (*EventCatalog, error) {
	catalog := &EventCatalog{repo: repo, locks: newEventLocks()}
	if size > 0 {
		cache, err := lru.New[string, persistence.Event](size)
		if err != nil {
			return nil, err
		}
		catalog.cache = cache
	}
	return catalog, nil
}

// FindByID returns the event or persistence.ErrNotFound.
func (c *EventCatalog) FindByID(ctx context.Context, id string) (persistence.Event, error) {
	if c.cache != nil {
		if event, ok := c.cache.Get(id); ok {
			return cloneEvent(event), nil
		}
	}

	return c.fresh(ctx, id)
}

// fresh reads the event from the repository, skipping the cache. Capacity
// decisions call it while holding the event lock, where no edit can interleave.
func (c *EventCatalog) fresh(ctx context.Context, id string) (persistence.Event, error) {
	start := c.currentGeneration()
	event, err := c.repo.GetEvent(ctx, id)
	if err != nil {
		return persistence.Event{}, err
	}
	c.fill(id, event, start)
	return event, nil
}

// withEvent runs fn while holding the lock of eventID.
func (c *EventCatalog) withEvent(eventID string, fn func() error) error {
	return c.locks.withEvent(eventID, fn)
}

func (c *EventCatalog) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *EventCatalog) fill(id string, event persistence.Event, start uint64) {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != start {
		return
	}
	c.cache.Add(id, cloneEvent(event))
}

// List reads through to the repository.
func (c *EventCatalog) List(ctx context.Context, query persistence.EventQuery) ([]persistence.Event, error) {
	return c.repo.ListEvents(ctx, query)
}

// Create stores a new event.
func (c *EventCatalog) Create(ctx context.Context, event persistence.Event) error {
	return c.repo.CreateEvent(ctx, event)
}

// Update stores event and evicts its cached copy.
func (c *EventCatalog) Update(ctx context.Context, event persistence.Event) error {
	c.invalidate(event.ID)
	err := c.repo.UpdateEvent(ctx, event)
	c.invalidate(event.ID)
	return err
}

// Delete removes the event and evicts its cached copy.
func (c *EventCatalog) Delete(ctx context.Context, id string) error {
	err := c.repo.DeleteEvent(ctx, id)
	c.invalidate(id)
	return err
}

func (c *EventCatalog) invalidate(id string) {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.cache.Remove(id)
}

func cloneEvent(event persistence.Event) persistence.Event {
	if event.Requirements != nil {
		event.Requirements = append([]string(nil), event.Requirements...)
	}
	if event.Tags != nil {
		event.Tags = append([]string(nil), event.Tags...)
	}
	return event
}
