package application

import "sync"

// eventLocks hands out one mutex per event id. Entries are dropped once the
// last holder releases them, so the table only grows with concurrent events.
type eventLocks struct {
	mu    sync.Mutex
	locks map[string]*eventLock
}

type eventLock struct {
	mu   sync.Mutex
	refs int
}

func newEventLocks() *eventLocks {
	return &eventLocks{locks: make(map[string]*eventLock)}
}

// withEvent runs fn while holding the lock of eventID.
func (l *eventLocks) withEvent(eventID string, fn func() error) error {
	lock := l.acquire(eventID)
	defer l.release(eventID, lock)
	return fn()
}

func (l *eventLocks) acquire(eventID string) *eventLock {
	l.mu.Lock()
	lock, ok := l.locks[eventID]
	if !ok {
		lock = &eventLock{}
		l.locks[eventID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (l *eventLocks) release(eventID string, lock *eventLock) {
	lock.mu.Unlock()

	l.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, eventID)
	}
	l.mu.Unlock()
}

func (l *eventLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
