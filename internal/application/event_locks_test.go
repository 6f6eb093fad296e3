package application

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventLocksSerialiseSameEvent(t *testing.T) {
	t.Parallel()

	locks := newEventLocks()
	var inside, maxInside int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locks.withEvent("evt", func() error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
	if locks.size() != 0 {
		t.Fatalf("expected lock table to drain, %d entries left", locks.size())
	}
}

func TestEventLocksDoNotBlockOtherEvents(t *testing.T) {
	t.Parallel()

	locks := newEventLocks()
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = locks.withEvent("a", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	done := make(chan struct{})
	go func() {
		_ = locks.withEvent("b", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on event b waited for event a")
	}
	close(release)
}
