package application

import (
	"context"
	"errors"
	"time"

	"github.com/example/club-registration/internal/persistence"
)

// decideStatus assigns a seat to a new signup given the number of
// registrations already holding or waiting for one.
func decideStatus(active, maxParticipants int) RegistrationStatus {
	if active < maxParticipants {
		return StatusConfirmed
	}
	return StatusWaitlist
}

// promoteNext confirms the oldest waitlisted registration of an event after a
// confirmed seat was released. It must run inside the event's scope. An empty
// waitlist, or an event still at capacity because of administrative
// overrides, yields (nil, nil).
func promoteNext(ctx context.Context, tx persistence.LedgerTx, eventID string, maxParticipants int, now time.Time) (*persistence.Registration, error) {
	counts, err := tx.CountByStatus(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if counts.Confirmed >= maxParticipants {
		return nil, nil
	}

	next, err := tx.OldestWaitlisted(ctx, eventID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	next.Status = string(StatusConfirmed)
	next.UpdatedAt = now
	if err := tx.UpdateRegistration(ctx, next); err != nil {
		return nil, err
	}
	return &next, nil
}
