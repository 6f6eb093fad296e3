package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/example/club-registration/internal/persistence"
)

const (
	registrationNumberPrefix   = "REG"
	maxRegistrationNumberTries = 5
)

// formatRegistrationNumber renders "REG" + the last 4 characters of the event
// id + the last 6 digits of the creation time in unix milliseconds + sequence.
func formatRegistrationNumber(eventID string, createdAt time.Time, sequence int) string {
	millis := strconv.FormatInt(createdAt.UnixMilli(), 10)
	return registrationNumberPrefix + lastN(eventID, 4) + lastN(millis, 6) + strconv.Itoa(sequence)
}

// nextRegistrationNumber derives the sequence from the ledger size and bumps
// it until the number is unused. Must run inside an event scope.
func nextRegistrationNumber(ctx context.Context, tx persistence.LedgerTx, eventID string, createdAt time.Time) (string, error) {
	count, err := tx.CountRegistrations(ctx)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxRegistrationNumberTries; attempt++ {
		candidate := formatRegistrationNumber(eventID, createdAt, count+1+attempt)
		exists, err := tx.RegistrationNumberExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique registration number after %d attempts", maxRegistrationNumberTries)
}

func lastN(value string, n int) string {
	if len(value) <= n {
		return value
	}
	return value[len(value)-n:]
}
