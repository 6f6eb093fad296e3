package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/club-registration/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.Resolve(context.Background(), logger)
}

// serviceLogger scopes the request logger to one service operation.
func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.Resolve(ctx, base).With("service", serviceName, "operation", operation)
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return logger
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrDuplicateRegistration):
		return "duplicate_registration"
	case errors.Is(err, ErrEventInactive):
		return "event_inactive"
	case errors.Is(err, ErrDeadlinePassed):
		return "deadline_passed"
	case errors.Is(err, ErrEventAlreadyOccurred):
		return "event_already_occurred"
	case errors.Is(err, ErrCancellationClosed):
		return "cancellation_closed"
	case errors.Is(err, ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, ErrEventNotYetOccurred):
		return "event_not_yet_occurred"
	case errors.Is(err, ErrEventHasRegistrations):
		return "event_has_registrations"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}

// IsBusinessError reports whether err is one of the expected rule violations
// rather than an infrastructure failure.
func IsBusinessError(err error) bool {
	kind := ErrorKind(err)
	return kind != "" && kind != "unexpected"
}
