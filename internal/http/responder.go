package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/club-registration/internal/application"
	"github.com/example/club-registration/internal/logging"
)

const (
	codeBadRequest      = "BAD_REQUEST"
	codePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	codeUnauthenticated = "UNAUTHENTICATED"
	codeValidation      = "VALIDATION_FAILED"
	codeNotFound        = "NOT_FOUND"
	codeMethod          = "METHOD_NOT_ALLOWED"
	codeInternal        = "INTERNAL"
)

const (
	msgBadRequestBody  = "Invalid request body"
	msgPayloadTooLarge = "Request body is too large"
	msgMissingToken    = "Access token required"
	msgInternal        = "Internal server error"
)

// envelope is the JSON shape of every response.
type envelope struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	Data      any               `json:"data,omitempty"`
	ErrorCode string            `json:"error_code,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{application.ErrNotFound, http.StatusNotFound, codeNotFound, "Resource not found"},
	{application.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Not authorized to perform this action"},
	{application.ErrDuplicateRegistration, http.StatusConflict, "DUPLICATE_REGISTRATION", "You are already registered for this event"},
	{application.ErrEventInactive, http.StatusBadRequest, "EVENT_INACTIVE", "Event is not active"},
	{application.ErrDeadlinePassed, http.StatusBadRequest, "DEADLINE_PASSED", "Registration deadline has passed"},
	{application.ErrEventAlreadyOccurred, http.StatusBadRequest, "EVENT_ALREADY_OCCURRED", "Event has already occurred"},
	{application.ErrCancellationClosed, http.StatusBadRequest, "CANCELLATION_CLOSED", "Registration cannot be cancelled after the deadline"},
	{application.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS", "Invalid status value"},
	{application.ErrEventNotYetOccurred, http.StatusBadRequest, "EVENT_NOT_YET_OCCURRED", "Cannot submit feedback before the event occurs"},
	{application.ErrEventHasRegistrations, http.StatusConflict, "EVENT_HAS_REGISTRATIONS", "Cannot delete event with existing registrations. Please cancel all registrations first."},
	{application.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "An account with this email or student ID already exists"},
	{application.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"},
	{application.ErrUnauthenticated, http.StatusUnauthorized, codeUnauthenticated, "Invalid or expired token"},
	{application.ErrAccountDisabled, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is deactivated"},
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeSuccess(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	r.writeJSON(ctx, w, status, envelope{Success: true, Message: message, Data: data})
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	r.writeJSON(ctx, w, status, envelope{Success: false, Message: message, ErrorCode: code})
}

// handleDecodeError answers a request whose body could not be read or validated.
func (r responder) handleDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	var vErr *application.ValidationError
	switch {
	case errors.As(err, &tooLarge):
		r.writeError(ctx, w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, msgPayloadTooLarge)
	case errors.As(err, &vErr):
		r.handleServiceError(ctx, w, vErr)
	default:
		r.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, msgBadRequestBody)
	}
}

// handleServiceError translates application errors into status codes and
// stable error codes. Anything unrecognised is logged and reported as 500.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, envelope{
			Success:   false,
			Message:   "Validation failed",
			ErrorCode: codeValidation,
			Errors:    vErr.FieldErrors,
		})
		return
	}

	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			r.writeJSON(ctx, w, mapping.status, envelope{Success: false, Message: mapping.message, ErrorCode: mapping.code})
			return
		}
	}

	r.loggerFor(ctx).ErrorContext(ctx, "unexpected error", "error", err)
	r.writeError(ctx, w, http.StatusInternalServerError, codeInternal, msgInternal)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}
