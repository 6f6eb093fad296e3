package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/club-registration/internal/application"
)

type registrationService interface {
	Register(ctx context.Context, params application.RegisterParams) (application.Registration, error)
	Cancel(ctx context.Context, principal application.Principal, registrationID string) (application.Registration, error)
	UpdateStatus(ctx context.Context, params application.UpdateStatusParams) (application.UpdateStatusResult, error)
	UpdateAttendance(ctx context.Context, principal application.Principal, registrationID string, status application.AttendanceStatus) (application.Registration, error)
	UpdatePayment(ctx context.Context, principal application.Principal, registrationID string, status application.PaymentStatus) (application.Registration, error)
	SubmitFeedback(ctx context.Context, params application.FeedbackParams) (application.Registration, error)
	GetRegistration(ctx context.Context, principal application.Principal, registrationID string) (application.Registration, error)
	ListMine(ctx context.Context, params application.ListMineParams) (application.RegistrationList, error)
	EventRegistrations(ctx context.Context, params application.EventRegistrationsParams) (application.EventRegistrations, error)
}

// RegistrationHandler serves the registration lifecycle.
type RegistrationHandler struct {
	service   registrationService
	responder responder
	logger    *slog.Logger
}

func NewRegistrationHandler(service registrationService, logger *slog.Logger) *RegistrationHandler {
	base := defaultLogger(logger)
	return &RegistrationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RegistrationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RegistrationHandler", operation, attrs...)
}

// Register signs the caller up for an event, confirmed or waitlisted.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	eventID := chi.URLParam(r, "eventId")
	logger := h.log(r.Context(), "Register", "principal_id", principal.UserID, "event_id", eventID)

	var req registerRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		logger.WarnContext(r.Context(), "rejected registration request", "error", err)
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}

	registration, err := h.service.Register(r.Context(), application.RegisterParams{
		Principal: principal,
		EventID:   eventID,
		Notes:     req.Notes,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	message := "Registration successful"
	if registration.Status == application.StatusWaitlist {
		message = "Added to waitlist - event is currently full"
	}
	logger.With("registration_id", registration.ID, "status", registration.Status).InfoContext(r.Context(), "registration created")
	h.responder.writeSuccess(r.Context(), w, http.StatusCreated, message, registrationResponse{Registration: toRegistrationDTO(registration)})
}

// Mine lists the caller's registrations.
func (h *RegistrationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	page, err := pageFromQuery(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	list, err := h.service.ListMine(r.Context(), application.ListMineParams{
		Principal: principal,
		Status:    strings.TrimSpace(r.URL.Query().Get("status")),
		Page:      page,
	})
	if err != nil {
		h.log(r.Context(), "Mine", "principal_id", principal.UserID).WarnContext(r.Context(), "registration list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "", registrationListResponse{
		Registrations: toRegistrationDTOs(list.Registrations),
		Pagination:    toPaginationDTO(list.PageInfo),
	})
}

// Get returns one registration visible to the caller.
func (h *RegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	registrationID := chi.URLParam(r, "registrationId")
	registration, err := h.service.GetRegistration(r.Context(), principal, registrationID)
	if err != nil {
		h.log(r.Context(), "Get", "registration_id", registrationID).WarnContext(r.Context(), "registration lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "", registrationResponse{Registration: toRegistrationDTO(registration)})
}

// Cancel withdraws the caller's registration and may promote the waitlist.
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	registrationID := chi.URLParam(r, "registrationId")
	logger := h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "registration_id", registrationID)

	registration, err := h.service.Cancel(r.Context(), principal, registrationID)
	if err != nil {
		logger.WarnContext(r.Context(), "cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "registration cancelled")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "Registration cancelled successfully", registrationResponse{Registration: toRegistrationDTO(registration)})
}

// Feedback records the owner's rating after the event.
func (h *RegistrationHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	registrationID := chi.URLParam(r, "registrationId")
	logger := h.log(r.Context(), "Feedback", "principal_id", principal.UserID, "registration_id", registrationID)

	var req feedbackRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		logger.WarnContext(r.Context(), "rejected feedback request", "error", err)
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}

	registration, err := h.service.SubmitFeedback(r.Context(), application.FeedbackParams{
		Principal:      principal,
		RegistrationID: registrationID,
		Rating:         req.Rating,
		Comment:        req.Comment,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "feedback failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "feedback submitted")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "Feedback submitted successfully", registrationResponse{Registration: toRegistrationDTO(registration)})
}

// EventRegistrations returns an event's roster and stats to its creator or an administrator.
func (h *RegistrationHandler) EventRegistrations(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	eventID := chi.URLParam(r, "eventId")
	page, err := pageFromQuery(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	result, err := h.service.EventRegistrations(r.Context(), application.EventRegistrationsParams{
		Principal: principal,
		EventID:   eventID,
		Status:    strings.TrimSpace(r.URL.Query().Get("status")),
		Page:      page,
	})
	if err != nil {
		h.log(r.Context(), "EventRegistrations", "principal_id", principal.UserID, "event_id", eventID).WarnContext(r.Context(), "roster lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "", eventRegistrationsResponse{
		Event:         toEventDTO(result.Event),
		Registrations: toRegistrationDTOs(result.Registrations),
		Stats:         toStatsDTO(result.Stats),
		Pagination:    toPaginationDTO(result.PageInfo),
	})
}

// UpdateStatus applies an administrative status override.
func (h *RegistrationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	registrationID := chi.URLParam(r, "registrationId")
	logger := h.log(r.Context(), "UpdateStatus", "principal_id", principal.UserID, "registration_id", registrationID)

	var req statusRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		logger.WarnContext(r.Context(), "rejected status request", "error", err)
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}

	result, err := h.service.UpdateStatus(r.Context(), application.UpdateStatusParams{
		Principal:      principal,
		RegistrationID: registrationID,
		Status:         application.RegistrationStatus(strings.TrimSpace(req.Status)),
		Notes:          req.Notes,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "status update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", result.Registration.Status, "capacity_override", result.CapacityOverride).InfoContext(r.Context(), "registration status updated")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "Registration status updated successfully", statusResponse{
		Registration:     toRegistrationDTO(result.Registration),
		CapacityOverride: result.CapacityOverride,
	})
}

// UpdateAttendance records attendance for a registration.
func (h *RegistrationHandler) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	registrationID := chi.URLParam(r, "registrationId")
	logger := h.log(r.Context(), "UpdateAttendance", "principal_id", principal.UserID, "registration_id", registrationID)

	var req attendanceRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		logger.WarnContext(r.Context(), "rejected attendance request", "error", err)
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}

	registration, err := h.service.UpdateAttendance(r.Context(), principal, registrationID, application.AttendanceStatus(strings.TrimSpace(req.AttendanceStatus)))
	if err != nil {
		logger.WarnContext(r.Context(), "attendance update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "Attendance updated successfully", registrationResponse{Registration: toRegistrationDTO(registration)})
}

// UpdatePayment records the fee state of a registration.
func (h *RegistrationHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	registrationID := chi.URLParam(r, "registrationId")
	logger := h.log(r.Context(), "UpdatePayment", "principal_id", principal.UserID, "registration_id", registrationID)

	var req paymentRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		logger.WarnContext(r.Context(), "rejected payment request", "error", err)
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}

	registration, err := h.service.UpdatePayment(r.Context(), principal, registrationID, application.PaymentStatus(strings.TrimSpace(req.PaymentStatus)))
	if err != nil {
		logger.WarnContext(r.Context(), "payment update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "Payment status updated successfully", registrationResponse{Registration: toRegistrationDTO(registration)})
}

type registerRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

type feedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// Status values are checked by the service so that unknown ones report INVALID_STATUS.
type statusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes" validate:"omitempty,max=500"`
}

type attendanceRequest struct {
	AttendanceStatus string `json:"attendanceStatus" validate:"required"`
}

type paymentRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required"`
}

type registrationResponse struct {
	Registration registrationDTO `json:"registration"`
}

type statusResponse struct {
	Registration     registrationDTO `json:"registration"`
	CapacityOverride bool            `json:"capacity_override,omitempty"`
}

type registrationListResponse struct {
	Registrations []registrationDTO `json:"registrations"`
	Pagination    paginationDTO     `json:"pagination"`
}

type eventRegistrationsResponse struct {
	Event         eventDTO          `json:"event"`
	Registrations []registrationDTO `json:"registrations"`
	Stats         statsDTO          `json:"stats"`
	Pagination    paginationDTO     `json:"pagination"`
}

type statsDTO struct {
	Total     int `json:"total"`
	Confirmed int `json:"confirmed"`
	Waitlist  int `json:"waitlist"`
	Cancelled int `json:"cancelled"`
}

func toStatsDTO(stats application.RegistrationStats) statsDTO {
	return statsDTO{
		Total:     stats.Total,
		Confirmed: stats.Confirmed,
		Waitlist:  stats.Waitlist,
		Cancelled: stats.Cancelled,
	}
}

type feedbackDTO struct {
	Rating      int    `json:"rating"`
	Comment     string `json:"comment,omitempty"`
	SubmittedAt string `json:"submittedAt"`
}

type registrationDTO struct {
	ID                 string       `json:"id"`
	UserID             string       `json:"userId"`
	EventID            string       `json:"eventId"`
	Status             string       `json:"status"`
	PaymentStatus      string       `json:"paymentStatus"`
	PaymentAmount      float64      `json:"paymentAmount"`
	Notes              string       `json:"notes,omitempty"`
	AttendanceStatus   string       `json:"attendanceStatus"`
	Feedback           *feedbackDTO `json:"feedback,omitempty"`
	RegistrationNumber string       `json:"registrationNumber"`
	CreatedAt          string       `json:"createdAt"`
	UpdatedAt          string       `json:"updatedAt"`
}

func toRegistrationDTO(registration application.Registration) registrationDTO {
	dto := registrationDTO{
		ID:                 registration.ID,
		UserID:             registration.UserID,
		EventID:            registration.EventID,
		Status:             string(registration.Status),
		PaymentStatus:      string(registration.PaymentStatus),
		PaymentAmount:      registration.PaymentAmount,
		Notes:              registration.Notes,
		AttendanceStatus:   string(registration.AttendanceStatus),
		RegistrationNumber: registration.RegistrationNumber,
		CreatedAt:          formatTime(registration.CreatedAt),
		UpdatedAt:          formatTime(registration.UpdatedAt),
	}
	if registration.Feedback != nil {
		dto.Feedback = &feedbackDTO{
			Rating:      registration.Feedback.Rating,
			Comment:     registration.Feedback.Comment,
			SubmittedAt: formatTime(registration.Feedback.SubmittedAt),
		}
	}
	return dto
}

func toRegistrationDTOs(registrations []application.Registration) []registrationDTO {
	out := make([]registrationDTO, 0, len(registrations))
	for _, registration := range registrations {
		out = append(out, toRegistrationDTO(registration))
	}
	return out
}
