package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/club-registration/internal/application"
)

type eventService interface {
	CreateEvent(ctx context.Context, principal application.Principal, input application.EventInput) (application.Event, error)
	UpdateEvent(ctx context.Context, principal application.Principal, eventID string, input application.EventInput) (application.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error
	ToggleEventStatus(ctx context.Context, principal application.Principal, eventID string) (application.Event, error)
	GetEvent(ctx context.Context, eventID string) (application.Event, error)
	ListEvents(ctx context.Context, filter application.EventFilter) (application.EventList, error)
	ListMyEvents(ctx context.Context, principal application.Principal, filter application.EventFilter) (application.EventList, error)
}

// EventHandler serves the event catalog.
type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

// List serves the public catalog.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter, err := eventFilterFromQuery(r, "active", "eventDate", "asc")
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	list, err := h.service.ListEvents(r.Context(), filter)
	if err != nil {
		h.log(r.Context(), "List").WarnContext(r.Context(), "event list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "", toEventListResponse(list))
}

// Mine lists the events created by the caller, newest first by default.
func (h *EventHandler) Mine(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	filter, err := eventFilterFromQuery(r, "all", "createdAt", "desc")
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	list, err := h.service.ListMyEvents(r.Context(), principal, filter)
	if err != nil {
		h.log(r.Context(), "Mine", "principal_id", principal.UserID).WarnContext(r.Context(), "own event list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "", toEventListResponse(list))
}

// Get returns a single event.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := chi.URLParam(r, "id")
	event, err := h.service.GetEvent(r.Context(), eventID)
	if err != nil {
		h.log(r.Context(), "Get", "event_id", eventID).WarnContext(r.Context(), "event lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "", eventResponse{Event: toEventDTO(event)})
}

// Create adds an event owned by the caller.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	var req eventRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		logger.WarnContext(r.Context(), "rejected event request", "error", err)
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}

	event, err := h.service.CreateEvent(r.Context(), principal, req.toInput())
	if err != nil {
		logger.WarnContext(r.Context(), "event creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("event_id", event.ID).InfoContext(r.Context(), "event created")
	h.responder.writeSuccess(r.Context(), w, http.StatusCreated, "Event created successfully", eventResponse{Event: toEventDTO(event)})
}

// Update replaces the editable fields of an event.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	eventID := chi.URLParam(r, "id")
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "event_id", eventID)

	var req eventRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		logger.WarnContext(r.Context(), "rejected event update", "error", err)
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}

	event, err := h.service.UpdateEvent(r.Context(), principal, eventID, req.toInput())
	if err != nil {
		logger.WarnContext(r.Context(), "event update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event updated")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "Event updated successfully", eventResponse{Event: toEventDTO(event)})
}

// Delete removes an event without registrations.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	eventID := chi.URLParam(r, "id")
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "event_id", eventID)

	if err := h.service.DeleteEvent(r.Context(), principal, eventID); err != nil {
		logger.WarnContext(r.Context(), "event delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event deleted")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "Event deleted successfully", nil)
}

// ToggleStatus flips the active flag of an event.
func (h *EventHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	eventID := chi.URLParam(r, "id")
	logger := h.log(r.Context(), "ToggleStatus", "principal_id", principal.UserID, "event_id", eventID)

	event, err := h.service.ToggleEventStatus(r.Context(), principal, eventID)
	if err != nil {
		logger.WarnContext(r.Context(), "event toggle failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	state := "deactivated"
	if event.IsActive {
		state = "activated"
	}
	logger.With("is_active", event.IsActive).InfoContext(r.Context(), "event status toggled")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, fmt.Sprintf("Event %s successfully", state), eventResponse{Event: toEventDTO(event)})
}

func eventFilterFromQuery(r *http.Request, status, sortBy, order string) (application.EventFilter, error) {
	page, err := pageFromQuery(r)
	if err != nil {
		return application.EventFilter{}, err
	}
	query := r.URL.Query()
	filter := application.EventFilter{
		Status:   status,
		Category: strings.TrimSpace(query.Get("category")),
		Search:   strings.TrimSpace(query.Get("search")),
		SortBy:   sortBy,
		Order:    order,
		Page:     page,
	}
	if v := strings.TrimSpace(query.Get("status")); v != "" {
		filter.Status = v
	}
	if v := strings.TrimSpace(query.Get("sortBy")); v != "" {
		filter.SortBy = v
	}
	if v := strings.TrimSpace(query.Get("order")); v != "" {
		filter.Order = v
	}
	return filter, nil
}

// dateTime accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (midnight UTC).
type dateTime struct {
	time.Time
}

func (d *dateTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unsupported date %q", raw)
}

type eventRequest struct {
	Title                string   `json:"title" validate:"required,max=100"`
	Description          string   `json:"description" validate:"required,max=2000"`
	Category             string   `json:"category" validate:"required"`
	Organizer            string   `json:"organizer" validate:"required"`
	Venue                string   `json:"venue" validate:"required"`
	EventDate            dateTime `json:"eventDate" validate:"required"`
	StartTime            string   `json:"startTime" validate:"required"`
	EndTime              string   `json:"endTime" validate:"required"`
	RegistrationDeadline dateTime `json:"registrationDeadline" validate:"required"`
	MaxParticipants      int      `json:"maxParticipants" validate:"required,min=1,max=10000"`
	RegistrationFee      float64  `json:"registrationFee" validate:"min=0"`
	Requirements         []string `json:"requirements"`
	Tags                 []string `json:"tags"`
	ImageURL             string   `json:"imageUrl" validate:"omitempty,url"`
}

func (r eventRequest) toInput() application.EventInput {
	return application.EventInput{
		Title:                r.Title,
		Description:          r.Description,
		Category:             r.Category,
		Organizer:            r.Organizer,
		Venue:                r.Venue,
		EventDate:            r.EventDate.Time,
		StartTime:            r.StartTime,
		EndTime:              r.EndTime,
		RegistrationDeadline: r.RegistrationDeadline.Time,
		MaxParticipants:      r.MaxParticipants,
		RegistrationFee:      r.RegistrationFee,
		Requirements:         r.Requirements,
		Tags:                 r.Tags,
		ImageURL:             r.ImageURL,
	}
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}

type eventListResponse struct {
	Events     []eventDTO    `json:"events"`
	Pagination paginationDTO `json:"pagination"`
}

type paginationDTO struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

func toPaginationDTO(info application.PageInfo) paginationDTO {
	return paginationDTO{
		CurrentPage: info.CurrentPage,
		TotalPages:  info.TotalPages,
		TotalItems:  info.TotalItems,
		HasNext:     info.CurrentPage < info.TotalPages,
		HasPrev:     info.CurrentPage > 1,
	}
}

type eventDTO struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Category             string   `json:"category"`
	Organizer            string   `json:"organizer"`
	Venue                string   `json:"venue"`
	EventDate            string   `json:"eventDate"`
	StartTime            string   `json:"startTime"`
	EndTime              string   `json:"endTime"`
	RegistrationDeadline string   `json:"registrationDeadline"`
	MaxParticipants      int      `json:"maxParticipants"`
	RegistrationFee      float64  `json:"registrationFee"`
	Requirements         []string `json:"requirements"`
	Tags                 []string `json:"tags"`
	ImageURL             string   `json:"imageUrl,omitempty"`
	IsActive             bool     `json:"isActive"`
	CreatedBy            string   `json:"createdBy"`
	CreatedAt            string   `json:"createdAt"`
	UpdatedAt            string   `json:"updatedAt"`
	RegistrationCount    int      `json:"registrationCount"`
	AvailableSpots       int      `json:"availableSpots"`
	IsRegistrationOpen   bool     `json:"isRegistrationOpen"`
	Status               string   `json:"status"`
}

func toEventDTO(event application.Event) eventDTO {
	return eventDTO{
		ID:                   event.ID,
		Title:                event.Title,
		Description:          event.Description,
		Category:             event.Category,
		Organizer:            event.Organizer,
		Venue:                event.Venue,
		EventDate:            formatTime(event.EventDate),
		StartTime:            event.StartTime,
		EndTime:              event.EndTime,
		RegistrationDeadline: formatTime(event.RegistrationDeadline),
		MaxParticipants:      event.MaxParticipants,
		RegistrationFee:      event.RegistrationFee,
		Requirements:         nonNil(event.Requirements),
		Tags:                 nonNil(event.Tags),
		ImageURL:             event.ImageURL,
		IsActive:             event.IsActive,
		CreatedBy:            event.CreatedBy,
		CreatedAt:            formatTime(event.CreatedAt),
		UpdatedAt:            formatTime(event.UpdatedAt),
		RegistrationCount:    event.RegistrationCount,
		AvailableSpots:       event.AvailableSpots,
		IsRegistrationOpen:   event.IsRegistrationOpen,
		Status:               string(event.Status),
	}
}

func toEventListResponse(list application.EventList) eventListResponse {
	events := make([]eventDTO, 0, len(list.Events))
	for _, event := range list.Events {
		events = append(events, toEventDTO(event))
	}
	return eventListResponse{Events: events, Pagination: toPaginationDTO(list.PageInfo)}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
