package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/club-registration/internal/testfixtures"
)

type apiResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	ErrorCode string            `json:"error_code"`
	Errors    map[string]string `json:"errors"`
	Data      json.RawMessage   `json:"data"`
}

type apiEnv struct {
	handler http.Handler
	clock   *testfixtures.Clock
	harness *testfixtures.Harness
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	factory := testfixtures.NewServiceFactory(testfixtures.WithClock(clock), testfixtures.WithLogger(logger))
	factory.TokenTTL = 90 * 24 * time.Hour
	harness := testfixtures.NewMemoryHarness(t)
	services := factory.Build(t, harness.Store)

	handler := NewRouter(RouterConfig{
		Auth:          NewAuthHandler(services.Auth, services.Users, logger),
		Users:         NewUserHandler(services.Users, logger),
		Events:        NewEventHandler(services.Events, logger),
		Registrations: NewRegistrationHandler(services.Registrations, logger),
		Tokens:        services.Auth,
		Logger:        logger,
	})
	return &apiEnv{handler: handler, clock: clock, harness: harness}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) (int, apiResponse) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: response is not JSON: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec.Code, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, string(resp.Data))
	}
	return out
}

func expectStatus(t *testing.T, status int, resp apiResponse, want int, wantCode string) {
	t.Helper()
	if status != want {
		t.Fatalf("expected status %d, got %d (%+v)", want, status, resp)
	}
	if resp.ErrorCode != wantCode {
		t.Fatalf("expected error code %q, got %q (%+v)", wantCode, resp.ErrorCode, resp)
	}
}

// signup creates a student through the API and returns its token and id.
func (e *apiEnv) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	status, resp := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":     email,
		"password":  "secret-pass",
		"firstName": "Ada",
		"lastName":  "Lovelace",
	})
	expectStatus(t, status, resp, http.StatusCreated, "")
	auth := decodeData[authResponse](t, resp)
	if auth.Token == "" {
		t.Fatalf("expected token in signup response")
	}
	return auth.Token, auth.User.ID
}

// seedAdmin stores an administrator and logs it in.
func (e *apiEnv) seedAdmin(t *testing.T) string {
	t.Helper()
	hash, err := testfixtures.FastPasswordHasher().Hash("admin-pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	e.harness.SeedUser(t, testfixtures.NewUser(
		testfixtures.AsAdmin(),
		testfixtures.WithEmail("admin@example.edu"),
		testfixtures.WithPasswordHash(hash),
	))
	status, resp := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "admin@example.edu",
		"password": "admin-pass",
	})
	expectStatus(t, status, resp, http.StatusOK, "")
	return decodeData[authResponse](t, resp).Token
}

func eventBody(capacity int) map[string]any {
	return map[string]any{
		"title":                "Go Workshop",
		"description":          "Hands-on concurrency session",
		"category":             "Workshop",
		"organizer":            "Programming Club",
		"venue":                "Lab 3",
		"eventDate":            "2025-09-20",
		"startTime":            "10:00",
		"endTime":              "12:00",
		"registrationDeadline": "2025-09-15T18:00:00Z",
		"maxParticipants":      capacity,
		"tags":                 []string{"go"},
	}
}

func (e *apiEnv) createEvent(t *testing.T, token string, capacity int) eventDTO {
	t.Helper()
	status, resp := e.do(t, http.MethodPost, "/api/events", token, eventBody(capacity))
	expectStatus(t, status, resp, http.StatusCreated, "")
	return decodeData[eventResponse](t, resp).Event
}

func (e *apiEnv) register(t *testing.T, token, eventID string) registrationDTO {
	t.Helper()
	status, resp := e.do(t, http.MethodPost, "/api/registrations/events/"+eventID, token, nil)
	expectStatus(t, status, resp, http.StatusCreated, "")
	return decodeData[registrationResponse](t, resp).Registration
}

func TestAPI_Auth(t *testing.T) {
	env := newAPIEnv(t)

	token, userID := env.signup(t, "Ada@Example.edu")

	t.Run("me returns the caller", func(t *testing.T) {
		status, resp := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
		expectStatus(t, status, resp, http.StatusOK, "")
		user := decodeData[userResponse](t, resp).User
		if user.ID != userID || user.Email != "ada@example.edu" || user.Role != "student" {
			t.Fatalf("unexpected profile: %+v", user)
		}
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
			"email": "ada@example.edu", "password": "secret-pass", "firstName": "A", "lastName": "B",
		})
		expectStatus(t, status, resp, http.StatusConflict, "ALREADY_EXISTS")
	})

	t.Run("signup validates fields by JSON name", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
			"email": "not-an-email", "password": "123",
		})
		expectStatus(t, status, resp, http.StatusUnprocessableEntity, "VALIDATION_FAILED")
		for _, field := range []string{"email", "password", "firstName", "lastName"} {
			if resp.Errors[field] == "" {
				t.Fatalf("expected error for %s, got %v", field, resp.Errors)
			}
		}
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "ada@example.edu", "password": "wrong-pass",
		})
		expectStatus(t, status, resp, http.StatusUnauthorized, "INVALID_CREDENTIALS")
	})

	t.Run("protected routes require a token", func(t *testing.T) {
		status, resp := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
		expectStatus(t, status, resp, http.StatusUnauthorized, "UNAUTHENTICATED")

		status, resp = env.do(t, http.MethodGet, "/api/auth/me", "garbage", nil)
		expectStatus(t, status, resp, http.StatusUnauthorized, "UNAUTHENTICATED")
	})

	t.Run("profile update", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPut, "/api/auth/profile", token, map[string]any{
			"firstName": "Augusta", "lastName": "King", "department": "Mathematics", "year": 3,
		})
		expectStatus(t, status, resp, http.StatusOK, "")
		user := decodeData[userResponse](t, resp).User
		if user.FullName != "Augusta King" || user.Year != 3 {
			t.Fatalf("unexpected profile after update: %+v", user)
		}
	})

	t.Run("user listing is admin only", func(t *testing.T) {
		status, resp := env.do(t, http.MethodGet, "/api/users", token, nil)
		expectStatus(t, status, resp, http.StatusForbidden, "FORBIDDEN")

		adminToken := env.seedAdmin(t)
		status, resp = env.do(t, http.MethodGet, "/api/users", adminToken, nil)
		expectStatus(t, status, resp, http.StatusOK, "")
		if users := decodeData[listUsersResponse](t, resp).Users; len(users) != 2 {
			t.Fatalf("expected 2 users, got %d", len(users))
		}
	})
}

func TestAPI_Events(t *testing.T) {
	env := newAPIEnv(t)
	ownerToken, ownerID := env.signup(t, "owner@example.edu")
	otherToken, _ := env.signup(t, "other@example.edu")

	event := env.createEvent(t, ownerToken, 2)
	if event.CreatedBy != ownerID || event.Status != "open" || !event.IsRegistrationOpen || event.AvailableSpots != 2 {
		t.Fatalf("unexpected created event: %+v", event)
	}
	if event.EventDate != "2025-09-20T00:00:00Z" {
		t.Fatalf("expected date-only input at midnight UTC, got %s", event.EventDate)
	}

	t.Run("public listing and lookup", func(t *testing.T) {
		status, resp := env.do(t, http.MethodGet, "/api/events?category=Workshop&search=concurrency", "", nil)
		expectStatus(t, status, resp, http.StatusOK, "")
		list := decodeData[eventListResponse](t, resp)
		if len(list.Events) != 1 || list.Pagination.TotalItems != 1 || list.Pagination.HasNext {
			t.Fatalf("unexpected listing: %+v", list)
		}

		status, resp = env.do(t, http.MethodGet, "/api/events/"+event.ID, "", nil)
		expectStatus(t, status, resp, http.StatusOK, "")

		status, resp = env.do(t, http.MethodGet, "/api/events/missing", "", nil)
		expectStatus(t, status, resp, http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("invalid pagination is a validation failure", func(t *testing.T) {
		status, resp := env.do(t, http.MethodGet, "/api/events?page=zero", "", nil)
		expectStatus(t, status, resp, http.StatusUnprocessableEntity, "VALIDATION_FAILED")
		if resp.Errors["page"] == "" {
			t.Fatalf("expected page error, got %v", resp.Errors)
		}
	})

	t.Run("only the creator may modify", func(t *testing.T) {
		body := eventBody(5)
		status, resp := env.do(t, http.MethodPut, "/api/events/"+event.ID, otherToken, body)
		expectStatus(t, status, resp, http.StatusForbidden, "FORBIDDEN")

		status, resp = env.do(t, http.MethodPut, "/api/events/"+event.ID, ownerToken, body)
		expectStatus(t, status, resp, http.StatusOK, "")
		if got := decodeData[eventResponse](t, resp).Event.MaxParticipants; got != 5 {
			t.Fatalf("expected capacity 5, got %d", got)
		}
	})

	t.Run("toggle and own listing", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPatch, "/api/events/"+event.ID+"/toggle-status", ownerToken, nil)
		expectStatus(t, status, resp, http.StatusOK, "")
		if resp.Message != "Event deactivated successfully" {
			t.Fatalf("unexpected message %q", resp.Message)
		}

		status, resp = env.do(t, http.MethodGet, "/api/events", "", nil)
		expectStatus(t, status, resp, http.StatusOK, "")
		if n := len(decodeData[eventListResponse](t, resp).Events); n != 0 {
			t.Fatalf("inactive event should not be listed, got %d", n)
		}

		status, resp = env.do(t, http.MethodGet, "/api/events/my/events", ownerToken, nil)
		expectStatus(t, status, resp, http.StatusOK, "")
		if n := len(decodeData[eventListResponse](t, resp).Events); n != 1 {
			t.Fatalf("expected own event in listing, got %d", n)
		}
	})

	t.Run("create rejects missing fields", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPost, "/api/events", ownerToken, map[string]any{"title": "x"})
		expectStatus(t, status, resp, http.StatusUnprocessableEntity, "VALIDATION_FAILED")
		if resp.Errors["eventDate"] == "" || resp.Errors["maxParticipants"] == "" {
			t.Fatalf("expected field errors, got %v", resp.Errors)
		}
	})

	t.Run("delete", func(t *testing.T) {
		status, resp := env.do(t, http.MethodDelete, "/api/events/"+event.ID, ownerToken, nil)
		expectStatus(t, status, resp, http.StatusOK, "")

		status, resp = env.do(t, http.MethodGet, "/api/events/"+event.ID, "", nil)
		expectStatus(t, status, resp, http.StatusNotFound, "NOT_FOUND")
	})
}

func TestAPI_RegistrationLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	ownerToken, _ := env.signup(t, "owner@example.edu")
	aliceToken, _ := env.signup(t, "alice@example.edu")
	bobToken, _ := env.signup(t, "bob@example.edu")

	event := env.createEvent(t, ownerToken, 1)

	alice := env.register(t, aliceToken, event.ID)
	if alice.Status != "confirmed" || alice.PaymentStatus != "not_required" || !strings.HasPrefix(alice.RegistrationNumber, "REG") {
		t.Fatalf("unexpected first registration: %+v", alice)
	}

	status, resp := env.do(t, http.MethodPost, "/api/registrations/events/"+event.ID, bobToken, map[string]string{"notes": "vegetarian"})
	expectStatus(t, status, resp, http.StatusCreated, "")
	bob := decodeData[registrationResponse](t, resp).Registration
	if bob.Status != "waitlist" || resp.Message != "Added to waitlist - event is currently full" {
		t.Fatalf("expected waitlisted registration, got %+v (%q)", bob, resp.Message)
	}

	t.Run("duplicate registration is a conflict", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPost, "/api/registrations/events/"+event.ID, aliceToken, nil)
		expectStatus(t, status, resp, http.StatusConflict, "DUPLICATE_REGISTRATION")
	})

	t.Run("notes are limited", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPost, "/api/registrations/events/"+event.ID, ownerToken, map[string]string{
			"notes": strings.Repeat("n", 501),
		})
		expectStatus(t, status, resp, http.StatusUnprocessableEntity, "VALIDATION_FAILED")
	})

	t.Run("others cannot cancel", func(t *testing.T) {
		status, resp := env.do(t, http.MethodDelete, "/api/registrations/"+alice.ID, bobToken, nil)
		expectStatus(t, status, resp, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("cancel promotes the waitlist", func(t *testing.T) {
		status, resp := env.do(t, http.MethodDelete, "/api/registrations/"+alice.ID, aliceToken, nil)
		expectStatus(t, status, resp, http.StatusOK, "")
		if got := decodeData[registrationResponse](t, resp).Registration.Status; got != "cancelled" {
			t.Fatalf("expected cancelled, got %s", got)
		}

		status, resp = env.do(t, http.MethodGet, "/api/registrations/"+bob.ID, bobToken, nil)
		expectStatus(t, status, resp, http.StatusOK, "")
		if got := decodeData[registrationResponse](t, resp).Registration.Status; got != "confirmed" {
			t.Fatalf("expected promoted registration, got %s", got)
		}
	})

	t.Run("roster and stats for the creator", func(t *testing.T) {
		status, resp := env.do(t, http.MethodGet, "/api/registrations/events/"+event.ID, aliceToken, nil)
		expectStatus(t, status, resp, http.StatusForbidden, "FORBIDDEN")

		status, resp = env.do(t, http.MethodGet, "/api/registrations/events/"+event.ID+"?status=all", ownerToken, nil)
		expectStatus(t, status, resp, http.StatusOK, "")
		roster := decodeData[eventRegistrationsResponse](t, resp)
		want := statsDTO{Total: 1, Confirmed: 1, Waitlist: 0, Cancelled: 1}
		if roster.Stats != want {
			t.Fatalf("expected stats %+v, got %+v", want, roster.Stats)
		}
		if len(roster.Registrations) != 2 || roster.Event.AvailableSpots != 0 {
			t.Fatalf("unexpected roster: %+v", roster)
		}
	})

	t.Run("own registrations", func(t *testing.T) {
		status, resp := env.do(t, http.MethodGet, "/api/registrations/my?status=cancelled", aliceToken, nil)
		expectStatus(t, status, resp, http.StatusOK, "")
		list := decodeData[registrationListResponse](t, resp)
		if len(list.Registrations) != 1 || list.Registrations[0].ID != alice.ID {
			t.Fatalf("unexpected own registrations: %+v", list)
		}
	})

	t.Run("status override reports capacity override", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPatch, "/api/registrations/"+alice.ID+"/status", ownerToken, map[string]string{"status": "unknown"})
		expectStatus(t, status, resp, http.StatusBadRequest, "INVALID_STATUS")

		status, resp = env.do(t, http.MethodPatch, "/api/registrations/"+alice.ID+"/status", ownerToken, map[string]string{"status": "confirmed"})
		expectStatus(t, status, resp, http.StatusOK, "")
		result := decodeData[statusResponse](t, resp)
		if !result.CapacityOverride || result.Registration.Status != "confirmed" {
			t.Fatalf("expected confirmed override, got %+v", result)
		}
	})

	t.Run("attendance and payment", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPatch, "/api/registrations/"+bob.ID+"/attendance", ownerToken, map[string]string{"attendanceStatus": "attended"})
		expectStatus(t, status, resp, http.StatusOK, "")

		status, resp = env.do(t, http.MethodPatch, "/api/registrations/"+bob.ID+"/payment", ownerToken, map[string]string{"paymentStatus": "bogus"})
		expectStatus(t, status, resp, http.StatusBadRequest, "INVALID_STATUS")

		status, resp = env.do(t, http.MethodPatch, "/api/registrations/"+bob.ID+"/payment", bobToken, map[string]string{"paymentStatus": "paid"})
		expectStatus(t, status, resp, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("feedback only after the event", func(t *testing.T) {
		path := "/api/registrations/" + bob.ID + "/feedback"
		status, resp := env.do(t, http.MethodPost, path, bobToken, map[string]any{"rating": 5})
		expectStatus(t, status, resp, http.StatusBadRequest, "EVENT_NOT_YET_OCCURRED")

		env.clock.Set(time.Date(2025, time.September, 21, 9, 0, 0, 0, time.UTC))

		status, resp = env.do(t, http.MethodPost, path, bobToken, map[string]any{"rating": 6})
		expectStatus(t, status, resp, http.StatusUnprocessableEntity, "VALIDATION_FAILED")
		if resp.Errors["rating"] == "" {
			t.Fatalf("expected rating error, got %v", resp.Errors)
		}

		status, resp = env.do(t, http.MethodPost, path, bobToken, map[string]any{"rating": 4, "comment": "Great"})
		expectStatus(t, status, resp, http.StatusOK, "")
		fb := decodeData[registrationResponse](t, resp).Registration.Feedback
		if fb == nil || fb.Rating != 4 || fb.Comment != "Great" {
			t.Fatalf("unexpected feedback: %+v", fb)
		}
	})

	t.Run("registration after the deadline", func(t *testing.T) {
		lateToken, _ := env.signup(t, "late@example.edu")
		status, resp := env.do(t, http.MethodPost, "/api/registrations/events/"+event.ID, lateToken, nil)
		expectStatus(t, status, resp, http.StatusBadRequest, "DEADLINE_PASSED")
	})
}

func TestAPI_Plumbing(t *testing.T) {
	env := newAPIEnv(t)

	t.Run("health", func(t *testing.T) {
		status, resp := env.do(t, http.MethodGet, "/health", "", nil)
		expectStatus(t, status, resp, http.StatusOK, "")
		if !resp.Success {
			t.Fatalf("expected success envelope")
		}
	})

	t.Run("unknown API route", func(t *testing.T) {
		status, resp := env.do(t, http.MethodGet, "/api/nothing", "", nil)
		expectStatus(t, status, resp, http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("malformed body", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPost, "/api/auth/login", "", "{not json")
		expectStatus(t, status, resp, http.StatusBadRequest, "BAD_REQUEST")
	})

	t.Run("oversized body", func(t *testing.T) {
		body := `{"email":"a@example.edu","password":"` + strings.Repeat("x", maxBodyBytes) + `"}`
		status, resp := env.do(t, http.MethodPost, "/api/auth/login", "", body)
		expectStatus(t, status, resp, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE")
	})
}

func TestAPI_StaticFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600); err != nil {
		t.Fatalf("write asset: %v", err)
	}

	handler := NewRouter(RouterConfig{StaticDir: dir, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	for _, tc := range []struct {
		path string
		want string
	}{
		{"/app.js", "console.log(1)"},
		{"/events/123", "<html>app</html>"},
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), tc.want) {
			t.Fatalf("%s: expected %q, got %d %q", tc.path, tc.want, rec.Code, rec.Body.String())
		}
	}
}
