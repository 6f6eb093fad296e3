package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/club-registration/internal/application"
)

type authService interface {
	Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
}

type accountService interface {
	Signup(ctx context.Context, input application.SignupInput) (application.User, error)
	GetProfile(ctx context.Context, principal application.Principal) (application.User, error)
	UpdateProfile(ctx context.Context, principal application.Principal, input application.ProfileInput) (application.User, error)
}

// AuthHandler serves account signup, login and the caller's own profile.
type AuthHandler struct {
	auth      authService
	accounts  accountService
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(auth authService, accounts accountService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{auth: auth, accounts: accounts, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

// Signup creates a student account and signs it in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.auth == nil || h.accounts == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.log(r.Context(), "Signup", "error_kind", "bad_request").WarnContext(r.Context(), "rejected signup request", "error", err)
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	logger := h.log(r.Context(), "Signup", "email", email)

	user, err := h.accounts.Signup(r.Context(), application.SignupInput{
		Email:      email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		StudentID:  req.StudentID,
		Phone:      req.Phone,
		Department: req.Department,
		Year:       req.Year,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "signup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	result, err := h.auth.Authenticate(r.Context(), application.AuthenticateParams{Email: user.Email, Password: req.Password})
	if err != nil {
		logger.ErrorContext(r.Context(), "sign in after signup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "account created")
	h.responder.writeSuccess(r.Context(), w, http.StatusCreated, "User registered successfully", toAuthResponse(result))
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.auth == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.log(r.Context(), "Login", "error_kind", "bad_request").WarnContext(r.Context(), "rejected login request", "error", err)
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	logger := h.log(r.Context(), "Login", "email", email)

	result, err := h.auth.Authenticate(r.Context(), application.AuthenticateParams{Email: email, Password: req.Password})
	if err != nil {
		logger.WarnContext(r.Context(), "authentication rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", result.User.ID).InfoContext(r.Context(), "user authenticated")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "Login successful", toAuthResponse(result))
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.accounts == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	user, err := h.accounts.GetProfile(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Me").WarnContext(r.Context(), "profile lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "", userResponse{User: toUserDTO(user)})
}

// UpdateProfile edits the caller's own profile fields.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.accounts == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "UpdateProfile")

	var req profileRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		logger.WarnContext(r.Context(), "rejected profile update", "error", err)
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), principal, application.ProfileInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Department: req.Department,
		Year:       req.Year,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "profile update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "profile updated")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "Profile updated successfully", userResponse{User: toUserDTO(user)})
}

type signupRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	FirstName  string `json:"firstName" validate:"required,max=50"`
	LastName   string `json:"lastName" validate:"required,max=50"`
	StudentID  string `json:"studentId"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	Year       int    `json:"year" validate:"omitempty,min=1,max=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	FirstName  string `json:"firstName" validate:"required,max=50"`
	LastName   string `json:"lastName" validate:"required,max=50"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	Year       int    `json:"year" validate:"omitempty,min=1,max=6"`
}

type authResponse struct {
	User      userDTO `json:"user"`
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expiresAt"`
}

func toAuthResponse(result application.AuthenticateResult) authResponse {
	return authResponse{
		User:      toUserDTO(result.User),
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
