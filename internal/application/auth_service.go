package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/example/club-registration/internal/persistence"
)

const defaultTokenTTL = 24 * time.Hour

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// TokenClaims is the payload of an access token.
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and validates HS256 bearer tokens.
type AuthService struct {
	users          persistence.UserRepository
	secret         []byte
	verifyPassword PasswordVerifier
	now            func() time.Time
	tokenTTL       time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(users persistence.UserRepository, secret []byte, verify PasswordVerifier, now func() time.Time, tokenTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(users, secret, verify, now, tokenTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(users persistence.UserRepository, secret []byte, verify PasswordVerifier, now func() time.Time, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if now == nil {
		now = time.Now
	}
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &AuthService{
		users:          users,
		secret:         secret,
		verifyPassword: verify,
		now:            now,
		tokenTTL:       tokenTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a signed token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if len(s.secret) == 0 {
		err = fmt.Errorf("token secret not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var record persistence.User
	if record, err = s.users.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if verifyErr := s.verifyPassword(record.PasswordHash, params.Password); verifyErr != nil {
		err = ErrInvalidCredentials
		return
	}
	if !record.IsActive {
		err = ErrAccountDisabled
		return
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := TokenClaims{
		Role: record.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   record.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	var token string
	if token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret); err != nil {
		err = fmt.Errorf("sign token: %w", err)
		return
	}

	result = AuthenticateResult{User: toUser(record), Token: token, ExpiresAt: expiresAt}
	return
}

// ValidateToken verifies a bearer token and resolves the principal it was
// issued to. Tokens of deactivated or deleted accounts are rejected.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateToken", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "token validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "token validated")
	}()

	if trimmed == "" {
		err = ErrUnauthenticated
		return
	}

	var claims TokenClaims
	if err = s.parse(trimmed, &claims); err != nil {
		return
	}

	var record persistence.User
	if record, err = s.users.GetUser(ctx, claims.Subject); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrUnauthenticated
		}
		return
	}
	if !record.IsActive {
		err = ErrAccountDisabled
		return
	}

	principal = Principal{UserID: record.ID, Role: Role(record.Role)}
	return
}

// parse checks the signature and the expiry against the service clock.
func (s *AuthService) parse(token string, claims *TokenClaims) error {
	parser := jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true,
	}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if claims.Subject == "" {
		return ErrUnauthenticated
	}
	if claims.ExpiresAt == nil || !s.now().Before(claims.ExpiresAt.Time) {
		return fmt.Errorf("%w: token expired", ErrUnauthenticated)
	}
	return nil
}
