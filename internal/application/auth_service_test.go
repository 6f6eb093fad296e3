package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/club-registration/internal/application"
	"github.com/example/club-registration/internal/testfixtures"
)

func TestAuthService(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewMemoryHarness(t)
	factory := testfixtures.NewServiceFactory()
	services := factory.Build(t, h.Store)
	ctx := context.Background()

	hash, err := testfixtures.FastPasswordHasher().Hash("hunter22")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	admin := h.SeedUser(t, testfixtures.NewUser(testfixtures.WithEmail("admin@example.edu"), testfixtures.WithPasswordHash(hash), testfixtures.AsAdmin()))
	h.SeedUser(t, testfixtures.NewUser(testfixtures.WithEmail("gone@example.edu"), testfixtures.WithPasswordHash(hash), testfixtures.Deactivated()))

	t.Run("rejects bad credentials", func(t *testing.T) {
		for _, params := range []application.AuthenticateParams{
			{Email: "admin@example.edu", Password: "wrong"},
			{Email: "nobody@example.edu", Password: "hunter22"},
			{Email: "", Password: ""},
		} {
			if _, err := services.Auth.Authenticate(ctx, params); !errors.Is(err, application.ErrInvalidCredentials) {
				t.Errorf("Authenticate(%q) = %v, want ErrInvalidCredentials", params.Email, err)
			}
		}
	})

	t.Run("rejects disabled accounts", func(t *testing.T) {
		_, err := services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: "gone@example.edu", Password: "hunter22"})
		if !errors.Is(err, application.ErrAccountDisabled) {
			t.Fatalf("expected ErrAccountDisabled, got %v", err)
		}
	})

	t.Run("issues tokens that resolve to the principal", func(t *testing.T) {
		result, err := services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: " ADMIN@example.edu", Password: "hunter22"})
		if err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
		if result.Token == "" || result.User.ID != admin.ID {
			t.Fatalf("unexpected result %+v", result)
		}

		principal, err := services.Auth.ValidateToken(ctx, result.Token)
		if err != nil {
			t.Fatalf("ValidateToken returned error: %v", err)
		}
		if principal.UserID != admin.ID || !principal.IsAdmin() {
			t.Fatalf("unexpected principal %+v", principal)
		}
	})

	t.Run("rejects malformed and foreign tokens", func(t *testing.T) {
		other := application.NewAuthService(h.Store, []byte("another-secret"), nil, factory.Clock.NowFunc(), time.Hour)
		foreign, err := other.Authenticate(ctx, application.AuthenticateParams{Email: "admin@example.edu", Password: "hunter22"})
		if err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
		for _, token := range []string{"", "not.a.token", foreign.Token} {
			if _, err := services.Auth.ValidateToken(ctx, token); !errors.Is(err, application.ErrUnauthenticated) {
				t.Errorf("ValidateToken(%q) = %v, want ErrUnauthenticated", token, err)
			}
		}
	})
}

func TestAuthServiceTokenExpiry(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewMemoryHarness(t)
	factory := testfixtures.NewServiceFactory()
	services := factory.Build(t, h.Store)
	hash, _ := testfixtures.FastPasswordHasher().Hash("hunter22")
	h.SeedUser(t, testfixtures.NewUser(testfixtures.WithEmail("kim@example.edu"), testfixtures.WithPasswordHash(hash)))

	result, err := services.Auth.Authenticate(context.Background(), application.AuthenticateParams{Email: "kim@example.edu", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	factory.Clock.Set(result.ExpiresAt.Add(-time.Second))
	if _, err := services.Auth.ValidateToken(context.Background(), result.Token); err != nil {
		t.Fatalf("expected token to be valid before expiry, got %v", err)
	}

	factory.Clock.Set(result.ExpiresAt)
	if _, err := services.Auth.ValidateToken(context.Background(), result.Token); !errors.Is(err, application.ErrUnauthenticated) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
