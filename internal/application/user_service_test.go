package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/club-registration/internal/application"
	"github.com/example/club-registration/internal/testfixtures"
)

func TestUserService_Signup(t *testing.T) {
	t.Parallel()

	for name, newHarness := range harnesses {
		newHarness := newHarness
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			services := testfixtures.NewServiceFactory().Build(t, h.Store)
			ctx := context.Background()

			input := application.SignupInput{
				Email:     " Ada@Example.EDU ",
				Password:  "analytical",
				FirstName: "Ada",
				LastName:  "Lovelace",
				StudentID: "S-1815",
				Year:      3,
			}
			user, err := services.Users.Signup(ctx, input)
			if err != nil {
				t.Fatalf("Signup returned error: %v", err)
			}
			if user.Email != "ada@example.edu" || user.Role != application.RoleStudent || !user.IsActive {
				t.Fatalf("unexpected account %+v", user)
			}
			if user.StudentID == nil || *user.StudentID != "S-1815" {
				t.Fatalf("expected student id, got %v", user.StudentID)
			}

			stored, err := h.Store.GetUser(ctx, user.ID)
			if err != nil {
				t.Fatalf("GetUser returned error: %v", err)
			}
			if stored.PasswordHash == "" || stored.PasswordHash == "analytical" {
				t.Fatalf("expected password to be hashed, got %q", stored.PasswordHash)
			}

			if _, err := services.Users.Signup(ctx, input); !errors.Is(err, application.ErrAlreadyExists) {
				t.Fatalf("expected ErrAlreadyExists for a reused email, got %v", err)
			}

			input.Email = "other@example.edu"
			if _, err := services.Users.Signup(ctx, input); !errors.Is(err, application.ErrAlreadyExists) {
				t.Fatalf("expected ErrAlreadyExists for a reused student id, got %v", err)
			}
		})
	}
}

func TestUserService_SignupValidation(t *testing.T) {
	t.Parallel()

	services := testfixtures.NewServiceFactory().Build(t, testfixtures.NewMemoryHarness(t).Store)
	_, err := services.Users.Signup(context.Background(), application.SignupInput{
		Email:    "not-an-email",
		Password: "123",
		Phone:    "call me",
		Year:     9,
	})

	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"email", "password", "firstName", "lastName", "phone", "year"} {
		if vErr.FieldErrors[field] == "" {
			t.Errorf("expected %s to be reported, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestUserService_Profile(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewMemoryHarness(t)
	services := testfixtures.NewServiceFactory().Build(t, h.Store)
	user := h.SeedUser(t, testfixtures.NewUser())
	principal := application.Principal{UserID: user.ID, Role: application.RoleStudent}
	ctx := context.Background()

	updated, err := services.Users.UpdateProfile(ctx, principal, application.ProfileInput{
		FirstName: "Grace", LastName: "Hopper", Phone: "+1 555-0100", Department: "Mathematics", Year: 4,
	})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if updated.FullName() != "Grace Hopper" || updated.Email != user.Email {
		t.Fatalf("unexpected profile %+v", updated)
	}

	profile, err := services.Users.GetProfile(ctx, principal)
	if err != nil || profile.Department != "Mathematics" {
		t.Fatalf("unexpected profile %+v, %v", profile, err)
	}

	if _, err := services.Users.UpdateProfile(ctx, principal, application.ProfileInput{}); err == nil {
		t.Fatal("expected names to be required")
	}
	if _, err := services.Users.GetProfile(ctx, application.Principal{UserID: "ghost"}); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService_ListUsers(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewMemoryHarness(t)
	services := testfixtures.NewServiceFactory().Build(t, h.Store)
	h.SeedUser(t, testfixtures.NewUser(testfixtures.WithEmail("zed@example.edu")))
	h.SeedUser(t, testfixtures.NewUser(testfixtures.WithEmail("amy@example.edu")))
	ctx := context.Background()

	if _, err := services.Users.ListUsers(ctx, application.Principal{UserID: "u", Role: application.RoleStudent}); !errors.Is(err, application.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	users, err := services.Users.ListUsers(ctx, application.Principal{UserID: "root", Role: application.RoleAdmin})
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if len(users) != 2 || users[0].Email != "amy@example.edu" {
		t.Fatalf("expected users ordered by email, got %+v", users)
	}
}

func TestUserService_EnsureAdmin(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewMemoryHarness(t)
	services := testfixtures.NewServiceFactory().Build(t, h.Store)
	ctx := context.Background()

	t.Run("creates a missing administrator", func(t *testing.T) {
		admin, err := services.Users.EnsureAdmin(ctx, "Root@Example.edu", "bootstrap-pass")
		if err != nil {
			t.Fatalf("EnsureAdmin returned error: %v", err)
		}
		if admin.Email != "root@example.edu" || admin.Role != application.RoleAdmin {
			t.Fatalf("unexpected administrator %+v", admin)
		}
		if _, err := services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: "root@example.edu", Password: "bootstrap-pass"}); err != nil {
			t.Fatalf("expected administrator to sign in, got %v", err)
		}

		again, err := services.Users.EnsureAdmin(ctx, "root@example.edu", "other-pass")
		if err != nil || again.ID != admin.ID {
			t.Fatalf("expected idempotent call, got %+v, %v", again, err)
		}
	})

	t.Run("promotes an existing student", func(t *testing.T) {
		student := h.SeedUser(t, testfixtures.NewUser(testfixtures.WithEmail("lead@example.edu")))
		admin, err := services.Users.EnsureAdmin(ctx, "lead@example.edu", "ignored-pass")
		if err != nil {
			t.Fatalf("EnsureAdmin returned error: %v", err)
		}
		if admin.ID != student.ID || admin.Role != application.RoleAdmin {
			t.Fatalf("expected promotion of %s, got %+v", student.ID, admin)
		}
	})

	t.Run("rejects weak input", func(t *testing.T) {
		_, err := services.Users.EnsureAdmin(ctx, "nope", "123")
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["email"] == "" || vErr.FieldErrors["password"] == "" {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
