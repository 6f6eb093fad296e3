package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/club-registration/internal/persistence"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, persistence.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "registrations_event_id_user_id_key"}, persistence.ErrDuplicate},
		{"wrapped unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), persistence.ErrDuplicate},
		{"foreign key", &pgconn.PgError{Code: "23503"}, persistence.ErrConstraintViolation},
		{"check", &pgconn.PgError{Code: "23514"}, persistence.ErrConstraintViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapError(tc.in); !errors.Is(got, tc.want) {
				t.Fatalf("mapError(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}

	serialization := &pgconn.PgError{Code: "40001"}
	if got := mapError(serialization); got != serialization {
		t.Fatalf("expected unrelated codes to pass through, got %v", got)
	}
}

func TestSchemaDeclaresLedgerConstraints(t *testing.T) {
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS registrations",
		"UNIQUE (event_id, user_id)",
		"registration_number TEXT NOT NULL UNIQUE",
	} {
		if !strings.Contains(schemaSQL, want) {
			t.Errorf("schema is missing %q", want)
		}
	}
}
