package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScannerScanMigrations(t *testing.T) {
	t.Parallel()

	t.Run("orders files by numeric version and reads descriptions", func(t *testing.T) {
		t.Parallel()

		files := fstest.MapFS{
			"migrations/010_add_index.sql":      {Data: []byte("CREATE INDEX idx ON t(a);")},
			"migrations/002_second.sql":         {Data: []byte("-- Description: add column\nALTER TABLE t ADD COLUMN b TEXT;")},
			"migrations/001_initial_schema.sql": {Data: []byte("CREATE TABLE t (a TEXT);")},
			"migrations/README.md":              {Data: []byte("ignored")},
		}

		migrations, err := NewScanner(files, "migrations").ScanMigrations()
		if err != nil {
			t.Fatalf("ScanMigrations returned error: %v", err)
		}
		if len(migrations) != 3 {
			t.Fatalf("expected 3 migrations, got %d", len(migrations))
		}
		got := []string{migrations[0].Version, migrations[1].Version, migrations[2].Version}
		want := []string{"001", "002", "010"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("unexpected order: %v", got)
			}
		}
		if migrations[0].Description != "initial schema" {
			t.Fatalf("expected filename description, got %q", migrations[0].Description)
		}
		if migrations[1].Description != "add column" {
			t.Fatalf("expected header description, got %q", migrations[1].Description)
		}
		if migrations[0].Checksum == "" {
			t.Fatal("expected checksum to be populated")
		}
	})

	t.Run("rejects malformed file names", func(t *testing.T) {
		t.Parallel()

		files := fstest.MapFS{"migrations/initial.sql": {Data: []byte("SELECT 1;")}}
		_, err := NewScanner(files, "migrations").ScanMigrations()
		if !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		t.Parallel()

		files := fstest.MapFS{
			"migrations/001_a.sql": {Data: []byte("SELECT 1;")},
			"migrations/1_b.sql":   {Data: []byte("SELECT 2;")},
		}
		_, err := NewScanner(files, "migrations").ScanMigrations()
		if !errors.Is(err, ErrDuplicateVersion) {
			t.Fatalf("expected ErrDuplicateVersion, got %v", err)
		}
	})

	t.Run("normalizes unpadded versions", func(t *testing.T) {
		t.Parallel()

		files := fstest.MapFS{
			"migrations/1_init.sql":   {Data: []byte("SELECT 1;")},
			"migrations/02_more.sql":  {Data: []byte("SELECT 2;")},
			"migrations/010_late.sql": {Data: []byte("SELECT 3;")},
		}
		migrations, err := NewScanner(files, "migrations").ScanMigrations()
		if err != nil {
			t.Fatalf("ScanMigrations returned error: %v", err)
		}
		got := []string{migrations[0].Version, migrations[1].Version, migrations[2].Version}
		want := []string{"001", "002", "010"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected versions %v, got %v", want, got)
			}
		}
	})

	t.Run("rejects comment-only files", func(t *testing.T) {
		t.Parallel()

		files := fstest.MapFS{"migrations/001_empty.sql": {Data: []byte("-- nothing here\n")}}
		_, err := NewScanner(files, "migrations").ScanMigrations()
		if !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	sql := "-- header\nCREATE TABLE a (id TEXT);\n\n-- comment\nCREATE TABLE b (id TEXT);\n"
	statements := splitStatements(sql)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[1] != "CREATE TABLE b (id TEXT)" {
		t.Fatalf("unexpected statement: %q", statements[1])
	}
}
