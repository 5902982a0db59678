package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPendingMigrationsOrderAndFilter(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_tokens.sql", "001_users.sql", "README.md", "abc.sql", "010_more.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := pendingMigrations(dir)
	if err != nil {
		t.Fatalf("pendingMigrations: %v", err)
	}

	want := []string{"001_users.sql", "002_tokens.sql", "010_more.sql"}
	if len(got) != len(want) {
		t.Fatalf("got %d migrations, want %d: %+v", len(got), len(want), got)
	}
	for i, m := range got {
		if m.name != want[i] {
			t.Errorf("migration %d = %q, want %q", i, m.name, want[i])
		}
	}
	if got[2].version != 10 {
		t.Errorf("version = %d, want 10", got[2].version)
	}
}

func TestPendingMigrationsMissingDir(t *testing.T) {
	if _, err := pendingMigrations(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestRepoMigrationsParse(t *testing.T) {
	got, err := pendingMigrations(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("pendingMigrations: %v", err)
	}
	if len(got) == 0 || got[0].version != 1 {
		t.Fatalf("expected migration 001 first, got %+v", got)
	}
}
