package sqlite

import (
	"path/filepath"
	"testing"

	"fintrack/internal/storage/storetest"
)

func TestStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	storetest.Run(t, s)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fintrack.db")
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		s.Close()
	}
}

func TestSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")

	_, ok, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("version before migrate: %v", err)
	}
	if ok {
		t.Fatalf("expected no schema before migrations run")
	}

	if err := RunMigrations(path); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	v, ok, err := SchemaVersion(path)
	if err != nil || !ok || v != 1 {
		t.Fatalf("expected schema version 1, got %d %v %v", v, ok, err)
	}
}
