package database

import (
	"strings"
	"testing"
	"testing/fstest"

	"quality-hub/migrations"
)

func TestReadMigrationsPairsAndSorts(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_outbox.up.sql":     {Data: []byte("CREATE TABLE b();")},
		"002_add_outbox.down.sql":   {Data: []byte("DROP TABLE b;")},
		"001_initial_schema.up.sql": {Data: []byte("CREATE TABLE a();")},
		"003_orphan.down.sql":       {Data: []byte("DROP TABLE c;")},
		"README.md":                 {Data: []byte("ignored")},
	}

	got, err := ReadMigrations(fsys)
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 migrations (down-only skipped), got %d", len(got))
	}
	if got[0].Version != "001" || got[1].Version != "002" {
		t.Errorf("unexpected order: %s, %s", got[0].Version, got[1].Version)
	}
	if got[1].Title != "add outbox" {
		t.Errorf("Title = %q, want %q", got[1].Title, "add outbox")
	}
	if got[1].DownSQL == "" {
		t.Error("down migration should be attached")
	}
	if got[0].Checksum != calculateChecksum("CREATE TABLE a();") {
		t.Error("checksum mismatch")
	}
}

func TestValidateChecksums(t *testing.T) {
	migrations := []Migration{{Version: "001", Title: "init", Checksum: "abc"}}

	if err := validateChecksums(migrations, map[string]string{"001": "abc"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateChecksums(migrations, map[string]string{}); err != nil {
		t.Errorf("pending migration should not fail validation: %v", err)
	}

	err := validateChecksums(migrations, map[string]string{"001": "def"})
	if err == nil || !strings.Contains(err.Error(), "have been modified") {
		t.Errorf("expected modification error, got %v", err)
	}
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	got, err := ReadMigrations(migrations.FS)
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for _, m := range got {
		if m.DownSQL == "" {
			t.Errorf("migration %s has no down script", m.Version)
		}
	}
}
