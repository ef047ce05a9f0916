package db

import (
	"testing"
	"testing/fstest"
)

func TestLoadMigrations(t *testing.T) {
	files := fstest.MapFS{
		"migrations/002_attachments.sql": {Data: []byte("CREATE TABLE attachments (id UUID PRIMARY KEY);")},
		"migrations/001_screening.sql":   {Data: []byte("CREATE TABLE operators (id BIGSERIAL PRIMARY KEY);")},
		"migrations/010_indexes.sql":     {Data: []byte("SELECT 10;")},
	}

	migrations, err := NewMigrator(nil, files, "migrations").LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []int{1, 2, 10} {
		if migrations[i].Version != want {
			t.Errorf("migration[%d]: expected version %d, got %d", i, want, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_screening.sql" || len(migrations[0].Checksum) != 64 {
		t.Errorf("unexpected first migration %+v", migrations[0])
	}
}

func TestLoadMigrations_ChecksumFollowsContent(t *testing.T) {
	a, _ := NewMigrator(nil, fstest.MapFS{"001_a.sql": {Data: []byte("SELECT 1;")}}, "").LoadMigrations()
	b, _ := NewMigrator(nil, fstest.MapFS{"001_a.sql": {Data: []byte("SELECT 2;")}}, "").LoadMigrations()
	if a[0].Checksum == b[0].Checksum {
		t.Error("expected different checksums for different SQL")
	}
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		name    string
		version int
		ok      bool
	}{
		{"001_screening.sql", 1, true},
		{"12_add_index.sql", 12, true},
		{"readme.sql", 0, false},
		{"abc_invalid.sql", 0, false},
		{"000_zero.sql", 0, false},
		{"003_notes.txt", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := parseMigrationName(tt.name)
			if ok != tt.ok || (ok && v != tt.version) {
				t.Errorf("parseMigrationName(%q) = %d, %v", tt.name, v, ok)
			}
		})
	}
}

func TestLoadMigrations_SkipsDirectories(t *testing.T) {
	files := fstest.MapFS{
		"001_valid.sql":      {Data: []byte("SELECT 1;")},
		"sub/002_nested.sql": {Data: []byte("SELECT 2;")},
	}
	migrations, err := NewMigrator(nil, files, ".").LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 1 {
		t.Errorf("expected 1 migration, got %d", len(migrations))
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_a.sql":  {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, files, "").LoadMigrations(); err == nil {
		t.Error("expected error for duplicate version")
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	if _, err := NewMigrator(nil, fstest.MapFS{}, "does-not-exist").LoadMigrations(); err == nil {
		t.Error("expected error for missing directory")
	}
}
