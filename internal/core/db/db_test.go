package db

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
)

func openTemp(t *testing.T) *sqlx.DB {
	t.Helper()
	database, err := Open("sqlite://" + filepath.Join(t.TempDir(), "packs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestDriverFor(t *testing.T) {
	tests := []struct {
		url        string
		driver     string
		dataSource string
		wantErr    bool
	}{
		{"sqlite://data/packs.db", DriverSQLite, "data/packs.db?_foreign_keys=on", false},
		{"sqlite:///var/lib/packs.db", DriverSQLite, "/var/lib/packs.db?_foreign_keys=on", false},
		{"postgres://alk@db:5432/packs?sslmode=disable", DriverPostgres, "postgres://alk@db:5432/packs?sslmode=disable", false},
		{"sqlite://", "", "", true},
		{"mysql://db/packs", "", "", true},
	}
	for _, tt := range tests {
		driver, dataSource, err := driverFor(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("driverFor(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if driver != tt.driver || dataSource != tt.dataSource {
			t.Errorf("driverFor(%q) = %q, %q, want %q, %q", tt.url, driver, dataSource, tt.driver, tt.dataSource)
		}
	}
}

func TestStatements(t *testing.T) {
	sqlText := "-- header\nCREATE TABLE a (x TEXT);\n\n-- note\nCREATE INDEX i ON a (x);\n"
	want := []string{"CREATE TABLE a (x TEXT)", "CREATE INDEX i ON a (x)"}
	if got := statements(sqlText); !reflect.DeepEqual(got, want) {
		t.Errorf("statements() = %q, want %q", got, want)
	}
}

func TestStatements_SemicolonInComment(t *testing.T) {
	sqlText := "-- keys; values and names\n-- more; notes\nCREATE TABLE a (x TEXT);\n  -- indented; comment\nCREATE TABLE b (y TEXT);\n"
	want := []string{"CREATE TABLE a (x TEXT)", "CREATE TABLE b (y TEXT)"}
	if got := statements(sqlText); !reflect.DeepEqual(got, want) {
		t.Errorf("statements() = %q, want %q", got, want)
	}
}

func TestStatements_EmbeddedMigrations(t *testing.T) {
	for _, driver := range []string{DriverSQLite, DriverPostgres} {
		fsys, dir, err := migrationSource(driver)
		if err != nil {
			t.Fatalf("migrationSource(%s) error = %v", driver, err)
		}
		migrations, err := parseMigrationFiles(fsys, dir)
		if err != nil {
			t.Fatalf("parseMigrationFiles(%s) error = %v", driver, err)
		}
		for _, m := range migrations {
			for _, stmt := range statements(m.SQL) {
				if strings.HasPrefix(stmt, "--") || strings.Contains(stmt, "\n--") {
					t.Errorf("%s %s: statement carries a comment: %q", driver, m.ID, stmt)
				}
				first := strings.Fields(stmt)[0]
				if first != "CREATE" && first != "INSERT" && first != "ALTER" && first != "DROP" {
					t.Errorf("%s %s: statement starts with %q, want a DDL keyword", driver, m.ID, first)
				}
			}
		}
	}
}

func TestMigrateUp(t *testing.T) {
	database := openTemp(t)

	applied, err := MigrateUp(database)
	if err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	if !reflect.DeepEqual(applied, []string{"001_content_packs.sql"}) {
		t.Errorf("MigrateUp() = %v, want [001_content_packs.sql]", applied)
	}

	again, err := MigrateUp(database)
	if err != nil || len(again) != 0 {
		t.Errorf("second MigrateUp() = %v, %v, want nothing applied", again, err)
	}

	statuses, err := MigrateStatus(database)
	if err != nil {
		t.Fatalf("MigrateStatus() error = %v", err)
	}
	if len(statuses) != 1 || !statuses[0].Applied || statuses[0].AppliedAt == nil {
		t.Errorf("MigrateStatus() = %+v, want one applied migration", statuses)
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	database := openTemp(t)
	if _, err := MigrateUp(database); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	if _, err := database.Exec("UPDATE migrations SET checksum = 'tampered'"); err != nil {
		t.Fatal(err)
	}
	if _, err := MigrateUp(database); err == nil {
		t.Errorf("MigrateUp() after tampering error = nil, want checksum mismatch")
	}
}

func TestPackStore(t *testing.T) {
	database := openTemp(t)
	if _, err := MigrateUp(database); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	store, err := NewPackStore(database)
	if err != nil {
		t.Fatalf("NewPackStore() error = %v", err)
	}

	first, err := store.Put("b.yaml", []byte("display: B\n"))
	if err != nil {
		t.Fatalf("Put(b.yaml) error = %v", err)
	}
	if _, err := store.Put("a.json", []byte(`{"display": "A"}`)); err != nil {
		t.Fatalf("Put(a.json) error = %v", err)
	}
	if _, err := store.Put("c.json", []byte(`[1]`)); err == nil {
		t.Errorf("Put(c.json) with a non-mapping document error = nil, want error")
	}

	replaced, err := store.Put("b.yaml", []byte("display: B2\n"))
	if err != nil {
		t.Fatalf("Put(b.yaml) replace error = %v", err)
	}
	if replaced.PackID != first.PackID || replaced.Digest == first.Digest {
		t.Errorf("replace = %+v, want same id %s with a new digest", replaced, first.PackID)
	}

	infos, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "a.json" || infos[1].Name != "b.yaml" {
		t.Errorf("List() = %+v, want a.json, b.yaml", infos)
	}

	p, err := store.Get("b.yaml")
	if err != nil {
		t.Fatalf("Get(b.yaml) error = %v", err)
	}
	if p.Display() != "B2" || p.Digest != replaced.Digest {
		t.Errorf("Get(b.yaml) = %s %s, want B2 %s", p.Display(), p.Digest, replaced.Digest)
	}

	all, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(all) != 2 || all[0].Display() != "A" || all[1].Display() != "B2" {
		t.Errorf("LoadAll() = %+v, want A then B2", all)
	}

	if err := store.Delete("a.json"); err != nil {
		t.Fatalf("Delete(a.json) error = %v", err)
	}
	if err := store.Delete("a.json"); !errors.Is(err, ErrPackNotFound) {
		t.Errorf("Delete(a.json) twice error = %v, want ErrPackNotFound", err)
	}
	if _, err := store.Get("a.json"); !errors.Is(err, ErrPackNotFound) {
		t.Errorf("Get(a.json) error = %v, want ErrPackNotFound", err)
	}
}
