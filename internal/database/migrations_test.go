package database

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"vedtak/migrations"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_index.up.sql":         {Data: []byte("CREATE INDEX i ON t (c);")},
		"002_add_index.down.sql":       {Data: []byte("DROP INDEX i;")},
		"001_create_table.up.sql":      {Data: []byte("CREATE TABLE t (c INT);")},
		"001_create_table.down.sql":    {Data: []byte("DROP TABLE t;")},
		"003_only_down.down.sql":       {Data: []byte("SELECT 1;")},
		"README.md":                    {Data: []byte("ignored")},
		"embed.go":                     {Data: []byte("package migrations")},
		"broken.up.sql":                {Data: []byte("SELECT 1;")},
		"subdir/004_nested.up.sql":     {Data: []byte("SELECT 1;")},
		"005_with_many_parts.up.sql":   {Data: []byte("SELECT 5;")},
		"005_with_many_parts.down.sql": {Data: []byte("SELECT -5;")},
	}

	got, err := ReadMigrations(fsys)
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}

	wantVersions := []string{"001", "002", "005"}
	if len(got) != len(wantVersions) {
		t.Fatalf("got %d migrations, want %d: %+v", len(got), len(wantVersions), got)
	}
	for i, v := range wantVersions {
		if got[i].Version != v {
			t.Errorf("migration %d version = %s, want %s", i, got[i].Version, v)
		}
	}

	if got[2].Name != "with_many_parts" || got[2].Title != "with many parts" {
		t.Errorf("name/title = %q/%q", got[2].Name, got[2].Title)
	}
	if got[0].DownSQL != "DROP TABLE t;" {
		t.Errorf("down SQL = %q", got[0].DownSQL)
	}
	if got[0].Checksum != calculateChecksum("CREATE TABLE t (c INT);") {
		t.Errorf("checksum mismatch for %s", got[0].Version)
	}
}

func TestReadMigrations_Embedded(t *testing.T) {
	got, err := ReadMigrations(migrations.FS)
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(got) < 4 {
		t.Fatalf("expected at least 4 embedded migrations, got %d", len(got))
	}
	for _, m := range got {
		if m.DownSQL == "" {
			t.Errorf("migration %s has no down file", m.Version)
		}
	}
}

func TestRunMigrations_AppliesPending(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"001_create_table.up.sql": {Data: []byte("CREATE TABLE t (c INT);")},
		"002_add_column.up.sql":   {Data: []byte("ALTER TABLE t ADD COLUMN d INT;")},
	}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version, checksum FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version", "checksum"}).
			AddRow("001", calculateChecksum("CREATE TABLE t (c INT);")))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("001"))
	mock.ExpectBegin()
	mock.ExpectExec(`ALTER TABLE t ADD COLUMN d INT`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs("002", "add column", calculateChecksum("ALTER TABLE t ADD COLUMN d INT;")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := NewMigrationExecutor(db).RunMigrations(context.Background(), fsys); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunMigrations_ChecksumMismatch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"001_create_table.up.sql": {Data: []byte("CREATE TABLE t (c BIGINT);")},
	}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version, checksum FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version", "checksum"}).AddRow("001", "deadbeef"))

	err = NewMigrationExecutor(db).RunMigrations(context.Background(), fsys)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	if !strings.Contains(err.Error(), "have been modified") {
		t.Errorf("unexpected error: %v", err)
	}
}
