package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bhai-cabal/tracker/internal/lock"
)

func TestOpenSQLiteAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")

	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	var records []migrationRecord
	if err := db.Find(&records).Error; err != nil {
		t.Fatalf("failed to list migrations: %v", err)
	}
	if len(records) != 1 || records[0].Name != migrationPurgeExpiredLocks {
		t.Fatalf("unexpected migration records: %+v", records)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("failed to close database: %v", err)
	}

	reopened, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	if err := reopened.Find(&records).Error; err != nil {
		t.Fatalf("failed to list migrations after reopen: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected migrations to apply once, got %d records", len(records))
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		t.Fatalf("expected an error for an empty path")
	}
}

func TestPurgeExpiredLocksKeepsLiveLeases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")
	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	now := time.Now().UTC()
	rows := []lock.Record{
		{LockKey: "g1_u1", OwnerToken: "stale", AcquiredAtMs: now.Add(-2 * time.Hour).UnixMilli(), ExpiresAtMs: now.Add(-time.Hour).UnixMilli()},
		{LockKey: "g1_u2", OwnerToken: "live", AcquiredAtMs: now.UnixMilli(), ExpiresAtMs: now.Add(time.Hour).UnixMilli()},
	}
	for _, row := range rows {
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("failed to seed lock row: %v", err)
		}
	}

	if err := purgeExpiredLocks(db); err != nil {
		t.Fatalf("purge failed: %v", err)
	}

	var remaining []lock.Record
	if err := db.Find(&remaining).Error; err != nil {
		t.Fatalf("failed to list locks: %v", err)
	}
	if len(remaining) != 1 || remaining[0].OwnerToken != "live" {
		t.Fatalf("expected only the live lease to survive, got %+v", remaining)
	}
}
