package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewTestDB(context.Background())
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_FileSystemDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "eco.db")

	db, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file not created: %s", dbPath)
	}
	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	if _, err := db.GetOrCreateProfile(ctx, "U1", ""); err != nil {
		t.Fatalf("GetOrCreateProfile failed: %v", err)
	}

	backup := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(ctx, backup); err != nil {
		t.Fatalf("BackupTo failed: %v", err)
	}
	copyDB, err := New(ctx, backup)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer func() { _ = copyDB.Close() }()
	if n, err := copyDB.CountProfiles(ctx); err != nil || n != 1 {
		t.Errorf("backup profiles = %d, %v; want 1", n, err)
	}
}

func TestNew_SchemaIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "eco.db")

	for range 2 {
		db, err := New(ctx, dbPath)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		_ = db.Close()
	}
}
