// Package storage persists profiles, achievements, challenges and subscribers
// in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// DB wraps the SQLite database connection.
type DB struct {
	conn  *sql.DB
	path  string
	locks *UserLocks
}

// New creates a new database connection and initializes the schema.
func New(ctx context.Context, dbPath string) (*DB, error) {
	memory := dbPath == ":memory:"

	// Ensure directory exists (skip for in-memory database)
	if !memory {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if memory {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(4)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(config.DatabaseConnMaxLifetime)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := InitSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath, locks: NewUserLocks()}, nil
}

// dsn applies the pragmas to every pooled connection, not just the first one.
func dsn(path string) string {
	pragmas := []string{
		"journal_mode(WAL)",
		fmt.Sprintf("busy_timeout(%d)", config.DatabaseBusyTimeout.Milliseconds()),
		"foreign_keys(1)",
		"synchronous(NORMAL)",
	}
	var b strings.Builder
	b.WriteString("file:")
	b.WriteString(path)
	for i, p := range pragmas {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString("_pragma=")
		b.WriteString(p)
	}
	return b.String()
}

// NewTestDB creates an in-memory database for testing.
func NewTestDB(ctx context.Context) (*DB, error) {
	return New(ctx, ":memory:")
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Ping verifies the connection is alive. Used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Locks returns the per-user mutex set shared by every writer of this database.
func (db *DB) Locks() *UserLocks {
	return db.locks
}

// BackupTo writes a consistent copy of the database to dst.
func (db *DB) BackupTo(ctx context.Context, dst string) error {
	if _, err := db.conn.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	return nil
}

// logSlow warns about statements slower than the threshold.
func logSlow(ctx context.Context, op string, start time.Time, attrs ...any) {
	if d := time.Since(start); d > 100*time.Millisecond {
		args := append([]any{"operation", op, "duration_ms", d.Milliseconds()}, attrs...)
		slog.WarnContext(ctx, "slow database operation", args...)
	}
}
