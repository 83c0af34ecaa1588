// Package store provides frequency-record storage backends for ModalPipe.
//
// This file implements the SQLite-backed durable partition.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/ModalPipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is the SQLite-backed durable frequency store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// Get returns the stored value for (modalID, kind).
func (s *SQLiteStore) Get(modalID string, kind models.FrequencyKind) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM frequency_records WHERE modal_id = ? AND kind = ?`,
		modalID, string(kind),
	).Scan(&value)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.Get: no record", "modalID", modalID, "kind", kind)
		return "", false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.Get failed", "error", err, "modalID", modalID, "kind", kind)
		return "", false, fmt.Errorf("failed to query frequency record for %s/%s: %w", modalID, kind, err)
	}
	slog.Debug("SQLiteStore.Get found", "modalID", modalID, "kind", kind)
	return value, true, nil
}

// Set writes or overwrites the record for (modalID, kind).
func (s *SQLiteStore) Set(modalID string, kind models.FrequencyKind, value string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO frequency_records (modal_id, kind, value, written_at) VALUES (?, ?, ?, ?)`,
		modalID, string(kind), value, time.Now(),
	)
	if err != nil {
		slog.Error("SQLiteStore.Set failed", "error", err, "modalID", modalID, "kind", kind)
		return fmt.Errorf("failed to upsert frequency record for %s/%s: %w", modalID, kind, err)
	}
	slog.Debug("SQLiteStore.Set succeeded", "modalID", modalID, "kind", kind)
	return nil
}

// Clear removes all records for the modal id, across kinds.
func (s *SQLiteStore) Clear(modalID string) error {
	_, err := s.db.Exec(`DELETE FROM frequency_records WHERE modal_id = ?`, modalID)
	if err != nil {
		slog.Error("SQLiteStore.Clear failed", "error", err, "modalID", modalID)
		return fmt.Errorf("failed to clear frequency records for %s: %w", modalID, err)
	}
	slog.Debug("SQLiteStore.Clear succeeded", "modalID", modalID)
	return nil
}

// SweepExpired removes session-kind records older than maxAge.
func (s *SQLiteStore) SweepExpired(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	res, err := s.db.Exec(
		`DELETE FROM frequency_records WHERE kind = ? AND written_at < ?`,
		string(models.FrequencyOncePerSession), cutoff,
	)
	if err != nil {
		slog.Error("SQLiteStore.SweepExpired failed", "error", err)
		return fmt.Errorf("failed to sweep expired frequency records: %w", err)
	}
	removed, _ := res.RowsAffected()
	slog.Debug("SQLiteStore.SweepExpired succeeded", "removed", removed)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
