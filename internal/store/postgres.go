// Package store provides frequency-record storage backends for ModalPipe.
//
// This file implements the PostgreSQL-backed durable partition.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/ModalPipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is the PostgreSQL-backed durable frequency store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// Get returns the stored value for (modalID, kind).
func (s *PostgresStore) Get(modalID string, kind models.FrequencyKind) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM frequency_records WHERE modal_id = $1 AND kind = $2`,
		modalID, string(kind),
	).Scan(&value)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.Get: no record", "modalID", modalID, "kind", kind)
		return "", false, nil
	}
	if err != nil {
		slog.Error("PostgresStore.Get failed", "error", err, "modalID", modalID, "kind", kind)
		return "", false, fmt.Errorf("failed to query frequency record for %s/%s: %w", modalID, kind, err)
	}
	slog.Debug("PostgresStore.Get found", "modalID", modalID, "kind", kind)
	return value, true, nil
}

// Set writes or overwrites the record for (modalID, kind).
func (s *PostgresStore) Set(modalID string, kind models.FrequencyKind, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO frequency_records (modal_id, kind, value, written_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (modal_id, kind) DO UPDATE SET value = EXCLUDED.value, written_at = EXCLUDED.written_at`,
		modalID, string(kind), value, time.Now(),
	)
	if err != nil {
		slog.Error("PostgresStore.Set failed", "error", err, "modalID", modalID, "kind", kind)
		return fmt.Errorf("failed to upsert frequency record for %s/%s: %w", modalID, kind, err)
	}
	slog.Debug("PostgresStore.Set succeeded", "modalID", modalID, "kind", kind)
	return nil
}

// Clear removes all records for the modal id, across kinds.
func (s *PostgresStore) Clear(modalID string) error {
	_, err := s.db.Exec(`DELETE FROM frequency_records WHERE modal_id = $1`, modalID)
	if err != nil {
		slog.Error("PostgresStore.Clear failed", "error", err, "modalID", modalID)
		return fmt.Errorf("failed to clear frequency records for %s: %w", modalID, err)
	}
	slog.Debug("PostgresStore.Clear succeeded", "modalID", modalID)
	return nil
}

// SweepExpired removes session-kind records older than maxAge.
func (s *PostgresStore) SweepExpired(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	res, err := s.db.Exec(
		`DELETE FROM frequency_records WHERE kind = $1 AND written_at < $2`,
		string(models.FrequencyOncePerSession), cutoff,
	)
	if err != nil {
		slog.Error("PostgresStore.SweepExpired failed", "error", err)
		return fmt.Errorf("failed to sweep expired frequency records: %w", err)
	}
	removed, _ := res.RowsAffected()
	slog.Debug("PostgresStore.SweepExpired succeeded", "removed", removed)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
