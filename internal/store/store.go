// Package store provides frequency-record storage backends for ModalPipe.
//
// A frequency record says "this modal was already shown under this
// frequency policy". Records are keyed by (modal id, frequency kind) with
// at most one record per pair; writes overwrite. Two lifetime partitions
// exist: the session partition (in-memory, dies with the engine session)
// and the durable partition (SQLite, Postgres, or Redis).
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ModalPipe/internal/models"
)

// DefaultSweepMaxAge is how old a session-kind record may get before the
// startup sweep removes it, bounding storage growth.
const DefaultSweepMaxAge = 7 * 24 * time.Hour

// FrequencyStore is the storage contract shared by all backends.
type FrequencyStore interface {
	// Get returns the stored value for (modalID, kind), with ok=false when
	// no record exists.
	Get(modalID string, kind models.FrequencyKind) (value string, ok bool, err error)
	// Set writes or overwrites the record for (modalID, kind).
	Set(modalID string, kind models.FrequencyKind, value string) error
	// Clear removes all records for the modal id, across kinds.
	Clear(modalID string) error
	// SweepExpired removes session-kind records older than maxAge.
	SweepExpired(maxAge time.Duration) error
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration applied by Option functions.
type Opts struct {
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the database DSN (file path for SQLite, URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisAddr sets the Redis server address.
func WithRedisAddr(addr string) Option {
	return func(o *Opts) { o.RedisAddr = addr }
}

// WithRedisPassword sets the Redis password.
func WithRedisPassword(password string) Option {
	return func(o *Opts) { o.RedisPassword = password }
}

// WithRedisDB sets the Redis database number.
func WithRedisDB(db int) Option {
	return func(o *Opts) { o.RedisDB = db }
}

// WithKeyPrefix sets the key namespace prefix (Redis backend).
func WithKeyPrefix(prefix string) Option {
	return func(o *Opts) { o.KeyPrefix = prefix }
}

// memoryRecord is an in-memory frequency record with its write time for sweeps.
type memoryRecord struct {
	value     string
	writtenAt time.Time
}

// InMemoryStore holds frequency records in process memory. It backs the
// session partition: its lifetime is the engine session by definition.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[models.FrequencyKind]memoryRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("Creating InMemoryStore")
	return &InMemoryStore{
		records: make(map[string]map[models.FrequencyKind]memoryRecord),
	}
}

// Get returns the stored value for (modalID, kind).
func (s *InMemoryStore) Get(modalID string, kind models.FrequencyKind) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kinds, exists := s.records[modalID]
	if !exists {
		return "", false, nil
	}
	rec, exists := kinds[kind]
	if !exists {
		return "", false, nil
	}
	return rec.value, true, nil
}

// Set writes or overwrites the record for (modalID, kind).
func (s *InMemoryStore) Set(modalID string, kind models.FrequencyKind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds, exists := s.records[modalID]
	if !exists {
		kinds = make(map[models.FrequencyKind]memoryRecord)
		s.records[modalID] = kinds
	}
	kinds[kind] = memoryRecord{value: value, writtenAt: time.Now()}
	slog.Debug("InMemoryStore.Set succeeded", "modalID", modalID, "kind", kind)
	return nil
}

// Clear removes all records for the modal id.
func (s *InMemoryStore) Clear(modalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, modalID)
	slog.Debug("InMemoryStore.Clear succeeded", "modalID", modalID)
	return nil
}

// SweepExpired removes session-kind records older than maxAge.
func (s *InMemoryStore) SweepExpired(maxAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for modalID, kinds := range s.records {
		rec, exists := kinds[models.FrequencyOncePerSession]
		if exists && rec.writtenAt.Before(cutoff) {
			delete(kinds, models.FrequencyOncePerSession)
			removed++
		}
		if len(kinds) == 0 {
			delete(s.records, modalID)
		}
	}
	slog.Debug("InMemoryStore.SweepExpired succeeded", "removed", removed)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
