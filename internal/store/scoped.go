package store

import (
	"log/slog"
	"time"

	"github.com/BTreeMap/ModalPipe/internal/models"
)

// ScopedStore routes frequency records to their lifetime partition:
// once-per-session records go to the session partition, once-per-day and
// once-per-week records to the durable partition. It satisfies
// FrequencyStore itself so gating and lifecycle code never care about
// partitioning.
type ScopedStore struct {
	session FrequencyStore
	durable FrequencyStore
}

// NewScopedStore pairs a session partition with a durable partition.
func NewScopedStore(session, durable FrequencyStore) *ScopedStore {
	return &ScopedStore{session: session, durable: durable}
}

// partition returns the backend that owns records of the given kind.
func (s *ScopedStore) partition(kind models.FrequencyKind) FrequencyStore {
	if kind == models.FrequencyOncePerDay || kind == models.FrequencyOncePerWeek {
		return s.durable
	}
	return s.session
}

// Get returns the stored value for (modalID, kind) from the owning partition.
func (s *ScopedStore) Get(modalID string, kind models.FrequencyKind) (string, bool, error) {
	return s.partition(kind).Get(modalID, kind)
}

// Set writes the record to the owning partition.
func (s *ScopedStore) Set(modalID string, kind models.FrequencyKind, value string) error {
	return s.partition(kind).Set(modalID, kind, value)
}

// Clear removes all records for the modal id from both partitions.
func (s *ScopedStore) Clear(modalID string) error {
	sessErr := s.session.Clear(modalID)
	durErr := s.durable.Clear(modalID)
	if sessErr != nil {
		return sessErr
	}
	return durErr
}

// SweepExpired sweeps both partitions.
func (s *ScopedStore) SweepExpired(maxAge time.Duration) error {
	sessErr := s.session.SweepExpired(maxAge)
	durErr := s.durable.SweepExpired(maxAge)
	if sessErr != nil {
		slog.Warn("ScopedStore.SweepExpired: session partition sweep failed", "error", sessErr)
		return sessErr
	}
	if durErr != nil {
		slog.Warn("ScopedStore.SweepExpired: durable partition sweep failed", "error", durErr)
	}
	return durErr
}

// Close closes both partitions, returning the first error encountered.
func (s *ScopedStore) Close() error {
	sessErr := s.session.Close()
	durErr := s.durable.Close()
	if sessErr != nil {
		return sessErr
	}
	return durErr
}
