package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/ModalPipe/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(WithDSN(filepath.Join(t.TempDir(), "modalpipe.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreSetGetClear(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, ok, err := s.Get("welcome", models.FrequencyOncePerDay)
	if err != nil {
		t.Fatalf("Get on empty store failed: %v", err)
	}
	if ok {
		t.Fatal("expected no record in empty store")
	}

	if err := s.Set("welcome", models.FrequencyOncePerDay, "2026-03-04"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("welcome", models.FrequencyOncePerDay, "2026-03-05"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	value, ok, err := s.Get("welcome", models.FrequencyOncePerDay)
	if err != nil || !ok || value != "2026-03-05" {
		t.Fatalf("Get = (%q, %v, %v), want (2026-03-05, true, nil)", value, ok, err)
	}

	s.Set("welcome", models.FrequencyOncePerWeek, "10")
	if err := s.Clear("welcome"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok, _ := s.Get("welcome", models.FrequencyOncePerDay); ok {
		t.Error("day record survived Clear")
	}
	if _, ok, _ := s.Get("welcome", models.FrequencyOncePerWeek); ok {
		t.Error("week record survived Clear")
	}
}

func TestSQLiteStoreSweepExpired(t *testing.T) {
	s := newTestSQLiteStore(t)

	// Backdate a session record; Set always stamps time.Now.
	stale := time.Now().Add(-48 * time.Hour)
	if _, err := s.db.Exec(
		`INSERT INTO frequency_records (modal_id, kind, value, written_at) VALUES (?, ?, ?, ?)`,
		"stale", string(models.FrequencyOncePerSession), "1", stale,
	); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO frequency_records (modal_id, kind, value, written_at) VALUES (?, ?, ?, ?)`,
		"stale", string(models.FrequencyOncePerDay), "2026-03-02", stale,
	); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}
	if err := s.Set("fresh", models.FrequencyOncePerSession, "2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := s.SweepExpired(24 * time.Hour); err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if _, ok, _ := s.Get("stale", models.FrequencyOncePerSession); ok {
		t.Error("stale session record survived sweep")
	}
	if _, ok, _ := s.Get("stale", models.FrequencyOncePerDay); !ok {
		t.Error("day record removed by sweep")
	}
	if _, ok, _ := s.Get("fresh", models.FrequencyOncePerSession); !ok {
		t.Error("fresh session record removed by sweep")
	}
}
