package gate

import (
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/ModalPipe/internal/models"
	"github.com/BTreeMap/ModalPipe/internal/store"
)

var testNow = time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

func newTestPolicy(st store.FrequencyStore, at time.Time) *Policy {
	return NewPolicy(st, WithClock(func() time.Time { return at }))
}

func sessionConfig(id string) models.ModalConfig {
	return models.ModalConfig{
		ID:             id,
		TriggerType:    models.TriggerManual,
		Frequency:      models.FrequencyOncePerSession,
		MobileEnabled:  true,
		DesktopEnabled: true,
	}
}

func TestCanShowAlways(t *testing.T) {
	st := store.NewInMemoryStore()
	p := newTestPolicy(st, testNow)

	cfg := sessionConfig("banner")
	cfg.Frequency = models.FrequencyAlways
	st.Set("banner", models.FrequencyAlways, "whatever")

	if !p.CanShow(cfg, false) {
		t.Error("always-frequency modal should never be blocked")
	}
}

func TestCanShowOncePerSession(t *testing.T) {
	st := store.NewInMemoryStore()
	p := newTestPolicy(st, testNow)
	cfg := sessionConfig("welcome")

	if !p.CanShow(cfg, false) {
		t.Error("should allow with no record")
	}
	st.Set("welcome", models.FrequencyOncePerSession, p.RecordValue(cfg.Frequency))
	if p.CanShow(cfg, false) {
		t.Error("should block once a session record exists")
	}
}

func TestCanShowOncePerDay(t *testing.T) {
	st := store.NewInMemoryStore()
	cfg := sessionConfig("promo")
	cfg.Frequency = models.FrequencyOncePerDay

	st.Set("promo", models.FrequencyOncePerDay, DayString(testNow))

	if newTestPolicy(st, testNow).CanShow(cfg, false) {
		t.Error("should block on the same calendar day")
	}
	if !newTestPolicy(st, testNow.Add(24*time.Hour)).CanShow(cfg, false) {
		t.Error("should allow on the next calendar day")
	}
}

func TestCanShowOncePerWeek(t *testing.T) {
	st := store.NewInMemoryStore()
	cfg := sessionConfig("survey")
	cfg.Frequency = models.FrequencyOncePerWeek

	st.Set("survey", models.FrequencyOncePerWeek, WeekString(testNow))

	if newTestPolicy(st, testNow).CanShow(cfg, false) {
		t.Error("should block within the same week")
	}
	if !newTestPolicy(st, testNow.Add(7*24*time.Hour)).CanShow(cfg, false) {
		t.Error("should allow in the next week")
	}
}

func TestCanShowDevModeOverridesRecords(t *testing.T) {
	st := store.NewInMemoryStore()
	p := newTestPolicy(st, testNow)
	cfg := sessionConfig("welcome")
	st.Set("welcome", models.FrequencyOncePerSession, "1")

	if !p.CanShow(cfg, true) {
		t.Error("dev mode should override frequency gating")
	}
}

// failingStore simulates an unavailable backend.
type failingStore struct{}

func (failingStore) Get(string, models.FrequencyKind) (string, bool, error) {
	return "", false, errors.New("backend down")
}
func (failingStore) Set(string, models.FrequencyKind, string) error { return errors.New("backend down") }
func (failingStore) Clear(string) error                             { return errors.New("backend down") }
func (failingStore) SweepExpired(time.Duration) error               { return errors.New("backend down") }
func (failingStore) Close() error                                   { return nil }

func TestCanShowFailsOpenOnStoreErrors(t *testing.T) {
	p := newTestPolicy(failingStore{}, testNow)

	for _, freq := range []models.FrequencyKind{
		models.FrequencyOncePerSession,
		models.FrequencyOncePerDay,
		models.FrequencyOncePerWeek,
	} {
		cfg := sessionConfig("welcome")
		cfg.Frequency = freq
		if !p.CanShow(cfg, false) {
			t.Errorf("frequency %s: gating should fail open when the store errors", freq)
		}
	}
}

func TestDeviceAllowed(t *testing.T) {
	cfg := models.ModalConfig{MobileEnabled: false, DesktopEnabled: true}

	// The breakpoint itself counts as mobile.
	if DeviceAllowed(cfg, models.MobileBreakpointPx, false) {
		t.Error("width at breakpoint should use the mobile flag")
	}
	if !DeviceAllowed(cfg, models.MobileBreakpointPx+1, false) {
		t.Error("width above breakpoint should use the desktop flag")
	}
	if !DeviceAllowed(cfg, models.MobileBreakpointPx, true) {
		t.Error("dev mode should override the device check")
	}

	cfg = models.ModalConfig{MobileEnabled: true, DesktopEnabled: false}
	if !DeviceAllowed(cfg, 390, false) {
		t.Error("mobile-enabled modal should be allowed on a narrow viewport")
	}
	if DeviceAllowed(cfg, 1280, false) {
		t.Error("desktop-disabled modal should be rejected on a wide viewport")
	}
}

func TestRecordValue(t *testing.T) {
	p := newTestPolicy(store.NewInMemoryStore(), testNow)

	if got := p.RecordValue(models.FrequencyOncePerDay); got != "2026-03-04" {
		t.Errorf("day record value = %q, want 2026-03-04", got)
	}
	if got := p.RecordValue(models.FrequencyOncePerWeek); got != WeekString(testNow) {
		t.Errorf("week record value = %q, want %q", got, WeekString(testNow))
	}
	// Session records carry the show timestamp in milliseconds.
	if got := p.RecordValue(models.FrequencyOncePerSession); got != "1772625600000" {
		t.Errorf("session record value = %q, want 1772625600000", got)
	}
}

func TestWeekNumber(t *testing.T) {
	tests := []struct {
		date time.Time
		want int
	}{
		{time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2026, time.January, 7, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2026, time.January, 8, 0, 0, 0, 0, time.UTC), 2},
		{time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), 53},
	}
	for _, tt := range tests {
		if got := WeekNumber(tt.date); got != tt.want {
			t.Errorf("WeekNumber(%s) = %d, want %d", tt.date.Format(DayLayout), got, tt.want)
		}
	}
}
