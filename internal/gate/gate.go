// Package gate implements the gating policy: whether a modal is allowed to
// display given device compatibility, frequency history, and the dev-mode
// override.
//
// The policy is consulted twice per modal: once at registration time (a
// rejected modal is never armed) and again at trigger-fire time, closing
// the gap where a long-delayed trigger fires after frequency conditions
// changed.
package gate

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/BTreeMap/ModalPipe/internal/models"
	"github.com/BTreeMap/ModalPipe/internal/store"
)

// DayLayout is the calendar-date format of once-per-day record values.
const DayLayout = "2006-01-02"

// Policy evaluates frequency gating against a frequency store. The clock is
// injectable so tests control calendar boundaries.
type Policy struct {
	store store.FrequencyStore
	now   func() time.Time
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithClock overrides the policy's time source.
func WithClock(now func() time.Time) PolicyOption {
	return func(p *Policy) { p.now = now }
}

// NewPolicy creates a gating policy over the given frequency store.
func NewPolicy(st store.FrequencyStore, opts ...PolicyOption) *Policy {
	p := &Policy{store: st, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DeviceAllowed reports whether the modal is enabled for the device class
// implied by the live viewport width. Widths at or below the breakpoint
// count as mobile. The dev-mode override takes precedence.
func DeviceAllowed(cfg models.ModalConfig, viewportWidth int, devMode bool) bool {
	if devMode {
		return true
	}
	if viewportWidth <= models.MobileBreakpointPx {
		return cfg.MobileEnabled
	}
	return cfg.DesktopEnabled
}

// CanShow reports whether the modal passes frequency gating right now.
// devMode overrides everything. Store errors fail open: gating must never
// block (or crash) the host page because a backend is down.
func (p *Policy) CanShow(cfg models.ModalConfig, devMode bool) bool {
	if devMode {
		slog.Debug("Policy.CanShow: dev mode override", "modalID", cfg.ID)
		return true
	}

	now := p.now()
	switch cfg.Frequency {
	case models.FrequencyAlways:
		return true

	case models.FrequencyOncePerSession:
		_, ok, err := p.store.Get(cfg.ID, cfg.Frequency)
		if err != nil {
			slog.Warn("Policy.CanShow: store unavailable, failing open", "modalID", cfg.ID, "error", err)
			return true
		}
		allowed := !ok
		slog.Debug("Policy.CanShow: session check", "modalID", cfg.ID, "allowed", allowed)
		return allowed

	case models.FrequencyOncePerDay:
		value, ok, err := p.store.Get(cfg.ID, cfg.Frequency)
		if err != nil {
			slog.Warn("Policy.CanShow: store unavailable, failing open", "modalID", cfg.ID, "error", err)
			return true
		}
		allowed := !ok || value != DayString(now)
		slog.Debug("Policy.CanShow: day check", "modalID", cfg.ID, "allowed", allowed)
		return allowed

	case models.FrequencyOncePerWeek:
		value, ok, err := p.store.Get(cfg.ID, cfg.Frequency)
		if err != nil {
			slog.Warn("Policy.CanShow: store unavailable, failing open", "modalID", cfg.ID, "error", err)
			return true
		}
		allowed := !ok || value != WeekString(now)
		slog.Debug("Policy.CanShow: week check", "modalID", cfg.ID, "allowed", allowed)
		return allowed

	default:
		slog.Warn("Policy.CanShow: unknown frequency kind, failing open", "modalID", cfg.ID, "frequency", cfg.Frequency)
		return true
	}
}

// RecordValue returns the value to persist for a successful show under the
// given kind: a raw timestamp for session records, a day string or week
// number for the durable kinds.
func (p *Policy) RecordValue(kind models.FrequencyKind) string {
	now := p.now()
	switch kind {
	case models.FrequencyOncePerDay:
		return DayString(now)
	case models.FrequencyOncePerWeek:
		return WeekString(now)
	default:
		return strconv.FormatInt(now.UnixMilli(), 10)
	}
}

// DayString returns the calendar-date string used for once-per-day records.
func DayString(t time.Time) string {
	return t.Format(DayLayout)
}

// WeekNumber returns the approximate week of year: week 1 begins Jan 1 and
// each week is a plain 7-day block. This is intentionally not ISO-8601;
// the simpler day-count semantics are part of the observable frequency
// behavior.
func WeekNumber(t time.Time) int {
	return (t.YearDay() + 6) / 7
}

// WeekString returns the week number as stored in once-per-week records.
func WeekString(t time.Time) string {
	return strconv.Itoa(WeekNumber(t))
}
