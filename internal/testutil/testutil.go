// Package testutil provides common test utilities and helpers for ModalPipe tests.
package testutil

import (
	"sync"
	"time"

	"github.com/BTreeMap/ModalPipe/internal/gate"
	"github.com/BTreeMap/ModalPipe/internal/lifecycle"
	"github.com/BTreeMap/ModalPipe/internal/page"
	"github.com/BTreeMap/ModalPipe/internal/registry"
	"github.com/BTreeMap/ModalPipe/internal/store"
)

// DesktopWidth and MobileWidth are convenient viewport widths on either
// side of the device breakpoint.
const (
	DesktopWidth = 1280
	MobileWidth  = 390
)

// ManualClock is a settable time source for deterministic calendar tests.
type ManualClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewManualClock creates a clock frozen at the given time.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{t: t}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Fixture bundles a fully wired in-memory engine for tests.
type Fixture struct {
	Host     *page.HeadlessHost
	Bus      *page.Bus
	Store    store.FrequencyStore
	Policy   *gate.Policy
	Registry *registry.Registry
	Clock    *ManualClock
}

// NewFixture wires an engine over in-memory stores and a fake host page
// with the given viewport width. The manual clock drives both gating and
// lifecycle timestamps.
func NewFixture(viewportWidth int) *Fixture {
	return NewFixtureWithMarkup(viewportWidth, nil)
}

// NewFixtureWithMarkup is NewFixture with discoverable modal markup on the
// fake host page.
func NewFixtureWithMarkup(viewportWidth int, markup []page.Markup) *Fixture {
	clock := NewManualClock(time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC))
	host := page.NewHeadlessHost(viewportWidth, markup)
	bus := page.NewBus()
	scoped := store.NewScopedStore(store.NewInMemoryStore(), store.NewInMemoryStore())
	policy := gate.NewPolicy(scoped, gate.WithClock(clock.Now))
	reg := registry.New(host, bus, scoped, policy,
		registry.WithControllerOptions(lifecycle.WithClock(clock.Now)))
	return &Fixture{
		Host:     host,
		Bus:      bus,
		Store:    scoped,
		Policy:   policy,
		Registry: reg,
		Clock:    clock,
	}
}
