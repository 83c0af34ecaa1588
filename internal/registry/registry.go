// Package registry discovers candidate modals, owns the id-to-config map,
// and exposes the public command surface.
//
// Registration is a hard gate: a modal that fails validation, device
// compatibility, or frequency gating is never armed. Re-registering a
// known id is rejected, leaving the existing registration untouched; this
// is the documented contract, not an idempotent overwrite.
package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/BTreeMap/ModalPipe/internal/gate"
	"github.com/BTreeMap/ModalPipe/internal/lifecycle"
	"github.com/BTreeMap/ModalPipe/internal/models"
	"github.com/BTreeMap/ModalPipe/internal/page"
	"github.com/BTreeMap/ModalPipe/internal/store"
	"github.com/BTreeMap/ModalPipe/internal/trigger"
)

// Gating rejections are normal, loggable-only outcomes, but Register
// reports them so callers can tell a skip from a success.
var (
	ErrDeviceIncompatible = errors.New("modal is not enabled for this device")
	ErrFrequencyBlocked   = errors.New("modal is blocked by frequency gating")
)

// entry pairs an immutable config with its runtime registration state.
type entry struct {
	config      models.ModalConfig
	devOverride *bool
	handle      trigger.Handle
}

// Registry is the engine facade. All id-keyed commands are silent no-ops
// on unknown ids.
type Registry struct {
	host       page.Host
	bus        *page.Bus
	store      store.FrequencyStore
	policy     *gate.Policy
	engine     *trigger.Engine
	controller *lifecycle.Controller

	mu      sync.RWMutex
	entries map[string]*entry
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	controllerOpts []lifecycle.ControllerOption
}

// WithControllerOptions forwards options to the lifecycle controller.
func WithControllerOptions(opts ...lifecycle.ControllerOption) Option {
	return func(o *options) { o.controllerOpts = append(o.controllerOpts, opts...) }
}

// New wires a registry with its trigger engine and lifecycle controller
// and attaches the delegated dismissal handlers.
func New(host page.Host, bus *page.Bus, st store.FrequencyStore, policy *gate.Policy, opts ...Option) *Registry {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		host:    host,
		bus:     bus,
		store:   st,
		policy:  policy,
		entries: make(map[string]*entry),
	}
	r.engine = trigger.NewEngine(bus, host)
	r.controller = lifecycle.NewController(r, st, policy, host, o.controllerOpts...)
	r.controller.WireDismissals(bus)
	return r
}

// Config resolves a modal id to its effective config: the immutable parsed
// config with DevMode replaced by the runtime override when one is set.
// It implements lifecycle.ConfigSource.
func (r *Registry) Config(modalID string) (models.ModalConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.entries[modalID]
	if !exists {
		return models.ModalConfig{}, false
	}
	cfg := e.config
	if e.devOverride != nil {
		cfg.DevMode = *e.devOverride
	}
	return cfg, true
}

// Discover scans the host page once for candidate modals and attempts to
// register each. Configuration defects and gating rejections affect only
// the modal in question. Returns the number of modals registered.
func (r *Registry) Discover() int {
	registered := 0
	for _, markup := range r.host.DiscoverModals() {
		cfg := models.ParseConfig(markup.Attributes)
		if err := r.Register(cfg); err != nil {
			switch {
			case errors.Is(err, ErrDeviceIncompatible), errors.Is(err, ErrFrequencyBlocked):
				slog.Debug("Registry.Discover: modal skipped by gating", "modalID", cfg.ID, "reason", err)
			default:
				slog.Warn("Registry.Discover: modal not registered", "modalID", cfg.ID, "error", err)
			}
			continue
		}
		registered++
	}
	slog.Info("Registry.Discover completed", "registered", registered)
	return registered
}

// Register validates and gates the config, then arms its trigger. Ordering
// is fixed: validation, duplicate check, device check, frequency check,
// state tracking, arming. A nil error means the modal is live.
func (r *Registry) Register(cfg models.ModalConfig) error {
	if err := cfg.Validate(); err != nil {
		slog.Warn("Registry.Register: invalid config", "modalID", cfg.ID, "error", err)
		return err
	}

	r.mu.Lock()
	if _, exists := r.entries[cfg.ID]; exists {
		r.mu.Unlock()
		slog.Debug("Registry.Register: duplicate id rejected", "modalID", cfg.ID)
		return models.ErrAlreadyRegistered
	}
	r.mu.Unlock()

	if !gate.DeviceAllowed(cfg, r.host.ViewportWidth(), cfg.DevMode) {
		slog.Debug("Registry.Register: device incompatible", "modalID", cfg.ID, "viewportWidth", r.host.ViewportWidth())
		return ErrDeviceIncompatible
	}
	if !r.policy.CanShow(cfg, cfg.DevMode) {
		slog.Debug("Registry.Register: frequency blocked", "modalID", cfg.ID, "frequency", cfg.Frequency)
		return ErrFrequencyBlocked
	}

	e := &entry{config: cfg}
	r.mu.Lock()
	// Re-check under the lock: a concurrent Register for the same id may
	// have won the race while gating ran.
	if _, exists := r.entries[cfg.ID]; exists {
		r.mu.Unlock()
		slog.Debug("Registry.Register: duplicate id rejected", "modalID", cfg.ID)
		return models.ErrAlreadyRegistered
	}
	r.entries[cfg.ID] = e
	r.mu.Unlock()
	r.controller.Track(cfg.ID)

	modalID := cfg.ID
	handle, err := r.engine.Arm(cfg, func() { r.TryShow(modalID) })
	if err != nil {
		r.mu.Lock()
		delete(r.entries, cfg.ID)
		r.mu.Unlock()
		slog.Warn("Registry.Register: arming failed", "modalID", cfg.ID, "error", err)
		return err
	}
	r.mu.Lock()
	e.handle = handle
	r.mu.Unlock()

	slog.Info("Registry.Register: modal registered", "modalID", cfg.ID, "triggerType", cfg.TriggerType, "frequency", cfg.Frequency)
	return nil
}

// TryShow is the shared fire path: it re-runs frequency gating before
// delegating to the lifecycle controller, closing the window where a
// long-delayed trigger fires after conditions changed.
func (r *Registry) TryShow(modalID string) {
	cfg, known := r.Config(modalID)
	if !known {
		slog.Debug("Registry.TryShow: unknown modal", "modalID", modalID)
		return
	}
	if !r.policy.CanShow(cfg, cfg.DevMode) {
		slog.Debug("Registry.TryShow: aborted by fire-time gating", "modalID", modalID)
		return
	}
	r.controller.Show(modalID)
}

// Show is the external show command; it is also the only fire path for
// manual triggers.
func (r *Registry) Show(modalID string) {
	r.TryShow(modalID)
}

// Hide closes the modal through the ordinary close path (blocked in dev mode).
func (r *Registry) Hide(modalID string) {
	r.controller.Close(modalID)
}

// HideAll closes every currently visible modal.
func (r *Registry) HideAll() {
	for _, id := range r.controller.VisibleIDs() {
		r.controller.Close(id)
	}
}

// ForceClose closes the modal bypassing the dev-mode block.
func (r *Registry) ForceClose(modalID string) {
	r.controller.ForceClose(modalID)
}

// ResetFrequency clears all frequency records for the modal id.
func (r *Registry) ResetFrequency(modalID string) {
	if _, known := r.Config(modalID); !known {
		slog.Debug("Registry.ResetFrequency: unknown modal", "modalID", modalID)
		return
	}
	if err := r.store.Clear(modalID); err != nil {
		slog.Warn("Registry.ResetFrequency: clear swallowed", "modalID", modalID, "error", err)
	}
}

// Status returns a snapshot for the modal id. Unknown ids yield a snapshot
// with IsRegistered false rather than an error.
func (r *Registry) Status(modalID string) models.ModalStatus {
	cfg, known := r.Config(modalID)
	if !known {
		return models.ModalStatus{ModalID: modalID}
	}
	status := models.ModalStatus{
		ModalID:      modalID,
		IsRegistered: true,
		DevMode:      cfg.DevMode,
		TriggerType:  cfg.TriggerType,
		Frequency:    cfg.Frequency,
		CanShow:      r.policy.CanShow(cfg, cfg.DevMode),
	}
	if st, tracked := r.controller.State(modalID); tracked {
		status.Visible = st.Visible
		status.LastShownAt = st.LastShownAt
	}
	return status
}

// ListModals returns the ids of all registered modals, sorted.
func (r *Registry) ListModals() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// EnableDevMode flips the runtime dev-mode override on, synchronizing the
// persisted marker on the backing element.
func (r *Registry) EnableDevMode(modalID string) {
	r.setDevMode(modalID, true)
}

// DisableDevMode flips the runtime dev-mode override off.
func (r *Registry) DisableDevMode(modalID string) {
	r.setDevMode(modalID, false)
}

func (r *Registry) setDevMode(modalID string, enabled bool) {
	r.mu.Lock()
	e, exists := r.entries[modalID]
	if !exists {
		r.mu.Unlock()
		slog.Debug("Registry.setDevMode: unknown modal", "modalID", modalID)
		return
	}
	e.devOverride = &enabled
	r.mu.Unlock()

	r.host.SetDevModeMarker(modalID, enabled)
	slog.Info("Registry.setDevMode: dev mode override changed", "modalID", modalID, "enabled", enabled)
}

// Subscribe registers a lifecycle event handler and returns its
// unsubscribe function.
func (r *Registry) Subscribe(fn func(models.ModalEvent)) func() {
	return r.controller.Subscribe(fn)
}

// Teardown disarms every armed trigger, detaches dismissal handlers, and
// cancels pending timers. Intended for single-page-app navigation.
func (r *Registry) Teardown() {
	r.mu.Lock()
	handles := make([]trigger.Handle, 0, len(r.entries))
	for _, e := range r.entries {
		if e.handle != nil {
			handles = append(handles, e.handle)
		}
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Disarm()
	}
	r.controller.Teardown()
	r.engine.Stop()
	slog.Info("Registry.Teardown completed", "disarmed", len(handles))
}
