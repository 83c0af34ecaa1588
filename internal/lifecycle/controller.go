// Package lifecycle implements the per-modal visible/hidden state machine.
//
// The Controller is the sole writer of modal visibility state and of
// frequency records. Every operation on an unknown id is a silent no-op:
// commands may arrive from stale external references and must never throw
// back into the host page.
package lifecycle

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/ModalPipe/internal/gate"
	"github.com/BTreeMap/ModalPipe/internal/models"
	"github.com/BTreeMap/ModalPipe/internal/page"
	"github.com/BTreeMap/ModalPipe/internal/store"
	"github.com/BTreeMap/ModalPipe/internal/trigger"
	"github.com/google/uuid"
)

// FormSubmitCloseDelay is how long after an embedded form submission the
// modal closes, leaving room for the form's own feedback.
const FormSubmitCloseDelay = 500 * time.Millisecond

// retainedFormActions mark submission targets that display their own
// success state; the modal must not disappear mid-submission for these.
var retainedFormActions = []string{"contact", "newsletter"}

// ConfigSource resolves a modal id to its effective config. The returned
// DevMode field reflects the runtime override, not just the parsed markup.
type ConfigSource interface {
	Config(modalID string) (models.ModalConfig, bool)
}

// Controller owns the visible/hidden state machine for all registered modals.
type Controller struct {
	configs ConfigSource
	store   store.FrequencyStore
	policy  *gate.Policy
	host    page.Host
	timer   *trigger.SimpleTimer
	now     func() time.Time

	mu              sync.Mutex
	states          map[string]*models.ModalState
	autoCloseTimers map[string]string

	subMu       sync.RWMutex
	subscribers map[string]func(models.ModalEvent)

	unsubscribeDismissals []func()
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock overrides the controller's time source.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController creates a lifecycle controller. The store receives frequency
// records on successful shows; the policy computes their values.
func NewController(configs ConfigSource, st store.FrequencyStore, policy *gate.Policy, host page.Host, opts ...ControllerOption) *Controller {
	c := &Controller{
		configs:         configs,
		store:           st,
		policy:          policy,
		host:            host,
		timer:           trigger.NewSimpleTimer(),
		now:             time.Now,
		states:          make(map[string]*models.ModalState),
		autoCloseTimers: make(map[string]string),
		subscribers:     make(map[string]func(models.ModalEvent)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Track creates the hidden initial state for a newly registered modal.
func (c *Controller) Track(modalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.states[modalID]; !exists {
		c.states[modalID] = &models.ModalState{}
	}
}

// State returns a snapshot of the modal's state.
func (c *Controller) State(modalID string) (models.ModalState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, exists := c.states[modalID]
	if !exists {
		return models.ModalState{}, false
	}
	return *st, true
}

// VisibleIDs returns the ids of all currently visible modals.
func (c *Controller) VisibleIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, st := range c.states {
		if st.Visible {
			ids = append(ids, id)
		}
	}
	return ids
}

// Subscribe registers a lifecycle event handler and returns its
// unsubscribe function.
func (c *Controller) Subscribe(fn func(models.ModalEvent)) func() {
	id := uuid.NewString()
	c.subMu.Lock()
	c.subscribers[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) emit(kind models.EventKind, cfg models.ModalConfig) {
	ev := models.ModalEvent{Kind: kind, ModalID: cfg.ID, Config: cfg, At: c.now()}

	c.subMu.RLock()
	fns := make([]func(models.ModalEvent), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
	c.host.DispatchEvent(ev)
}

// Show transitions the modal to visible. No-op if the id is unknown or the
// modal is already visible. On success it records the show time, writes the
// frequency record (unless dev mode), locks page scroll, emits the shown
// event, and arms the auto-close timer when configured.
func (c *Controller) Show(modalID string) {
	cfg, known := c.configs.Config(modalID)
	if !known {
		slog.Debug("Controller.Show: unknown modal", "modalID", modalID)
		return
	}

	c.mu.Lock()
	st, tracked := c.states[modalID]
	if !tracked || st.Visible {
		c.mu.Unlock()
		slog.Debug("Controller.Show: no-op", "modalID", modalID, "tracked", tracked)
		return
	}
	st.Visible = true
	st.LastShownAt = c.now()
	anyOther := c.anyVisibleLocked(modalID)
	c.mu.Unlock()

	// Dev-mode modals never pollute frequency tracking.
	if !cfg.DevMode && cfg.Frequency != models.FrequencyAlways {
		value := c.policy.RecordValue(cfg.Frequency)
		if err := c.store.Set(modalID, cfg.Frequency, value); err != nil {
			slog.Warn("Controller.Show: frequency write swallowed", "modalID", modalID, "error", err)
		}
	}

	c.host.SetPanelVisible(modalID, true)
	if !anyOther {
		c.host.SetScrollLock(true)
	}
	slog.Info("Controller.Show: modal shown", "modalID", modalID, "devMode", cfg.DevMode)
	c.emit(models.EventShown, cfg)

	// Dev-mode modals are exempt so testers can inspect them indefinitely.
	if cfg.AutoCloseAfterSeconds > 0 && !cfg.DevMode {
		delay := time.Duration(cfg.AutoCloseAfterSeconds * float64(time.Second))
		timerID := c.timer.ScheduleAfter(delay, func() {
			slog.Debug("Controller: auto-close fired", "modalID", modalID)
			c.Close(modalID)
		})
		c.mu.Lock()
		c.autoCloseTimers[modalID] = timerID
		c.mu.Unlock()
	}
}

// Close transitions the modal to hidden. No-op if the id is unknown, the
// modal is already hidden, or dev mode is set (normal close is blocked in
// dev mode as a testing affordance).
func (c *Controller) Close(modalID string) {
	c.close(modalID, false)
}

// ForceClose is Close without the dev-mode block. It backs the explicit
// external force-close command only; internal paths always use Close.
func (c *Controller) ForceClose(modalID string) {
	c.close(modalID, true)
}

func (c *Controller) close(modalID string, force bool) {
	cfg, known := c.configs.Config(modalID)
	if !known {
		slog.Debug("Controller.close: unknown modal", "modalID", modalID)
		return
	}
	if cfg.DevMode && !force {
		slog.Debug("Controller.close: blocked by dev mode", "modalID", modalID)
		return
	}

	c.mu.Lock()
	st, tracked := c.states[modalID]
	if !tracked || !st.Visible {
		c.mu.Unlock()
		slog.Debug("Controller.close: no-op", "modalID", modalID, "tracked", tracked)
		return
	}
	st.Visible = false
	if timerID, armed := c.autoCloseTimers[modalID]; armed {
		c.timer.Cancel(timerID)
		delete(c.autoCloseTimers, modalID)
	}
	anyOther := c.anyVisibleLocked(modalID)
	c.mu.Unlock()

	c.host.SetPanelVisible(modalID, false)
	if !anyOther {
		c.host.SetScrollLock(false)
	}
	slog.Info("Controller.close: modal closed", "modalID", modalID, "forced", force)
	c.emit(models.EventClosed, cfg)
}

// anyVisibleLocked reports whether any modal other than the given id is
// visible. Caller holds c.mu.
func (c *Controller) anyVisibleLocked(exceptID string) bool {
	for id, st := range c.states {
		if id != exceptID && st.Visible {
			return true
		}
	}
	return false
}

// WireDismissals attaches the delegated dismissal handlers: close
// affordances, backdrop clicks, Escape, and embedded form submissions.
// All of them route through the ordinary Close, so dev mode blocks them.
func (c *Controller) WireDismissals(bus *page.Bus) {
	unsubClick := bus.SubscribeClick(func(ev *page.ClickEvent) {
		if ev.CloseControlFor != "" {
			c.Close(ev.CloseControlFor)
		}
		if ev.BackdropFor != "" {
			if cfg, known := c.configs.Config(ev.BackdropFor); known && cfg.CloseOnOutsideClick {
				c.Close(ev.BackdropFor)
			}
		}
	})

	unsubKey := bus.SubscribeKey(func(ev page.KeyEvent) {
		if ev.Key != page.KeyEscape {
			return
		}
		for _, id := range c.VisibleIDs() {
			c.Close(id)
		}
	})

	unsubSubmit := bus.SubscribeSubmit(func(ev page.SubmitEvent) {
		if isRetainedFormAction(ev.Action) {
			slog.Debug("Controller: form submission retained, not closing", "modalID", ev.ModalID, "action", ev.Action)
			return
		}
		modalID := ev.ModalID
		c.timer.ScheduleAfter(FormSubmitCloseDelay, func() {
			c.Close(modalID)
		})
	})

	c.unsubscribeDismissals = append(c.unsubscribeDismissals, unsubClick, unsubKey, unsubSubmit)
}

// Teardown detaches dismissal handlers and cancels pending timers.
func (c *Controller) Teardown() {
	for _, unsub := range c.unsubscribeDismissals {
		unsub()
	}
	c.unsubscribeDismissals = nil
	c.timer.Stop()
}

// isRetainedFormAction recognizes contact/newsletter endpoints, which are
// presumed to render their own success state inside the modal.
func isRetainedFormAction(action string) bool {
	lower := strings.ToLower(action)
	for _, marker := range retainedFormActions {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
