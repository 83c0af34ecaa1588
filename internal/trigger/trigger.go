// Package trigger arms one trigger strategy per modal and guarantees each
// strategy produces at most one fire (click-selector excepted: it stays
// attached and relies on fire-time gating to block repeats).
//
// Arming returns a Handle whose Disarm cancels an armed-but-unfired
// trigger, including a pending extra-delay timer, so a single-page-app
// host can tear the engine down cleanly.
package trigger

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ModalPipe/internal/models"
	"github.com/BTreeMap/ModalPipe/internal/page"
)

// ExitIntentTopEdgePx is how close to the top edge the pointer must be when
// it leaves the document for the move to count as exit intent.
const ExitIntentTopEdgePx = 10

// Handle is an armed trigger. Disarm cancels it if it has not fired yet;
// disarming twice, or after the fire, is a harmless no-op.
type Handle interface {
	Disarm()
}

// Engine arms trigger strategies against the page event bus.
type Engine struct {
	bus   *page.Bus
	host  page.Host
	timer *SimpleTimer
}

// NewEngine creates a trigger engine over the given bus and host.
func NewEngine(bus *page.Bus, host page.Host) *Engine {
	slog.Debug("Creating trigger Engine")
	return &Engine{bus: bus, host: host, timer: NewSimpleTimer()}
}

// Stop cancels every pending timer owned by the engine.
func (e *Engine) Stop() {
	e.timer.Stop()
}

// armedTrigger is the shared Handle implementation for all strategies.
type armedTrigger struct {
	modalID string
	timer   *SimpleTimer

	mu          sync.Mutex
	disarmed    bool
	fired       bool
	timerID     string
	unsubscribe func()
}

// Disarm cancels the pending timer and detaches the event subscription.
func (a *armedTrigger) Disarm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disarmed {
		return
	}
	a.disarmed = true
	if a.timerID != "" {
		a.timer.Cancel(a.timerID)
		a.timerID = ""
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	slog.Debug("armedTrigger.Disarm", "modalID", a.modalID)
}

// scheduleFire runs fire after the extra delay, remembering the timer id so
// Disarm can still cancel during the delay window.
func (a *armedTrigger) scheduleFire(extraDelay time.Duration, fire func()) {
	a.mu.Lock()
	if a.disarmed {
		a.mu.Unlock()
		return
	}
	var id string
	id = a.timer.ScheduleAfter(extraDelay, func() {
		a.mu.Lock()
		stale := a.disarmed
		if a.timerID == id {
			a.timerID = ""
		}
		a.mu.Unlock()
		if !stale {
			fire()
		}
	})
	a.timerID = id
	a.mu.Unlock()
}

// fireOnce transitions armed -> fired, detaching the subscription. It
// returns false when the trigger already fired or was disarmed.
func (a *armedTrigger) fireOnce() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fired || a.disarmed {
		return false
	}
	a.fired = true
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	return true
}

// Arm attaches the strategy selected by the config's trigger type. The fire
// callback is the shared tryShow path; it runs on a timer goroutine after
// the configured extra delay.
func (e *Engine) Arm(cfg models.ModalConfig, fire func()) (Handle, error) {
	extraDelay := time.Duration(cfg.ExtraDelaySeconds * float64(time.Second))
	a := &armedTrigger{modalID: cfg.ID, timer: e.timer}

	switch cfg.TriggerType {
	case models.TriggerImmediate:
		a.scheduleFire(extraDelay, fire)

	case models.TriggerTimedDelay:
		delay := time.Duration(cfg.TriggerDelaySeconds()*float64(time.Second)) + extraDelay
		a.scheduleFire(delay, fire)

	case models.TriggerScrollThreshold:
		threshold := cfg.ScrollThresholdPercent()
		a.unsubscribe = e.bus.SubscribeScroll(func(ev page.ScrollEvent) {
			if ev.PercentScrolled() < threshold {
				return
			}
			if !a.fireOnce() {
				return
			}
			slog.Debug("Engine: scroll threshold reached", "modalID", cfg.ID, "threshold", threshold)
			a.scheduleFire(extraDelay, fire)
		})

	case models.TriggerClickSelector:
		selector := cfg.TriggerValue
		// Stays attached after firing; repeat clicks are blocked by
		// fire-time gating, not by the trigger.
		a.unsubscribe = e.bus.SubscribeClick(func(ev *page.ClickEvent) {
			if !ev.Matches(selector) {
				return
			}
			ev.PreventDefault()
			slog.Debug("Engine: click selector matched", "modalID", cfg.ID, "selector", selector)
			a.scheduleFire(extraDelay, fire)
		})

	case models.TriggerExitIntent:
		if e.host.ViewportWidth() <= models.MobileBreakpointPx {
			slog.Debug("Engine: exit-intent not armed on mobile viewport", "modalID", cfg.ID)
			return a, nil
		}
		a.unsubscribe = e.bus.SubscribePointerLeave(func(ev page.PointerLeaveEvent) {
			if ev.HasRelatedTarget || ev.Y > ExitIntentTopEdgePx {
				return
			}
			if !a.fireOnce() {
				return
			}
			slog.Debug("Engine: exit intent detected", "modalID", cfg.ID, "y", ev.Y)
			a.scheduleFire(extraDelay, fire)
		})

	case models.TriggerManual:
		// Never self-arms; the facade's show command is the only fire path.

	default:
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidTriggerType, cfg.TriggerType)
	}

	slog.Debug("Engine.Arm succeeded", "modalID", cfg.ID, "triggerType", cfg.TriggerType)
	return a, nil
}
