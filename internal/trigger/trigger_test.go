package trigger

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BTreeMap/ModalPipe/internal/models"
	"github.com/BTreeMap/ModalPipe/internal/page"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestEngine(viewportWidth int) (*Engine, *page.Bus) {
	bus := page.NewBus()
	host := page.NewHeadlessHost(viewportWidth, nil)
	return NewEngine(bus, host), bus
}

func baseConfig(id string, tt models.TriggerType, value string) models.ModalConfig {
	return models.ModalConfig{
		ID:             id,
		TriggerType:    tt,
		TriggerValue:   value,
		Frequency:      models.FrequencyAlways,
		MobileEnabled:  true,
		DesktopEnabled: true,
	}
}

func TestArmImmediateFires(t *testing.T) {
	e, _ := newTestEngine(1280)
	defer e.Stop()

	var fired atomic.Int32
	_, err := e.Arm(baseConfig("welcome", models.TriggerImmediate, ""), func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	waitFor(t, func() bool { return fired.Load() == 1 }, "immediate trigger never fired")
}

func TestArmTimedDelayFiresAfterDelay(t *testing.T) {
	e, _ := newTestEngine(1280)
	defer e.Stop()

	var fired atomic.Int32
	_, err := e.Arm(baseConfig("welcome", models.TriggerTimedDelay, "0.02"), func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	waitFor(t, func() bool { return fired.Load() == 1 }, "timed trigger never fired")

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("timed trigger fired %d times, want 1", fired.Load())
	}
}

func TestDisarmCancelsPendingTimer(t *testing.T) {
	e, _ := newTestEngine(1280)
	defer e.Stop()

	var fired atomic.Int32
	h, err := e.Arm(baseConfig("welcome", models.TriggerTimedDelay, "0.02"), func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	h.Disarm()
	h.Disarm() // second disarm is a no-op

	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("disarmed trigger still fired")
	}
}

func TestScrollThresholdFiresOnce(t *testing.T) {
	e, bus := newTestEngine(1280)
	defer e.Stop()

	var fired atomic.Int32
	_, err := e.Arm(baseConfig("promo", models.TriggerScrollThreshold, "50"), func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	bus.PublishScroll(page.ScrollEvent{Position: 100, ScrollableHeight: 1000})
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("fired below the threshold")
	}

	bus.PublishScroll(page.ScrollEvent{Position: 600, ScrollableHeight: 1000})
	waitFor(t, func() bool { return fired.Load() == 1 }, "scroll trigger never fired")

	// The subscription detaches on fire; further scrolling is ignored.
	bus.PublishScroll(page.ScrollEvent{Position: 900, ScrollableHeight: 1000})
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("scroll trigger fired %d times, want 1", fired.Load())
	}
}

func TestClickSelectorStaysAttached(t *testing.T) {
	e, bus := newTestEngine(1280)
	defer e.Stop()

	var fired atomic.Int32
	_, err := e.Arm(baseConfig("signup", models.TriggerClickSelector, ".open-signup"), func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	miss := &page.ClickEvent{MatchedSelectors: []string{".other"}}
	bus.PublishClick(miss)
	if miss.DefaultPrevented() {
		t.Error("non-matching click should not be prevented")
	}

	hit := &page.ClickEvent{MatchedSelectors: []string{".open-signup"}}
	bus.PublishClick(hit)
	if !hit.DefaultPrevented() {
		t.Error("matching click should have its default prevented")
	}
	waitFor(t, func() bool { return fired.Load() == 1 }, "click trigger never fired")

	// Click triggers stay attached; repeat display is the gate's problem.
	bus.PublishClick(&page.ClickEvent{MatchedSelectors: []string{".open-signup"}})
	waitFor(t, func() bool { return fired.Load() == 2 }, "click trigger did not fire again")
}

func TestExitIntentFiresAtTopEdge(t *testing.T) {
	e, bus := newTestEngine(1280)
	defer e.Stop()

	var fired atomic.Int32
	_, err := e.Arm(baseConfig("leave", models.TriggerExitIntent, ""), func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	// Moving onto another element is not an exit.
	bus.PublishPointerLeave(page.PointerLeaveEvent{Y: 5, HasRelatedTarget: true})
	// Leaving through the side is not an exit.
	bus.PublishPointerLeave(page.PointerLeaveEvent{Y: 400})
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("fired on a non-exit pointer leave")
	}

	bus.PublishPointerLeave(page.PointerLeaveEvent{Y: 5})
	waitFor(t, func() bool { return fired.Load() == 1 }, "exit intent never fired")

	bus.PublishPointerLeave(page.PointerLeaveEvent{Y: 5})
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("exit intent fired %d times, want 1", fired.Load())
	}
}

func TestExitIntentNotArmedOnMobile(t *testing.T) {
	e, bus := newTestEngine(models.MobileBreakpointPx)
	defer e.Stop()

	var fired atomic.Int32
	h, err := e.Arm(baseConfig("leave", models.TriggerExitIntent, ""), func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if h == nil {
		t.Fatal("Arm should still return a handle on mobile")
	}

	bus.PublishPointerLeave(page.PointerLeaveEvent{Y: 5})
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("exit intent fired on a mobile viewport")
	}
}

func TestManualNeverSelfArms(t *testing.T) {
	e, bus := newTestEngine(1280)
	defer e.Stop()

	var fired atomic.Int32
	_, err := e.Arm(baseConfig("manual", models.TriggerManual, ""), func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	bus.PublishScroll(page.ScrollEvent{Position: 900, ScrollableHeight: 1000})
	bus.PublishClick(&page.ClickEvent{MatchedSelectors: []string{".anything"}})
	bus.PublishPointerLeave(page.PointerLeaveEvent{Y: 0})
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("manual trigger fired without an explicit command")
	}
}

func TestExtraDelayPostponesFire(t *testing.T) {
	e, bus := newTestEngine(1280)
	defer e.Stop()

	cfg := baseConfig("promo", models.TriggerScrollThreshold, "50")
	cfg.ExtraDelaySeconds = 0.05
	var fired atomic.Int32
	h, err := e.Arm(cfg, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	bus.PublishScroll(page.ScrollEvent{Position: 600, ScrollableHeight: 1000})
	// Disarm during the extra-delay window cancels the pending fire.
	h.Disarm()
	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("fire was not canceled during the extra-delay window")
	}
}

func TestArmRejectsUnknownTriggerType(t *testing.T) {
	e, _ := newTestEngine(1280)
	defer e.Stop()

	cfg := baseConfig("bad", "hover", "")
	if _, err := e.Arm(cfg, func() {}); !errors.Is(err, models.ErrInvalidTriggerType) {
		t.Errorf("Arm error = %v, want ErrInvalidTriggerType", err)
	}
}

func TestSimpleTimerCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	var fired atomic.Int32
	id := timer.ScheduleAfter(20*time.Millisecond, func() { fired.Add(1) })
	timer.Cancel(id)

	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("canceled timer still fired")
	}
	if timer.Active() != 0 {
		t.Errorf("Active = %d, want 0", timer.Active())
	}
}
