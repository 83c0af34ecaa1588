// Package trigger provides timer support for delayed trigger firing.
package trigger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// timerEntry tracks information about a scheduled timer
type timerEntry struct {
	timer       *time.Timer
	scheduledAt time.Time
	expiresAt   time.Time
}

// SimpleTimer implements cancelable one-shot timers using Go's standard
// time package.
type SimpleTimer struct {
	timers map[string]*timerEntry
	mu     sync.RWMutex
}

// NewSimpleTimer creates a new SimpleTimer.
func NewSimpleTimer() *SimpleTimer {
	slog.Debug("Creating SimpleTimer")
	return &SimpleTimer{
		timers: make(map[string]*timerEntry),
	}
}

// ScheduleAfter schedules a function to run after a delay. A non-positive
// delay runs the function on its own goroutine immediately.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) string {
	id := uuid.NewString()
	slog.Debug("SimpleTimer.ScheduleAfter", "id", id, "delay", delay)

	if delay < 0 {
		delay = 0
	}

	now := time.Now()
	timer := time.AfterFunc(delay, func() {
		slog.Debug("SimpleTimer executing scheduled function", "id", id)
		fn()
		// Clean up timer reference
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
	})

	t.mu.Lock()
	t.timers[id] = &timerEntry{
		timer:       timer,
		scheduledAt: now,
		expiresAt:   now.Add(delay),
	}
	t.mu.Unlock()

	return id
}

// Cancel cancels a scheduled function by ID. Canceling an unknown or
// already-fired timer is a no-op.
func (t *SimpleTimer) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.timers[id]; exists {
		entry.timer.Stop()
		delete(t.timers, id)
		slog.Debug("SimpleTimer.Cancel succeeded", "id", id)
		return
	}
	slog.Debug("SimpleTimer.Cancel: timer not found", "id", id)
}

// Stop cancels all scheduled timers.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	slog.Debug("SimpleTimer stopping all timers", "count", len(t.timers))
	for _, entry := range t.timers {
		entry.timer.Stop()
	}
	t.timers = make(map[string]*timerEntry)
}

// Active returns the number of timers that have not yet fired.
func (t *SimpleTimer) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.timers)
}
