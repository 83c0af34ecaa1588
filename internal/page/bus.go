package page

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Bus fans page events out to subscribers. Dispatch is synchronous; a
// subscription's unsubscribe function may be called from inside its own
// handler (triggers detach themselves on fire). Handler panics are
// contained here so no failure propagates back into the host page.
type Bus struct {
	mu            sync.RWMutex
	scrollSubs    map[string]func(ScrollEvent)
	clickSubs     map[string]func(*ClickEvent)
	pointerSubs   map[string]func(PointerLeaveEvent)
	keySubs       map[string]func(KeyEvent)
	submitSubs    map[string]func(SubmitEvent)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		scrollSubs:  make(map[string]func(ScrollEvent)),
		clickSubs:   make(map[string]func(*ClickEvent)),
		pointerSubs: make(map[string]func(PointerLeaveEvent)),
		keySubs:     make(map[string]func(KeyEvent)),
		submitSubs:  make(map[string]func(SubmitEvent)),
	}
}

// SubscribeScroll registers a scroll handler and returns its unsubscribe function.
func (b *Bus) SubscribeScroll(fn func(ScrollEvent)) func() {
	id := uuid.NewString()
	b.mu.Lock()
	b.scrollSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.scrollSubs, id)
		b.mu.Unlock()
	}
}

// SubscribeClick registers a click handler and returns its unsubscribe function.
func (b *Bus) SubscribeClick(fn func(*ClickEvent)) func() {
	id := uuid.NewString()
	b.mu.Lock()
	b.clickSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.clickSubs, id)
		b.mu.Unlock()
	}
}

// SubscribePointerLeave registers a pointer-leave handler and returns its unsubscribe function.
func (b *Bus) SubscribePointerLeave(fn func(PointerLeaveEvent)) func() {
	id := uuid.NewString()
	b.mu.Lock()
	b.pointerSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.pointerSubs, id)
		b.mu.Unlock()
	}
}

// SubscribeKey registers a keydown handler and returns its unsubscribe function.
func (b *Bus) SubscribeKey(fn func(KeyEvent)) func() {
	id := uuid.NewString()
	b.mu.Lock()
	b.keySubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.keySubs, id)
		b.mu.Unlock()
	}
}

// SubscribeSubmit registers a form-submit handler and returns its unsubscribe function.
func (b *Bus) SubscribeSubmit(fn func(SubmitEvent)) func() {
	id := uuid.NewString()
	b.mu.Lock()
	b.submitSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.submitSubs, id)
		b.mu.Unlock()
	}
}

// PublishScroll delivers a scroll event to all scroll subscribers.
func (b *Bus) PublishScroll(ev ScrollEvent) {
	for _, fn := range snapshot(b, b.scrollSubs) {
		call(func() { fn(ev) }, "scroll")
	}
}

// PublishClick delivers a click event to all click subscribers. The same
// event pointer is shared so any handler can prevent the default action.
func (b *Bus) PublishClick(ev *ClickEvent) {
	for _, fn := range snapshot(b, b.clickSubs) {
		call(func() { fn(ev) }, "click")
	}
}

// PublishPointerLeave delivers a pointer-leave event to all subscribers.
func (b *Bus) PublishPointerLeave(ev PointerLeaveEvent) {
	for _, fn := range snapshot(b, b.pointerSubs) {
		call(func() { fn(ev) }, "pointer-leave")
	}
}

// PublishKey delivers a keydown event to all subscribers.
func (b *Bus) PublishKey(ev KeyEvent) {
	for _, fn := range snapshot(b, b.keySubs) {
		call(func() { fn(ev) }, "key")
	}
}

// PublishSubmit delivers a form-submit event to all subscribers.
func (b *Bus) PublishSubmit(ev SubmitEvent) {
	for _, fn := range snapshot(b, b.submitSubs) {
		call(func() { fn(ev) }, "submit")
	}
}

// snapshot copies the handler set so handlers may unsubscribe mid-dispatch.
func snapshot[F any](b *Bus, subs map[string]F) []F {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]F, 0, len(subs))
	for _, fn := range subs {
		out = append(out, fn)
	}
	return out
}

func call(fn func(), kind string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Bus: event handler panicked", "event", kind, "panic", r)
		}
	}()
	fn()
}
