package page

import (
	"log/slog"
	"sync"

	"github.com/BTreeMap/ModalPipe/internal/models"
)

// MaxRetainedEvents bounds the lifecycle event buffer kept by HeadlessHost.
const MaxRetainedEvents = 100

// HeadlessHost is a Host with no real page behind it. The daemon uses it
// when the engine runs out of process: the SPA host mirrors panel state by
// polling status, and tests use it as a deterministic fake viewport.
type HeadlessHost struct {
	mu            sync.RWMutex
	viewportWidth int
	markup        []Markup
	panelVisible  map[string]bool
	devMarkers    map[string]bool
	scrollLocked  bool
	events        []models.ModalEvent
}

// NewHeadlessHost creates a host with the given viewport width and
// discoverable modal markup.
func NewHeadlessHost(viewportWidth int, markup []Markup) *HeadlessHost {
	return &HeadlessHost{
		viewportWidth: viewportWidth,
		markup:        markup,
		panelVisible:  make(map[string]bool),
		devMarkers:    make(map[string]bool),
	}
}

// ViewportWidth returns the configured viewport width.
func (h *HeadlessHost) ViewportWidth() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.viewportWidth
}

// SetViewportWidth changes the simulated viewport width.
func (h *HeadlessHost) SetViewportWidth(width int) {
	h.mu.Lock()
	h.viewportWidth = width
	h.mu.Unlock()
}

// DiscoverModals returns the markup supplied at construction.
func (h *HeadlessHost) DiscoverModals() []Markup {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Markup, len(h.markup))
	copy(out, h.markup)
	return out
}

// SetPanelVisible records the modal's visibility.
func (h *HeadlessHost) SetPanelVisible(modalID string, visible bool) {
	h.mu.Lock()
	h.panelVisible[modalID] = visible
	h.mu.Unlock()
	slog.Debug("HeadlessHost.SetPanelVisible", "modalID", modalID, "visible", visible)
}

// PanelVisible reports the recorded visibility for a modal.
func (h *HeadlessHost) PanelVisible(modalID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.panelVisible[modalID]
}

// SetScrollLock records the scroll lock state.
func (h *HeadlessHost) SetScrollLock(locked bool) {
	h.mu.Lock()
	h.scrollLocked = locked
	h.mu.Unlock()
	slog.Debug("HeadlessHost.SetScrollLock", "locked", locked)
}

// ScrollLocked reports the recorded scroll lock state.
func (h *HeadlessHost) ScrollLocked() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.scrollLocked
}

// SetDevModeMarker records the persisted dev-mode marker for a modal.
func (h *HeadlessHost) SetDevModeMarker(modalID string, enabled bool) {
	h.mu.Lock()
	h.devMarkers[modalID] = enabled
	h.mu.Unlock()
	slog.Debug("HeadlessHost.SetDevModeMarker", "modalID", modalID, "enabled", enabled)
}

// DevModeMarker reports the recorded dev-mode marker for a modal.
func (h *HeadlessHost) DevModeMarker(modalID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.devMarkers[modalID]
}

// DispatchEvent retains the lifecycle event in a bounded buffer.
func (h *HeadlessHost) DispatchEvent(ev models.ModalEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	if len(h.events) > MaxRetainedEvents {
		h.events = h.events[len(h.events)-MaxRetainedEvents:]
	}
}

// Events returns a copy of the retained lifecycle events, oldest first.
func (h *HeadlessHost) Events() []models.ModalEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.ModalEvent, len(h.events))
	copy(out, h.events)
	return out
}
