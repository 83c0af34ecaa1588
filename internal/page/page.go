// Package page abstracts the host web page for ModalPipe.
//
// The engine never touches a DOM. A host adapter implements Host for the
// actions the engine needs (panel toggling, scroll locking, discovery) and
// feeds user activity into a Bus as plain events. This keeps the engine
// testable against a deterministic fake page and lets single-page-app
// hosts drive it over the HTTP API.
package page

import "github.com/BTreeMap/ModalPipe/internal/models"

// Markup is the declarative per-modal markup a host adapter discovered:
// the container element's data attributes as a flat map.
type Markup struct {
	Attributes map[string]string `json:"attributes"`
}

// Host is the capability surface the engine requires from the page.
type Host interface {
	// ViewportWidth returns the live viewport width in pixels.
	ViewportWidth() int
	// DiscoverModals returns the candidate modal markup found on the page.
	DiscoverModals() []Markup
	// SetPanelVisible toggles the modal's DOM subtree.
	SetPanelVisible(modalID string, visible bool)
	// SetScrollLock locks or unlocks page scrolling.
	SetScrollLock(locked bool)
	// SetDevModeMarker synchronizes the persisted dev-mode marker on the
	// modal's backing element with the runtime override.
	SetDevModeMarker(modalID string, enabled bool)
	// DispatchEvent mirrors a lifecycle event onto the page as a bubbling
	// document-level event.
	DispatchEvent(ev models.ModalEvent)
}

// ScrollEvent reports the page scroll position.
type ScrollEvent struct {
	// Position is the current scroll offset in pixels.
	Position float64 `json:"position"`
	// ScrollableHeight is the total scrollable height in pixels.
	ScrollableHeight float64 `json:"scrollable_height"`
}

// PercentScrolled returns the scroll position as a percentage of the
// scrollable height, 0 when the page cannot scroll.
func (e ScrollEvent) PercentScrolled() float64 {
	if e.ScrollableHeight <= 0 {
		return 0
	}
	return e.Position / e.ScrollableHeight * 100
}

// ClickEvent is a delegated document-level click. The host adapter resolves
// CSS matching before publishing: MatchedSelectors lists the registered
// trigger selectors the target or one of its ancestors matched.
type ClickEvent struct {
	// MatchedSelectors are trigger selectors matched by the target or an ancestor.
	MatchedSelectors []string `json:"matched_selectors,omitempty"`
	// InsideModalID is the id of the modal panel containing the target, if any.
	InsideModalID string `json:"inside_modal_id,omitempty"`
	// BackdropFor is the id of the modal whose backdrop was clicked, if any.
	BackdropFor string `json:"backdrop_for,omitempty"`
	// CloseControlFor is the id of the modal whose close affordance was clicked, if any.
	CloseControlFor string `json:"close_control_for,omitempty"`

	defaultPrevented bool
}

// Matches reports whether the click target matched the given selector.
func (e *ClickEvent) Matches(selector string) bool {
	for _, s := range e.MatchedSelectors {
		if s == selector {
			return true
		}
	}
	return false
}

// PreventDefault marks the click's default action as suppressed. The host
// adapter inspects this after dispatch.
func (e *ClickEvent) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether a handler suppressed the default action.
func (e *ClickEvent) DefaultPrevented() bool {
	return e.defaultPrevented
}

// PointerLeaveEvent reports the pointer leaving the document.
type PointerLeaveEvent struct {
	// Y is the pointer's vertical position when it left, in pixels.
	Y float64 `json:"y"`
	// HasRelatedTarget is true when the pointer moved onto another element
	// rather than out of the window.
	HasRelatedTarget bool `json:"has_related_target"`
}

// KeyEvent reports a document-level keydown.
type KeyEvent struct {
	Key string `json:"key"`
}

// KeyEscape is the key value for the Escape key.
const KeyEscape = "Escape"

// SubmitEvent reports a form submission inside a modal subtree.
type SubmitEvent struct {
	ModalID string `json:"modal_id"`
	// Action is the form's submission target.
	Action string `json:"action"`
}
