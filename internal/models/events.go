package models

import "time"

// EventKind identifies a lifecycle event.
type EventKind string

const (
	// EventShown is emitted after a modal transitions to visible.
	EventShown EventKind = "modal:shown"
	// EventClosed is emitted after a modal transitions to hidden.
	EventClosed EventKind = "modal:closed"
)

// ModalEvent is the payload delivered to lifecycle event subscribers and
// mirrored onto the host page as a bubbling document-level event.
type ModalEvent struct {
	Kind    EventKind   `json:"kind"`
	ModalID string      `json:"modal_id"`
	Config  ModalConfig `json:"config"`
	At      time.Time   `json:"at"`
}
