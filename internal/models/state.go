// Package models defines state structures owned by the lifecycle controller.
package models

import "time"

// ModalState is the mutable runtime state of a registered modal. It is
// created at registration, lives for the page session, and is never
// persisted. The lifecycle controller is its sole writer.
type ModalState struct {
	Visible     bool      `json:"visible"`
	LastShownAt time.Time `json:"last_shown_at,omitzero"`
}

// ModalStatus is the snapshot returned by the status command. All fields
// are plain values; callers get a copy, never a live reference.
type ModalStatus struct {
	ModalID      string        `json:"modal_id"`
	IsRegistered bool          `json:"is_registered"`
	Visible      bool          `json:"visible"`
	LastShownAt  time.Time     `json:"last_shown_at,omitzero"`
	DevMode      bool          `json:"dev_mode"`
	TriggerType  TriggerType   `json:"trigger_type,omitempty"`
	Frequency    FrequencyKind `json:"frequency,omitempty"`
	CanShow      bool          `json:"can_show"`
}
