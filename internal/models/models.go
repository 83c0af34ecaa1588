// Package models defines the core data structures for ModalPipe.
//
// It includes the per-modal configuration, lifecycle state, frequency
// records, and lifecycle events, which are shared across modules.
package models

import (
	"errors"
	"strconv"
	"strings"
)

// TriggerType defines the condition that makes a modal eligible to attempt display.
type TriggerType string

const (
	// TriggerImmediate fires as soon as the page loads.
	TriggerImmediate TriggerType = "immediate-on-load"
	// TriggerTimedDelay fires after a configured number of seconds.
	TriggerTimedDelay TriggerType = "timed-delay"
	// TriggerScrollThreshold fires once scroll position reaches a percentage of scrollable height.
	TriggerScrollThreshold TriggerType = "scroll-threshold"
	// TriggerClickSelector fires when an element matching a selector is clicked.
	TriggerClickSelector TriggerType = "click-selector"
	// TriggerExitIntent fires when the pointer leaves through the top of the viewport (desktop only).
	TriggerExitIntent TriggerType = "exit-intent"
	// TriggerManual never self-arms; the modal is shown only via an explicit command.
	TriggerManual TriggerType = "manual"
)

// FrequencyKind defines how often a modal is allowed to show again.
type FrequencyKind string

const (
	// FrequencyAlways allows the modal to show on every eligible trigger.
	FrequencyAlways FrequencyKind = "always"
	// FrequencyOncePerSession allows at most one show per browsing session.
	FrequencyOncePerSession FrequencyKind = "once-per-session"
	// FrequencyOncePerDay allows at most one show per calendar day.
	FrequencyOncePerDay FrequencyKind = "once-per-day"
	// FrequencyOncePerWeek allows at most one show per (approximate) week of year.
	FrequencyOncePerWeek FrequencyKind = "once-per-week"
)

// MobileBreakpointPx is the inclusive viewport width at or below which a
// device counts as mobile.
const MobileBreakpointPx = 768

// Error variables for configuration defects and command failures.
var (
	ErrEmptyModalID        = errors.New("modal id cannot be empty")
	ErrInvalidTriggerType  = errors.New("invalid trigger type")
	ErrInvalidFrequency    = errors.New("invalid frequency kind")
	ErrMissingTriggerValue = errors.New("trigger value is required for this trigger type")
	ErrInvalidTriggerValue = errors.New("trigger value is not valid for this trigger type")
	ErrNegativeDelay       = errors.New("delay seconds cannot be negative")
	ErrNegativeAutoClose   = errors.New("auto-close seconds cannot be negative")
	ErrAlreadyRegistered   = errors.New("modal id is already registered")
)

// IsValidTriggerType checks if the given trigger type is supported.
func IsValidTriggerType(tt TriggerType) bool {
	switch tt {
	case TriggerImmediate, TriggerTimedDelay, TriggerScrollThreshold, TriggerClickSelector, TriggerExitIntent, TriggerManual:
		return true
	default:
		return false
	}
}

// IsValidFrequencyKind checks if the given frequency kind is supported.
func IsValidFrequencyKind(fk FrequencyKind) bool {
	switch fk {
	case FrequencyAlways, FrequencyOncePerSession, FrequencyOncePerDay, FrequencyOncePerWeek:
		return true
	default:
		return false
	}
}

// ModalConfig is the declarative per-modal configuration. It is immutable
// after discovery; the runtime dev-mode override is tracked by the registry,
// not by mutating the config.
type ModalConfig struct {
	ID                    string        `json:"id"`
	TriggerType           TriggerType   `json:"trigger_type"`
	TriggerValue          string        `json:"trigger_value,omitempty"`
	Frequency             FrequencyKind `json:"frequency"`
	ExtraDelaySeconds     float64       `json:"extra_delay_seconds,omitempty"`
	MobileEnabled         bool          `json:"mobile_enabled"`
	DesktopEnabled        bool          `json:"desktop_enabled"`
	CloseOnOutsideClick   bool          `json:"close_on_outside_click"`
	AutoCloseAfterSeconds float64       `json:"auto_close_after_seconds,omitempty"`
	DevMode               bool          `json:"dev_mode,omitempty"`
}

// ApplyDefaults fills in the documented defaults for zero-value fields.
// Fields whose zero value carries meaning (ExtraDelaySeconds,
// AutoCloseAfterSeconds, DevMode) are left alone.
func (c *ModalConfig) ApplyDefaults() {
	if c.TriggerType == "" {
		c.TriggerType = TriggerImmediate
	}
	if c.Frequency == "" {
		c.Frequency = FrequencyAlways
	}
}

// Validate performs comprehensive validation on a ModalConfig.
func (c *ModalConfig) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyModalID
	}
	if !IsValidTriggerType(c.TriggerType) {
		return ErrInvalidTriggerType
	}
	if !IsValidFrequencyKind(c.Frequency) {
		return ErrInvalidFrequency
	}
	if c.ExtraDelaySeconds < 0 {
		return ErrNegativeDelay
	}
	if c.AutoCloseAfterSeconds < 0 {
		return ErrNegativeAutoClose
	}

	switch c.TriggerType {
	case TriggerTimedDelay:
		secs, err := strconv.ParseFloat(strings.TrimSpace(c.TriggerValue), 64)
		if err != nil || secs < 0 {
			return ErrInvalidTriggerValue
		}
	case TriggerScrollThreshold:
		pct, err := strconv.ParseFloat(strings.TrimSpace(c.TriggerValue), 64)
		if err != nil || pct < 0 || pct > 100 {
			return ErrInvalidTriggerValue
		}
	case TriggerClickSelector:
		if strings.TrimSpace(c.TriggerValue) == "" {
			return ErrMissingTriggerValue
		}
	}
	return nil
}

// TriggerDelaySeconds returns the configured timed-delay value. Only
// meaningful for TriggerTimedDelay configs that passed Validate.
func (c *ModalConfig) TriggerDelaySeconds() float64 {
	secs, err := strconv.ParseFloat(strings.TrimSpace(c.TriggerValue), 64)
	if err != nil {
		return 0
	}
	return secs
}

// ScrollThresholdPercent returns the configured scroll threshold. Only
// meaningful for TriggerScrollThreshold configs that passed Validate.
func (c *ModalConfig) ScrollThresholdPercent() float64 {
	pct, err := strconv.ParseFloat(strings.TrimSpace(c.TriggerValue), 64)
	if err != nil {
		return 0
	}
	return pct
}

// Attribute keys recognized by ParseConfig. These mirror the data attributes
// host adapters read off the modal container element.
const (
	AttrID                  = "id"
	AttrTriggerType         = "trigger-type"
	AttrTriggerValue        = "trigger-value"
	AttrFrequency           = "frequency"
	AttrExtraDelay          = "extra-delay"
	AttrMobileEnabled       = "mobile-enabled"
	AttrDesktopEnabled      = "desktop-enabled"
	AttrCloseOnOutsideClick = "close-on-outside-click"
	AttrAutoClose           = "auto-close"
	AttrDevMode             = "dev-mode"
)

// ParseConfig builds a ModalConfig from a flat attribute map as supplied by
// a host adapter. Missing attributes take their documented defaults;
// malformed numeric or boolean attributes fall back to defaults as well,
// since a single bad attribute must not invalidate the whole modal.
// The returned config still needs Validate before use.
func ParseConfig(attrs map[string]string) ModalConfig {
	cfg := ModalConfig{
		ID:                    strings.TrimSpace(attrs[AttrID]),
		TriggerType:           TriggerType(strings.TrimSpace(attrs[AttrTriggerType])),
		TriggerValue:          strings.TrimSpace(attrs[AttrTriggerValue]),
		Frequency:             FrequencyKind(strings.TrimSpace(attrs[AttrFrequency])),
		ExtraDelaySeconds:     parseFloatAttr(attrs[AttrExtraDelay], 0),
		MobileEnabled:         parseBoolAttr(attrs[AttrMobileEnabled], true),
		DesktopEnabled:        parseBoolAttr(attrs[AttrDesktopEnabled], true),
		CloseOnOutsideClick:   parseBoolAttr(attrs[AttrCloseOnOutsideClick], true),
		AutoCloseAfterSeconds: parseFloatAttr(attrs[AttrAutoClose], 0),
		DevMode:               parseBoolAttr(attrs[AttrDevMode], false),
	}
	cfg.ApplyDefaults()
	return cfg
}

func parseFloatAttr(raw string, def float64) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func parseBoolAttr(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}
