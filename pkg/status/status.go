// Package status models the entity status field, which the backend reports
// either as a boolean flag or as a lifecycle string.
package status

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind discriminates the Status variants.
type Kind int

const (
	KindUnknown Kind = iota
	KindBoolean
	KindLifecycle
)

// Lifecycle values reported by the backend.
type Lifecycle string

const (
	Active   Lifecycle = "active"
	Inactive Lifecycle = "inactive"
	Disabled Lifecycle = "disabled"
)

// Status is a tagged variant: Boolean, Lifecycle or Unknown. The zero value
// is Unknown.
type Status struct {
	kind      Kind
	flag      bool
	lifecycle Lifecycle
	raw       string
}

// Boolean wraps a flag status.
func Boolean(v bool) Status { return Status{kind: KindBoolean, flag: v} }

// FromLifecycle wraps a lifecycle status.
func FromLifecycle(l Lifecycle) Status { return Status{kind: KindLifecycle, lifecycle: l} }

// Unknown keeps an unrecognised raw value.
func Unknown(raw string) Status { return Status{kind: KindUnknown, raw: raw} }

// Parse maps a decoded JSON value onto a Status.
func Parse(value any) Status {
	switch typed := value.(type) {
	case bool:
		return Boolean(typed)
	case string:
		switch l := Lifecycle(strings.ToLower(strings.TrimSpace(typed))); l {
		case Active, Inactive, Disabled:
			return FromLifecycle(l)
		}
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true":
			return Boolean(true)
		case "false":
			return Boolean(false)
		}
		return Unknown(typed)
	case nil:
		return Unknown("")
	default:
		return Unknown(fmt.Sprint(typed))
	}
}

func (s Status) Kind() Kind { return s.kind }

// Bool returns the flag when s is a Boolean.
func (s Status) Bool() (bool, bool) { return s.flag, s.kind == KindBoolean }

// Lifecycle returns the lifecycle when s is a Lifecycle.
func (s Status) Lifecycle() (Lifecycle, bool) { return s.lifecycle, s.kind == KindLifecycle }

// Enabled folds both variants into a single yes/no: true and active count as
// enabled, everything else does not.
func (s Status) Enabled() bool {
	switch s.kind {
	case KindBoolean:
		return s.flag
	case KindLifecycle:
		return s.lifecycle == Active
	default:
		return false
	}
}

// String renders a display label.
func (s Status) String() string {
	switch s.kind {
	case KindBoolean:
		if s.flag {
			return "enabled"
		}
		return "disabled"
	case KindLifecycle:
		return string(s.lifecycle)
	default:
		if s.raw == "" {
			return "unknown"
		}
		return s.raw
	}
}

// MarshalJSON writes the variant back in the backend's shape.
func (s Status) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindBoolean:
		return json.Marshal(s.flag)
	case KindLifecycle:
		return json.Marshal(string(s.lifecycle))
	default:
		if s.raw == "" {
			return []byte("null"), nil
		}
		return json.Marshal(s.raw)
	}
}

// UnmarshalJSON accepts booleans, strings and null.
func (s *Status) UnmarshalJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	*s = Parse(value)
	return nil
}
