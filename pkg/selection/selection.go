// Package selection implements the multi-value picker used by list filters
// and entity forms: an ordered selection keyed by option value, a flat or
// grouped option catalog, and a widget that decides whether the selected
// labels fit the control or collapse into an "N selected" summary.
package selection

import (
	"slices"
	"sync"
)

// Option is one selectable value. Value identifies the option; Label is what
// the user sees.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// Text returns the label, falling back to the value.
func (o Option) Text() string {
	if o.Label != "" {
		return o.Label
	}
	return o.Value
}

// Group is a named set of options.
type Group struct {
	Name    string   `json:"groupName"`
	Options []Option `json:"options"`
}

// Selection is an ordered set of options. Insertion order is selection
// order and membership is decided by Value alone, so a selection stays valid
// while the catalog it was built from changes.
type Selection struct {
	mu        sync.Mutex
	items     []Option
	listeners map[int]func([]Option)
	nextID    int
}

// NewSelection returns a selection holding initial, minus duplicate values.
func NewSelection(initial ...Option) *Selection {
	s := &Selection{listeners: make(map[int]func([]Option))}
	for _, opt := range initial {
		if s.indexLocked(opt.Value) < 0 {
			s.items = append(s.items, opt)
		}
	}
	return s
}

// Toggle removes option when its value is selected and appends it
// otherwise. It reports whether the option is selected afterwards.
func (s *Selection) Toggle(option Option) bool {
	s.mu.Lock()
	selected := false
	if idx := s.indexLocked(option.Value); idx >= 0 {
		s.items = slices.Delete(s.items, idx, idx+1)
	} else {
		s.items = append(s.items, option)
		selected = true
	}
	items, listeners := s.snapshotLocked()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(items)
	}
	return selected
}

// Contains reports whether value is selected.
func (s *Selection) Contains(value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(value) >= 0
}

// Options returns the selected options in selection order.
func (s *Selection) Options() []Option {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Option(nil), s.items...)
}

// Values returns the selected values in selection order.
func (s *Selection) Values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.items))
	for i, opt := range s.items {
		out[i] = opt.Value
	}
	return out
}

// Len returns the number of selected options.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return
	}
	s.items = nil
	items, listeners := s.snapshotLocked()
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(items)
	}
}

// Subscribe registers fn for selection changes.
func (s *Selection) Subscribe(fn func([]Option)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Selection) indexLocked(value string) int {
	for i, opt := range s.items {
		if opt.Value == value {
			return i
		}
	}
	return -1
}

func (s *Selection) snapshotLocked() ([]Option, []func([]Option)) {
	items := append([]Option(nil), s.items...)
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]func([]Option), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	return items, listeners
}
