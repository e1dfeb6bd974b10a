package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Target is what a check sees for a single field. Scope holds the sibling
// values (the enclosing object), so cross-field rules resolve relative to the
// field rather than the document root. Checks may replace Value to coerce it
// for the rules that follow.
type Target struct {
	Path  string
	Label string
	Value any
	Scope map[string]any
}

// Check evaluates a compiled rule and returns the failure message when the
// value does not satisfy it.
type Check func(t *Target) (message string, ok bool)

// Factory compiles a rule declaration into a Check. Factories return errors
// for malformed parameters; those are programming errors, not user input
// problems.
type Factory func(field FieldDefinition, rule Rule) (Check, error)

// Entry registers a rule kind. EvaluateEmpty marks rules that must run even
// when the field has no value (presence rules, minimum item counts).
type Entry struct {
	Factory       Factory
	EvaluateEmpty bool
	// Refs lists the params that name sibling fields; Compile verifies they
	// are declared.
	Refs []string
}

// Registry maps rule kinds to factories. The zero value is empty; use
// NewRegistry for one preloaded with the built-in rules.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry constructs a registry with the built-in rules registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by Compile when no
// registry is supplied.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds or replaces a rule kind. Empty kinds and nil factories are
// ignored.
func (r *Registry) Register(kind string, entry Entry) {
	if r == nil || entry.Factory == nil {
		return
	}
	trimmed := strings.TrimSpace(kind)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]Entry)
	}
	r.entries[trimmed] = entry
}

// Lookup returns the entry for kind.
func (r *Registry) Lookup(kind string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[strings.TrimSpace(kind)]
	return entry, ok
}

// Kinds lists the registered rule kinds in sorted order.
func (r *Registry) Kinds() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.entries))
	for kind := range r.entries {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Registry) compileRule(field FieldDefinition, rule Rule) (compiledRule, error) {
	entry, ok := r.Lookup(rule.Kind)
	if !ok {
		return compiledRule{}, fmt.Errorf("schema: field %q: unknown rule kind %q", field.Name, rule.Kind)
	}
	check, err := entry.Factory(field, rule)
	if err != nil {
		return compiledRule{}, fmt.Errorf("schema: field %q: rule %q: %w", field.Name, rule.Kind, err)
	}
	return compiledRule{
		kind:          rule.Kind,
		message:       strings.TrimSpace(rule.Message),
		check:         check,
		evaluateEmpty: entry.EvaluateEmpty,
	}, nil
}

func (r *Registry) registerBuiltins() {
	r.Register(RuleRequired, Entry{Factory: requiredRule, EvaluateEmpty: true})
	r.Register(RuleRequiredIf, Entry{Factory: requiredIfRule, EvaluateEmpty: true, Refs: []string{"field"}})
	r.Register(RuleMinItems, Entry{Factory: minItemsRule, EvaluateEmpty: true})
	r.Register(RuleMinLength, Entry{Factory: minLengthRule})
	r.Register(RuleMaxLength, Entry{Factory: maxLengthRule})
	r.Register(RuleLength, Entry{Factory: lengthRule})
	r.Register(RulePattern, Entry{Factory: patternRule})
	r.Register(RuleNumber, Entry{Factory: numberRule})
	r.Register(RuleInteger, Entry{Factory: integerRule})
	r.Register(RuleMin, Entry{Factory: minRule})
	r.Register(RuleMax, Entry{Factory: maxRule})
	r.Register(RuleEnum, Entry{Factory: enumRule})
	r.Register(RuleEquals, Entry{Factory: equalsRule, Refs: []string{"field"}})
	r.Register(RuleAfter, Entry{Factory: afterRule, Refs: []string{"field"}})
}
