package prompt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/goliatone/go-formkit/pkg/fieldpath"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// NoneOption is the first choice of every enum prompt and leaves the field
// unset.
const NoneOption = "(none)"

// Option customises Fill.
type Option func(*filler)

// WithSecrets prompts the named fields without echo.
func WithSecrets(names ...string) Option {
	return func(f *filler) {
		for _, n := range names {
			f.secrets[n] = true
		}
	}
}

// WithDefaults pre-fills answers, e.g. when editing a record.
func WithDefaults(values map[string]any) Option {
	return func(f *filler) {
		f.values = fieldpath.Clone(values)
	}
}

// WithSkip leaves the named fields out of the prompt flow.
func WithSkip(names ...string) Option {
	return func(f *filler) {
		for _, n := range names {
			f.skip[n] = true
		}
	}
}

type filler struct {
	driver  Driver
	schema  *schema.Schema
	values  map[string]any
	secrets map[string]bool
	skip    map[string]bool
}

// Fill asks for every top-level field of s in declaration order. Each answer
// is checked with the field's rules against the answers so far, and the
// prompt repeats until it passes. Optional fields left blank stay unset.
func Fill(ctx context.Context, driver Driver, s *schema.Schema, options ...Option) (map[string]any, error) {
	if driver == nil {
		return nil, errors.New("prompt: driver is nil")
	}
	f := &filler{
		driver:  driver,
		schema:  s,
		values:  map[string]any{},
		secrets: make(map[string]bool),
		skip:    make(map[string]bool),
	}
	for _, opt := range options {
		if opt != nil {
			opt(f)
		}
	}
	for _, name := range s.Fields() {
		if f.skip[name] {
			continue
		}
		if err := f.field(ctx, name); err != nil {
			return nil, err
		}
	}
	return f.values, nil
}

func (f *filler) field(ctx context.Context, name string) error {
	if _, nested := f.schema.Items(name); nested {
		return f.driver.Info(ctx, fmt.Sprintf("%s: edit nested entries with a JSON payload", f.schema.Label(name)))
	}
	for {
		value, set, err := f.ask(ctx, name)
		if err != nil {
			return err
		}
		previous, had := f.values[name]
		if set {
			f.values[name] = value
		} else {
			delete(f.values, name)
		}
		issue, failed := f.schema.ValidateField(f.values, name)
		if !failed {
			return nil
		}
		if had {
			f.values[name] = previous
		} else {
			delete(f.values, name)
		}
		if err := f.driver.Info(ctx, fmt.Sprintf("Invalid %s: %s", f.schema.Label(name), issue.Message)); err != nil {
			return err
		}
	}
}

// ask prompts once; set is false when the answer was left blank.
func (f *filler) ask(ctx context.Context, name string) (any, bool, error) {
	label := f.schema.Label(name)
	current, hasCurrent := f.values[name]

	if options := f.schema.Options(name); len(options) > 0 {
		choices := append([]string{NoneOption}, options...)
		def := 0
		if hasCurrent {
			if i := slices.Index(choices, fmt.Sprint(current)); i > 0 {
				def = i
			}
		}
		idx, err := f.driver.Select(ctx, SelectConfig{Message: label, Options: choices, DefaultIndex: def})
		if err != nil {
			return nil, false, err
		}
		if idx <= 0 || idx >= len(choices) {
			return nil, false, nil
		}
		return choices[idx], true, nil
	}

	switch f.schema.Type(name) {
	case schema.FieldTypeBoolean:
		def, _ := current.(bool)
		ok, err := f.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: def})
		return ok, err == nil, err
	case schema.FieldTypeArray:
		answer, err := f.driver.Input(ctx, InputConfig{
			Message: label,
			Default: joinList(current),
			Help:    "comma separated",
		})
		if err != nil {
			return nil, false, err
		}
		items := splitList(answer)
		if len(items) == 0 {
			return nil, false, nil
		}
		return items, true, nil
	}

	cfg := InputConfig{Message: label}
	if hasCurrent && current != nil {
		cfg.Default = fmt.Sprint(current)
	}
	var answer string
	var err error
	if f.secrets[name] {
		answer, err = f.driver.Password(ctx, cfg)
	} else {
		answer, err = f.driver.Input(ctx, cfg)
	}
	if err != nil {
		return nil, false, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, false, nil
	}
	switch f.schema.Type(name) {
	case schema.FieldTypeInteger:
		if n, perr := strconv.ParseInt(answer, 10, 64); perr == nil {
			return n, true, nil
		}
	case schema.FieldTypeNumber:
		if n, perr := strconv.ParseFloat(answer, 64); perr == nil {
			return n, true, nil
		}
	}
	// unparsable numbers stay strings so the field's rules report them
	return answer, true, nil
}

func splitList(raw string) []any {
	var out []any
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func joinList(value any) string {
	list, ok := value.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, v := range list {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, ", ")
}
