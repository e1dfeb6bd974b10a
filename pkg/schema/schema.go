package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formkit/pkg/fieldpath"
)

type compiledRule struct {
	kind          string
	message       string
	check         Check
	evaluateEmpty bool
}

type compiledField struct {
	name  string
	label string
	typ   FieldType
	rules []compiledRule
	items *Schema
	enum  []string
}

// Schema is a compiled Definition. It is immutable and safe for concurrent
// use.
type Schema struct {
	id     string
	title  string
	fields []compiledField
	paths  map[string]struct{}
}

// CompileOption configures Compile.
type CompileOption func(*compileOptions)

type compileOptions struct {
	registry *Registry
}

// WithRegistry compiles against a custom rule registry.
func WithRegistry(reg *Registry) CompileOption {
	return func(opts *compileOptions) {
		if reg != nil {
			opts.registry = reg
		}
	}
}

// Compile turns a Definition into a Schema. Any error returned here points
// at a malformed definition rather than invalid user input.
func Compile(def Definition, options ...CompileOption) (*Schema, error) {
	opts := compileOptions{registry: DefaultRegistry()}
	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}
	return compile(def, opts.registry, "")
}

// MustCompile panics when the definition is malformed. Intended for built-in
// schemas and tests.
func MustCompile(def Definition, options ...CompileOption) *Schema {
	s, err := Compile(def, options...)
	if err != nil {
		panic(err)
	}
	return s
}

func compile(def Definition, reg *Registry, parent string) (*Schema, error) {
	if len(def.Fields) == 0 {
		return nil, fmt.Errorf("schema: definition %q declares no fields", def.ID)
	}
	declared := make(map[string]struct{}, len(def.Fields))
	for _, field := range def.Fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return nil, fmt.Errorf("schema: definition %q has a field without a name", def.ID)
		}
		if strings.Contains(name, ".") {
			return nil, fmt.Errorf("schema: field %q must not contain '.'", name)
		}
		if _, exists := declared[name]; exists {
			return nil, fmt.Errorf("schema: duplicate field %q", name)
		}
		declared[name] = struct{}{}
	}

	s := &Schema{
		id:    def.ID,
		title: def.Title,
		paths: make(map[string]struct{}),
	}
	for _, field := range def.Fields {
		compiled := compiledField{
			name:  strings.TrimSpace(field.Name),
			label: field.Label,
			typ:   field.Type,
		}
		if compiled.label == "" {
			compiled.label = compiled.name
		}
		for _, rule := range field.Rules {
			if entry, ok := reg.Lookup(rule.Kind); ok {
				for _, refParam := range entry.Refs {
					ref := strings.TrimSpace(rule.Param(refParam))
					if _, known := declared[ref]; ref != "" && !known {
						return nil, fmt.Errorf("schema: field %q: rule %q references undeclared field %q", compiled.name, rule.Kind, ref)
					}
				}
			}
			cr, err := reg.compileRule(field, rule)
			if err != nil {
				return nil, err
			}
			compiled.rules = append(compiled.rules, cr)
			if rule.Kind == RuleEnum {
				compiled.enum = splitList(rule.Param("values"))
			}
		}
		path := fieldpath.Join(parent, compiled.name)
		s.paths[path] = struct{}{}
		if field.Items != nil {
			if field.Type != "" && field.Type != FieldTypeArray {
				return nil, fmt.Errorf("schema: field %q declares items but is %s", compiled.name, field.Type)
			}
			items, err := compile(*field.Items, reg, path)
			if err != nil {
				return nil, err
			}
			compiled.items = items
			for p := range items.paths {
				s.paths[p] = struct{}{}
			}
		}
		s.fields = append(s.fields, compiled)
	}
	return s, nil
}

// ID returns the definition identifier.
func (s *Schema) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Title returns the human readable title.
func (s *Schema) Title() string {
	if s == nil {
		return ""
	}
	return s.title
}

// Fields lists the top-level field names in declaration order.
func (s *Schema) Fields() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f.name)
	}
	return out
}

// Label returns the label of a top-level field.
func (s *Schema) Label(name string) string {
	if s == nil {
		return name
	}
	for _, f := range s.fields {
		if f.name == name {
			return f.label
		}
	}
	return name
}

// Type returns the declared type of a top-level field.
func (s *Schema) Type(name string) FieldType {
	if s == nil {
		return ""
	}
	for _, f := range s.fields {
		if f.name == name {
			return f.typ
		}
	}
	return ""
}

// Options returns the allowed values of a top-level enum field, or nil.
func (s *Schema) Options(name string) []string {
	if s == nil {
		return nil
	}
	for _, f := range s.fields {
		if f.name == name {
			return append([]string(nil), f.enum...)
		}
	}
	return nil
}

// Items returns the element schema of a top-level array field.
func (s *Schema) Items(name string) (*Schema, bool) {
	if s == nil {
		return nil, false
	}
	for _, f := range s.fields {
		if f.name == name && f.items != nil {
			return f.items, true
		}
	}
	return nil, false
}

// Paths returns every declared path. Array element fields are listed under
// their parent without an index ("rewards.amount").
func (s *Schema) Paths() map[string]struct{} {
	if s == nil {
		return nil
	}
	out := make(map[string]struct{}, len(s.paths))
	for p := range s.paths {
		out[p] = struct{}{}
	}
	return out
}

// Declares reports whether path (possibly indexed, "rewards.0.amount") maps
// onto a declared field.
func (s *Schema) Declares(path string) bool {
	if s == nil {
		return false
	}
	_, ok := s.paths[StripIndexes(path)]
	return ok
}

// StripIndexes removes numeric segments from a dotted path.
func StripIndexes(path string) string {
	segments := fieldpath.Split(path)
	out := segments[:0]
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return strings.Join(out, ".")
}

// Validate evaluates every declared field of values and never stops at the
// first failing field. Within one field the first failing rule wins, so each
// path carries at most one issue.
func (s *Schema) Validate(values map[string]any) Result {
	if s == nil {
		return Result{Valid: true, Values: fieldpath.Clone(values)}
	}
	working := fieldpath.Clone(values)
	issues := s.validateScope(working, "")
	return Result{
		Valid:  len(issues) == 0,
		Issues: issues,
		Values: working,
	}
}

// ValidateField runs the rules of a single top-level field against values.
func (s *Schema) ValidateField(values map[string]any, name string) (Issue, bool) {
	if s == nil {
		return Issue{}, false
	}
	working := fieldpath.Clone(values)
	for _, field := range s.fields {
		if field.name != name {
			continue
		}
		issues := s.validateField(field, working, "")
		if len(issues) > 0 {
			return issues[0], true
		}
		return Issue{}, false
	}
	return Issue{}, false
}

func (s *Schema) validateScope(scope map[string]any, prefix string) []Issue {
	var issues []Issue
	for _, field := range s.fields {
		issues = append(issues, s.validateField(field, scope, prefix)...)
	}
	return issues
}

func (s *Schema) validateField(field compiledField, scope map[string]any, prefix string) []Issue {
	path := fieldpath.Join(prefix, field.name)
	target := &Target{
		Path:  path,
		Label: field.label,
		Value: scope[field.name],
		Scope: scope,
	}
	empty := isEmpty(target.Value)
	for _, rule := range field.rules {
		if empty && !rule.evaluateEmpty {
			continue
		}
		message, ok := rule.check(target)
		if ok {
			continue
		}
		if rule.message != "" {
			message = rule.message
		}
		return []Issue{{Path: path, Rule: rule.kind, Message: message}}
	}
	if _, present := scope[field.name]; present && !empty {
		scope[field.name] = target.Value
	}

	if field.items == nil {
		return nil
	}
	var issues []Issue
	list := elementsOf(target.Value)
	for idx, element := range list {
		obj, ok := element.(map[string]any)
		if !ok {
			issues = append(issues, Issue{
				Path:    fieldpath.Join(path, strconv.Itoa(idx)),
				Rule:    "type",
				Message: "must be an object",
			})
			continue
		}
		issues = append(issues, field.items.validateScope(obj, fieldpath.Join(path, strconv.Itoa(idx)))...)
	}
	return issues
}

func elementsOf(value any) []any {
	switch typed := value.(type) {
	case []any:
		return typed
	case []map[string]any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out
	}
	return nil
}
