package schema

// FieldType is the simplified enum for form-friendly field kinds.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeArray   FieldType = "array"
	FieldTypeObject  FieldType = "object"
	FieldTypeDate    FieldType = "date"
)

// Built-in rule kinds. Params use string values so definitions stay stable
// whether they come from YAML, JSON or an OpenAPI document.
const (
	RuleRequired   = "required"   // no params
	RuleMinLength  = "minLength"  // value
	RuleMaxLength  = "maxLength"  // value
	RuleLength     = "length"     // value
	RulePattern    = "pattern"    // pattern
	RuleNumber     = "number"     // no params, coerces strings
	RuleInteger    = "integer"    // no params, coerces strings
	RuleMin        = "min"        // value
	RuleMax        = "max"        // value
	RuleEnum       = "enum"       // values (comma separated)
	RuleEquals     = "equals"     // field
	RuleRequiredIf = "requiredIf" // field, value
	RuleMinItems   = "minItems"   // value
	RuleAfter      = "after"      // field
)

// Rule is a single declarative constraint attached to a field. Message
// overrides the rule's default text.
type Rule struct {
	Kind    string            `json:"kind" yaml:"kind"`
	Params  map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Message string            `json:"message,omitempty" yaml:"message,omitempty"`
}

// Param returns a trimmed parameter value.
func (r Rule) Param(name string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[name]
}

// FieldDefinition declares one field of an entity. Items describes the
// element shape for arrays of objects.
type FieldDefinition struct {
	Name  string      `json:"name" yaml:"name"`
	Label string      `json:"label,omitempty" yaml:"label,omitempty"`
	Type  FieldType   `json:"type,omitempty" yaml:"type,omitempty"`
	Rules []Rule      `json:"rules,omitempty" yaml:"rules,omitempty"`
	Items *Definition `json:"items,omitempty" yaml:"items,omitempty"`
}

// Definition is the uncompiled, serialisable form of a Schema.
type Definition struct {
	ID     string            `json:"id" yaml:"id"`
	Title  string            `json:"title,omitempty" yaml:"title,omitempty"`
	Fields []FieldDefinition `json:"fields" yaml:"fields"`
}

// Issue is one validation failure attributed to a dotted field path.
type Issue struct {
	Path    string `json:"path"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result captures a full validation pass. Values holds the candidate with
// numeric coercions applied.
type Result struct {
	Valid  bool           `json:"valid"`
	Issues []Issue        `json:"issues,omitempty"`
	Values map[string]any `json:"-"`
}

// ByPath indexes issues by path.
func (r Result) ByPath() map[string]string {
	if len(r.Issues) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Issues))
	for _, issue := range r.Issues {
		if _, exists := out[issue.Path]; !exists {
			out[issue.Path] = issue.Message
		}
	}
	return out
}
