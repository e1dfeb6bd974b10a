package schema

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func requiredRule(_ FieldDefinition, _ Rule) (Check, error) {
	return func(t *Target) (string, bool) {
		if isEmpty(t.Value) {
			return "is required", false
		}
		return "", true
	}, nil
}

func requiredIfRule(_ FieldDefinition, rule Rule) (Check, error) {
	ref := strings.TrimSpace(rule.Param("field"))
	if ref == "" {
		return nil, errors.New("requiredIf needs a field param")
	}
	want, hasValue := rule.Params["value"]
	if !hasValue {
		return nil, errors.New("requiredIf needs a value param")
	}
	want = strings.TrimSpace(want)
	return func(t *Target) (string, bool) {
		sibling := t.Scope[ref]
		if !strings.EqualFold(stringify(sibling), want) {
			return "", true
		}
		if isEmpty(t.Value) {
			return "is required", false
		}
		return "", true
	}, nil
}

func minItemsRule(_ FieldDefinition, rule Rule) (Check, error) {
	limit, err := intParam(rule, "value")
	if err != nil {
		return nil, err
	}
	return func(t *Target) (string, bool) {
		if count := itemCount(t.Value); count < limit {
			return fmt.Sprintf("must contain at least %d %s", limit, plural(limit, "item")), false
		}
		return "", true
	}, nil
}

func minLengthRule(_ FieldDefinition, rule Rule) (Check, error) {
	limit, err := intParam(rule, "value")
	if err != nil {
		return nil, err
	}
	return func(t *Target) (string, bool) {
		if length(t.Value) < limit {
			return fmt.Sprintf("must be at least %d %s", limit, plural(limit, "character")), false
		}
		return "", true
	}, nil
}

func maxLengthRule(_ FieldDefinition, rule Rule) (Check, error) {
	limit, err := intParam(rule, "value")
	if err != nil {
		return nil, err
	}
	return func(t *Target) (string, bool) {
		if length(t.Value) > limit {
			return fmt.Sprintf("must be at most %d %s", limit, plural(limit, "character")), false
		}
		return "", true
	}, nil
}

func lengthRule(_ FieldDefinition, rule Rule) (Check, error) {
	limit, err := intParam(rule, "value")
	if err != nil {
		return nil, err
	}
	return func(t *Target) (string, bool) {
		if length(t.Value) != limit {
			return fmt.Sprintf("must be exactly %d %s", limit, plural(limit, "character")), false
		}
		return "", true
	}, nil
}

func patternRule(_ FieldDefinition, rule Rule) (Check, error) {
	expr := rule.Param("pattern")
	if expr == "" {
		return nil, errors.New("pattern needs a pattern param")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return func(t *Target) (string, bool) {
		if !re.MatchString(stringify(t.Value)) {
			return "has an invalid format", false
		}
		return "", true
	}, nil
}

func numberRule(_ FieldDefinition, _ Rule) (Check, error) {
	return func(t *Target) (string, bool) {
		n, ok := toFloat(t.Value)
		if !ok {
			return "must be a number", false
		}
		t.Value = n
		return "", true
	}, nil
}

func integerRule(_ FieldDefinition, _ Rule) (Check, error) {
	return func(t *Target) (string, bool) {
		n, ok := toFloat(t.Value)
		if !ok || n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return "must be an integer", false
		}
		t.Value = int64(n)
		return "", true
	}, nil
}

func minRule(_ FieldDefinition, rule Rule) (Check, error) {
	limit, err := floatParam(rule, "value")
	if err != nil {
		return nil, err
	}
	exclusive := rule.Param("exclusive") == "true"
	return func(t *Target) (string, bool) {
		n, ok := toFloat(t.Value)
		if !ok {
			return "must be a number", false
		}
		if n < limit || (exclusive && n == limit) {
			if exclusive {
				return fmt.Sprintf("must be greater than %s", formatFloat(limit)), false
			}
			return fmt.Sprintf("must be at least %s", formatFloat(limit)), false
		}
		return "", true
	}, nil
}

func maxRule(_ FieldDefinition, rule Rule) (Check, error) {
	limit, err := floatParam(rule, "value")
	if err != nil {
		return nil, err
	}
	exclusive := rule.Param("exclusive") == "true"
	return func(t *Target) (string, bool) {
		n, ok := toFloat(t.Value)
		if !ok {
			return "must be a number", false
		}
		if n > limit || (exclusive && n == limit) {
			if exclusive {
				return fmt.Sprintf("must be less than %s", formatFloat(limit)), false
			}
			return fmt.Sprintf("must be at most %s", formatFloat(limit)), false
		}
		return "", true
	}, nil
}

func enumRule(_ FieldDefinition, rule Rule) (Check, error) {
	allowed := splitList(rule.Param("values"))
	if len(allowed) == 0 {
		return nil, errors.New("enum needs a non-empty values param")
	}
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}
	message := "must be one of: " + strings.Join(allowed, ", ")
	return func(t *Target) (string, bool) {
		for _, candidate := range elements(t.Value) {
			if _, ok := set[stringify(candidate)]; !ok {
				return message, false
			}
		}
		return "", true
	}, nil
}

func equalsRule(_ FieldDefinition, rule Rule) (Check, error) {
	ref := strings.TrimSpace(rule.Param("field"))
	if ref == "" {
		return nil, errors.New("equals needs a field param")
	}
	label := strings.TrimSpace(rule.Param("label"))
	if label == "" {
		label = ref
	}
	return func(t *Target) (string, bool) {
		if stringify(t.Value) != stringify(t.Scope[ref]) {
			return "must match " + label, false
		}
		return "", true
	}, nil
}

func afterRule(_ FieldDefinition, rule Rule) (Check, error) {
	ref := strings.TrimSpace(rule.Param("field"))
	if ref == "" {
		return nil, errors.New("after needs a field param")
	}
	label := strings.TrimSpace(rule.Param("label"))
	if label == "" {
		label = ref
	}
	return func(t *Target) (string, bool) {
		start := t.Scope[ref]
		if isEmpty(start) {
			return "", true
		}
		end, ok := toTime(t.Value)
		if !ok {
			return "must be a valid date", false
		}
		begin, ok := toTime(start)
		if !ok {
			// the start field reports its own format problem
			return "", true
		}
		if end.Before(begin) {
			return "must not be before " + label, false
		}
		return "", true
	}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func intParam(rule Rule, name string) (int, error) {
	raw := strings.TrimSpace(rule.Param(name))
	if raw == "" {
		return 0, fmt.Errorf("missing %s param", name)
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("param %s must be a non-negative integer, got %q", name, raw)
	}
	return value, nil
}

func floatParam(rule Rule, name string) (float64, error) {
	raw := strings.TrimSpace(rule.Param(name))
	if raw == "" {
		return 0, fmt.Errorf("missing %s param", name)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("param %s must be numeric, got %q", name, raw)
	}
	return value, nil
}

func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func itemCount(value any) int {
	if value == nil {
		return 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len()
	}
	return 0
}

func elements(value any) []any {
	switch typed := value.(type) {
	case []any:
		return typed
	case []string:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out
	default:
		return []any{value}
	}
}

func length(value any) int {
	return len([]rune(stringify(value)))
}

func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return formatFloat(typed)
	case float32:
		return formatFloat(float64(typed))
	default:
		return fmt.Sprint(typed)
	}
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func toTime(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		return typed, !typed.IsZero()
	case *time.Time:
		if typed == nil {
			return time.Time{}, false
		}
		return *typed, !typed.IsZero()
	case string:
		raw := strings.TrimSpace(typed)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
