package form

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans user-entered text before it is submitted.
// *bluemonday.Policy satisfies it.
type Sanitizer interface {
	Sanitize(s string) string
}

var (
	strictOnce   sync.Once
	strictPolicy *bluemonday.Policy
)

// plainText strips every tag and hands back unescaped text, so that "a & b"
// survives a round trip through the strict policy.
type plainText struct {
	policy *bluemonday.Policy
}

func (p plainText) Sanitize(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return html.UnescapeString(p.policy.Sanitize(s))
}

// StrictSanitizer removes all markup.
func StrictSanitizer() Sanitizer {
	strictOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return plainText{policy: strictPolicy}
}

// sanitizeValues rewrites every string leaf of values in place, skipping the
// exempt top-level paths.
func sanitizeValues(values map[string]any, s Sanitizer, exempt map[string]bool, prefix string) {
	for key, value := range values {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if exempt[path] {
			continue
		}
		values[key] = sanitizeValue(value, s, exempt, path)
	}
}

func sanitizeValue(value any, s Sanitizer, exempt map[string]bool, path string) any {
	switch typed := value.(type) {
	case string:
		return s.Sanitize(typed)
	case map[string]any:
		sanitizeValues(typed, s, exempt, path)
		return typed
	case []map[string]any:
		for _, item := range typed {
			sanitizeValues(item, s, exempt, path)
		}
		return typed
	case []any:
		for i, item := range typed {
			typed[i] = sanitizeValue(item, s, exempt, path)
		}
		return typed
	case []string:
		for i, item := range typed {
			typed[i] = s.Sanitize(item)
		}
		return typed
	default:
		return value
	}
}
