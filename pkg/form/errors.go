package form

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// FieldErrorer is implemented by errors that attribute messages to inputs,
// such as *api.Error.
type FieldErrorer interface {
	FieldErrors() map[string][]string
}

// ErrorMapping splits a server error payload into messages keyed by declared
// field paths and messages that belong to the form as a whole.
type ErrorMapping struct {
	Fields map[string]string
	Form   []string
}

// MapFieldErrors normalises server error keys (dotted, bracketed or JSON
// pointer) onto paths declared by declares. Keys that match no declared
// path are kept as form-level messages so nothing is lost. Each field keeps
// its first message.
func MapFieldErrors(declares func(path string) bool, payload map[string][]string) ErrorMapping {
	var mapping ErrorMapping
	for _, key := range slices.Sorted(maps.Keys(payload)) {
		messages := uniqueTrimmed(payload[key])
		if len(messages) == 0 {
			continue
		}
		path, ok := resolveErrorKey(key, declares)
		if !ok {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		if mapping.Fields == nil {
			mapping.Fields = make(map[string]string)
		}
		if _, taken := mapping.Fields[path]; !taken {
			mapping.Fields[path] = messages[0]
		}
	}
	mapping.Form = uniqueTrimmed(mapping.Form)
	return mapping
}

// uniqueTrimmed drops blank and repeated messages, keeping first occurrences.
func uniqueTrimmed(messages []string) []string {
	var out []string
	for _, message := range messages {
		message = strings.TrimSpace(message)
		if message != "" && !slices.Contains(out, message) {
			out = append(out, message)
		}
	}
	return out
}

func resolveErrorKey(key string, declares func(string) bool) (string, bool) {
	if declares == nil || isFormLevelKey(key) {
		return "", false
	}
	segments := splitErrorKey(key)
	if path := longestDeclaredPrefix(segments, declares); path != "" {
		return path, true
	}
	if path := longestDeclaredPrefix(dropWrapperSegments(segments), declares); path != "" {
		return path, true
	}
	return "", false
}

// splitErrorKey accepts "a.b", "a[0].b", "/a/0/b" and "#/a/0/b". JSON pointer
// escapes are decoded per segment.
func splitErrorKey(key string) []string {
	fields := strings.FieldsFunc(key, func(r rune) bool {
		switch r {
		case '.', '/', '[', ']', '#', '$':
			return true
		}
		return unicode.IsSpace(r)
	})
	pointer := strings.NewReplacer("~1", "/", "~0", "~")
	for i, field := range fields {
		fields[i] = pointer.Replace(field)
	}
	return fields
}

// wrapperSegments are envelope names some backends prefix onto field keys.
var wrapperSegments = []string{"body", "request", "payload", "data", "attributes"}

func dropWrapperSegments(segments []string) []string {
	for len(segments) > 0 && slices.Contains(wrapperSegments, strings.ToLower(segments[0])) {
		segments = segments[1:]
	}
	return segments
}

// longestDeclaredPrefix walks back from the full path so "rewards.0.amount.x"
// still lands on "rewards.0.amount". A trailing index alone never matches.
func longestDeclaredPrefix(segments []string, declares func(string) bool) string {
	for end := len(segments); end > 0; end-- {
		if _, err := strconv.Atoi(segments[end-1]); err == nil {
			continue
		}
		candidate := strings.Join(segments[:end], ".")
		if declares(candidate) {
			return candidate
		}
	}
	return ""
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "base", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}
