// Package fieldpath resolves dotted paths ("owner.email", "rewards.0.amount")
// against the map[string]any value trees that forms and schemas share.
// Numeric segments index into []any slices; every other segment is a map key.
package fieldpath

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Split breaks a dotted path into its segments, dropping empty ones.
func Split(path string) []string {
	raw := strings.Split(strings.TrimSpace(path), ".")
	out := raw[:0]
	for _, segment := range raw {
		if segment = strings.TrimSpace(segment); segment != "" {
			out = append(out, segment)
		}
	}
	return out
}

// Join concatenates path segments, skipping blanks.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.Trim(strings.TrimSpace(part), "."); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, ".")
}

// Get resolves path inside root.
func Get(root map[string]any, path string) (any, bool) {
	segments := Split(path)
	if root == nil || len(segments) == 0 {
		return nil, false
	}
	var current any = root
	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		case []map[string]any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set writes value at path, creating intermediate maps and slices as needed.
func Set(root map[string]any, path string, value any) error {
	if root == nil {
		return fmt.Errorf("fieldpath: root map is nil")
	}
	segments := Split(path)
	if len(segments) == 0 {
		return fmt.Errorf("fieldpath: empty path")
	}
	if _, err := strconv.Atoi(segments[0]); err == nil {
		return fmt.Errorf("fieldpath: path %q cannot start with an index", path)
	}
	_, err := setIn(root, segments, value, path)
	return err
}

func setIn(node any, segments []string, value any, path string) (any, error) {
	segment := segments[0]
	last := len(segments) == 1

	if idx, err := strconv.Atoi(segment); err == nil {
		if idx < 0 {
			return nil, fmt.Errorf("fieldpath: negative index in path %q", path)
		}
		list, _ := node.([]any)
		if len(list) <= idx {
			list = append(list, make([]any, idx+1-len(list))...)
		}
		if last {
			list[idx] = value
			return list, nil
		}
		child, err := setIn(list[idx], segments[1:], value, path)
		if err != nil {
			return nil, err
		}
		list[idx] = child
		return list, nil
	}

	obj, ok := node.(map[string]any)
	if !ok {
		if node != nil {
			return nil, fmt.Errorf("fieldpath: unexpected container for segment %q in %q", segment, path)
		}
		obj = make(map[string]any)
	}
	if last {
		obj[segment] = value
		return obj, nil
	}
	child, err := setIn(obj[segment], segments[1:], value, path)
	if err != nil {
		return nil, err
	}
	obj[segment] = child
	return obj, nil
}

// Clone deep-copies a value tree so callers can hand out snapshots.
func Clone(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return Clone(typed)
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = cloneValue(v)
		}
		return clone
	case []map[string]any:
		clone := make([]map[string]any, len(typed))
		for i, v := range typed {
			clone[i] = Clone(v)
		}
		return clone
	case []string:
		return append([]string(nil), typed...)
	default:
		return typed
	}
}

// Leaves lists every leaf path in root in sorted order. Empty maps and slices
// count as leaves so they stay addressable.
func Leaves(root map[string]any) []string {
	var out []string
	collectLeaves("", root, &out)
	sort.Strings(out)
	return out
}

func collectLeaves(prefix string, value any, out *[]string) {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 && prefix != "" {
			*out = append(*out, prefix)
			return
		}
		for k, v := range typed {
			collectLeaves(Join(prefix, k), v, out)
		}
	case []any:
		if len(typed) == 0 {
			*out = append(*out, prefix)
			return
		}
		for i, v := range typed {
			collectLeaves(Join(prefix, strconv.Itoa(i)), v, out)
		}
	default:
		if prefix != "" {
			*out = append(*out, prefix)
		}
	}
}
