package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Catalog is the list of options a widget offers, either flat or grouped.
type Catalog struct {
	options []Option
	groups  []Group
	grouped bool
}

// Flat builds an ungrouped catalog.
func Flat(options ...Option) Catalog {
	return Catalog{options: append([]Option(nil), options...)}
}

// Grouped builds a grouped catalog.
func Grouped(groups ...Group) Catalog {
	return Catalog{groups: append([]Group(nil), groups...), grouped: true}
}

// IsGrouped reports whether the catalog renders with group headings.
func (c Catalog) IsGrouped() bool { return c.grouped }

// Groups returns the groups of a grouped catalog.
func (c Catalog) Groups() []Group { return append([]Group(nil), c.groups...) }

// Options returns every option in catalog order, flattening groups.
func (c Catalog) Options() []Option {
	if !c.grouped {
		return append([]Option(nil), c.options...)
	}
	var out []Option
	for _, g := range c.groups {
		out = append(out, g.Options...)
	}
	return out
}

// Lookup finds the option with value.
func (c Catalog) Lookup(value string) (Option, bool) {
	for _, opt := range c.Options() {
		if opt.Value == value {
			return opt, true
		}
	}
	return Option{}, false
}

// Search returns up to limit options whose label or value contains query,
// case-insensitively. Prefix matches come first, then catalog order. An empty
// query matches nothing; limit <= 0 means no limit.
func (c Catalog) Search(query string, limit int) []Option {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var prefix, contains []Option
	for _, opt := range c.Options() {
		label, value := strings.ToLower(opt.Text()), strings.ToLower(opt.Value)
		switch {
		case strings.HasPrefix(label, q) || strings.HasPrefix(value, q):
			prefix = append(prefix, opt)
		case strings.Contains(label, q) || strings.Contains(value, q):
			contains = append(contains, opt)
		}
	}
	out := append(prefix, contains...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len counts the options.
func (c Catalog) Len() int { return len(c.Options()) }

// ParseCatalog decodes a JSON array of options or of groups. The shape is
// decided by the first element alone: when it carries a "groupName" key the
// whole array is read as groups. Arrays mixing both shapes are not
// supported and decode however the first element dictates.
func ParseCatalog(data []byte) (Catalog, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Catalog{}, fmt.Errorf("selection: decode catalog: %w", err)
	}
	if len(raw) == 0 {
		return Flat(), nil
	}

	var first map[string]json.RawMessage
	if err := json.Unmarshal(raw[0], &first); err != nil {
		return Catalog{}, errors.New("selection: catalog elements must be objects")
	}
	if _, grouped := first["groupName"]; grouped {
		var groups []Group
		if err := json.Unmarshal(data, &groups); err != nil {
			return Catalog{}, fmt.Errorf("selection: decode groups: %w", err)
		}
		return Grouped(groups...), nil
	}

	var options []Option
	if err := json.Unmarshal(data, &options); err != nil {
		return Catalog{}, fmt.Errorf("selection: decode options: %w", err)
	}
	return Flat(options...), nil
}
