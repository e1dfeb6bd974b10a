package selection

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles controls how Render draws the option list.
type Styles struct {
	Heading   lipgloss.Style
	Option    lipgloss.Style
	Selected  lipgloss.Style
	Cursor    lipgloss.Style
	Separator lipgloss.Style
}

// DefaultStyles returns the stock palette.
func DefaultStyles() Styles {
	return Styles{
		Heading:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		Option:    lipgloss.NewStyle(),
		Selected:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Cursor:    lipgloss.NewStyle().Reverse(true),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Render draws catalog with a checkbox per option. Grouped catalogs get a
// heading per group and a separator line between groups. cursor indexes the
// flattened option list; pass -1 for none.
func Render(catalog Catalog, sel *Selection, cursor int, width int, styles Styles) string {
	var b strings.Builder
	index := 0
	line := func(opt Option) {
		mark := "[ ]"
		style := styles.Option
		if sel != nil && sel.Contains(opt.Value) {
			mark = "[x]"
			style = styles.Selected
		}
		text := style.Render(mark + " " + opt.Text())
		if index == cursor {
			text = styles.Cursor.Render(mark + " " + opt.Text())
		}
		b.WriteString(text)
		b.WriteByte('\n')
		index++
	}

	if !catalog.IsGrouped() {
		for _, opt := range catalog.Options() {
			line(opt)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	if width <= 0 {
		width = 20
	}
	for i, group := range catalog.Groups() {
		if i > 0 {
			b.WriteString(styles.Separator.Render(strings.Repeat("─", width)))
			b.WriteByte('\n')
		}
		b.WriteString(styles.Heading.Render(group.Name))
		b.WriteByte('\n')
		for _, opt := range group.Options {
			line(opt)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
