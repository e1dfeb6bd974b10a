package selection

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
)

func TestToggleTwiceRestoresSelection(t *testing.T) {
	initial := []Option{{Value: "a"}, {Value: "b"}, {Value: "c"}}
	for _, opt := range []Option{{Value: "a"}, {Value: "b"}, {Value: "c"}, {Value: "z"}} {
		sel := NewSelection(initial...)
		sel.Toggle(opt)
		sel.Toggle(opt)
		if diff := cmp.Diff([]string{"a", "b", "c"}, sel.Values()); diff != "" {
			t.Fatalf("toggle %q twice (-want +got):\n%s", opt.Value, diff)
		}
	}
}

func TestToggleRemovalPreservesOrder(t *testing.T) {
	sel := NewSelection(Option{Value: "a"}, Option{Value: "b"}, Option{Value: "c"})
	if sel.Toggle(Option{Value: "b"}) {
		t.Fatalf("expected b to be deselected")
	}
	if !sel.Toggle(Option{Value: "b"}) {
		t.Fatalf("expected b to be selected again")
	}
	if diff := cmp.Diff([]string{"a", "c", "b"}, sel.Values()); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupedCatalogKeepsInsertionOrder(t *testing.T) {
	catalog, err := ParseCatalog([]byte(`[
		{"groupName": "A", "options": [{"value": "1"}]},
		{"groupName": "B", "options": [{"value": "2"}]}
	]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !catalog.IsGrouped() {
		t.Fatalf("expected grouped catalog")
	}

	w := NewWidget(catalog)
	w.ToggleValue("2")
	w.ToggleValue("1")
	if diff := cmp.Diff([]string{"2", "1"}, w.Selection().Values()); diff != "" {
		t.Fatalf("selection order mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCatalogFlat(t *testing.T) {
	catalog, err := ParseCatalog([]byte(`[{"value":"gem","label":"Gem"},{"value":"coin"}]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if catalog.IsGrouped() {
		t.Fatalf("expected flat catalog")
	}
	want := []Option{{Value: "gem", Label: "Gem"}, {Value: "coin"}}
	if diff := cmp.Diff(want, catalog.Options()); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseCatalog([]byte(`["gem"]`)); err == nil {
		t.Fatalf("expected error for non-object elements")
	}
	extra, err := ParseCatalog([]byte(`[{"value":"gem","label":"Gem","icon":"gem.png","disabled":false}]`))
	if err != nil {
		t.Fatalf("expected extra option keys to be ignored, got %v", err)
	}
	if diff := cmp.Diff([]Option{{Value: "gem", Label: "Gem"}}, extra.Options()); diff != "" {
		t.Fatalf("options with extra keys mismatch (-want +got):\n%s", diff)
	}
	empty, err := ParseCatalog([]byte(`[]`))
	if err != nil || empty.Len() != 0 {
		t.Fatalf("expected empty flat catalog, got %v (%v)", empty, err)
	}
}

func TestToggleUnknownValueIsAllowed(t *testing.T) {
	w := NewWidget(Flat(Option{Value: "gem", Label: "Gem"}))
	if !w.ToggleValue("legacy") {
		t.Fatalf("expected unknown value to be selected")
	}
	if !w.Selection().Contains("legacy") {
		t.Fatalf("expected selection to hold the unknown value")
	}
	w.SetCatalog(Flat())
	if !w.Selection().Contains("legacy") {
		t.Fatalf("catalog swaps must not touch the selection")
	}
}

func charCount(text string) int { return len(text) }

func TestDisplayCollapsesWhenLabelsOverflow(t *testing.T) {
	catalog := Flat(
		Option{Value: "1", Label: "Alpha"},
		Option{Value: "2", Label: "Beta"},
		Option{Value: "3", Label: "Gamma"},
	)
	w := NewWidget(catalog, WithMeasurer(MeasurerFunc(charCount)), WithWidth(12))

	var seen []string
	w.Subscribe(func(display string) { seen = append(seen, display) })

	w.ToggleValue("1")
	if got := w.Display(); got != "Alpha" {
		t.Fatalf("expected joined label, got %q", got)
	}
	w.ToggleValue("2")
	if got := w.Display(); got != "Alpha, Beta" {
		t.Fatalf("expected joined labels, got %q", got)
	}
	w.ToggleValue("3")
	if got := w.Display(); got != "3 selected" {
		t.Fatalf("expected summary, got %q", got)
	}

	w.Resize(40)
	if got := w.Display(); got != "Alpha, Beta, Gamma" {
		t.Fatalf("expected resize to expand the labels, got %q", got)
	}
	w.Resize(41)

	want := []string{"Alpha", "Alpha, Beta", "3 selected", "Alpha, Beta, Gamma"}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Fatalf("display events mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderGroupedCatalog(t *testing.T) {
	catalog := Grouped(
		Group{Name: "Currency", Options: []Option{{Value: "gem", Label: "Gem"}}},
		Group{Name: "Boosters", Options: []Option{{Value: "xp", Label: "XP x2"}}},
	)
	sel := NewSelection(Option{Value: "xp"})
	out := Render(catalog, sel, -1, 10, Styles{})

	lines := strings.Split(out, "\n")
	want := []string{"Currency", "[ ] Gem", strings.Repeat("─", 10), "Boosters", "[x] XP x2"}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestModelKeysAndResize(t *testing.T) {
	w := NewWidget(Flat(Option{Value: "a", Label: "A"}, Option{Value: "b", Label: "B"}), WithMeasurer(MeasurerFunc(charCount)))
	var model tea.Model = NewModel(w, "Pick")

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if diff := cmp.Diff([]string{"b", "a"}, w.Selection().Values()); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}

	model, _ = model.Update(tea.WindowSizeMsg{Width: 3, Height: 10})
	if got := w.Display(); got != "2 selected" {
		t.Fatalf("expected narrow window to collapse, got %q", got)
	}

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if !model.(Model).Confirmed() {
		t.Fatalf("expected confirmed model")
	}
}

func TestCatalogSearchRanksPrefixFirst(t *testing.T) {
	catalog := Grouped(
		Group{Name: "Weapons", Options: []Option{{Value: "short-sword", Label: "Short sword"}, {Value: "sword", Label: "Sword"}}},
		Group{Name: "Shields", Options: []Option{{Value: "swordbreaker", Label: "Swordbreaker"}, {Value: "buckler"}}},
	)

	got := catalog.Search("  SWORD ", 0)
	want := []Option{
		{Value: "sword", Label: "Sword"},
		{Value: "swordbreaker", Label: "Swordbreaker"},
		{Value: "short-sword", Label: "Short sword"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}
	if got := catalog.Search("sword", 1); len(got) != 1 || got[0].Value != "sword" {
		t.Fatalf("expected limit to keep the best match, got %v", got)
	}
	if got := catalog.Search("", 0); got != nil {
		t.Fatalf("expected empty query to match nothing, got %v", got)
	}
}
