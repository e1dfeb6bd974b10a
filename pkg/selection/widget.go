package selection

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Separator joins selected labels in the collapsed display.
const Separator = ", "

// Measurer reports the rendered width of a label string.
type Measurer interface {
	Width(text string) int
}

// MeasurerFunc adapts a function to Measurer.
type MeasurerFunc func(text string) int

func (f MeasurerFunc) Width(text string) int { return f(text) }

// CellMeasurer measures terminal cells, ignoring ANSI styling.
var CellMeasurer Measurer = MeasurerFunc(lipgloss.Width)

// Summary is the compact display used when the labels do not fit.
func Summary(n int) string {
	return fmt.Sprintf("%d selected", n)
}

// WidgetOption customises a Widget.
type WidgetOption func(*Widget)

// WithMeasurer replaces the default cell measurer.
func WithMeasurer(m Measurer) WidgetOption {
	return func(w *Widget) {
		if m != nil {
			w.measurer = m
		}
	}
}

// WithWidth sets the initial available width.
func WithWidth(width int) WidgetOption {
	return func(w *Widget) {
		w.width = width
	}
}

// WithSelection starts the widget from an existing selection.
func WithSelection(sel *Selection) WidgetOption {
	return func(w *Widget) {
		if sel != nil {
			w.selection = sel
		}
	}
}

// Widget combines a selection, its catalog and the space available to show
// it. The display string is recomputed on every toggle and resize, and
// subscribers hear about it only when it actually changes.
type Widget struct {
	selection *Selection

	mu        sync.Mutex
	catalog   Catalog
	measurer  Measurer
	width     int
	display   string
	listeners map[int]func(string)
	nextID    int
	unsub     func()
}

// NewWidget builds a widget over catalog.
func NewWidget(catalog Catalog, options ...WidgetOption) *Widget {
	w := &Widget{
		selection: NewSelection(),
		catalog:   catalog,
		measurer:  CellMeasurer,
		listeners: make(map[int]func(string)),
	}
	for _, opt := range options {
		if opt != nil {
			opt(w)
		}
	}
	w.display = w.compute(w.selection.Options())
	w.unsub = w.selection.Subscribe(func(items []Option) {
		w.refresh(items)
	})
	return w
}

// Selection exposes the underlying selection.
func (w *Widget) Selection() *Selection { return w.selection }

// Toggle flips option in the selection.
func (w *Widget) Toggle(option Option) bool {
	return w.selection.Toggle(option)
}

// ToggleValue flips the option with value, using the catalog label when the
// catalog knows it. Unknown values are still toggled.
func (w *Widget) ToggleValue(value string) bool {
	w.mu.Lock()
	opt, ok := w.catalog.Lookup(value)
	w.mu.Unlock()
	if !ok {
		opt = Option{Value: value}
	}
	return w.Toggle(opt)
}

// Resize records a new available width.
func (w *Widget) Resize(width int) {
	w.mu.Lock()
	w.width = width
	w.mu.Unlock()
	w.refresh(w.selection.Options())
}

// SetCatalog swaps the catalog, e.g. after it finished loading. The
// selection is untouched.
func (w *Widget) SetCatalog(catalog Catalog) {
	w.mu.Lock()
	w.catalog = catalog
	w.mu.Unlock()
}

// Catalog returns the current catalog.
func (w *Widget) Catalog() Catalog {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.catalog
}

// Width returns the available width.
func (w *Widget) Width() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width
}

// Display returns the joined labels when they fit the available width and
// the "N selected" summary otherwise. A width of zero or less means the
// space is unconstrained.
func (w *Widget) Display() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.display
}

// Subscribe registers fn for display changes.
func (w *Widget) Subscribe(fn func(display string)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

// Close detaches the widget from its selection.
func (w *Widget) Close() {
	w.mu.Lock()
	unsub := w.unsub
	w.unsub = nil
	w.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (w *Widget) refresh(items []Option) {
	w.mu.Lock()
	next := w.compute(items)
	if next == w.display {
		w.mu.Unlock()
		return
	}
	w.display = next
	listeners := make([]func(string), 0, len(w.listeners))
	for _, fn := range w.listeners {
		listeners = append(listeners, fn)
	}
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

// compute must be called with mu held (or before the widget is shared).
func (w *Widget) compute(items []Option) string {
	if len(items) == 0 {
		return ""
	}
	labels := make([]string, len(items))
	for i, opt := range items {
		labels[i] = opt.Text()
	}
	joined := strings.Join(labels, Separator)
	if w.width <= 0 || w.measurer.Width(joined) <= w.width {
		return joined
	}
	return Summary(len(items))
}
