package selection

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model is a bubbletea front end for a Widget: arrows move the cursor, space
// toggles, enter confirms and esc aborts. Window size messages resize the
// widget so its summary line follows the terminal width.
type Model struct {
	widget    *Widget
	styles    Styles
	cursor    int
	done      bool
	cancelled bool
	title     string
}

// NewModel wraps widget.
func NewModel(widget *Widget, title string) Model {
	return Model{widget: widget, styles: DefaultStyles(), title: title}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.widget.Resize(msg.Width)
	case tea.KeyMsg:
		options := m.widget.Catalog().Options()
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(options)-1 {
				m.cursor++
			}
		case " ", "x":
			if m.cursor < len(options) {
				m.widget.Toggle(options[m.cursor])
			}
		case "enter":
			m.done = true
			return m, tea.Quit
		case "esc", "ctrl+c", "q":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	header := lipgloss.NewStyle().Bold(true).Render(m.title)
	summary := m.widget.Display()
	if summary == "" {
		summary = "nothing selected"
	}
	body := Render(m.widget.Catalog(), m.widget.Selection(), m.cursor, m.widget.Width(), m.styles)
	footer := m.styles.Separator.Render("space: toggle  enter: done  esc: cancel")
	return lipgloss.JoinVertical(lipgloss.Left, header, summary, "", body, "", footer)
}

// Cursor returns the highlighted option index.
func (m Model) Cursor() int { return m.cursor }

// Confirmed reports whether the user finished with enter.
func (m Model) Confirmed() bool { return m.done && !m.cancelled }
