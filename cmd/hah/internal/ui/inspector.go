package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/recera/hah/pkg/hah"
)

// Tab is one page of the inspector.
type Tab int

const (
	TabSource Tab = iota
	TabTree
	TabOutput
	TabDiagnostics
)

var tabNames = [...]string{"Source", "Tree", "Output", "Diagnostics"}

func (t Tab) String() string {
	return tabNames[t]
}

// KeyMap defines the inspector's keyboard shortcuts
type KeyMap struct {
	Next key.Binding
	Prev key.Binding
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	Next: key.NewBinding(
		key.WithKeys("tab", "right", "l"),
		key.WithHelp("tab/→", "next tab"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "left", "h"),
		key.WithHelp("shift+tab/←", "previous tab"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q", "esc"),
		key.WithHelp("q", "quit"),
	),
}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(primaryColor).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// Inspector is a bubbletea model that pages through a compiled document.
type Inspector struct {
	name  string
	pages [len(tabNames)]string
	tab   Tab

	viewport viewport.Model
	ready    bool
}

// NewInspector prepares the pages for doc. A compile error replaces the
// output page.
func NewInspector(doc *hah.Document) *Inspector {
	p := NewPrinter(io.Discard)
	m := &Inspector{name: doc.Name()}

	output, err := doc.Render()

	m.pages[TabSource] = p.Source(doc.Lines())
	m.pages[TabTree] = doc.Root().Dump()
	if err != nil {
		m.pages[TabOutput] = p.Failure(err.Error()) + "\n"
	} else {
		m.pages[TabOutput] = p.Listing(output)
	}
	m.pages[TabDiagnostics] = p.Diagnostics(doc.Name(), doc.Diagnostics())

	return m
}

// Tab returns the page being shown.
func (m *Inspector) Tab() Tab {
	return m.tab
}

// Page returns the text of a page.
func (m *Inspector) Page(t Tab) string {
	return m.pages[t]
}

func (m *Inspector) Init() tea.Cmd {
	return nil
}

func (m *Inspector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 4 // tabs and help line
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.viewport.SetContent(m.pages[m.tab])
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Quit):
			return m, tea.Quit
		case key.Matches(msg, DefaultKeyMap.Next):
			m.show((m.tab + 1) % Tab(len(tabNames)))
			return m, nil
		case key.Matches(msg, DefaultKeyMap.Prev):
			m.show((m.tab + Tab(len(tabNames)) - 1) % Tab(len(tabNames)))
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Inspector) show(t Tab) {
	m.tab = t
	if m.ready {
		m.viewport.SetContent(m.pages[t])
		m.viewport.GotoTop()
	}
}

func (m *Inspector) View() string {
	if !m.ready {
		return "loading..."
	}

	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if Tab(i) == m.tab {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = inactiveTabStyle.Render(name)
		}
	}

	header := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)
	help := helpStyle.Render(fmt.Sprintf("%s  %3.f%%  •  tab/←/→ switch  •  ↑/↓ scroll  •  q quit",
		m.name, m.viewport.ScrollPercent()*100))

	return strings.Join([]string{header, m.viewport.View(), help}, "\n")
}

// RunInspector opens the inspector for doc in the terminal.
func RunInspector(doc *hah.Document) error {
	_, err := tea.NewProgram(NewInspector(doc), tea.WithAltScreen()).Run()
	return err
}
