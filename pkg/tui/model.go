// Package tui provides the interactive document browser behind binnctl view.
// It is built on the bubbletea/lipgloss stack and shows an inspect.Node tree
// whose containers can be folded and unfolded.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/strand-protocol/binn/pkg/inspect"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("236"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(1)
)

// chrome is the number of lines used by the title bar, the divider and the
// two status lines.
const chrome = 4

type row struct {
	node  *inspect.Node
	depth int
}

// Model is the bubbletea model of the browser.
type Model struct {
	title    string
	root     *inspect.Node
	expanded map[*inspect.Node]bool
	rows     []row
	cursor   int
	top      int
	width    int
	height   int
}

// New returns a Model showing root with only the root container unfolded.
func New(title string, root *inspect.Node) Model {
	m := Model{
		title:    title,
		root:     root,
		expanded: map[*inspect.Node]bool{root: true},
	}
	m.rebuild()
	return m
}

// Run starts the browser on the alternate screen and blocks until it quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Selected returns the node under the cursor.
func (m Model) Selected() *inspect.Node {
	if len(m.rows) == 0 {
		return nil
	}
	return m.rows[m.cursor].node
}

// Update processes messages and returns an updated model plus any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scroll()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		if len(m.rows) == 0 {
			return m, nil
		}
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.cursor = len(m.rows) - 1
		case "enter", " ":
			m.toggle(!m.expanded[m.Selected()])
		case "right", "l":
			m.toggle(true)
		case "left", "h":
			if n := m.Selected(); n.IsContainer() && m.expanded[n] {
				m.toggle(false)
			} else {
				m.cursor = m.parentRow()
			}
		}
		m.scroll()
		return m, nil
	}
	return m, nil
}

func (m *Model) toggle(open bool) {
	n := m.Selected()
	if n == nil || !n.IsContainer() {
		return
	}
	m.expanded[n] = open
	m.rebuild()
}

// parentRow returns the row of the cursor's parent, or the cursor itself at
// the root.
func (m Model) parentRow() int {
	d := m.rows[m.cursor].depth
	for i := m.cursor - 1; i >= 0; i-- {
		if m.rows[i].depth < d {
			return i
		}
	}
	return m.cursor
}

func (m *Model) rebuild() {
	m.rows = nil
	var walk func(n *inspect.Node, depth int)
	walk = func(n *inspect.Node, depth int) {
		m.rows = append(m.rows, row{node: n, depth: depth})
		if !m.expanded[n] {
			return
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	if m.root != nil {
		walk(m.root, 0)
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// scroll keeps the cursor inside the visible window.
func (m *Model) scroll() {
	h := m.listHeight()
	if m.cursor < m.top {
		m.top = m.cursor
	}
	if m.cursor >= m.top+h {
		m.top = m.cursor - h + 1
	}
}

func (m Model) listHeight() int {
	if h := m.height - chrome; h > 1 {
		return h
	}
	return 1
}

// View renders the browser to a string.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading…"
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n")

	end := m.top + m.listHeight()
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for i := m.top; i < end; i++ {
		line := m.renderRow(m.rows[i])
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("─", m.width))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	return sb.String()
}

func (m Model) renderRow(r row) string {
	n := r.node
	marker := "  "
	if n.IsContainer() {
		if m.expanded[n] {
			marker = "▾ "
		} else {
			marker = "▸ "
		}
	}
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", r.depth))
	sb.WriteString(marker)
	if n.Key != "" {
		sb.WriteString(keyStyle.Render(n.Key + ":"))
		sb.WriteString(" ")
	}
	sb.WriteString(tagStyle.Render(n.TagName))
	if n.Summary != "" {
		sb.WriteString(" ")
		sb.WriteString(n.Summary)
	}
	if n.SizeMismatch {
		sb.WriteString(" ")
		sb.WriteString(warnStyle.Render("!"))
	}
	return sb.String()
}

func (m Model) renderStatus() string {
	parts := []string{"q: quit  ↑/↓: move  enter: fold"}
	if n := m.Selected(); n != nil {
		info := fmt.Sprintf("offset 0x%x  len %d  tag 0x%02x", n.Offset, n.Len, n.Tag)
		if n.IsContainer() {
			info += fmt.Sprintf("  declared %d", n.DeclaredSize)
		}
		parts = append([]string{info}, parts...)
	}
	return statusBarStyle.Render(strings.Join(parts, "\n"))
}
