// Package browse is an interactive terminal browser for extracted variables.
package browse

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/logvars/internal/dataset"
	"github.com/ppiankov/logvars/internal/logparse"
)

// row is one visible list entry: a group header or a variable.
type row struct {
	group    int // index into the filtered view
	header   bool
	variable logparse.Variable
}

// Model is the bubbletea model for the variable browser.
type Model struct {
	mgr    *dataset.Manager
	source string

	rows      []row
	cursor    int
	scrollOff int
	collapsed map[string]bool

	// search, applied on every keystroke
	searching   bool
	searchInput string

	// type toggles, keyed by position in logparse.AllTypes
	types map[logparse.VarType]bool

	// detail view of the selected variable
	detail bool

	// gg detection
	lastGPress time.Time

	// terminal size
	width  int
	height int

	// quit signal
	quitting bool
}

// NewModel creates a browser over the manager's current session.
func NewModel(mgr *dataset.Manager, source string) Model {
	m := Model{
		mgr:       mgr,
		source:    source,
		collapsed: make(map[string]bool),
		types:     make(map[logparse.VarType]bool),
		width:     80,
		height:    24,
	}
	m.collapseFromSession()
	m.refresh()
	return m
}

// Run starts the browser on the terminal.
func Run(mgr *dataset.Manager, source string) error {
	p := tea.NewProgram(NewModel(mgr, source), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.cursor = clamp(m.cursor, 0, len(m.rows)-1)
		m.keepCursorVisible()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		if m.detail {
			return m.updateDetail(msg)
		}
		return m.updateNormal(msg)
	}

	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "j", "down":
		m.move(1)

	case "k", "up":
		m.move(-1)

	case "d", "pgdown":
		m.move(m.listHeight() / 2)

	case "u", "pgup":
		m.move(-m.listHeight() / 2)

	case "G", "end":
		m.move(len(m.rows))

	case "g":
		now := time.Now()
		if now.Sub(m.lastGPress) < 500*time.Millisecond {
			m.move(-len(m.rows))
			m.lastGPress = time.Time{}
		} else {
			m.lastGPress = now
		}

	case "home":
		m.move(-len(m.rows))

	case "/":
		m.searching = true

	case "esc":
		if m.searchInput != "" {
			m.searchInput = ""
			m.refresh()
		}

	case " ", "tab":
		if r, ok := m.selected(); ok {
			name := m.mgr.Filtered()[r.group].Name
			m.collapsed[name] = !m.collapsed[name]
			m.refresh()
		}

	case "enter":
		if r, ok := m.selected(); ok && !r.header {
			m.detail = true
		}

	case "0":
		if len(m.types) > 0 {
			m.types = make(map[logparse.VarType]bool)
			m.refresh()
		}

	default:
		if len(key) == 1 && key[0] >= '1' && int(key[0]-'1') < len(logparse.AllTypes) {
			t := logparse.AllTypes[key[0]-'1']
			if m.types[t] {
				delete(m.types, t)
			} else {
				m.types[t] = true
			}
			m.refresh()
		}
	}

	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false

	case "esc":
		m.searching = false
		m.searchInput = ""
		m.refresh()

	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "backspace":
		if len(m.searchInput) > 0 {
			r := []rune(m.searchInput)
			m.searchInput = string(r[:len(r)-1])
			m.refresh()
		}

	default:
		switch msg.Type {
		case tea.KeyRunes:
			m.searchInput += string(msg.Runes)
			m.refresh()
		case tea.KeySpace:
			m.searchInput += " "
			m.refresh()
		}
	}

	return m, nil
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "enter", "backspace":
		m.detail = false
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// refresh re-applies search and type toggles and rebuilds the visible rows.
func (m *Model) refresh() {
	var selectedLine int
	if r, ok := m.selected(); ok && !r.header {
		selectedLine = r.variable.Line
	}

	groups := m.mgr.ApplyFilter(m.searchInput, m.activeTypes())
	rows := make([]row, 0, len(groups))
	for gi, g := range groups {
		rows = append(rows, row{group: gi, header: true})
		if m.collapsed[g.Name] {
			continue
		}
		for _, v := range g.Variables {
			rows = append(rows, row{group: gi, variable: v})
		}
	}
	m.rows = rows

	// keep the cursor on the same variable when it survives the filter
	if selectedLine > 0 {
		for i, r := range m.rows {
			if !r.header && r.variable.Line == selectedLine {
				m.cursor = i
				break
			}
		}
	}
	m.cursor = clamp(m.cursor, 0, len(m.rows)-1)
	m.keepCursorVisible()
}

// collapseFromSession seeds collapse state from the groups' expanded flags.
func (m *Model) collapseFromSession() {
	for _, g := range m.mgr.Grouped() {
		if !g.Expanded {
			m.collapsed[g.Name] = true
		}
	}
}

func (m Model) activeTypes() []logparse.VarType {
	var out []logparse.VarType
	for _, t := range logparse.AllTypes {
		if m.types[t] {
			out = append(out, t)
		}
	}
	return out
}

func (m Model) selected() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m *Model) move(delta int) {
	m.cursor = clamp(m.cursor+delta, 0, len(m.rows)-1)
	m.keepCursorVisible()
}

func (m *Model) keepCursorVisible() {
	h := m.listHeight()
	if m.cursor < m.scrollOff {
		m.scrollOff = m.cursor
	}
	if m.cursor >= m.scrollOff+h {
		m.scrollOff = m.cursor - h + 1
	}
	m.scrollOff = clamp(m.scrollOff, 0, max(len(m.rows)-h, 0))
}

func (m Model) listHeight() int {
	// header(1) + types(1) + separator(1) + status(1) = 4 lines overhead
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

// View renders the browser.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.detail {
		if r, ok := m.selected(); ok && !r.header {
			return m.viewDetail(r.variable)
		}
	}

	var b strings.Builder

	st := m.mgr.Statistics()
	b.WriteString(headerStyle.Render(fmt.Sprintf("logvars browse | %s | %d variables | %d shown",
		m.source, st.Total, st.Filtered)))
	b.WriteString("\n")

	b.WriteString(m.viewTypeBar(st))
	b.WriteString("\n")

	b.WriteString(sepStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	groups := m.mgr.Filtered()
	h := m.listHeight()
	end := min(m.scrollOff+h, len(m.rows))
	for i := m.scrollOff; i < end; i++ {
		line := m.renderRow(m.rows[i], groups)
		line = truncate(line, m.width)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render(line))
		} else if m.rows[i].header {
			b.WriteString(groupStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	if len(m.rows) == 0 {
		b.WriteString(labelStyle.Render(" no variables match"))
		b.WriteString("\n")
		end++
	}
	for i := end - m.scrollOff; i < h; i++ {
		b.WriteString("\n")
	}

	// status bar
	var status strings.Builder
	if m.searching {
		status.WriteString(searchBadge.Render("/" + m.searchInput))
	} else if m.searchInput != "" {
		status.WriteString(searchBadge.Render(fmt.Sprintf("/%s (%d)", m.searchInput, st.Filtered)))
	}
	if status.Len() > 0 {
		status.WriteString(" ")
	}
	status.WriteString(helpBadge.Render("/ search  1-6 types  space fold  enter detail  q quit"))
	b.WriteString(padLeft(status.String(), m.width))

	return b.String()
}

func (m Model) viewTypeBar(st dataset.Stats) string {
	var parts []string
	for i, t := range logparse.AllTypes {
		label := fmt.Sprintf("%d:%s(%d)", i+1, t.String(), st.Types[t.String()])
		if m.types[t] {
			parts = append(parts, typeOnStyle.Render(label))
		} else {
			parts = append(parts, labelStyle.Render(label))
		}
	}
	return " " + strings.Join(parts, " ")
}

func (m Model) renderRow(r row, groups []dataset.Group) string {
	if r.header {
		g := groups[r.group]
		marker := "▾"
		if m.collapsed[g.Name] {
			marker = "▸"
		}
		line := fmt.Sprintf("%s %s (%d)", marker, g.Name, len(g.Variables))
		if g.Timestamp != "" {
			line += "  " + g.Timestamp
		}
		return line
	}
	v := r.variable
	value := strings.ReplaceAll(v.Value, "\n", " ")
	return fmt.Sprintf("   %-24s %-16s L%-6d %s", v.Name, "["+v.Type.String()+"]", v.Line, value)
}

func (m Model) viewDetail(v logparse.Variable) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("logvars browse | %s", v.Name)))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf(" %-10s ", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}
	field("Type:", v.Type.String())
	field("Line:", fmt.Sprintf("%d", v.Line))
	field("Time:", v.Timestamp)
	field("Session:", v.Session)
	b.WriteString("\n")

	value := v.Value
	if v.Type == logparse.StructuredData {
		value = dataset.PrettyValue(value)
	}
	b.WriteString(value)
	b.WriteString("\n\n")

	b.WriteString(sepStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(truncate(v.OriginalLine, m.width)))
	b.WriteString("\n")
	b.WriteString(padLeft(helpBadge.Render("esc back"), m.width))
	return b.String()
}

// styles
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Faint(true)
	sepStyle    = lipgloss.NewStyle().Faint(true)
	groupStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	typeOnStyle = lipgloss.NewStyle().Background(lipgloss.Color("34")).Foreground(lipgloss.Color("15"))
	searchBadge = lipgloss.NewStyle().Background(lipgloss.Color("226")).Foreground(lipgloss.Color("0")).Padding(0, 1)
	helpBadge   = lipgloss.NewStyle().Faint(true).Padding(0, 1)
)

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func padLeft(s string, w int) string {
	n := lipgloss.Width(s)
	if n >= w {
		return s
	}
	return strings.Repeat(" ", w-n) + s
}

func truncate(s string, w int) string {
	r := []rune(s)
	if w <= 0 || len(r) <= w {
		return s
	}
	return string(r[:w])
}
