package tui

import (
	"fmt"
	"strconv"
	"strings"

	"taskboard-cli/internal/timeline"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const timelineHeaderLines = 4 // span, months, days, rule

func (m appModel) timelineLayout() timeline.Layout {
	return timeline.Compute(m.snap, m.expansion, m.today())
}

func (m appModel) timelineRowIndex(rows []timeline.Row) int {
	for i, r := range rows {
		if r.Task.ID == m.tlSelected {
			return i
		}
	}
	return -1
}

// clampTimelineSelection keeps the selection on a visible row. A collapsed child selection
// moves to its parent.
func (m *appModel) clampTimelineSelection() {
	rows := m.timelineLayout().Rows
	if len(rows) == 0 {
		m.tlSelected = 0
		return
	}
	if m.timelineRowIndex(rows) >= 0 {
		return
	}
	if t, ok := m.snap.Task(m.tlSelected); ok && t.ParentID != 0 {
		for _, r := range rows {
			if r.Task.ID == t.ParentID {
				m.tlSelected = r.Task.ID
				return
			}
		}
	}
	m.tlSelected = rows[0].Task.ID
}

func (m appModel) timelineVisibleRows() int {
	return max(m.height-headerLines-footerLines-timelineHeaderLines, 1)
}

func (m appModel) updateTimelineKey(msg tea.KeyMsg) (appModel, tea.Cmd) {
	k := m.keys
	rows := m.timelineLayout().Rows
	idx := m.timelineRowIndex(rows)

	switch {
	case key.Matches(msg, k.Up):
		if idx > 0 {
			m.tlSelected = rows[idx-1].Task.ID
		}
	case key.Matches(msg, k.Down):
		if idx >= 0 && idx < len(rows)-1 {
			m.tlSelected = rows[idx+1].Task.ID
		}
	case key.Matches(msg, k.Toggle):
		if idx < 0 {
			return m, nil
		}
		r := rows[idx]
		id := r.Task.ID
		if !r.HasChildren && r.Task.ParentID != 0 {
			// Collapsing from a child collapses its parent.
			id = r.Task.ParentID
		}
		if m.snap.HasChildren(id) {
			m.expansion = m.expansion.Toggle(id)
			m.clampTimelineSelection()
		}
	case key.Matches(msg, k.ExpandAll):
		for _, t := range m.snap.TopLevel() {
			if m.snap.HasChildren(t.ID) && !m.expansion.IsOpen(t.ID) {
				m.expansion = m.expansion.Toggle(t.ID)
			}
		}
	case key.Matches(msg, k.Open):
		if m.tlSelected != 0 {
			m.openDetail(m.tlSelected)
		}
	case key.Matches(msg, k.Delete):
		if m.tlSelected != 0 {
			m.openConfirmDelete(m.tlSelected)
		}
	case key.Matches(msg, k.Edit):
		if m.tlSelected != 0 {
			return m, m.openEdit(m.tlSelected)
		}
	case key.Matches(msg, k.AddChild):
		if t, ok := m.snap.Task(m.tlSelected); ok {
			parent := t.ID
			if t.ParentID != 0 {
				parent = t.ParentID
			}
			return m, m.openQuickAdd(parent)
		}
	case key.Matches(msg, k.Add):
		return m, m.openQuickAdd(0)
	}

	// Keep the selection on screen.
	rows = m.timelineLayout().Rows
	idx = m.timelineRowIndex(rows)
	visible := m.timelineVisibleRows()
	if idx >= 0 {
		if idx < m.tlOffset {
			m.tlOffset = idx
		}
		if idx >= m.tlOffset+visible {
			m.tlOffset = idx - visible + 1
		}
	}
	m.tlOffset = clampInt(m.tlOffset, 0, max(len(rows)-visible, 0))
	return m, nil
}

func (m appModel) renderTimeline(height int) string {
	l := m.timelineLayout()
	labelW := clampInt(m.width/3, 16, 40)
	chartW := max(m.width-labelW-1, 10)
	pad := strings.Repeat(" ", labelW+1)

	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(l.Span) + styleMuted().Render(fmt.Sprintf("  %s %d tasks", glyphBullet(), l.TaskCount)),
		pad + monthHeader(l, chartW),
		pad + styleMuted().Render(dayHeader(l, chartW)),
		styleMuted().Render(strings.Repeat(glyphHRule(), labelW+1+chartW)),
	}
	if len(l.Rows) == 0 {
		lines = append(lines, styleMuted().Render("No tasks. Press a to add one."))
		return normalizePane(strings.Join(lines, "\n"), m.width, height)
	}

	visible := max(height-timelineHeaderLines, 1)
	off := clampInt(m.tlOffset, 0, max(len(l.Rows)-visible, 0))
	for i := off; i < len(l.Rows) && i < off+visible; i++ {
		r := l.Rows[i]
		label := fitWidth(timelineLabel(r), labelW)
		if r.Task.ID == m.tlSelected {
			label = lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true).Render(label)
		}
		lines = append(lines, label+" "+timelineBar(r, chartW))
	}
	return normalizePane(strings.Join(lines, "\n"), m.width, height)
}

func timelineLabel(r timeline.Row) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", r.Depth))
	switch {
	case r.HasChildren && r.Expanded:
		b.WriteString(glyphTwistyExpanded() + " ")
	case r.HasChildren:
		b.WriteString(glyphTwistyCollapsed() + " ")
	default:
		b.WriteString("  ")
	}
	b.WriteString(r.Task.Title)
	if r.Badge != nil {
		b.WriteString(" " + r.Badge.String())
		if r.Badge.Done {
			b.WriteString(" " + glyphCheck())
		}
	}
	return b.String()
}

// timelineBar draws the task bar in its family color. The completed share is solid.
func timelineBar(r timeline.Row, width int) string {
	start, n := timeline.Cells(r.Geometry, width)
	if n <= 0 {
		return strings.Repeat(" ", width)
	}
	done := n * clampInt(r.Task.Progress, 0, 100) / 100
	color := lipgloss.Color(r.Color)
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat(glyphBar(), done)) +
		lipgloss.NewStyle().Foreground(color).Faint(true).Render(strings.Repeat(glyphBarRemaining(), n-done))
	return strings.Repeat(" ", start) + bar + strings.Repeat(" ", max(width-start-n, 0))
}

// monthHeader places each month label at its scaled offset.
func monthHeader(l timeline.Layout, width int) string {
	buf := []rune(strings.Repeat(" ", width))
	for _, mo := range l.Months {
		g := timeline.BarGeometry(l.Bounds, l.Bounds.Start.AddDate(0, 0, mo.StartOffset), mo.WidthDays)
		start, n := timeline.Cells(g, width)
		label := fmt.Sprintf("%s %d", mo.Name, mo.Year)
		if len(label)+1 > n {
			label = mo.Name
		}
		writeRunes(buf, start, truncate("|"+label, n))
	}
	return string(buf)
}

// dayHeader numbers the leading days; labels that would overlap are skipped.
func dayHeader(l timeline.Layout, width int) string {
	buf := []rune(strings.Repeat(" ", width))
	next := 0
	for _, d := range l.Days {
		g := timeline.BarGeometry(l.Bounds, d.Date, 1)
		start, _ := timeline.Cells(g, width)
		label := strconv.Itoa(d.DayOfMonth)
		if start < next || start+len(label) > width {
			continue
		}
		writeRunes(buf, start, label)
		next = start + len(label) + 1
	}
	return string(buf)
}

func writeRunes(buf []rune, at int, s string) {
	for i, r := range []rune(s) {
		if at+i >= 0 && at+i < len(buf) {
			buf[at+i] = r
		}
	}
}
