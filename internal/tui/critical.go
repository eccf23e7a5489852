package tui

import (
	"fmt"
	"sort"
	"strings"

	"taskboard-cli/internal/critpath"
	"taskboard-cli/internal/model"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var categoryRank = map[critpath.FloatCategory]int{
	critpath.FloatCritical:     0,
	critpath.FloatNearCritical: 1,
	critpath.FloatNormal:       2,
	critpath.FloatUnknown:      3,
}

// criticalRows lists annotated tasks, most critical first. Within a category the snapshot
// order is kept.
func (m appModel) criticalRows() []critpath.Row {
	rows := critpath.Annotate(m.snap, m.report, m.analysis)
	sort.SliceStable(rows, func(i, j int) bool {
		return categoryRank[rows[i].Category] < categoryRank[rows[j].Category]
	})
	return rows
}

func (m appModel) updateCriticalKey(msg tea.KeyMsg) (appModel, tea.Cmd) {
	k := m.keys
	rows := m.criticalRows()
	switch {
	case key.Matches(msg, k.Up):
		m.critRow = clampInt(m.critRow-1, 0, max(len(rows)-1, 0))
	case key.Matches(msg, k.Down):
		m.critRow = clampInt(m.critRow+1, 0, max(len(rows)-1, 0))
	case key.Matches(msg, k.Open):
		if m.critRow < len(rows) {
			m.openDetail(rows[m.critRow].Task.ID)
		}
	case key.Matches(msg, k.Recalc):
		if cmd := m.recalculate(); cmd != nil {
			m.critLoaded = false
			return m, cmd
		}
	}
	return m, nil
}

func (m appModel) renderCritical(height int) string {
	switch {
	case m.critErr != "":
		return normalizePane(styleMuted().Render(m.critErr), m.width, height)
	case !m.critLoaded || m.report == nil:
		return normalizePane(styleMuted().Render("Loading critical path…"), m.width, height)
	}

	sum := critpath.Summarize(*m.report, m.analysis)
	lines := []string{renderSummaryCards(sum, m.width), ""}

	for i, path := range m.report.CriticalPaths {
		if i == 3 {
			lines = append(lines, styleMuted().Render(fmt.Sprintf("  … %d more paths", len(m.report.CriticalPaths)-3)))
			break
		}
		titles := make([]string, 0, len(path))
		for _, st := range path {
			titles = append(titles, st.Title)
		}
		lines = append(lines, truncate(fmt.Sprintf("Path %d: %s", i+1, strings.Join(titles, " "+glyphArrow()+" ")), m.width))
	}
	if len(m.report.CriticalPaths) > 0 {
		lines = append(lines, "")
	}

	rows := m.criticalRows()
	hdr := fmt.Sprintf("  %-6s %-*s %-12s %6s  %s", "ID", m.titleColW(), "Task", "Status", "Float", "Category")
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render(truncate(hdr, m.width)))

	visible := max(height-len(lines), 1)
	off := 0
	if m.critRow >= visible {
		off = m.critRow - visible + 1
	}
	for i := off; i < len(rows) && i < off+visible; i++ {
		lines = append(lines, m.renderCriticalRow(rows[i], i == m.critRow))
	}
	return normalizePane(strings.Join(lines, "\n"), m.width, height)
}

func (m appModel) titleColW() int { return clampInt(m.width-44, 12, 60) }

func (m appModel) renderCriticalRow(r critpath.Row, selected bool) string {
	marker := " "
	if r.Critical {
		marker = glyphCritical()
	}
	float := "-"
	if r.Float != nil {
		float = fmt.Sprintf("%dd", *r.Float)
	}
	line := fmt.Sprintf("%s #%-5d %-*s %-12s %6s  ", marker, r.Task.ID, m.titleColW(), truncate(r.Task.Title, m.titleColW()), truncate(r.Task.Status.Label(), 12), float)
	cat := floatStyle(r.Category).Render(string(r.Category))
	if selected {
		return lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true).Render(line) + cat
	}
	return line + cat
}

func renderSummaryCards(s critpath.Summary, width int) string {
	card := func(title, value string, st lipgloss.Style) string {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1).
			Render(styleMuted().Render(title) + "\n" + st.Render(value))
	}
	bold := lipgloss.NewStyle().Bold(true)
	earliest := s.EarliestCompletion
	if earliest == "" {
		earliest = "-"
	}
	cards := []string{
		card("Duration", fmt.Sprintf("%d days", s.ProjectDuration), bold),
		card("Critical tasks", fmt.Sprintf("%d/%d (%d%%)", s.CriticalCount, s.TotalTasks, s.CriticalShare), bold),
		card("Earliest completion", earliest, bold),
		card("Risk", strings.ToUpper(s.RiskLevel), severityStyle(s.Severity)),
	}
	if s.Float != nil {
		cards = append(cards, card("Float", fmt.Sprintf("%d crit %s %d near %s %d ok", s.Float.Critical, glyphBullet(), s.Float.NearCritical, glyphBullet(), s.Float.Normal), bold))
	}
	out := lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	if lipgloss.Width(out) > width && len(cards) > 2 {
		half := (len(cards) + 1) / 2
		out = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.JoinHorizontal(lipgloss.Top, cards[:half]...),
			lipgloss.JoinHorizontal(lipgloss.Top, cards[half:]...),
		)
	}
	return out
}

// criticalBadge is the one-line summary shown in the detail modal.
func criticalBadge(t model.Task) string {
	parts := []string{}
	if t.IsCritical {
		parts = append(parts, "critical")
	}
	if t.TotalFloat != nil {
		parts = append(parts, fmt.Sprintf("float %dd (%s)", *t.TotalFloat, critpath.Categorize(t.TotalFloat)))
	}
	return strings.Join(parts, ", ")
}
