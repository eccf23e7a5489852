package tui

import (
	"fmt"
	"strings"

	"taskboard-cli/internal/model"
	"taskboard-cli/internal/workflow"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	headerLines    = 2 // title bar + blank line
	footerLines    = 2 // blank line + footer
	colHeaderLines = 2 // label + rule
	cardHeight     = 4 // three text lines + gap
	colGap         = 1
)

// boardGeometry is shared by rendering and mouse hit-testing so both agree on where
// cards are.
type boardGeometry struct {
	top     int // y of the first card line
	colW    int
	cols    int
	visible int // cards that fit in a column
}

func (m appModel) boardGeometry() boardGeometry {
	n := len(workflow.ColumnOrder)
	avail := m.width - colGap*(n-1)
	bodyH := m.height - headerLines - footerLines - colHeaderLines
	return boardGeometry{
		top:     headerLines + colHeaderLines,
		colW:    max(avail/n, 12),
		cols:    n,
		visible: max(bodyH/cardHeight, 1),
	}
}

// columnAt maps a screen x to a column index. The gap between columns belongs to no column.
func (g boardGeometry) columnAt(x int) (int, bool) {
	if x < 0 {
		return -1, false
	}
	stride := g.colW + colGap
	ci := x / stride
	if ci >= g.cols || x%stride >= g.colW {
		return -1, false
	}
	return ci, true
}

// slotAt maps a screen y to a visible card slot. Gap lines and the column header are empty
// space.
func (g boardGeometry) slotAt(y int) (int, bool) {
	if y < g.top {
		return -1, false
	}
	d := y - g.top
	slot := d / cardHeight
	if slot >= g.visible || d%cardHeight == cardHeight-1 {
		return -1, false
	}
	return slot, true
}

// cardOrigin is the top-left cell of a card slot.
func (g boardGeometry) cardOrigin(col, slot int) (x, y int) {
	return col*(g.colW+colGap) + 1, g.top + slot*cardHeight
}

// columnOffset scrolls the selected column so the selection stays visible.
func (m appModel) columnOffset(g boardGeometry, ci int) int {
	if ci != m.sel.Col || m.sel.Row < g.visible {
		return 0
	}
	return m.sel.Row - g.visible + 1
}

// cardAt returns the card under (col, y), if any.
func (m appModel) cardAt(g boardGeometry, ci, y int) (model.Task, bool) {
	if ci < 0 || ci >= len(m.board.Columns) {
		return model.Task{}, false
	}
	slot, ok := g.slotAt(y)
	if !ok {
		return model.Task{}, false
	}
	row := slot + m.columnOffset(g, ci)
	tasks := m.board.Columns[ci].Tasks
	if row >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[row], true
}

func (m appModel) clampSelection(sel boardSelection) boardSelection {
	if len(m.board.Columns) == 0 {
		return boardSelection{Row: -1}
	}
	if ci, ri := m.board.Locate(sel.TaskID); ci >= 0 {
		sel.Col, sel.Row = ci, ri
		return sel
	}
	sel.TaskID = 0
	sel.Col = clampInt(sel.Col, 0, len(m.board.Columns)-1)
	tasks := m.board.Columns[sel.Col].Tasks
	if len(tasks) == 0 {
		sel.Row = -1
		return sel
	}
	sel.Row = clampInt(sel.Row, 0, len(tasks)-1)
	sel.TaskID = tasks[sel.Row].ID
	return sel
}

func (m *appModel) selectTask(id int64) {
	m.sel = m.clampSelection(boardSelection{Col: m.sel.Col, Row: m.sel.Row, TaskID: id})
}

func (m appModel) updateBoardKey(msg tea.KeyMsg) (appModel, tea.Cmd) {
	k := m.keys
	if id, dragging := m.drag.Active(); dragging {
		switch {
		case key.Matches(msg, k.Left):
			m.drag.Hover(m.stepColumn(m.drag.Hovered(), -1))
		case key.Matches(msg, k.Right):
			m.drag.Hover(m.stepColumn(m.drag.Hovered(), +1))
		case key.Matches(msg, k.Drop, k.Grab):
			hover := m.drag.Hovered()
			if hover == "" {
				m.drag.Cancel()
				return m, nil
			}
			return m.finishDrop(id, workflow.ColumnTarget(hover))
		case key.Matches(msg, k.Cancel):
			m.drag.Cancel()
			m.pointerDrag = false
		}
		// Selection is suspended while a card is held.
		return m, nil
	}

	switch {
	case key.Matches(msg, k.Up):
		m.sel.TaskID = 0
		m.sel.Row--
		m.sel = m.clampSelection(m.sel)
	case key.Matches(msg, k.Down):
		m.sel.TaskID = 0
		m.sel.Row++
		m.sel = m.clampSelection(m.sel)
	case key.Matches(msg, k.Left):
		m.sel = m.clampSelection(boardSelection{Col: m.sel.Col - 1, Row: m.sel.Row})
	case key.Matches(msg, k.Right):
		m.sel = m.clampSelection(boardSelection{Col: m.sel.Col + 1, Row: m.sel.Row})
	case key.Matches(msg, k.Grab):
		if m.sel.TaskID != 0 && m.drag.Start(m.sel.TaskID) {
			col, _ := m.board.ColumnOf(m.sel.TaskID)
			m.drag.Hover(col)
		}
	case key.Matches(msg, k.Open):
		if m.sel.TaskID != 0 {
			m.openDetail(m.sel.TaskID)
		}
	case key.Matches(msg, k.Delete):
		if m.sel.TaskID != 0 {
			m.openConfirmDelete(m.sel.TaskID)
		}
	case key.Matches(msg, k.Edit):
		if m.sel.TaskID != 0 {
			return m, m.openEdit(m.sel.TaskID)
		}
	case key.Matches(msg, k.AddChild):
		if m.sel.TaskID != 0 {
			return m, m.openQuickAdd(m.sel.TaskID)
		}
	case key.Matches(msg, k.Add):
		return m, m.openQuickAdd(0)
	}
	return m, nil
}

func (m appModel) stepColumn(cur workflow.ColumnID, delta int) workflow.ColumnID {
	idx := 0
	for i, c := range workflow.ColumnOrder {
		if c == cur {
			idx = i
		}
	}
	idx = clampInt(idx+delta, 0, len(workflow.ColumnOrder)-1)
	return workflow.ColumnOrder[idx]
}

func (m appModel) updateBoardMouse(msg tea.MouseMsg) (appModel, tea.Cmd) {
	g := m.boardGeometry()
	ci, inCol := g.columnAt(msg.X)
	colID := workflow.ColumnID("")
	if inCol && ci < len(m.board.Columns) {
		colID = m.board.Columns[ci].ID
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !inCol || m.drag.SelectionSuspended() {
			return m, nil
		}
		t, ok := m.cardAt(g, ci, msg.Y)
		if !ok {
			return m, nil
		}
		m.selectTask(t.ID)
		if m.drag.Start(t.ID) {
			m.pointerDrag = true
			m.drag.Hover(colID)
		}
	case tea.MouseActionMotion:
		if m.pointerDrag {
			m.drag.Hover(colID)
		}
	case tea.MouseActionRelease:
		if !m.pointerDrag {
			return m, nil
		}
		m.pointerDrag = false
		id, _ := m.drag.Active()
		if colID == "" {
			m.drag.Cancel()
			return m, nil
		}
		target := workflow.ColumnTarget(colID)
		if t, ok := m.cardAt(g, ci, msg.Y); ok {
			target = workflow.TaskTarget(t.ID)
		}
		return m.finishDrop(id, target)
	}
	return m, nil
}

// finishDrop ends the gesture. Rejected, no-op and unresolved drops are silent.
func (m appModel) finishDrop(id int64, target workflow.DropTarget) (appModel, tea.Cmd) {
	tr := m.drag.End(m.snap, id, target)
	if tr.Decision != workflow.DecisionUpdate {
		return m, nil
	}
	m.loading = true
	return m, m.commitDrop(id, target)
}

func (m appModel) renderBoard(height int) string {
	g := m.boardGeometry()
	parts := make([]string, 0, 2*len(m.board.Columns))
	gap := normalizePane("", colGap, height)
	for ci, col := range m.board.Columns {
		if ci > 0 {
			parts = append(parts, gap)
		}
		parts = append(parts, m.renderColumn(g, ci, col, height))
	}
	if len(parts) == 0 {
		return normalizePane("", m.width, height)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m appModel) renderColumn(g boardGeometry, ci int, col workflow.Column, height int) string {
	dragID, dragging := m.drag.Active()

	label := fmt.Sprintf("%s (%d)", col.ID, len(col.Tasks))
	hs := lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Background(colorControlBg).Width(g.colW).Padding(0, 1)
	switch {
	case dragging && m.drag.Hovered() == col.ID:
		hs = hs.Background(colorHoverBg)
		label = glyphArrow() + " " + label
	case !dragging && ci == m.sel.Col:
		hs = hs.Foreground(colorSelectedFg).Background(colorSelectedBg)
	}
	if col.ID == workflow.ColumnInvalid {
		hs = hs.Foreground(colorInvalidFg)
	}

	lines := []string{
		hs.Render(truncate(label, g.colW-2)),
		styleMuted().Render(strings.Repeat(glyphHRule(), g.colW)),
	}
	off := m.columnOffset(g, ci)
	for slot := 0; slot < g.visible; slot++ {
		row := off + slot
		if row >= len(col.Tasks) {
			break
		}
		t := col.Tasks[row]
		selected := !dragging && ci == m.sel.Col && row == m.sel.Row
		lines = append(lines, m.renderCard(t, col.ID, g.colW, selected, dragging && t.ID == dragID))
		lines = append(lines, "")
	}
	if len(col.Tasks) == 0 {
		lines = append(lines, styleMuted().Render(" (empty)"))
	}
	return normalizePane(strings.Join(lines, "\n"), g.colW, height)
}

// renderCard renders the three text lines of a card: title, metadata, progress.
func (m appModel) renderCard(t model.Task, col workflow.ColumnID, w int, selected, dragged bool) string {
	inner := max(w-2, 1)

	title := fmt.Sprintf("#%d %s", t.ID, t.Title)
	if dragged {
		title = glyphGrab() + " " + title
	}

	meta := []string{t.StartDate.Format("Jan 2"), fmt.Sprintf("%dd", max(t.DurationDays, 1))}
	if st := m.snap.SubtaskStats(t.ID); st.Total > 0 {
		chip := fmt.Sprintf("%s%d/%d", glyphTwistyCollapsed(), st.Completed, st.Total)
		if st.Completed == st.Total {
			chip += " " + glyphCheck()
		}
		meta = append(meta, chip)
	}
	if t.Assignee != "" {
		meta = append(meta, "@"+t.Assignee)
	}
	if t.IsCritical {
		meta = append(meta, glyphCritical())
	}
	metaLine := strings.Join(meta, " "+glyphBullet()+" ")
	if col == workflow.ColumnInvalid {
		metaLine = "status: " + t.Status.Label()
	}

	st := lipgloss.NewStyle().Width(w).Padding(0, 1)
	metaStyle := lipgloss.NewStyle().Foreground(colorCardMetaFg)
	if col == workflow.ColumnInvalid {
		metaStyle = metaStyle.Foreground(colorInvalidFg)
	}
	switch {
	case dragged:
		st = st.Foreground(colorAccentFg).Background(colorAccent).Bold(true)
		metaStyle = lipgloss.NewStyle()
	case selected:
		st = st.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	}

	body := strings.Join([]string{
		truncate(title, inner),
		metaStyle.Render(truncate(metaLine, inner)),
		progressBar(t.Progress, inner),
	}, "\n")
	return st.Render(body)
}

// progressBar renders "████░░ 40%" in exactly width cells.
func progressBar(progress, width int) string {
	progress = clampInt(progress, 0, 100)
	pct := fmt.Sprintf(" %3d%%", progress)
	barW := width - len(pct)
	if barW < 3 {
		return truncate(strings.TrimSpace(pct), width)
	}
	filled := barW * progress / 100
	return lipgloss.NewStyle().Foreground(colorProgressFilled).Render(strings.Repeat(glyphBar(), filled)) +
		lipgloss.NewStyle().Foreground(colorProgressEmpty).Render(strings.Repeat(glyphBarRemaining(), barW-filled)) +
		pct
}
