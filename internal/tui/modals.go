package tui

import (
	"fmt"
	"strings"

	"taskboard-cli/internal/model"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func (m *appModel) closeModal() {
	m.modal = modalNone
	m.modalTaskID = 0
	m.modalParent = 0
	m.detailScroll = 0
	m.confirmFocus = confirmFocusConfirm
	m.input.SetValue("")
	m.input.Blur()
	m.editErr = ""
	for i := range m.editInputs {
		m.editInputs[i].Blur()
	}
}

func (m *appModel) openDetail(id int64) {
	if _, ok := m.snap.Task(id); !ok {
		return
	}
	m.modal = modalDetail
	m.modalTaskID = id
	m.detailScroll = 0
}

func (m *appModel) openConfirmDelete(id int64) {
	if _, ok := m.snap.Task(id); !ok {
		return
	}
	m.modal = modalConfirmDelete
	m.modalTaskID = id
	m.confirmFocus = confirmFocusCancel
}

// openQuickAdd opens the title prompt. parent 0 creates a top-level task.
func (m *appModel) openQuickAdd(parent int64) tea.Cmd {
	m.modal = modalQuickAdd
	m.modalParent = parent
	m.input.SetValue("")
	m.input.Placeholder = "Task title"
	if parent != 0 {
		m.input.Placeholder = "Subtask title"
	}
	return m.input.Focus()
}

func (m *appModel) openProjects() tea.Cmd {
	items := []list.Item{projectItem{project: model.Project{Name: "All projects"}, current: m.projectID == 0}}
	sel := 0
	for i, p := range m.projects {
		items = append(items, projectItem{project: p, current: p.ID == m.projectID})
		if p.ID == m.projectID {
			sel = i + 1
		}
	}
	cmd := m.projectList.SetItems(items)
	m.projectList.Select(sel)
	m.projectList.SetSize(modalBodyWidth(m.width), clampInt(m.height-8, 5, 20))
	m.modal = modalProjects
	return cmd
}

func (m appModel) updateModalKey(msg tea.KeyMsg) (appModel, tea.Cmd) {
	k := m.keys
	switch m.modal {
	case modalDetail:
		switch {
		case key.Matches(msg, k.Cancel), key.Matches(msg, k.Quit), key.Matches(msg, k.Open):
			m.closeModal()
		case key.Matches(msg, k.Down):
			m.detailScroll++
		case key.Matches(msg, k.Up):
			m.detailScroll = max(m.detailScroll-1, 0)
		case key.Matches(msg, k.Delete):
			m.openConfirmDelete(m.modalTaskID)
		case key.Matches(msg, k.Edit):
			return m, m.openEdit(m.modalTaskID)
		case key.Matches(msg, k.AddChild):
			if t, ok := m.snap.Task(m.modalTaskID); ok && t.ParentID == 0 {
				return m, m.openQuickAdd(t.ID)
			}
		}
		return m, nil

	case modalConfirmDelete:
		switch msg.String() {
		case "esc", "n", "ctrl+g":
			m.closeModal()
		case "tab", "shift+tab", "left", "right", "h", "l":
			if m.confirmFocus == confirmFocusConfirm {
				m.confirmFocus = confirmFocusCancel
			} else {
				m.confirmFocus = confirmFocusConfirm
			}
		case "y":
			id := m.modalTaskID
			m.closeModal()
			m.loading = true
			return m, m.deleteTask(id)
		case "enter":
			id := m.modalTaskID
			confirmed := m.confirmFocus == confirmFocusConfirm
			m.closeModal()
			if confirmed {
				m.loading = true
				return m, m.deleteTask(id)
			}
		}
		return m, nil

	case modalQuickAdd:
		switch msg.String() {
		case "esc", "ctrl+g":
			m.closeModal()
			return m, nil
		case "enter":
			title := strings.TrimSpace(m.input.Value())
			if title == "" {
				return m, nil
			}
			nt := model.NewTask{
				ProjectID:    m.projectID,
				ParentID:     m.modalParent,
				Title:        title,
				Status:       model.StatusToDo,
				StartDate:    m.today(),
				DurationDays: 1,
			}
			if p, ok := m.snap.Task(m.modalParent); ok {
				if nt.ProjectID == 0 {
					nt.ProjectID = p.ProjectID
				}
				nt.StartDate = p.StartDate
			}
			m.closeModal()
			m.loading = true
			return m, m.createTask(nt)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case modalEdit:
		return m.updateEditKey(msg)

	case modalProjects:
		if m.projectList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.projectList, cmd = m.projectList.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "esc", "q", "ctrl+g":
			m.closeModal()
			return m, nil
		case "enter":
			it, ok := m.projectList.SelectedItem().(projectItem)
			m.closeModal()
			if !ok || it.project.ID == m.projectID {
				return m, nil
			}
			return m, m.switchProject(it.project.ID)
		}
		var cmd tea.Cmd
		m.projectList, cmd = m.projectList.Update(msg)
		return m, cmd

	case modalHelp:
		m.closeModal()
		return m, nil
	}
	return m, nil
}

func (m appModel) renderModal() string {
	w := m.width
	switch m.modal {
	case modalDetail:
		return m.renderDetail()
	case modalConfirmDelete:
		t, _ := m.snap.Task(m.modalTaskID)
		body := fmt.Sprintf("Delete #%d %q?", t.ID, t.Title)
		if n := len(m.snap.ChildrenOf(t.ID)); n > 0 {
			body += fmt.Sprintf("\nIts %d subtask(s) are deleted too.", n)
		}
		return renderConfirmModal(w, "Delete task", body, "Delete", "Cancel", m.confirmFocus)
	case modalQuickAdd:
		title := "New task"
		if p, ok := m.snap.Task(m.modalParent); ok {
			title = fmt.Sprintf("New subtask of #%d %s", p.ID, p.Title)
		}
		help := styleMuted().Render("enter: create   esc: cancel")
		return renderModalBox(w, title, m.input.View()+"\n\n"+help)
	case modalEdit:
		return m.renderEdit()
	case modalProjects:
		return renderModalBox(w, "Projects", m.projectList.View()+"\n"+styleMuted().Render("enter: select   /: filter   esc: close"))
	case modalHelp:
		var b strings.Builder
		for _, row := range m.keys.helpRows() {
			fmt.Fprintf(&b, "%-18s %s\n", row[0], row[1])
		}
		return renderModalBox(w, "Keys", strings.TrimRight(b.String(), "\n"))
	}
	return ""
}

func modalBodyWidth(width int) int {
	return clampInt(width-12, 20, 84)
}

func renderModalBox(width int, title, content string) string {
	bodyW := modalBodyWidth(width)
	head := lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Width(bodyW).Render(truncate(title, bodyW))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1).
		Width(bodyW + 2).
		Render(head + "\n\n" + content)
}

func renderConfirmModal(width int, title, body, confirmLabel, cancelLabel string, focus confirmModalFocus) string {
	btnBase := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(colorSurfaceFg).
		Background(colorControlBg)
	btnActive := btnBase.
		Foreground(colorSelectedFg).
		Background(colorSelectedBg).
		Bold(true)

	confirm := btnBase.Render(confirmLabel)
	cancel := btnBase.Render(cancelLabel)
	if focus == confirmFocusConfirm {
		confirm = btnActive.Render(confirmLabel)
	} else {
		cancel = btnActive.Render(cancelLabel)
	}
	controls := lipgloss.JoinHorizontal(lipgloss.Top, confirm, " ", cancel)
	help := styleMuted().Render("tab: focus   enter: select   y: confirm   esc: cancel")
	return renderModalBox(width, title, strings.Join([]string{body, "", controls, "", help}, "\n"))
}

// renderDetail shows every field of a task with its description rendered as markdown.
func (m appModel) renderDetail() string {
	t, ok := m.snap.Task(m.modalTaskID)
	if !ok {
		return renderModalBox(m.width, "Task", styleMuted().Render("This task no longer exists."))
	}
	bodyW := modalBodyWidth(m.width)
	label := styleMuted().Width(12).Render

	fields := [][2]string{
		{"Status", t.Status.Label()},
		{"Start", t.StartDate.Format("Mon Jan 2, 2006")},
		{"Duration", fmt.Sprintf("%d day(s), ends %s", max(t.DurationDays, 1), t.EndDate().Format("Jan 2, 2006"))},
		{"Progress", progressBar(t.Progress, min(bodyW-12, 30))},
	}
	if !t.DueDate.IsZero() {
		fields = append(fields, [2]string{"Due", t.DueDate.Format("Mon Jan 2, 2006")})
	}
	if t.Priority != "" {
		fields = append(fields, [2]string{"Priority", t.Priority})
	}
	if t.Assignee != "" {
		fields = append(fields, [2]string{"Assignee", "@" + t.Assignee})
	}
	if t.ParentID != 0 {
		parent := fmt.Sprintf("#%d", t.ParentID)
		if p, ok := m.snap.Task(t.ParentID); ok {
			parent += " " + p.Title
		} else {
			parent += " (not loaded)"
		}
		fields = append(fields, [2]string{"Parent", parent})
	}
	if cb := criticalBadge(t); cb != "" {
		fields = append(fields, [2]string{"Schedule", cb})
	}

	lines := make([]string, 0, len(fields)+16)
	for _, f := range fields {
		lines = append(lines, label(f[0])+truncate(f[1], bodyW-12))
	}

	if kids := m.snap.ChildrenOf(t.ID); len(kids) > 0 {
		st := m.snap.SubtaskStats(t.ID)
		lines = append(lines, "", lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Subtasks %d/%d", st.Completed, st.Total)))
		for _, c := range kids {
			mark := " "
			if c.Progress == 100 {
				mark = glyphCheck()
			}
			lines = append(lines, truncate(fmt.Sprintf("  [%s] #%d %s (%s)", mark, c.ID, c.Title, c.Status.Label()), bodyW))
		}
	}
	if preds := m.snap.Predecessors(t.ID); len(preds) > 0 {
		lines = append(lines, "", lipgloss.NewStyle().Bold(true).Render("Depends on"))
		for _, p := range preds {
			lines = append(lines, truncate(fmt.Sprintf("  #%d %s %s %s", p.ID, p.Title, glyphArrow(), t.Title), bodyW))
		}
	}
	if md := renderMarkdown(t.Description, bodyW); md != "" {
		lines = append(lines, "")
		lines = append(lines, strings.Split(md, "\n")...)
	}

	// Scroll inside the modal when the content is taller than the screen.
	maxLines := max(m.height-10, 5)
	scroll := clampInt(m.detailScroll, 0, max(len(lines)-maxLines, 0))
	lines = lines[scroll:]
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	help := styleMuted().Render("j/k: scroll   e: edit   d: delete   A: add subtask   esc: close")
	title := fmt.Sprintf("#%d %s", t.ID, t.Title)
	if t.TaskNumber != "" {
		title = t.TaskNumber + "  " + title
	}
	return renderModalBox(m.width, title, strings.Join(lines, "\n")+"\n\n"+help)
}

type projectItem struct {
	project model.Project
	current bool
}

func (i projectItem) FilterValue() string { return i.project.Name }
func (i projectItem) Title() string {
	if i.current {
		return i.project.Name + " " + glyphBullet()
	}
	return i.project.Name
}
func (i projectItem) Description() string {
	if i.project.ID == 0 {
		return "every task the API returns"
	}
	d := fmt.Sprintf("#%d", i.project.ID)
	if s := strings.TrimSpace(i.project.Status); s != "" {
		d += " " + glyphBullet() + " " + s
	}
	return d
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(true)
	// Bubble list quits on esc by default; here esc closes the modal.
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	l.KeyMap.CursorUp.SetKeys(append(l.KeyMap.CursorUp.Keys(), "ctrl+p")...)
	l.KeyMap.CursorDown.SetKeys(append(l.KeyMap.CursorDown.Keys(), "ctrl+n")...)
	return l
}
