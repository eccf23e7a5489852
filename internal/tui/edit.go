package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"taskboard-cli/internal/model"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Edit form fields, in tab order.
const (
	editTitle = iota
	editStart
	editDuration
	editProgress
	editPriority
	editFieldCount
)

var editLabels = [editFieldCount]string{"Title", "Start", "Duration", "Progress", "Priority"}

func newEditInputs() [editFieldCount]textinput.Model {
	placeholders := [editFieldCount]string{"Task title", "YYYY-MM-DD", "days", "0-100", "Low|Medium|High"}
	limits := [editFieldCount]int{200, 10, 4, 3, 20}
	var out [editFieldCount]textinput.Model
	for i := range out {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = placeholders[i]
		in.CharLimit = limits[i]
		out[i] = in
	}
	return out
}

// openEdit prefills the form from the snapshot copy of the task.
func (m *appModel) openEdit(id int64) tea.Cmd {
	t, ok := m.snap.Task(id)
	if !ok {
		return nil
	}
	m.modal = modalEdit
	m.modalTaskID = id
	m.editErr = ""
	values := [editFieldCount]string{
		t.Title,
		t.StartDate.Format(model.DateLayout),
		strconv.Itoa(max(t.DurationDays, 1)),
		strconv.Itoa(clampInt(t.Progress, 0, 100)),
		t.Priority,
	}
	for i := range m.editInputs {
		m.editInputs[i].SetValue(values[i])
		m.editInputs[i].CursorEnd()
		m.editInputs[i].Blur()
	}
	m.editFocus = editTitle
	return m.editInputs[editTitle].Focus()
}

func (m *appModel) focusEditField(i int) tea.Cmd {
	m.editInputs[m.editFocus].Blur()
	m.editFocus = (i + editFieldCount) % editFieldCount
	return m.editInputs[m.editFocus].Focus()
}

// editPatch diffs the form against the task and returns only the changed fields.
func (m appModel) editPatch(t model.Task) (model.TaskPatch, error) {
	var p model.TaskPatch
	val := func(i int) string { return strings.TrimSpace(m.editInputs[i].Value()) }

	if title := val(editTitle); title == "" {
		return p, errors.New("title cannot be empty")
	} else if title != t.Title {
		p.Title = &title
	}
	start, ok := model.ParseDate(val(editStart))
	if !ok {
		return p, errors.New("start must be YYYY-MM-DD")
	}
	if !start.Equal(model.Date(t.StartDate)) {
		p.StartDate = &start
	}
	dur, err := strconv.Atoi(val(editDuration))
	if err != nil || dur < 1 {
		return p, errors.New("duration must be a whole number of days, at least 1")
	}
	if dur != t.DurationDays {
		p.DurationDays = &dur
	}
	progress, err := strconv.Atoi(val(editProgress))
	if err != nil || progress < 0 || progress > 100 {
		return p, errors.New("progress must be between 0 and 100")
	}
	if progress != t.Progress {
		p.Progress = &progress
	}
	if prio := val(editPriority); prio != t.Priority {
		p.Priority = &prio
	}
	return p, nil
}

func (m appModel) updateEditKey(msg tea.KeyMsg) (appModel, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+g":
		m.closeModal()
		return m, nil
	case "tab", "down":
		return m, m.focusEditField(m.editFocus + 1)
	case "shift+tab", "up":
		return m, m.focusEditField(m.editFocus - 1)
	case "enter":
		t, ok := m.snap.Task(m.modalTaskID)
		if !ok {
			m.closeModal()
			return m, nil
		}
		p, err := m.editPatch(t)
		if err != nil {
			m.editErr = err.Error()
			return m, nil
		}
		m.closeModal()
		if p.Empty() {
			return m, nil
		}
		m.loading = true
		return m, m.updateTask(t.ID, p)
	}
	var cmd tea.Cmd
	m.editInputs[m.editFocus], cmd = m.editInputs[m.editFocus].Update(msg)
	m.editErr = ""
	return m, cmd
}

func (m *appModel) updateTask(id int64, p model.TaskPatch) tea.Cmd {
	gen, pid, b, ctx := m.gen, m.projectID, m.backend, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		msg := mutationDoneMsg{gen: gen, op: "update", taskID: id}
		if _, msg.err = b.UpdateTask(ctx, id, p); msg.err != nil {
			return msg
		}
		msg.tasks, msg.refetchErr = b.FetchAllTasks(ctx, pid)
		return msg
	}
}

func (m appModel) renderEdit() string {
	t, _ := m.snap.Task(m.modalTaskID)
	label := styleMuted().Width(10).Render
	lines := make([]string, 0, editFieldCount+4)
	for i, in := range m.editInputs {
		l := label(editLabels[i])
		if i == m.editFocus {
			l = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Width(10).Render(editLabels[i])
		}
		lines = append(lines, l+in.View())
	}
	if m.editErr != "" {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(colorFlashErrorBg).Render(m.editErr))
	}
	lines = append(lines, "", styleMuted().Render("tab: next field   enter: save   esc: cancel"))
	return renderModalBox(m.width, fmt.Sprintf("Edit #%d %s", t.ID, t.Title), strings.Join(lines, "\n"))
}
