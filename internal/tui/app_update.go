package tui

import (
	"fmt"

	"taskboard-cli/internal/workflow"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.modal == modalProjects {
			m.projectList.SetSize(modalBodyWidth(m.width), clampInt(m.height-8, 5, 20))
		}
		m.sel = m.clampSelection(m.sel)
		return m, nil

	case tasksLoadedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			// The last good snapshot stays on screen.
			return m, m.reportError("load tasks", msg.err)
		}
		m.setSnapshot(msg.tasks)
		return m, nil

	case projectsLoadedMsg:
		if msg.err != nil {
			return m, m.reportError("load projects", msg.err)
		}
		m.projects = msg.projects
		return m, nil

	case criticalLoadedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.critLoaded = true
		if msg.err != nil {
			m.critErr = "Critical path unavailable: " + msg.err.Error()
			return m, m.reportError("load critical path", msg.err)
		}
		m.critErr = ""
		m.report, m.analysis = msg.report, msg.analysis
		m.critRow = clampInt(m.critRow, 0, max(len(m.criticalRows())-1, 0))
		return m, nil

	case dropDoneMsg:
		return m.applyDropOutcome(msg)

	case mutationDoneMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			return m, m.reportError(msg.op, msg.err)
		}
		if msg.refetchErr != nil {
			return m, m.reportError("reload after "+msg.op, msg.refetchErr)
		}
		m.setSnapshot(msg.tasks)
		switch msg.op {
		case "create":
			m.selectTask(msg.taskID)
			m.tlSelected = msg.taskID
			m.clampTimelineSelection()
			return m, m.showFlash(flashInfo, "Created #%d", msg.taskID)
		case "update":
			return m, m.showFlash(flashInfo, "Updated #%d", msg.taskID)
		default:
			return m, m.showFlash(flashInfo, "Deleted #%d", msg.taskID)
		}

	case flashDoneMsg:
		if msg.seq == m.flash.seq {
			m.flash.text = ""
		}
		return m, nil

	case tea.MouseMsg:
		if m.view != viewBoard || m.modal != modalNone {
			return m, nil
		}
		return m.updateBoardMouse(msg)

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

// applyDropOutcome reconciles with the server: the board is only ever re-derived from a
// refetched snapshot, never patched locally.
func (m appModel) applyDropOutcome(msg dropDoneMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	m.loading = false
	out := msg.out
	if out.Refetched {
		m.setSnapshot(out.Snapshot)
	}
	if out.Err != nil {
		if out.Updated {
			return m, m.reportError("reload after move", out.Err)
		}
		return m, m.reportError(fmt.Sprintf("move #%d", out.Transition.TaskID), out.Err)
	}
	if out.Transition.Decision == workflow.DecisionUpdate {
		return m, m.showFlash(flashInfo, "Moved #%d to %s", out.Transition.TaskID, out.Transition.To)
	}
	return m, nil
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	if msg.String() == "ctrl+c" {
		m.saveState()
		return m, tea.Quit
	}
	if m.modal != modalNone {
		return m.updateModalKey(msg)
	}

	_, dragging := m.drag.Active()
	switch {
	case key.Matches(msg, k.Cancel) && !dragging:
		m.flash.text = ""
		return m, nil
	case key.Matches(msg, k.Quit) && !dragging:
		m.saveState()
		return m, tea.Quit
	case key.Matches(msg, k.NextView), key.Matches(msg, k.PrevView):
		// Leaving the board abandons any gesture in progress.
		m.drag.Cancel()
		m.pointerDrag = false
		step := 1
		if key.Matches(msg, k.PrevView) {
			step = len(viewOrder) - 1
		}
		m.view = viewOrder[(int(m.view)+step)%len(viewOrder)]
		if m.view == viewCritical && !m.critLoaded {
			return m, m.fetchCritical()
		}
		return m, nil
	case key.Matches(msg, k.Projects) && !dragging:
		return m, m.openProjects()
	case key.Matches(msg, k.Reload) && !dragging:
		m.critLoaded = false
		return m, m.reload()
	case key.Matches(msg, k.Help) && !dragging:
		m.modal = modalHelp
		return m, nil
	}

	switch m.view {
	case viewTimeline:
		return m.updateTimelineKey(msg)
	case viewCritical:
		return m.updateCriticalKey(msg)
	default:
		return m.updateBoardKey(msg)
	}
}
