package tui

import (
	"strings"

	"taskboard-cli/internal/model"
	"taskboard-cli/internal/workflow"
)

type view int

const (
	viewBoard view = iota
	viewTimeline
	viewCritical
)

var viewOrder = []view{viewBoard, viewTimeline, viewCritical}

func (v view) String() string {
	switch v {
	case viewTimeline:
		return "timeline"
	case viewCritical:
		return "critical"
	default:
		return "board"
	}
}

func (v view) title() string {
	switch v {
	case viewTimeline:
		return "Timeline"
	case viewCritical:
		return "Critical Path"
	default:
		return "Board"
	}
}

func parseView(s string) view {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timeline", "gantt":
		return viewTimeline
	case "critical", "critical-path":
		return viewCritical
	default:
		return viewBoard
	}
}

type modalKind int

const (
	modalNone modalKind = iota
	modalDetail
	modalConfirmDelete
	modalQuickAdd
	modalEdit
	modalProjects
	modalHelp
)

type confirmModalFocus int

const (
	confirmFocusConfirm confirmModalFocus = iota
	confirmFocusCancel
)

type flashKind int

const (
	flashInfo flashKind = iota
	flashError
)

// Every fetch carries the snapshot generation it was issued for. Results for an older
// generation (project switched, reload issued) are dropped.

type tasksLoadedMsg struct {
	gen   int
	tasks []model.Task
	err   error
}

type projectsLoadedMsg struct {
	projects []model.Project
	err      error
}

type criticalLoadedMsg struct {
	gen      int
	report   *model.CriticalPathReport
	analysis *model.FloatAnalysis
	err      error
}

type dropDoneMsg struct {
	gen int
	out workflow.Outcome
}

// mutationDoneMsg reports a create, update or delete followed by its refetch.
type mutationDoneMsg struct {
	gen        int
	op         string
	taskID     int64
	tasks      []model.Task
	err        error
	refetchErr error
}

type flashDoneMsg struct{ seq int }
