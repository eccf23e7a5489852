package tui

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/store"
	"taskboard-cli/internal/timeline"
	"taskboard-cli/internal/workflow"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	flashTimeout = 4 * time.Second
	fetchTimeout = 20 * time.Second
)

type Options struct {
	Backend Backend
	// Store persists the last view and selection. A zero Store disables persistence.
	Store  store.Store
	Logger *log.Logger
	Now    func() time.Time

	ProjectID int64
	View      string
	// SelectedTaskID restores the previous selection once the snapshot arrives.
	SelectedTaskID int64
	// Theme and Glyphs come from the config file; env vars override them.
	Theme  string
	Glyphs string
}

type boardSelection struct {
	Col int
	Row int
	// TaskID keeps the selection stable across refetches.
	TaskID int64
}

type flashNotice struct {
	text string
	kind flashKind
	seq  int
}

type appModel struct {
	ctx     context.Context
	backend Backend
	store   store.Store
	logger  *log.Logger
	now     func() time.Time
	keys    keyMap

	width  int
	height int

	view  view
	modal modalKind

	projectID   int64
	projects    []model.Project
	projectList list.Model

	// gen is bumped whenever the snapshot being displayed is superseded.
	gen     int
	loading bool
	loaded  bool
	snap    hierarchy.Hierarchy
	board   workflow.Board

	sel  boardSelection
	drag workflow.Drag
	// pointerDrag is set while the left mouse button holds a card.
	pointerDrag bool

	expansion  timeline.Expansion
	tlSelected int64
	tlOffset   int

	report     *model.CriticalPathReport
	analysis   *model.FloatAnalysis
	critGen    int
	critLoaded bool
	critErr    string
	critRow    int

	modalTaskID  int64
	modalParent  int64
	confirmFocus confirmModalFocus
	input        textinput.Model
	detailScroll int
	editInputs   [editFieldCount]textinput.Model
	editFocus    int
	editErr      string

	flash flashNotice
}

func newAppModel(opts Options) appModel {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	in := textinput.New()
	in.Placeholder = "Title"
	in.CharLimit = 200

	m := appModel{
		ctx:         context.Background(),
		backend:     opts.Backend,
		store:       opts.Store,
		logger:      logger,
		now:         now,
		keys:        defaultKeyMap(),
		view:        parseView(opts.View),
		projectID:   opts.ProjectID,
		projectList: newList("Projects", nil),
		input:       in,
		editInputs:  newEditInputs(),
		width:       100,
		height:      30,
		sel:         boardSelection{TaskID: opts.SelectedTaskID},
		tlSelected:  opts.SelectedTaskID,
	}
	return m
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetchTasks(), m.fetchProjects()}
	if m.view == viewCritical {
		cmds = append(cmds, m.fetchCritical())
	}
	return tea.Batch(cmds...)
}

func (m appModel) today() time.Time { return model.Date(m.now()) }

// fetchTasks loads the snapshot for the current generation.
func (m *appModel) fetchTasks() tea.Cmd {
	m.loading = true
	gen, pid, b, ctx := m.gen, m.projectID, m.backend, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		tasks, err := b.FetchAllTasks(ctx, pid)
		return tasksLoadedMsg{gen: gen, tasks: tasks, err: err}
	}
}

func (m *appModel) fetchProjects() tea.Cmd {
	b, ctx := m.backend, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		ps, err := b.FetchProjects(ctx)
		return projectsLoadedMsg{projects: ps, err: err}
	}
}

// fetchCritical loads both critical-path documents. A project is required.
func (m *appModel) fetchCritical() tea.Cmd {
	return m.criticalCmd(false)
}

func (m *appModel) recalculate() tea.Cmd {
	return m.criticalCmd(true)
}

func (m *appModel) criticalCmd(recalc bool) tea.Cmd {
	if m.projectID == 0 {
		m.critLoaded = true
		m.report, m.analysis = nil, nil
		m.critErr = "Select a project (p) to see its critical path."
		return nil
	}
	m.critGen = m.gen
	gen, pid, b, ctx := m.gen, m.projectID, m.backend, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		var (
			rep model.CriticalPathReport
			err error
		)
		if recalc {
			rep, err = b.RecalculateCriticalPath(ctx, pid)
		} else {
			rep, err = b.FetchCriticalPath(ctx, pid)
		}
		if err != nil {
			return criticalLoadedMsg{gen: gen, err: err}
		}
		msg := criticalLoadedMsg{gen: gen, report: &rep}
		// Float analysis is optional; the view falls back to per-task float.
		if fa, err := b.FetchFloatAnalysis(ctx, pid); err == nil {
			msg.analysis = &fa
		}
		return msg
	}
}

// commitDrop runs the status update and the refetch off the update loop.
func (m *appModel) commitDrop(taskID int64, target workflow.DropTarget) tea.Cmd {
	gen, pid, b, ctx, snap := m.gen, m.projectID, m.backend, m.ctx, m.snap
	refetch := workflow.RefetchFunc(func(ctx context.Context) ([]model.Task, error) {
		return b.FetchAllTasks(ctx, pid)
	})
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		return dropDoneMsg{gen: gen, out: workflow.Commit(ctx, b, refetch, snap, taskID, target)}
	}
}

func (m *appModel) deleteTask(id int64) tea.Cmd {
	gen, pid, b, ctx := m.gen, m.projectID, m.backend, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		msg := mutationDoneMsg{gen: gen, op: "delete", taskID: id}
		if msg.err = b.DeleteTask(ctx, id); msg.err != nil {
			return msg
		}
		msg.tasks, msg.refetchErr = b.FetchAllTasks(ctx, pid)
		return msg
	}
}

func (m *appModel) createTask(nt model.NewTask) tea.Cmd {
	gen, pid, b, ctx := m.gen, m.projectID, m.backend, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		msg := mutationDoneMsg{gen: gen, op: "create"}
		created, err := b.CreateTask(ctx, nt)
		if err != nil {
			msg.err = err
			return msg
		}
		msg.taskID = created.ID
		msg.tasks, msg.refetchErr = b.FetchAllTasks(ctx, pid)
		return msg
	}
}

// setSnapshot replaces the render-only copy wholesale and re-derives everything from it.
func (m *appModel) setSnapshot(tasks []model.Task) {
	m.snap = hierarchy.Build(tasks)
	m.board = workflow.Classify(m.snap)
	m.expansion = timeline.SyncExpansion(m.expansion, m.snap)
	m.loaded = true
	m.loading = false

	if id, ok := m.drag.Active(); ok {
		if _, still := m.snap.Task(id); !still {
			m.drag.Cancel()
			m.pointerDrag = false
		}
	}
	m.sel = m.clampSelection(m.sel)
	m.clampTimelineSelection()
	m.critRow = clampInt(m.critRow, 0, max(len(m.criticalRows())-1, 0))
}

// switchProject starts a new generation; anything in flight for the old one is ignored.
func (m *appModel) switchProject(id int64) tea.Cmd {
	m.projectID = id
	m.gen++
	m.drag.Cancel()
	m.pointerDrag = false
	m.sel = boardSelection{}
	m.tlSelected = 0
	m.tlOffset = 0
	m.report, m.analysis, m.critLoaded, m.critErr = nil, nil, false, ""
	cmds := []tea.Cmd{m.fetchTasks()}
	if m.view == viewCritical {
		cmds = append(cmds, m.fetchCritical())
	}
	return tea.Batch(cmds...)
}

func (m *appModel) reload() tea.Cmd {
	m.gen++
	cmds := []tea.Cmd{m.fetchTasks(), m.fetchProjects()}
	if m.view == viewCritical {
		cmds = append(cmds, m.fetchCritical())
	}
	return tea.Batch(cmds...)
}

func (m *appModel) showFlash(kind flashKind, format string, args ...any) tea.Cmd {
	m.flash.seq++
	m.flash.text = fmt.Sprintf(format, args...)
	m.flash.kind = kind
	seq := m.flash.seq
	return tea.Tick(flashTimeout, func(time.Time) tea.Msg { return flashDoneMsg{seq: seq} })
}

// reportError logs a boundary failure and surfaces it as a dismissable notice.
func (m *appModel) reportError(op string, err error) tea.Cmd {
	m.logger.Printf("op=%s err=%v", op, err)
	return m.showFlash(flashError, "%s failed: %v", op, err)
}

func (m appModel) projectName() string {
	if m.projectID == 0 {
		return "All projects"
	}
	for _, p := range m.projects {
		if p.ID == m.projectID {
			return p.Name
		}
	}
	return fmt.Sprintf("Project %d", m.projectID)
}

// selectedTaskID is the task the current view points at, if any.
func (m appModel) selectedTaskID() (int64, bool) {
	switch m.view {
	case viewTimeline:
		return m.tlSelected, m.tlSelected != 0
	case viewCritical:
		rows := m.criticalRows()
		if m.critRow >= 0 && m.critRow < len(rows) {
			return rows[m.critRow].Task.ID, true
		}
		return 0, false
	default:
		return m.sel.TaskID, m.sel.TaskID != 0
	}
}

func (m appModel) saveState() {
	if strings.TrimSpace(m.store.Dir) == "" {
		return
	}
	st := &store.TUIState{Version: 1, View: m.view.String(), ProjectID: m.projectID}
	if id, ok := m.selectedTaskID(); ok {
		st.SelectedTaskID = id
	}
	if err := m.store.SaveTUIState(st); err != nil {
		m.logger.Printf("op=save-tui-state err=%v", err)
	}
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
