// Package web serves the board, timeline and critical-path views to a browser. Pages are
// rendered on the server; open pages stay current through datastar SSE patches.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"taskboard-cli/internal/critpath"
	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/timeline"
	"taskboard-cli/internal/workflow"

	"github.com/starfederation/datastar-go/datastar"
)

//go:embed templates/*.html static/*.js static/*.css
var assetsFS embed.FS

const (
	fetchTimeout = 15 * time.Second
	flashTTL     = 8 * time.Second

	DefaultDatastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"
)

// Backend is the part of the task API the browser board uses.
type Backend interface {
	FetchAllTasks(ctx context.Context, projectID int64) ([]model.Task, error)
	UpdateTaskStatus(ctx context.Context, id int64, status model.Status) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	FetchProjects(ctx context.Context) ([]model.Project, error)
	FetchCriticalPath(ctx context.Context, projectID int64) (model.CriticalPathReport, error)
	FetchFloatAnalysis(ctx context.Context, projectID int64) (model.FloatAnalysis, error)
}

type ServerConfig struct {
	Addr    string
	Backend Backend

	// ProjectID is the project shown when a request does not name one. 0 means all projects.
	ProjectID int64

	Logger *log.Logger
	Now    func() time.Time

	// PollInterval re-fetches watched projects to pick up changes made elsewhere.
	// 0 disables polling.
	PollInterval time.Duration

	// DatastarURL is where pages load the datastar client from.
	DatastarURL string
}

type flashNotice struct {
	text string
	kind string // info|error
	at   time.Time
}

type Server struct {
	mu     sync.RWMutex
	cfg    ServerConfig
	tmpl   *template.Template
	logger *log.Logger
	now    func() time.Time
	bc     *resourceBroadcaster

	// Render-only snapshots, replaced wholesale on every fetch.
	snaps     map[int64]hierarchy.Hierarchy
	expansion map[int64]timeline.Expansion
	flashes   map[int64]flashNotice
	projects  []model.Project
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.DatastarURL = strings.TrimSpace(cfg.DatastarURL)
	if cfg.Backend == nil {
		return nil, errors.New("web: backend is nil")
	}
	if cfg.DatastarURL == "" {
		cfg.DatastarURL = DefaultDatastarURL
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"trim":   strings.TrimSpace,
		"join":   strings.Join,
		"indent": func(depth int) string { return fmt.Sprintf("%.1frem", float64(depth)*1.25) },
		"date":   func(t time.Time) string { return t.Format("Mon Jan 2, 2006") },
		"inc":    func(i int) int { return i + 1 },
	}).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:       cfg,
		tmpl:      tmpl,
		logger:    cfg.Logger,
		now:       cfg.Now,
		bc:        newResourceBroadcaster(),
		snaps:     map[int64]hierarchy.Hierarchy{},
		expansion: map[int64]timeline.Expansion{},
		flashes:   map[int64]flashNotice{},
	}
	if cfg.PollInterval > 0 {
		go srv.watchLoop(cfg.PollInterval)
	}
	return srv, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

// Close stops polling and ends open event streams.
func (s *Server) Close() { s.broadcaster().Stop() }

func (s *Server) broadcaster() *resourceBroadcaster {
	s.mu.RLock()
	b := s.bc
	s.mu.RUnlock()
	return b
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /static/app.css", s.handleAsset("static/app.css", "text/css; charset=utf-8"))
	mux.HandleFunc("GET /static/app.js", s.handleAsset("static/app.js", "application/javascript; charset=utf-8"))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/board"+projectQuery(s.projectFor(r)), http.StatusSeeOther)
	})
	mux.HandleFunc("GET /board", s.handlePage("board"))
	mux.HandleFunc("GET /timeline", s.handlePage("timeline"))
	mux.HandleFunc("GET /critical", s.handlePage("critical"))
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("POST /drop", s.handleDrop)
	mux.HandleFunc("POST /timeline/{taskId}/toggle", s.handleToggle)
	mux.HandleFunc("GET /tasks/{taskId}", s.handleTask)
	mux.HandleFunc("POST /tasks/{taskId}/edit", s.handleEdit)
	mux.HandleFunc("POST /tasks/{taskId}/delete", s.handleDelete)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleAsset(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := assetsFS.ReadFile(name)
		if err != nil || len(b) == 0 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

// projectFor reads ?project=, falling back to the configured project.
func (s *Server) projectFor(r *http.Request) int64 {
	if v := strings.TrimSpace(r.URL.Query().Get("project")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id >= 0 {
			return id
		}
	}
	return s.cfg.ProjectID
}

func projectQuery(id int64) string {
	return "?project=" + strconv.FormatInt(id, 10)
}

// load fetches a fresh snapshot for the project and stores it.
func (s *Server) load(ctx context.Context, projectID int64) (hierarchy.Hierarchy, string, error) {
	tasks, err := s.cfg.Backend.FetchAllTasks(ctx, projectID)
	if err != nil {
		return hierarchy.Hierarchy{}, "", err
	}
	return s.setSnapshot(projectID, tasks), fingerprint(tasks), nil
}

func (s *Server) setSnapshot(projectID int64, tasks []model.Task) hierarchy.Hierarchy {
	h := hierarchy.Build(tasks)
	s.mu.Lock()
	s.snaps[projectID] = h
	s.expansion[projectID] = timeline.SyncExpansion(s.expansion[projectID], h)
	s.mu.Unlock()
	return h
}

// snapshot returns the stored snapshot, fetching one when none is stored yet.
func (s *Server) snapshot(ctx context.Context, projectID int64) (hierarchy.Hierarchy, error) {
	s.mu.RLock()
	h, ok := s.snaps[projectID]
	s.mu.RUnlock()
	if ok {
		return h, nil
	}
	h, _, err := s.load(ctx, projectID)
	return h, err
}

func (s *Server) setFlash(projectID int64, kind, format string, args ...any) {
	s.mu.Lock()
	s.flashes[projectID] = flashNotice{text: fmt.Sprintf(format, args...), kind: kind, at: s.now()}
	s.mu.Unlock()
}

// reportError logs a boundary failure and shows it as a banner on the project's pages.
func (s *Server) reportError(projectID int64, op string, err error) {
	s.logger.Printf("op=%s project=%d err=%v", op, projectID, err)
	s.setFlash(projectID, "error", "%s failed: %v", op, err)
}

func (s *Server) projectList(ctx context.Context) []model.Project {
	s.mu.RLock()
	ps := s.projects
	s.mu.RUnlock()
	if ps != nil {
		return ps
	}
	ps, err := s.cfg.Backend.FetchProjects(ctx)
	if err != nil {
		s.logger.Printf("op=load-projects err=%v", err)
		return nil
	}
	s.mu.Lock()
	s.projects = ps
	s.mu.Unlock()
	return ps
}

func (s *Server) base(ctx context.Context, view string, projectID int64) baseVM {
	projects := s.projectList(ctx)
	vm := baseVM{
		View:        view,
		ProjectID:   projectID,
		ProjectName: projectName(projects, projectID),
		Projects:    projects,
		StreamURL:   "/events?view=" + view + "&project=" + strconv.FormatInt(projectID, 10),
		DatastarURL: s.cfg.DatastarURL,
		Now:         nowStamp(s.now()),
	}
	s.mu.RLock()
	f, ok := s.flashes[projectID]
	s.mu.RUnlock()
	if ok && s.now().Sub(f.at) < flashTTL {
		vm.Flash, vm.FlashKind = f.text, f.kind
	}
	return vm
}

// renderMain renders the swappable part of a view (the #taskboard-main element).
func (s *Server) renderMain(ctx context.Context, view string, projectID int64) (string, error) {
	name, vm, err := s.viewModel(ctx, view, projectID)
	if err != nil {
		return "", err
	}
	return s.renderTemplate(name+"_main", vm)
}

func (s *Server) viewModel(ctx context.Context, view string, projectID int64) (string, any, error) {
	h, err := s.snapshot(ctx, projectID)
	if err != nil {
		// The page still renders; the banner says what went wrong.
		s.reportError(projectID, "load tasks", err)
		h = hierarchy.Build(nil)
	}
	base := s.base(ctx, view, projectID)

	switch view {
	case "timeline":
		s.mu.RLock()
		exp := s.expansion[projectID]
		s.mu.RUnlock()
		l := timeline.Compute(h, exp, s.now())
		vm := timelineVM{baseVM: base, Span: l.Span, TaskCount: l.TaskCount}
		vm.Months, vm.Rows = timelineView(l)
		return "timeline", vm, nil
	case "critical":
		vm := criticalVM{baseVM: base}
		if projectID == 0 {
			vm.Message = "Pick a project to see its critical path."
			return "critical", vm, nil
		}
		report, err := s.cfg.Backend.FetchCriticalPath(ctx, projectID)
		if err != nil {
			s.logger.Printf("op=load-critical-path project=%d err=%v", projectID, err)
			vm.Message = "Critical path unavailable: " + err.Error()
			return "critical", vm, nil
		}
		var analysis *model.FloatAnalysis
		if fa, err := s.cfg.Backend.FetchFloatAnalysis(ctx, projectID); err == nil {
			analysis = &fa
		}
		vm.Summary = critpath.Summarize(report, analysis)
		vm.Risk = strings.ToUpper(vm.Summary.RiskLevel)
		vm.Severity = vm.Summary.Severity.String()
		vm.Paths, vm.Rows = criticalView(h, report, analysis)
		return "critical", vm, nil
	default:
		return "board", boardVM{baseVM: base, Columns: boardColumns(h)}, nil
	}
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) writeHTMLTemplate(w http.ResponseWriter, name string, data any) {
	html, err := s.renderTemplate(name, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

// handlePage renders a full page. Every page view fetches a fresh snapshot.
func (s *Server) handlePage(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
		defer cancel()
		pid := s.projectFor(r)
		if _, _, err := s.load(ctx, pid); err != nil {
			s.reportError(pid, "load tasks", err)
		}
		name, vm, err := s.viewModel(ctx, view, pid)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeHTMLTemplate(w, name, vm)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	view := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("view")))
	switch view {
	case "board", "timeline", "critical":
	default:
		http.Error(w, "unknown view", http.StatusBadRequest)
		return
	}
	pid := s.projectFor(r)
	s.serveDatastarElementsStream(w, r, projectKey(pid), func() (string, error) {
		ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
		defer cancel()
		return s.renderMain(ctx, view, pid)
	})
}

type dropSignals struct {
	TaskID    int64  `json:"taskId"`
	Target    string `json:"target"`
	ProjectID int64  `json:"projectId"`
}

// handleDrop commits a card drop: plan against the current snapshot, update, refetch.
// Rejected and no-op drops change nothing and show nothing.
func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	var sig dropSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()

	pid := sig.ProjectID
	h, err := s.snapshot(ctx, pid)
	if err != nil {
		s.reportError(pid, "load tasks", err)
	} else {
		refetch := workflow.RefetchFunc(func(ctx context.Context) ([]model.Task, error) {
			return s.cfg.Backend.FetchAllTasks(ctx, pid)
		})
		out := workflow.Commit(ctx, s.cfg.Backend, refetch, h, sig.TaskID, workflow.ParseDropTarget(sig.Target))
		s.applyOutcome(pid, out)
	}

	sse := datastar.NewSSE(w, r)
	html, err := s.renderMain(ctx, "board", pid)
	if err != nil {
		_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
		return
	}
	_ = sse.PatchElements(html, datastar.WithSelector(mainSelector), datastar.WithMode(datastar.ElementPatchModeOuter))
}

func (s *Server) applyOutcome(projectID int64, out workflow.Outcome) {
	if out.Refetched {
		s.setSnapshot(projectID, out.Snapshot)
		s.notify(projectID, out.Snapshot)
	}
	switch {
	case out.Err != nil && out.Updated:
		s.reportError(projectID, "reload after move", out.Err)
	case out.Err != nil:
		s.reportError(projectID, fmt.Sprintf("move #%d", out.Transition.TaskID), out.Err)
	case out.Transition.Decision == workflow.DecisionUpdate:
		s.setFlash(projectID, "info", "Moved #%d to %s", out.Transition.TaskID, out.Transition.To)
	}
}

func taskIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("taskId")), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()
	pid := s.projectFor(r)
	h, err := s.snapshot(ctx, pid)
	if err == nil && h.HasChildren(id) {
		s.mu.Lock()
		s.expansion[pid] = s.expansion[pid].Toggle(id)
		s.mu.Unlock()
	}

	sse := datastar.NewSSE(w, r)
	html, err := s.renderMain(ctx, "timeline", pid)
	if err != nil {
		_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
		return
	}
	_ = sse.PatchElements(html, datastar.WithSelector(mainSelector), datastar.WithMode(datastar.ElementPatchModeOuter))
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()
	pid := s.projectFor(r)
	h, _, err := s.load(ctx, pid)
	if err != nil {
		s.reportError(pid, "load tasks", err)
	}
	t, ok := h.Task(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	vm := taskVM{
		baseVM:       s.base(ctx, "task", pid),
		Task:         t,
		Description:  renderDescription(t.Description),
		Children:     h.ChildrenOf(id),
		Stats:        h.SubtaskStats(id),
		Predecessors: h.Predecessors(id),
	}
	if col, ok := workflow.Classify(h).ColumnOf(id); ok {
		vm.Column = col.String()
	}
	if t.ParentID != 0 {
		if p, ok := h.Task(t.ParentID); ok {
			vm.Parent = &p
		}
	}
	if t.TotalFloat != nil {
		vm.Schedule = fmt.Sprintf("float %dd (%s)", *t.TotalFloat, critpath.Categorize(t.TotalFloat))
	}
	if t.IsCritical {
		vm.Schedule = strings.TrimPrefix(vm.Schedule+", critical", ", ")
	}
	s.writeHTMLTemplate(w, "task", vm)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()
	pid := s.projectFor(r)

	if err := s.cfg.Backend.DeleteTask(ctx, id); err != nil {
		s.reportError(pid, fmt.Sprintf("delete #%d", id), err)
		http.Redirect(w, r, "/tasks/"+strconv.FormatInt(id, 10)+projectQuery(pid), http.StatusSeeOther)
		return
	}
	if _, _, err := s.load(ctx, pid); err != nil {
		s.reportError(pid, "reload after delete", err)
	} else {
		s.setFlash(pid, "info", "Deleted #%d", id)
		s.mu.RLock()
		h := s.snaps[pid]
		s.mu.RUnlock()
		s.notify(pid, h.Tasks())
	}
	http.Redirect(w, r, "/board"+projectQuery(pid), http.StatusSeeOther)
}

// editForm reads the task page's edit form and returns only the fields that differ from t.
func editForm(r *http.Request, t model.Task) (model.TaskPatch, error) {
	var p model.TaskPatch
	val := func(k string) string { return strings.TrimSpace(r.PostFormValue(k)) }

	if title := val("title"); title == "" {
		return p, errors.New("title cannot be empty")
	} else if title != t.Title {
		p.Title = &title
	}
	start, ok := model.ParseDate(val("start"))
	if !ok {
		return p, fmt.Errorf("invalid start date %q", val("start"))
	}
	if !start.Equal(model.Date(t.StartDate)) {
		p.StartDate = &start
	}
	dur, err := strconv.Atoi(val("duration"))
	if err != nil || dur < 1 {
		return p, errors.New("duration must be at least 1 day")
	}
	if dur != t.DurationDays {
		p.DurationDays = &dur
	}
	progress, err := strconv.Atoi(val("progress"))
	if err != nil || progress < 0 || progress > 100 {
		return p, errors.New("progress must be between 0 and 100")
	}
	if progress != t.Progress {
		p.Progress = &progress
	}
	if prio := val("priority"); prio != t.Priority {
		p.Priority = &prio
	}
	return p, nil
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()
	pid := s.projectFor(r)
	back := "/tasks/" + strconv.FormatInt(id, 10) + projectQuery(pid)

	h, err := s.snapshot(ctx, pid)
	if err != nil {
		s.reportError(pid, "load tasks", err)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	t, ok := h.Task(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	p, err := editForm(r, t)
	if err != nil {
		s.setFlash(pid, "error", "Edit #%d: %v", id, err)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if p.Empty() {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if _, err := s.cfg.Backend.UpdateTask(ctx, id, p); err != nil {
		s.reportError(pid, fmt.Sprintf("update #%d", id), err)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if _, _, err := s.load(ctx, pid); err != nil {
		s.reportError(pid, "reload after update", err)
	} else {
		s.setFlash(pid, "info", "Updated #%d", id)
		s.mu.RLock()
		h := s.snaps[pid]
		s.mu.RUnlock()
		s.notify(pid, h.Tasks())
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
