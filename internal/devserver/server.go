// Package devserver is a local stand-in for the task REST API. It speaks the same wire shapes
// the client consumes, stores tasks in SQLite and serves precomputed critical-path documents.
package devserver

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/model"
)

type Options struct {
	// Token, when set, is required as a bearer token on every request.
	Token  string
	Logger *log.Logger
	Now    func() time.Time
}

type Server struct {
	db     *DB
	token  string
	logger *log.Logger
	now    func() time.Time
	router *mux.Router
}

func New(db *DB, opts Options) *Server {
	s := &Server{
		db:     db,
		token:  strings.TrimSpace(opts.Token),
		logger: opts.Logger,
		now:    opts.Now,
		router: mux.NewRouter(),
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.Use(s.requestID, s.logRequests)
	r := s.router.PathPrefix("/api").Subrouter()
	r.Use(s.auth)

	r.HandleFunc("/projects/", s.listProjects).Methods(http.MethodGet)
	r.HandleFunc("/tasks/", s.listTasks).Methods(http.MethodGet)
	r.HandleFunc("/tasks/", s.createTask).Methods(http.MethodPost)
	r.HandleFunc("/tasks/all_tasks/", s.allTasks).Methods(http.MethodGet)
	r.HandleFunc("/tasks/critical_path/", s.criticalPath).Methods(http.MethodGet)
	r.HandleFunc("/tasks/float_analysis/", s.floatAnalysis).Methods(http.MethodGet)
	r.HandleFunc("/tasks/calculate_critical_path/", s.calculateCriticalPath).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id:[0-9]+}/", s.getTask).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id:[0-9]+}/", s.patchTask).Methods(http.MethodPatch)
	r.HandleFunc("/tasks/{id:[0-9]+}/", s.deleteTask).Methods(http.MethodDelete)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Printf("%s %s status=%d request_id=%s dur=%s",
			r.Method, r.URL.RequestURI(), rec.status, w.Header().Get("X-Request-ID"), time.Since(start).Round(time.Microsecond))
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "authentication credentials were not provided or are invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.db.Projects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": projects})
}

// listTasks is the paginated-style collection endpoint.
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.loadRawTasks(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(raw), "results": raw})
}

func (s *Server) allTasks(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.loadRawTasks(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

func (s *Server) loadRawTasks(w http.ResponseWriter, r *http.Request) ([]api.RawTask, bool) {
	projectID, ok := projectParam(w, r)
	if !ok {
		return nil, false
	}
	tasks, err := s.db.Tasks(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	raw := make([]api.RawTask, 0, len(tasks))
	for _, t := range tasks {
		raw = append(raw, api.ToRaw(t))
	}
	return raw, true
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	t, err := s.db.Task(r.Context(), id)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.ToRaw(t))
}

type patchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	StartDate   *string `json:"start_date"`
	DueDate     *string `json:"due_date"`
	Duration    *int    `json:"duration"`
	Progress    *int    `json:"progress"`
}

// patchTask applies a partial update. Unknown status literals, blank titles and unparseable
// dates are rejected rather than stored. Moving the start or changing the duration without an
// explicit due date re-derives the due date.
func (s *Server) patchTask(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	t, err := s.db.Task(r.Context(), id)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	fieldErrs := map[string]any{}
	if req.Status != nil {
		st := model.Status(*req.Status)
		if !st.Valid() {
			fieldErrs["status"] = []string{strconv.Quote(*req.Status) + " is not a valid choice."}
		}
		t.Status = st
	}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			fieldErrs["title"] = []string{"This field may not be blank."}
		}
		t.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Priority != nil {
		t.Priority = strings.TrimSpace(*req.Priority)
	}
	rederiveDue := false
	if req.StartDate != nil {
		d, ok := model.ParseDate(*req.StartDate)
		if !ok {
			fieldErrs["start_date"] = []string{"Date has wrong format. Use YYYY-MM-DD."}
		}
		t.StartDate = d
		rederiveDue = true
	}
	if req.Duration != nil {
		if *req.Duration < 1 {
			fieldErrs["duration"] = []string{"Ensure this value is greater than or equal to 1."}
		}
		t.DurationDays = *req.Duration
		rederiveDue = true
	}
	if req.DueDate != nil {
		d, ok := model.ParseDate(*req.DueDate)
		if !ok {
			fieldErrs["due_date"] = []string{"Date has wrong format. Use YYYY-MM-DD."}
		}
		t.DueDate = d
		rederiveDue = false
	}
	if req.Progress != nil {
		t.Progress = *req.Progress
	}
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, fieldErrs)
		return
	}
	if rederiveDue {
		t.DueDate = time.Time{}
	}
	t = applyTaskDefaults(t, req.Progress != nil, false, s.now())

	if err := s.db.UpdateTask(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.ToRaw(t))
}

type createRequest struct {
	Project      int64   `json:"project"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Status       string  `json:"status"`
	Priority     string  `json:"priority"`
	StartDate    string  `json:"start_date"`
	DueDate      string  `json:"due_date"`
	Duration     int     `json:"duration"`
	Progress     *int    `json:"progress"`
	ParentTaskID *int64  `json:"parent_task_id"`
	Dependencies []int64 `json:"dependencies"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"title": []string{"This field is required."}})
		return
	}
	t := model.Task{
		ProjectID:     req.Project,
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Status:        model.StatusToDo,
		Priority:      req.Priority,
		DurationDays:  req.Duration,
		DependencyIDs: req.Dependencies,
	}
	if req.Status != "" {
		t.Status = model.Status(req.Status)
		if !t.Status.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status": []string{strconv.Quote(req.Status) + " is not a valid choice."},
			})
			return
		}
	}
	if t.Priority == "" {
		t.Priority = "Medium"
	}
	if req.Progress != nil {
		t.Progress = *req.Progress
	}
	t.StartDate, _ = model.ParseDate(req.StartDate)
	t.DueDate, _ = model.ParseDate(req.DueDate)
	if req.ParentTaskID != nil && *req.ParentTaskID != 0 {
		// An unknown parent creates a top-level task.
		if parent, err := s.db.Task(r.Context(), *req.ParentTaskID); err == nil {
			t.ParentID = parent.ID
			if t.ProjectID == 0 {
				t.ProjectID = parent.ProjectID
			}
		}
	}
	t = applyTaskDefaults(t, req.Progress != nil, true, s.now())

	created, err := s.db.InsertTask(r.Context(), t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, api.ToRaw(created))
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	err := s.db.DeleteTask(r.Context(), id)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) criticalPath(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectParam(w, r)
	if !ok {
		return
	}
	report, err := s.report(r, projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) floatAnalysis(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectParam(w, r)
	if !ok {
		return
	}
	var fa model.FloatAnalysis
	found, err := s.db.Report(r.Context(), projectID, reportFloatAnalysis, &fa)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		fa = model.FloatAnalysis{NearCritical: []model.ScheduledTask{}}
	}
	writeJSON(w, http.StatusOK, fa)
}

// calculateCriticalPath replays the stored document; this server has no scheduler.
func (s *Server) calculateCriticalPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	report, err := s.report(r, req.ProjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// report returns the stored critical-path document, or a skeleton built from the tasks'
// own critical flags when none is stored.
func (s *Server) report(r *http.Request, projectID int64) (model.CriticalPathReport, error) {
	var rep model.CriticalPathReport
	found, err := s.db.Report(r.Context(), projectID, reportCriticalPath, &rep)
	if err != nil || found {
		return rep, err
	}
	tasks, err := s.db.Tasks(r.Context(), projectID)
	if err != nil {
		return rep, err
	}
	rep = model.CriticalPathReport{CriticalTasks: []model.ScheduledTask{}, CriticalPaths: [][]model.ScheduledTask{}, RiskLevel: "unknown"}
	for _, t := range tasks {
		if !t.IsCritical {
			continue
		}
		rep.CriticalTasks = append(rep.CriticalTasks, model.ScheduledTask{
			ID:               t.ID,
			TaskNumber:       t.TaskNumber,
			Title:            t.Title,
			Duration:         t.DurationDays,
			Status:           string(t.Status),
			Progress:         t.Progress,
			AssigneeUsername: t.Assignee,
		})
	}
	rep.CriticalTasksCount = len(rep.CriticalTasks)
	rep.TotalTasks = len(tasks)
	return rep, nil
}

func projectParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("project_id"))
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project_id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
