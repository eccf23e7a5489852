package api_test

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/devserver"
	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/workflow"
)

var today = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

func startDevServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	db, err := devserver.OpenDB(ctx, "")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	seed, err := devserver.DemoSeed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := seed.Apply(ctx, db, today()); err != nil {
		t.Fatalf("apply: %v", err)
	}
	srv := httptest.NewServer(devserver.New(db, devserver.Options{Token: token, Now: today}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FetchAllTasks(t *testing.T) {
	srv := startDevServer(t, "")
	c := api.New(srv.URL+"/api", "", api.WithClock(today))

	tasks, err := c.FetchAllTasks(context.Background(), 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(tasks) != 8 {
		t.Fatalf("expected 8 tasks, got %d", len(tasks))
	}
	h := hierarchy.Build(tasks)
	if st := h.SubtaskStats(2); st.Total != 3 || st.Completed != 2 {
		t.Fatalf("expected 2/3 subtasks done on task 2, got %+v", st)
	}
	b := workflow.Classify(h)
	if col, _ := b.ColumnOf(8); col != workflow.ColumnInvalid {
		t.Fatalf("Pending task should be quarantined, got %q", col)
	}

	all, err := c.FetchAllTasks(context.Background(), 0)
	if err != nil || len(all) != 9 {
		t.Fatalf("unscoped fetch: expected 9 tasks, got %d err=%v", len(all), err)
	}
}

func TestClient_UpdateStatusAndErrors(t *testing.T) {
	srv := startDevServer(t, "")
	c := api.New(srv.URL+"/api/", "")
	ctx := context.Background()

	got, err := c.UpdateTaskStatus(ctx, 7, model.StatusDone)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != model.StatusDone || got.Progress != 100 {
		t.Fatalf("expected Done at 100%%, got %q %d", got.Status, got.Progress)
	}

	_, err = c.UpdateTaskStatus(ctx, 7, "Invalid Status")
	if !api.IsBadRequest(err) {
		t.Fatalf("expected bad request for invalid status, got %v", err)
	}
	_, err = c.UpdateTaskStatus(ctx, 4040, model.StatusDone)
	if !api.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := c.DeleteTask(ctx, 4040); !api.IsNotFound(err) {
		t.Fatalf("delete unknown: expected not found, got %v", err)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	srv := startDevServer(t, "tok")
	_, err := api.New(srv.URL+"/api", "wrong").FetchProjects(context.Background())
	if !api.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	projects, err := api.New(srv.URL+"/api", "tok").FetchProjects(context.Background())
	if err != nil || len(projects) != 2 || projects[0].Name != "Website Relaunch" {
		t.Fatalf("expected 2 projects, got %+v err=%v", projects, err)
	}
}

func TestClient_CreateAndCommitThroughWorkflow(t *testing.T) {
	srv := startDevServer(t, "")
	c := api.New(srv.URL+"/api", "", api.WithClock(today))
	ctx := context.Background()

	created, err := c.CreateTask(ctx, model.NewTask{ProjectID: 1, Title: "Retro", DurationDays: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 || created.Status != model.StatusToDo {
		t.Fatalf("unexpected created task: %+v", created)
	}
	if _, err := c.CreateTask(ctx, model.NewTask{Title: "  "}); err == nil {
		t.Fatalf("expected blank title to be refused client-side")
	}

	tasks, _ := c.FetchAllTasks(ctx, 1)
	refetch := workflow.RefetchFunc(func(ctx context.Context) ([]model.Task, error) { return c.FetchAllTasks(ctx, 1) })

	// Drop onto a card in In Progress.
	out := workflow.Commit(ctx, c, refetch, hierarchy.Build(tasks), created.ID, workflow.TaskTarget(2))
	if out.Err != nil || !out.Refetched {
		t.Fatalf("commit failed: %+v", out)
	}
	next := hierarchy.Build(out.Snapshot)
	if task, _ := next.Task(created.ID); task.Status != model.StatusInProgress {
		t.Fatalf("expected refetched status In Progress, got %q", task.Status)
	}

	// Invalid task dragged out of quarantine.
	out = workflow.Commit(ctx, c, refetch, next, 8, workflow.ColumnTarget(workflow.ColumnToDo))
	if out.Err != nil || !out.Refetched {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if col, _ := workflow.Classify(hierarchy.Build(out.Snapshot)).ColumnOf(8); col != workflow.ColumnToDo {
		t.Fatalf("expected task 8 in To Do, got %q", col)
	}
}

func TestClient_CriticalPath(t *testing.T) {
	srv := startDevServer(t, "")
	c := api.New(srv.URL+"/api", "")
	ctx := context.Background()

	rep, err := c.FetchCriticalPath(ctx, 1)
	if err != nil || rep.CriticalTasksCount != 3 || rep.RiskLevel != "medium" {
		t.Fatalf("unexpected report %+v err=%v", rep, err)
	}
	fa, err := c.FetchFloatAnalysis(ctx, 1)
	if err != nil || fa.Summary.Critical != 3 {
		t.Fatalf("unexpected float analysis %+v err=%v", fa, err)
	}
	again, err := c.RecalculateCriticalPath(ctx, 1)
	if err != nil || again.ProjectDuration != rep.ProjectDuration {
		t.Fatalf("recalculate: %+v err=%v", again, err)
	}
}

func TestClient_UnknownShapeLogsAndReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detail":"maintenance"}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := api.New(srv.URL, "", api.WithLogger(log.New(&buf, "", 0)))
	tasks, err := c.FetchAllTasks(context.Background(), 0)
	if err != nil || len(tasks) != 0 {
		t.Fatalf("expected empty result without error, got %d err=%v", len(tasks), err)
	}
	if !strings.Contains(buf.String(), "unrecognized list response") {
		t.Fatalf("expected a warning in the log, got %q", buf.String())
	}
}

func TestClient_RetriesReadsOnServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing request id")
		}
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	if _, err := api.New(srv.URL, "").FetchAllTasks(context.Background(), 0); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits.Load())
	}

	hits.Store(0)
	_, err := api.New(srv.URL, "").UpdateTaskStatus(context.Background(), 1, model.StatusDone)
	if err == nil || hits.Load() != 1 {
		t.Fatalf("writes must not be retried: hits=%d err=%v", hits.Load(), err)
	}
}

func TestClient_UpdateTaskEditsFieldsAndRefetchShowsThem(t *testing.T) {
	srv := startDevServer(t, "")
	c := api.New(srv.URL+"/api", "", api.WithClock(today))
	ctx := context.Background()

	title, prio, dur, progress := "Press kit v2", "High", 4, 30
	start := time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC)
	got, err := c.UpdateTask(ctx, 7, model.TaskPatch{Title: &title, Priority: &prio, DurationDays: &dur, Progress: &progress, StartDate: &start})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != title || got.DurationDays != 4 || got.Progress != 30 || !got.StartDate.Equal(start) {
		t.Fatalf("unexpected response task %+v", got)
	}

	tasks, err := c.FetchAllTasks(ctx, 1)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	task, ok := hierarchy.Build(tasks).Task(7)
	if !ok || task.Title != title || task.Priority != "High" || task.Status != model.StatusToDo {
		t.Fatalf("refetched task not edited: %+v", task)
	}
	if want := start.AddDate(0, 0, 3); !task.DueDate.Equal(want) {
		t.Fatalf("expected due %v, got %v", want, task.DueDate)
	}

	if _, err := c.UpdateTask(ctx, 7, model.TaskPatch{}); err == nil {
		t.Fatalf("expected empty patch to be refused")
	}
	blank := " "
	if _, err := c.UpdateTask(ctx, 7, model.TaskPatch{Title: &blank}); err == nil {
		t.Fatalf("expected blank title to be refused client-side")
	}
	zero := 0
	if _, err := c.UpdateTask(ctx, 7, model.TaskPatch{DurationDays: &zero}); !api.IsBadRequest(err) {
		t.Fatalf("expected bad request for zero duration, got %v", err)
	}
	if _, err := c.UpdateTask(ctx, 4040, model.TaskPatch{Title: &title}); !api.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
