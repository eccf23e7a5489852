package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/model"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

func newTestServer(t *testing.T, token string) (*httptest.Server, *DB) {
	t.Helper()
	ctx := context.Background()
	db, err := OpenDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	seed, err := DemoSeed()
	if err != nil {
		t.Fatalf("demo seed: %v", err)
	}
	if err := seed.Apply(ctx, db, fixedNow()); err != nil {
		t.Fatalf("apply seed: %v", err)
	}
	srv := httptest.NewServer(New(db, Options{Token: token, Now: fixedNow}).Handler())
	t.Cleanup(srv.Close)
	return srv, db
}

func doJSON(t *testing.T, method, url, body string, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestAllTasks_ReturnsArrayWithDerivedFields(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/tasks/all_tasks/?project_id=1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var raw []api.RawTask
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("expected a bare array: %v", err)
	}
	if len(raw) != 8 {
		t.Fatalf("expected 8 tasks in project 1, got %d", len(raw))
	}
	byID := map[int64]api.RawTask{}
	for _, r := range raw {
		byID[r.ID] = r
	}
	if p := byID[1].Progress; p == nil || *p != 100 {
		t.Fatalf("Done task should default to 100%%, got %v", p)
	}
	if s := byID[6].StartDate; s == nil || *s != "2025-03-27" {
		t.Fatalf("start should be derived from due date, got %v", s)
	}
	if s := byID[8].Status; s == nil || *s != "Pending" {
		t.Fatalf("invalid seeded status must be kept verbatim, got %v", s)
	}
	if deps := byID[6].Dependencies; len(deps) != 1 || deps[0] != 2 {
		t.Fatalf("expected dependency on 2, got %v", deps)
	}
}

func TestListTasks_ResultsEnvelope(t *testing.T) {
	srv, _ := newTestServer(t, "")
	_, body := doJSON(t, http.MethodGet, srv.URL+"/api/tasks/", "")
	list := api.DecodeList[api.RawTask](body)
	if list.Shape != api.ShapeResults || len(list.Items) != 9 {
		t.Fatalf("expected results envelope with 9 tasks, got %v/%d", list.Shape, len(list.Items))
	}
}

func TestPatchTask(t *testing.T) {
	srv, db := newTestServer(t, "")
	ctx := context.Background()

	resp, body := doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/6/", `{"status":"In Progress"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	got, err := db.Task(ctx, 6)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != model.StatusInProgress || got.Progress != 50 {
		t.Fatalf("expected In Progress at 50%%, got %q %d", got.Status, got.Progress)
	}

	resp, _ = doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/6/", `{"status":"Invalid Status"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid status: expected 400, got %d", resp.StatusCode)
	}
	if got, _ := db.Task(ctx, 6); got.Status != model.StatusInProgress {
		t.Fatalf("rejected update must not change the task, got %q", got.Status)
	}

	resp, _ = doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/999/", `{"status":"Done"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id: expected 404, got %d", resp.StatusCode)
	}
}

func TestPatchTask_ExplicitProgressWins(t *testing.T) {
	srv, db := newTestServer(t, "")
	doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/7/", `{"status":"Done","progress":80}`)
	got, _ := db.Task(context.Background(), 7)
	if got.Status != model.StatusDone || got.Progress != 80 {
		t.Fatalf("expected Done at 80%%, got %q %d", got.Status, got.Progress)
	}
}

func TestPatchTask_EditFields(t *testing.T) {
	srv, db := newTestServer(t, "")
	ctx := context.Background()

	resp, body := doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/7/",
		`{"title":" Refresh press kit ","priority":"High","start_date":"2025-04-01","duration":5,"progress":20,"description":"New logos"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var raw api.RawTask
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw.DueDate == nil || *raw.DueDate != "2025-04-05" {
		t.Fatalf("expected due date re-derived to 2025-04-05, got %v", raw.DueDate)
	}
	got, _ := db.Task(ctx, 7)
	if got.Title != "Refresh press kit" || got.Priority != "High" || got.DurationDays != 5 ||
		got.Progress != 20 || got.Description != "New logos" || got.Status != model.StatusToDo {
		t.Fatalf("unexpected stored task %+v", got)
	}
	if want := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC); !got.StartDate.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, got.StartDate)
	}
	doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/6/", `{"title":"Launch"}`)
	if six, _ := db.Task(ctx, 6); six.Title != "Launch" || len(six.DependencyIDs) != 1 || six.DependencyIDs[0] != 2 || six.ProjectID != 1 {
		t.Fatalf("edit must not touch project or dependencies: %+v", six)
	}

	for _, bad := range []string{`{"title":"  "}`, `{"start_date":"April 1st"}`, `{"duration":0}`} {
		resp, _ := doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/7/", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", bad, resp.StatusCode)
		}
	}
	if again, _ := db.Task(ctx, 7); again.Title != got.Title || !again.StartDate.Equal(got.StartDate) || again.DurationDays != 5 {
		t.Fatalf("rejected edits must not change the task: %+v", again)
	}
}

func TestCreateAndDeleteTask(t *testing.T) {
	srv, db := newTestServer(t, "")
	ctx := context.Background()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/tasks/",
		`{"title":"Write launch post","parent_task_id":2,"duration":2}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var created api.RawTask
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ParentTask == nil || *created.ParentTask != 2 || created.Project == nil || *created.Project != 1 {
		t.Fatalf("subtask should inherit parent and project, got %+v", created)
	}
	if created.StartDate == nil || *created.StartDate != "2025-03-01" {
		t.Fatalf("missing dates should default to today, got %v", created.StartDate)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/tasks/", `{"title":" "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank title: expected 400, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/tasks/2/", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	tasks, err := db.Tasks(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, task := range tasks {
		if task.ID == 2 || task.ParentID == 2 {
			t.Fatalf("task %d should have been deleted with its parent", task.ID)
		}
		for _, dep := range task.DependencyIDs {
			if dep == 2 {
				t.Fatalf("dependency edge to deleted task left on %d", task.ID)
			}
		}
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/tasks/2/", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestCriticalPathDocuments(t *testing.T) {
	srv, _ := newTestServer(t, "")

	_, body := doJSON(t, http.MethodGet, srv.URL+"/api/tasks/critical_path/?project_id=1", "")
	var rep model.CriticalPathReport
	if err := json.Unmarshal(body, &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.CriticalTasksCount != 3 || len(rep.CriticalPaths) != 1 || rep.RiskLevel != "medium" {
		t.Fatalf("unexpected stored report: %+v", rep)
	}

	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/tasks/critical_path/?project_id=2", "")
	rep = model.CriticalPathReport{}
	_ = json.Unmarshal(body, &rep)
	if rep.TotalTasks != 1 || rep.RiskLevel != "unknown" {
		t.Fatalf("expected skeleton report for project 2, got %+v", rep)
	}

	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/tasks/float_analysis/?project_id=1", "")
	var fa model.FloatAnalysis
	_ = json.Unmarshal(body, &fa)
	if fa.Summary.NearCritical != 1 || len(fa.NearCritical) != 1 || fa.NearCritical[0].ID != 7 {
		t.Fatalf("unexpected float analysis: %+v", fa)
	}

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/tasks/critical_path/?project_id=abc", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad project id: expected 400, got %d", resp.StatusCode)
	}
}

func TestAuthAndRequestID(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret")

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/projects/", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected a generated request id")
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/projects/", "",
		"Authorization", "Bearer s3cret", "X-Request-ID", "abc-123")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
	if !strings.Contains(string(body), `"data"`) {
		t.Fatalf("expected data envelope, got %s", body)
	}
}

func TestApplyTaskDefaults(t *testing.T) {
	today := fixedNow()
	due := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	got := applyTaskDefaults(model.Task{DueDate: due, DurationDays: 5, Status: model.StatusToDo}, false, true, today)
	if want := time.Date(2025, 2, 6, 0, 0, 0, 0, time.UTC); !got.StartDate.Equal(want) {
		t.Fatalf("expected derived start %v, got %v", want, got.StartDate)
	}
	got = applyTaskDefaults(model.Task{Status: model.StatusDone, Progress: 20}, false, false, today)
	if got.Progress != 100 || got.DurationDays != 1 {
		t.Fatalf("expected Done at 100%% with duration 1, got %+v", got)
	}
	got = applyTaskDefaults(model.Task{Status: model.StatusToDo, Progress: 40}, false, false, today)
	if got.Progress != 40 {
		t.Fatalf("existing To Do task keeps its progress, got %d", got.Progress)
	}
}
