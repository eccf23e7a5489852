package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskboard-cli/internal/devserver"
)

var today = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

// startAPI runs the dev server with the demo data and isolates the config dir.
func startAPI(t *testing.T, token string) string {
	t.Helper()
	t.Setenv("TASKBOARD_CONFIG_DIR", t.TempDir())
	for _, k := range []string{"TASKBOARD_API_URL", "TASKBOARD_TOKEN", "TASKBOARD_PROJECT", "TASKBOARD_FORMAT", "TASKBOARD_LOG_FILE"} {
		t.Setenv(k, "")
	}

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
	return srv.URL + "/api"
}

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// mustData runs the command and returns the decoded "data" of its JSON envelope.
func mustData(t *testing.T, args ...string) any {
	t.Helper()
	out, errOut, err := runCLI(t, args)
	if err != nil {
		t.Fatalf("%v: %v\nstderr:\n%s", args, err, errOut)
	}
	var env map[string]any
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("%v: bad json: %v\n%s", args, err, out)
	}
	return env["data"]
}

func TestBoard(t *testing.T) {
	api := startAPI(t, "")

	data := mustData(t, "--api-url", api, "--project", "1", "board").(map[string]any)
	cols := data["columns"].([]any)
	if len(cols) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(cols))
	}
	wantCounts := map[string]float64{"To Do": 2, "In Progress": 1, "Done": 1, "Invalid Status": 1}
	for _, c := range cols {
		col := c.(map[string]any)
		id := col["id"].(string)
		if col["count"].(float64) != wantCounts[id] {
			t.Fatalf("column %q: expected %v cards, got %v", id, wantCounts[id], col["count"])
		}
	}

	out, _, err := runCLI(t, []string{"--api-url", api, "--project", "1", "--format", "text", "board"})
	if err != nil {
		t.Fatalf("text board: %v", err)
	}
	for _, want := range []string{"Invalid Status (1)", "status: Pending", "2/3 subtasks", "#2 Development Phase"} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestTasksMove(t *testing.T) {
	api := startAPI(t, "")
	base := []string{"--api-url", api}

	data := mustData(t, append(base, "tasks", "move", "7", "done")...).(map[string]any)
	if data["decision"] != "update" || data["to"] != "Done" {
		t.Fatalf("unexpected move result: %+v", data)
	}
	if task := data["task"].(map[string]any); task["status"] != "Done" || task["progress"].(float64) != 100 {
		t.Fatalf("expected Done at 100%%, got %+v", task)
	}

	// Dropping onto a card takes that card's status.
	data = mustData(t, append(base, "tasks", "move", "7", "2")...).(map[string]any)
	if data["to"] != "In Progress" {
		t.Fatalf("expected In Progress, got %+v", data)
	}

	out, _, err := runCLI(t, append(base, "tasks", "move", "7", "In Progress"))
	if err != nil {
		t.Fatalf("noop move: %v", err)
	}
	if !strings.Contains(string(out), `"decision":"noop"`) || !strings.Contains(string(out), "already In Progress") {
		t.Fatalf("expected a noop with a hint, got %s", out)
	}

	_, errOut, err := runCLI(t, append(base, "tasks", "move", "7", "Invalid Status"))
	var rejected moveRejectedError
	if !errors.As(err, &rejected) || !strings.Contains(string(errOut), "not a workflow status") {
		t.Fatalf("expected the move to be refused, got %v (%s)", err, errOut)
	}

	_, _, err = runCLI(t, append(base, "tasks", "move", "4040", "done"))
	var nf notFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTasksShowTreeAndList(t *testing.T) {
	api := startAPI(t, "")
	base := []string{"--api-url", api, "--project", "1"}

	data := mustData(t, append(base, "tasks", "show", "2")...).(map[string]any)
	st := data["subtasks"].(map[string]any)
	if st["total"].(float64) != 3 || st["completed"].(float64) != 2 {
		t.Fatalf("expected 2/3 subtasks, got %+v", st)
	}
	deps := data["dependsOn"].([]any)
	if len(deps) != 1 || deps[0].(map[string]any)["id"].(float64) != 1 {
		t.Fatalf("expected task 2 to depend on 1, got %+v", deps)
	}

	out, _, err := runCLI(t, append(base, "--format", "text", "tasks", "tree"))
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	for _, want := range []string{"[~] #2 Development Phase (2/3)", "│  └─ [~] #5 Content migration", "[?] #8"} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("expected %q in tree:\n%s", want, out)
		}
	}

	list := mustData(t, append(base, "tasks", "list", "--top-level", "--status", "To Do")...).([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 top-level To Do tasks, got %d", len(list))
	}
	all := mustData(t, append(base, "tasks", "list")...).([]any)
	if len(all) != 8 {
		t.Fatalf("expected 8 tasks, got %d", len(all))
	}
}

func TestTasksCreateAndDelete(t *testing.T) {
	api := startAPI(t, "")
	base := []string{"--api-url", api}

	created := mustData(t, append(base, "tasks", "create", "--title", "Retro", "--parent", "2")...).(map[string]any)
	if created["parentId"].(float64) != 2 || created["projectId"].(float64) != 1 {
		t.Fatalf("subtask should inherit the parent's project, got %+v", created)
	}

	if _, _, err := runCLI(t, append(base, "tasks", "create", "--title", "Orphan")); err == nil {
		t.Fatalf("expected an error without a project")
	}
	if _, _, err := runCLI(t, append(base, "tasks", "create", "--title", "X", "--project", "1", "--status", "Blocked")); err == nil {
		t.Fatalf("expected an invalid status to be refused")
	}

	id := int64(created["id"].(float64))
	idArg := []string{"tasks", "delete", jsonNumber(id)}
	if _, _, err := runCLI(t, append(base, idArg...)); err == nil {
		t.Fatalf("delete without --yes must fail")
	}
	data := mustData(t, append(append(base, idArg...), "--yes")...).(map[string]any)
	if data["deleted"] != true {
		t.Fatalf("unexpected delete result: %+v", data)
	}
	_, _, err := runCLI(t, append(base, "tasks", "show", jsonNumber(id)))
	var nf notFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestTasksUpdate(t *testing.T) {
	api := startAPI(t, "")
	base := []string{"--api-url", api}

	data := mustData(t, append(base, "tasks", "update", "7", "--title", "Refresh press kit", "--priority", "High",
		"--start", "2025-04-01", "--duration", "5", "--progress", "20")...).(map[string]any)
	if data["title"] != "Refresh press kit" || data["priority"] != "High" || data["status"] != "To Do" {
		t.Fatalf("unexpected updated task %+v", data)
	}
	if data["durationDays"].(float64) != 5 || data["progress"].(float64) != 20 {
		t.Fatalf("duration/progress not stored: %+v", data)
	}
	if data["startDate"] != "2025-04-01T00:00:00Z" || data["dueDate"] != "2025-04-05T00:00:00Z" {
		t.Fatalf("expected start 2025-04-01 and due 2025-04-05, got %v / %v", data["startDate"], data["dueDate"])
	}

	// Untouched fields stay.
	data = mustData(t, append(base, "task", "edit", "#7", "--description", "New logos")...).(map[string]any)
	if data["title"] != "Refresh press kit" || data["description"] != "New logos" || data["durationDays"].(float64) != 5 {
		t.Fatalf("partial edit changed other fields: %+v", data)
	}

	for _, bad := range [][]string{
		{"tasks", "update", "7"},
		{"tasks", "update", "7", "--title", "  "},
		{"tasks", "update", "7", "--progress", "140"},
		{"tasks", "update", "7", "--duration", "0"},
		{"tasks", "update", "7", "--start", "soon"},
	} {
		if _, _, err := runCLI(t, append(base, bad...)); err == nil {
			t.Fatalf("%v: expected an error", bad)
		}
	}

	_, _, err := runCLI(t, append(base, "tasks", "update", "4040", "--title", "x"))
	var nf notFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}

	out, _, err := runCLI(t, append(base, "--format", "text", "tasks", "update", "7", "--progress", "40"))
	if err != nil || !strings.Contains(string(out), "updated #7 Refresh press kit") || !strings.Contains(string(out), "40%") {
		t.Fatalf("unexpected text output %q err=%v", out, err)
	}
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestTimeline(t *testing.T) {
	api := startAPI(t, "")
	base := []string{"--api-url", api, "--project", "1"}

	data := mustData(t, append(base, "timeline")...).(map[string]any)
	if rows := data["rows"].([]any); len(rows) != 8 {
		t.Fatalf("expected 8 rows with every parent open, got %d", len(rows))
	}
	data = mustData(t, append(base, "timeline", "--collapse", "2")...).(map[string]any)
	if rows := data["rows"].([]any); len(rows) != 5 {
		t.Fatalf("expected 5 rows with task 2 collapsed, got %d", len(rows))
	}

	out, _, err := runCLI(t, append(base, "--format", "text", "timeline", "--width", "40"))
	if err != nil {
		t.Fatalf("text timeline: %v", err)
	}
	if !strings.Contains(string(out), "Mar 2025") || !strings.Contains(string(out), "█") {
		t.Fatalf("expected month header and bars:\n%s", out)
	}
}

func TestCriticalPath(t *testing.T) {
	api := startAPI(t, "")

	if _, _, err := runCLI(t, []string{"--api-url", api, "critical-path"}); err == nil {
		t.Fatalf("expected an error without a project")
	}

	data := mustData(t, "--api-url", api, "--project", "1", "critical-path", "--recalc").(map[string]any)
	sum := data["summary"].(map[string]any)
	if sum["criticalCount"].(float64) != 3 || sum["riskLevel"] != "medium" {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	paths := data["paths"].([]any)
	if len(paths) != 1 || len(paths[0].([]any)) != 3 || paths[0].([]any)[0] != "Project Planning" {
		t.Fatalf("unexpected paths: %+v", paths)
	}

	out, _, err := runCLI(t, []string{"--api-url", api, "--project", "1", "--format", "text", "critical-path"})
	if err != nil {
		t.Fatalf("text critical path: %v", err)
	}
	for _, want := range []string{"risk:       MEDIUM", "Project Planning → Development Phase → Testing Phase", "near-critical"} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestConfigDrivesDefaults(t *testing.T) {
	api := startAPI(t, "tok")

	if _, _, err := runCLI(t, []string{"--api-url", api, "projects", "list"}); err == nil {
		t.Fatalf("expected unauthorized without a token")
	}

	for _, kv := range [][]string{{"apiUrl", api}, {"token", "tok"}, {"project", "1"}} {
		if _, errOut, err := runCLI(t, []string{"config", "set", kv[0], kv[1]}); err != nil {
			t.Fatalf("config set %s: %v (%s)", kv[0], err, errOut)
		}
	}
	if _, _, err := runCLI(t, []string{"config", "set", "project", "one"}); err == nil {
		t.Fatalf("expected a bad project id to be refused")
	}

	data := mustData(t, "config", "show").(map[string]any)
	vals := data["values"].(map[string]any)
	if vals["token"] != "****" || vals["project"] != "1" || data["effectiveApiUrl"] != api {
		t.Fatalf("unexpected config: %+v", data)
	}

	// No flags: everything comes from the config file.
	out, _, err := runCLI(t, []string{"--format", "text", "projects", "list"})
	if err != nil {
		t.Fatalf("projects list: %v", err)
	}
	if !strings.Contains(string(out), "Website Relaunch") || !strings.Contains(string(out), "hint: select one with") {
		t.Fatalf("unexpected projects output:\n%s", out)
	}
}

func TestOutputFormats(t *testing.T) {
	api := startAPI(t, "")
	base := []string{"--api-url", api}

	out, _, err := runCLI(t, append(base, "--format", "edn", "projects", "list"))
	if err != nil || !strings.Contains(string(out), `:name "Website Relaunch"`) {
		t.Fatalf("edn: err=%v\n%s", err, out)
	}
	out, _, err = runCLI(t, append(base, "--format", "yaml", "projects", "list"))
	if err != nil || !strings.Contains(string(out), "name: Website Relaunch") {
		t.Fatalf("yaml: err=%v\n%s", err, out)
	}
	if _, _, err := runCLI(t, append(base, "--format", "xml", "projects", "list")); err == nil {
		t.Fatalf("expected an unknown format to fail")
	}
}
