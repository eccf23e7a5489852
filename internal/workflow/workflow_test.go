package workflow

import (
	"context"
	"errors"
	"testing"

	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
)

type updateCall struct {
	id     int64
	status model.Status
}

type fakeUpdater struct {
	calls []updateCall
	err   error
}

func (f *fakeUpdater) UpdateTaskStatus(_ context.Context, id int64, status model.Status) (model.Task, error) {
	f.calls = append(f.calls, updateCall{id, status})
	if f.err != nil {
		return model.Task{}, f.err
	}
	return model.Task{ID: id, Status: status}, nil
}

func snapshot() hierarchy.Hierarchy {
	return hierarchy.Build([]model.Task{
		{ID: 1, Title: "todo", Status: model.StatusToDo},
		{ID: 2, Title: "doing", Status: model.StatusInProgress},
		{ID: 3, Title: "done", Status: model.StatusDone},
		{ID: 4, Title: "blocked", Status: "Blocked"},
		{ID: 5, Title: "missing"},
		{ID: 6, Title: "almost", Status: "in progress"},
		{ID: 7, ParentID: 1, Status: model.StatusDone},
		{ID: 8, ParentID: 99, Status: model.StatusToDo},
	})
}

func columnIDs(c Column) []int64 {
	out := []int64{}
	for _, t := range c.Tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestClassify_UnknownStatusIsQuarantined(t *testing.T) {
	b := Classify(snapshot())
	if len(b.Columns) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(b.Columns))
	}
	col, ok := b.ColumnOf(4)
	if !ok || col != ColumnInvalid {
		t.Fatalf("Blocked: expected %q, got %q ok=%v", ColumnInvalid, col, ok)
	}
	inv, _ := b.Column(ColumnInvalid)
	if got := columnIDs(inv); len(got) != 3 || got[0] != 4 || got[1] != 5 || got[2] != 6 {
		t.Fatalf("invalid column: expected [4 5 6], got %v", got)
	}
}

func TestClassify_EachTopLevelTaskInExactlyOneColumn(t *testing.T) {
	h := snapshot()
	b := Classify(h)
	seen := map[int64]int{}
	for _, c := range b.Columns {
		for _, task := range c.Tasks {
			seen[task.ID]++
		}
	}
	for _, task := range h.TopLevel() {
		if seen[task.ID] != 1 {
			t.Fatalf("task %d placed %d times", task.ID, seen[task.ID])
		}
	}
	for _, id := range []int64{7, 8} {
		if seen[id] != 0 {
			t.Fatalf("child %d must not be placed", id)
		}
	}
	if b.Total() != len(h.TopLevel()) {
		t.Fatalf("expected %d cards, got %d", len(h.TopLevel()), b.Total())
	}
}

func TestParseDropTarget(t *testing.T) {
	cases := []struct {
		in   string
		want DropTarget
	}{
		{"12", TaskTarget(12)},
		{"task:7", TaskTarget(7)},
		{"Done", ColumnTarget(ColumnDone)},
		{"column:In Progress", ColumnTarget(ColumnInProgress)},
		{"Invalid Status", ColumnTarget(ColumnInvalid)},
	}
	for _, tc := range cases {
		if got := ParseDropTarget(tc.in); got != tc.want {
			t.Fatalf("ParseDropTarget(%q): expected %+v, got %+v", tc.in, tc.want, got)
		}
	}
}

func TestPlan(t *testing.T) {
	h := snapshot()
	cases := []struct {
		name   string
		task   int64
		target DropTarget
		want   Decision
		to     model.Status
	}{
		{"column change", 1, ColumnTarget(ColumnDone), DecisionUpdate, model.StatusDone},
		{"same column", 1, ColumnTarget(ColumnToDo), DecisionNoop, model.StatusToDo},
		{"onto card", 1, TaskTarget(2), DecisionUpdate, model.StatusInProgress},
		{"onto card same status", 2, TaskTarget(2), DecisionNoop, model.StatusInProgress},
		{"into invalid column", 3, ColumnTarget(ColumnInvalid), DecisionRejected, "Invalid Status"},
		{"onto invalid card", 1, TaskTarget(4), DecisionRejected, "Blocked"},
		{"out of invalid column", 4, ColumnTarget(ColumnToDo), DecisionUpdate, model.StatusToDo},
		{"unknown card", 1, TaskTarget(404), DecisionUnresolved, ""},
		{"unknown task", 404, ColumnTarget(ColumnDone), DecisionUnresolved, ""},
		{"made-up column", 1, ColumnTarget("Archive"), DecisionRejected, "Archive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := Plan(h, tc.task, tc.target)
			if tr.Decision != tc.want || tr.To != tc.to {
				t.Fatalf("expected %v to %q, got %v to %q", tc.want, tc.to, tr.Decision, tr.To)
			}
		})
	}
}

func TestCommit_DropOnCardUsesCardStatus(t *testing.T) {
	h := snapshot()
	u := &fakeUpdater{}
	refetched := 0
	r := RefetchFunc(func(context.Context) ([]model.Task, error) {
		refetched++
		return []model.Task{{ID: 1, Status: model.StatusInProgress}}, nil
	})

	out := Commit(context.Background(), u, r, h, 1, TaskTarget(2))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if len(u.calls) != 1 || u.calls[0] != (updateCall{1, model.StatusInProgress}) {
		t.Fatalf("expected one update to In Progress, got %+v", u.calls)
	}
	if refetched != 1 || !out.Refetched || len(out.Snapshot) != 1 {
		t.Fatalf("expected a refetch after update, got %+v", out)
	}
	// The input snapshot is untouched.
	if task, _ := h.Task(1); task.Status != model.StatusToDo {
		t.Fatalf("snapshot mutated: %q", task.Status)
	}
}

func TestCommit_DropIntoInvalidColumnIsRejected(t *testing.T) {
	u := &fakeUpdater{}
	r := RefetchFunc(func(context.Context) ([]model.Task, error) {
		t.Fatalf("no refetch expected")
		return nil, nil
	})
	out := Commit(context.Background(), u, r, snapshot(), 3, ColumnTarget(ColumnInvalid))
	if len(u.calls) != 0 {
		t.Fatalf("expected no update calls, got %+v", u.calls)
	}
	if out.Transition.Decision != DecisionRejected || out.Err != nil {
		t.Fatalf("expected silent rejection, got %+v", out)
	}
}

func TestCommit_IdempotentDrop(t *testing.T) {
	u := &fakeUpdater{}
	Commit(context.Background(), u, nil, snapshot(), 2, ColumnTarget(ColumnInProgress))
	if len(u.calls) != 0 {
		t.Fatalf("same-status drop must not issue an update, got %+v", u.calls)
	}
}

func TestCommit_UpdateFailure(t *testing.T) {
	boom := errors.New("boom")
	u := &fakeUpdater{err: boom}
	r := RefetchFunc(func(context.Context) ([]model.Task, error) {
		t.Fatalf("no refetch expected after failed update")
		return nil, nil
	})
	out := Commit(context.Background(), u, r, snapshot(), 1, ColumnTarget(ColumnDone))
	if !errors.Is(out.Err, boom) || out.Updated || out.Snapshot != nil {
		t.Fatalf("expected wrapped failure without snapshot, got %+v", out)
	}
}

func TestCommit_RefetchFailure(t *testing.T) {
	boom := errors.New("offline")
	r := RefetchFunc(func(context.Context) ([]model.Task, error) { return nil, boom })
	out := Commit(context.Background(), &fakeUpdater{}, r, snapshot(), 1, ColumnTarget(ColumnDone))
	if !out.Updated || out.Refetched || !errors.Is(out.Err, boom) {
		t.Fatalf("expected updated but not refetched, got %+v", out)
	}
}

func TestDrag_SingleActive(t *testing.T) {
	var d Drag
	if d.SelectionSuspended() {
		t.Fatalf("idle drag must not suspend selection")
	}
	if !d.Start(1) {
		t.Fatalf("first start should succeed")
	}
	if d.Start(2) {
		t.Fatalf("second concurrent start must be refused")
	}
	if id, ok := d.Active(); !ok || id != 1 {
		t.Fatalf("expected task 1 active, got %d ok=%v", id, ok)
	}
	if !d.SelectionSuspended() {
		t.Fatalf("selection should be suspended while dragging")
	}

	d.Hover(ColumnDone)
	d.Hover(ColumnInProgress)
	if d.Hovered() != ColumnInProgress {
		t.Fatalf("expected single hovered column, got %q", d.Hovered())
	}
	d.Hover("nowhere")
	if d.Hovered() != "" {
		t.Fatalf("unknown column should clear hover")
	}

	d.Cancel()
	if _, ok := d.Active(); ok || d.SelectionSuspended() || d.Hovered() != "" {
		t.Fatalf("cancel should reset to idle")
	}
}

func TestDrag_End(t *testing.T) {
	h := snapshot()
	var d Drag
	d.Start(1)
	d.Hover(ColumnToDo) // hover never drives the transition
	tr := d.End(h, 1, ColumnTarget(ColumnDone))
	if tr.Decision != DecisionUpdate || tr.To != model.StatusDone {
		t.Fatalf("expected update to Done, got %+v", tr)
	}
	if _, ok := d.Active(); ok {
		t.Fatalf("end should return to idle")
	}

	// Releasing without an active grab is a no-op.
	if tr := d.End(h, 1, ColumnTarget(ColumnDone)); tr.Decision != DecisionUnresolved {
		t.Fatalf("expected unresolved without start, got %v", tr.Decision)
	}

	d.Start(2)
	if tr := d.End(h, 3, ColumnTarget(ColumnToDo)); tr.Decision != DecisionUnresolved {
		t.Fatalf("ending a different task should not resolve, got %v", tr.Decision)
	}
}
