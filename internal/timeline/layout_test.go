package timeline

import (
	"testing"

	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
)

func familySnapshot() []model.Task {
	return []model.Task{
		{ID: 10, Title: "Design", StartDate: d(2025, 1, 1), DurationDays: 5},
		{ID: 11, ParentID: 10, StartDate: d(2025, 1, 1), DurationDays: 2, Progress: 100},
		{ID: 12, ParentID: 10, StartDate: d(2025, 1, 3), DurationDays: 2, Progress: 100},
		{ID: 13, ParentID: 10, StartDate: d(2025, 1, 4), DurationDays: 2, Progress: 40},
		{ID: 20, Title: "Build", StartDate: d(2025, 1, 6), DurationDays: 10},
		{ID: 30, Title: "Ship", StartDate: d(2025, 1, 20), DurationDays: 1},
	}
}

func TestParentBadge_PartialChildrenNotDone(t *testing.T) {
	h := hierarchy.Build(familySnapshot())
	b, ok := ParentBadge(h, 10)
	if !ok {
		t.Fatalf("expected a badge for a parent")
	}
	if b.String() != "2/3" || b.Done {
		t.Fatalf("expected 2/3 not done, got %s done=%v", b, b.Done)
	}
	if _, ok := ParentBadge(h, 20); ok {
		t.Fatalf("leaf must not have a badge")
	}
}

func TestParentBadge_AllDone(t *testing.T) {
	h := hierarchy.Build([]model.Task{
		{ID: 1},
		{ID: 2, ParentID: 1, Progress: 100},
	})
	b, ok := ParentBadge(h, 1)
	if !ok || !b.Done || b.String() != "1/1" {
		t.Fatalf("expected 1/1 done, got %+v ok=%v", b, ok)
	}
}

func TestColorIndex_ChildrenInheritParent(t *testing.T) {
	tasks := familySnapshot()
	for i := 0; i < 6; i++ {
		tasks = append(tasks, model.Task{ID: int64(100 + i)})
	}
	h := hierarchy.Build(tasks)

	if got := ColorIndex(h, 10); got != 0 {
		t.Fatalf("first family: expected 0, got %d", got)
	}
	for _, id := range []int64{11, 12, 13} {
		if got := ColorIndex(h, id); got != ColorIndex(h, 10) {
			t.Fatalf("child %d: expected parent's color, got %d", id, got)
		}
	}
	if got := ColorIndex(h, 30); got != 2 {
		t.Fatalf("third family: expected 2, got %d", got)
	}
	// Seventh top-level task wraps around the palette.
	if got := ColorIndex(h, 103); got != 6%len(Palette) {
		t.Fatalf("expected wrap-around, got %d", got)
	}
}

func TestSyncExpansion_AutoExpandsParents(t *testing.T) {
	h := hierarchy.Build(familySnapshot())
	exp := SyncExpansion(Expansion{}, h)
	if !exp.IsOpen(10) {
		t.Fatalf("parent should auto-expand on first sync")
	}
	if exp.IsOpen(20) {
		t.Fatalf("leaf should not be marked open")
	}

	exp = exp.Toggle(10)
	if exp.IsOpen(10) {
		t.Fatalf("toggle should collapse")
	}

	// Same structure with different field values keeps the user's choice.
	edited := familySnapshot()
	edited[0].Status = model.StatusDone
	exp = SyncExpansion(exp, hierarchy.Build(edited))
	if exp.IsOpen(10) {
		t.Fatalf("field-only change must not re-expand")
	}

	// A structural change re-expands.
	grown := append(familySnapshot(), model.Task{ID: 21, ParentID: 20})
	exp = SyncExpansion(exp, hierarchy.Build(grown))
	if !exp.IsOpen(10) || !exp.IsOpen(20) {
		t.Fatalf("new snapshot should auto-expand all parents")
	}
}

func TestCompute_RowsFollowExpansion(t *testing.T) {
	h := hierarchy.Build(familySnapshot())
	exp := SyncExpansion(Expansion{}, h)

	l := Compute(h, exp, today)
	if len(l.Rows) != 6 {
		t.Fatalf("expanded: expected 6 rows, got %d", len(l.Rows))
	}
	want := []int64{10, 11, 12, 13, 20, 30}
	for i, id := range want {
		if l.Rows[i].Task.ID != id {
			t.Fatalf("row %d: expected task %d, got %d", i, id, l.Rows[i].Task.ID)
		}
	}
	if l.Rows[1].Depth != 1 || l.Rows[1].Kind != hierarchy.KindChild || l.Rows[1].Color != l.Rows[0].Color {
		t.Fatalf("child row mis-annotated: %+v", l.Rows[1])
	}
	if l.Rows[0].Badge == nil || l.Rows[0].Badge.String() != "2/3" || !l.Rows[0].Expanded {
		t.Fatalf("parent row mis-annotated: %+v", l.Rows[0])
	}
	if l.Bounds.TotalDays != 30 || l.TaskCount != 6 {
		t.Fatalf("unexpected bounds/count: %+v %d", l.Bounds, l.TaskCount)
	}
	for _, r := range l.Rows {
		if r.Geometry.LeftPercent+r.Geometry.WidthPercent > 100+1e-9 {
			t.Fatalf("row %d overflows: %+v", r.Task.ID, r.Geometry)
		}
	}

	collapsed := Compute(h, exp.Toggle(10), today)
	if len(collapsed.Rows) != 3 {
		t.Fatalf("collapsed: expected 3 rows, got %d", len(collapsed.Rows))
	}
	if collapsed.Rows[0].Expanded {
		t.Fatalf("collapsed parent should report Expanded=false")
	}
}

func TestCompute_DanglingChildContributesToBoundsOnly(t *testing.T) {
	h := hierarchy.Build([]model.Task{
		{ID: 1, StartDate: d(2025, 1, 1), DurationDays: 1},
		{ID: 2, ParentID: 99, StartDate: d(2025, 3, 1), DurationDays: 1},
	})
	l := Compute(h, SyncExpansion(Expansion{}, h), today)
	if len(l.Rows) != 1 || l.Rows[0].Task.ID != 1 {
		t.Fatalf("expected only the top-level row, got %d rows", len(l.Rows))
	}
	if !l.Bounds.End.Equal(d(2025, 3, 1)) {
		t.Fatalf("dangling child should still extend bounds, got %v", l.Bounds.End)
	}
}
