package hierarchy

import (
	"testing"

	"taskboard-cli/internal/model"
)

func ids(ts []model.Task) []int64 {
	out := make([]int64, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuild_TopLevelAndChildrenPreserveOrder(t *testing.T) {
	h := Build([]model.Task{
		{ID: 3, Title: "C"},
		{ID: 1, Title: "A"},
		{ID: 10, ParentID: 1},
		{ID: 2, Title: "B"},
		{ID: 11, ParentID: 1},
		{ID: 20, ParentID: 2},
	})

	if got := ids(h.TopLevel()); !equalIDs(got, []int64{3, 1, 2}) {
		t.Fatalf("TopLevel: expected [3 1 2], got %v", got)
	}
	if got := ids(h.ChildrenOf(1)); !equalIDs(got, []int64{10, 11}) {
		t.Fatalf("ChildrenOf(1): expected [10 11], got %v", got)
	}
	if got := h.ChildrenOf(3); len(got) != 0 {
		t.Fatalf("ChildrenOf(3): expected none, got %v", ids(got))
	}
	if !h.HasChildren(2) || h.HasChildren(3) {
		t.Fatalf("HasChildren mismatch")
	}
	if got := h.TopLevelIndex(2); got != 2 {
		t.Fatalf("TopLevelIndex(2): expected 2, got %d", got)
	}
	if got := h.TopLevelIndex(10); got != -1 {
		t.Fatalf("TopLevelIndex(child): expected -1, got %d", got)
	}
}

func TestKindOf(t *testing.T) {
	h := Build([]model.Task{
		{ID: 1},
		{ID: 2, ParentID: 1},
		{ID: 3, ParentID: 99}, // dangling parent
	})
	cases := []struct {
		id   int64
		want Kind
	}{
		{1, KindTopLevel},
		{2, KindChild},
		{3, KindChild},
	}
	for _, tc := range cases {
		got, ok := h.KindOf(tc.id)
		if !ok || got != tc.want {
			t.Fatalf("KindOf(%d): expected %v, got %v ok=%v", tc.id, tc.want, got, ok)
		}
	}
	if _, ok := h.KindOf(42); ok {
		t.Fatalf("KindOf(unknown): expected ok=false")
	}
	if _, ok := h.FamilyRoot(3); ok {
		t.Fatalf("FamilyRoot(dangling): expected ok=false")
	}
	if root, ok := h.FamilyRoot(2); !ok || root != 1 {
		t.Fatalf("FamilyRoot(2): expected 1, got %d ok=%v", root, ok)
	}
}

func TestSubtaskStats(t *testing.T) {
	h := Build([]model.Task{
		{ID: 1},
		{ID: 2, ParentID: 1, Progress: 100},
		{ID: 3, ParentID: 1, Progress: 100},
		{ID: 4, ParentID: 1, Progress: 99},
	})
	st := h.SubtaskStats(1)
	if st.Total != 3 || st.Completed != 2 {
		t.Fatalf("expected 2/3, got %d/%d", st.Completed, st.Total)
	}
	if st.Completed > st.Total {
		t.Fatalf("completed must not exceed total")
	}
	if st := h.SubtaskStats(4); st.Total != 0 || st.Completed != 0 {
		t.Fatalf("leaf: expected 0/0, got %+v", st)
	}
}

func TestEmptyInput(t *testing.T) {
	h := Build(nil)
	if h.Len() != 0 || len(h.TopLevel()) != 0 || len(h.ChildrenOf(1)) != 0 || len(h.Links()) != 0 {
		t.Fatalf("expected empty results for empty input")
	}
	if st := h.SubtaskStats(1); st != (Stats{}) {
		t.Fatalf("expected zero stats, got %+v", st)
	}
}

func TestLinksAndPredecessors(t *testing.T) {
	h := Build([]model.Task{
		{ID: 1},
		{ID: 2, DependencyIDs: []int64{1}},
		{ID: 3, DependencyIDs: []int64{1, 2, 77}},
	})
	links := h.Links()
	want := []Link{{1, 2}, {1, 3}, {2, 3}, {77, 3}}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %v", len(want), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Fatalf("link %d: expected %v, got %v", i, want[i], links[i])
		}
	}
	if got := ids(h.Predecessors(3)); !equalIDs(got, []int64{1, 2}) {
		t.Fatalf("Predecessors(3): expected [1 2], got %v", got)
	}
}

func TestBuild_CopiesInput(t *testing.T) {
	in := []model.Task{{ID: 1, Title: "before"}}
	h := Build(in)
	in[0].Title = "after"
	if got, _ := h.Task(1); got.Title != "before" {
		t.Fatalf("expected snapshot to be isolated from caller mutation, got %q", got.Title)
	}
}
