// Package hierarchy derives parent/child structure and dependency edges from a flat task
// snapshot. A Hierarchy is built once per snapshot and never mutated afterwards; rebuild it
// whenever the snapshot is replaced.
package hierarchy

import "taskboard-cli/internal/model"

type Kind int

const (
	KindTopLevel Kind = iota
	KindChild
)

func (k Kind) String() string {
	if k == KindChild {
		return "child"
	}
	return "top-level"
}

type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// Link is a dependency edge from a predecessor to the task that depends on it.
type Link struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type Hierarchy struct {
	tasks    []model.Task
	index    map[int64]int
	kinds    map[int64]Kind
	topLevel []int
	topIndex map[int64]int
	children map[int64][]int
}

// Build indexes tasks. Input order is preserved by every query. Parent references are not
// validated: a task whose parent is absent from the snapshot is still a child.
func Build(tasks []model.Task) Hierarchy {
	h := Hierarchy{
		tasks:    make([]model.Task, len(tasks)),
		index:    make(map[int64]int, len(tasks)),
		kinds:    make(map[int64]Kind, len(tasks)),
		topIndex: map[int64]int{},
		children: map[int64][]int{},
	}
	copy(h.tasks, tasks)

	for i, t := range h.tasks {
		if _, dup := h.index[t.ID]; !dup {
			h.index[t.ID] = i
		}
		if t.ParentID == 0 {
			h.kinds[t.ID] = KindTopLevel
			h.topIndex[t.ID] = len(h.topLevel)
			h.topLevel = append(h.topLevel, i)
			continue
		}
		h.kinds[t.ID] = KindChild
		h.children[t.ParentID] = append(h.children[t.ParentID], i)
	}
	return h
}

func (h Hierarchy) Len() int { return len(h.tasks) }

// Tasks returns a copy of the whole snapshot in input order.
func (h Hierarchy) Tasks() []model.Task {
	out := make([]model.Task, len(h.tasks))
	copy(out, h.tasks)
	return out
}

func (h Hierarchy) Task(id int64) (model.Task, bool) {
	i, ok := h.index[id]
	if !ok {
		return model.Task{}, false
	}
	return h.tasks[i], true
}

// KindOf reports whether id is a top-level task or a child. Unknown ids report KindTopLevel
// and false.
func (h Hierarchy) KindOf(id int64) (Kind, bool) {
	k, ok := h.kinds[id]
	return k, ok
}

func (h Hierarchy) TopLevel() []model.Task {
	return h.pick(h.topLevel)
}

func (h Hierarchy) ChildrenOf(id int64) []model.Task {
	return h.pick(h.children[id])
}

func (h Hierarchy) HasChildren(id int64) bool {
	return len(h.children[id]) > 0
}

func (h Hierarchy) SubtaskStats(id int64) Stats {
	idx := h.children[id]
	st := Stats{Total: len(idx)}
	for _, i := range idx {
		if h.tasks[i].Progress == 100 {
			st.Completed++
		}
	}
	return st
}

// TopLevelIndex is the position of id among top-level tasks, or -1.
func (h Hierarchy) TopLevelIndex(id int64) int {
	if i, ok := h.topIndex[id]; ok {
		return i
	}
	return -1
}

// FamilyRoot returns the top-level ancestor of id. For dangling children (or cycles in parent
// references) it returns false.
func (h Hierarchy) FamilyRoot(id int64) (int64, bool) {
	seen := map[int64]bool{}
	cur := id
	for {
		t, ok := h.Task(cur)
		if !ok || seen[cur] {
			return 0, false
		}
		if t.ParentID == 0 {
			return cur, true
		}
		seen[cur] = true
		cur = t.ParentID
	}
}

// Links lists predecessor -> dependent edges in input order. Edges to tasks outside the
// snapshot are kept; the renderer decides what to draw.
func (h Hierarchy) Links() []Link {
	var out []Link
	for _, t := range h.tasks {
		for _, dep := range t.DependencyIDs {
			out = append(out, Link{From: dep, To: t.ID})
		}
	}
	return out
}

// Predecessors returns the tasks id depends on that are present in the snapshot.
func (h Hierarchy) Predecessors(id int64) []model.Task {
	t, ok := h.Task(id)
	if !ok {
		return nil
	}
	out := make([]model.Task, 0, len(t.DependencyIDs))
	for _, dep := range t.DependencyIDs {
		if p, ok := h.Task(dep); ok {
			out = append(out, p)
		}
	}
	return out
}

func (h Hierarchy) pick(idx []int) []model.Task {
	out := make([]model.Task, 0, len(idx))
	for _, i := range idx {
		out = append(out, h.tasks[i])
	}
	return out
}
