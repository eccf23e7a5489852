package timeline

import (
	"fmt"
	"time"

	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
)

// Palette colors task families on the timeline. Children share their parent's entry.
var Palette = []string{"#FF6B35", "#F7931E", "#FFD23F", "#06D6A0", "#118AB2", "#073B4C"}

// ColorIndex returns the palette slot for a task: the position of its top-level ancestor
// among all top-level tasks, modulo the palette size. Dangling children use slot 0.
func ColorIndex(h hierarchy.Hierarchy, id int64) int {
	root, ok := h.FamilyRoot(id)
	if !ok {
		return 0
	}
	i := h.TopLevelIndex(root)
	if i < 0 {
		return 0
	}
	return i % len(Palette)
}

type Badge struct {
	Completed int  `json:"completed"`
	Total     int  `json:"total"`
	Done      bool `json:"done"`
}

func (b Badge) String() string { return fmt.Sprintf("%d/%d", b.Completed, b.Total) }

// ParentBadge summarizes child completion. Tasks without children have no badge.
func ParentBadge(h hierarchy.Hierarchy, id int64) (Badge, bool) {
	st := h.SubtaskStats(id)
	if st.Total == 0 {
		return Badge{}, false
	}
	return Badge{Completed: st.Completed, Total: st.Total, Done: st.Completed == st.Total}, true
}

// Expansion tracks which parents show their children. It is owned by whichever view renders
// the timeline; the engine only reads it.
type Expansion struct {
	open map[int64]bool
	sig  string
}

// SyncExpansion re-opens every parent whenever the set of tasks or parent links changes.
// When the snapshot is structurally unchanged the user's toggles are kept.
func SyncExpansion(exp Expansion, h hierarchy.Hierarchy) Expansion {
	sig := snapshotSignature(h)
	if exp.open != nil && exp.sig == sig {
		return exp
	}
	open := map[int64]bool{}
	for _, t := range h.TopLevel() {
		if h.HasChildren(t.ID) {
			open[t.ID] = true
		}
	}
	return Expansion{open: open, sig: sig}
}

func (e Expansion) IsOpen(id int64) bool { return e.open[id] }

// Toggle returns a copy with id flipped.
func (e Expansion) Toggle(id int64) Expansion {
	open := make(map[int64]bool, len(e.open)+1)
	for k, v := range e.open {
		open[k] = v
	}
	open[id] = !open[id]
	return Expansion{open: open, sig: e.sig}
}

func snapshotSignature(h hierarchy.Hierarchy) string {
	// ids and parent links are enough; field edits (status, progress) keep the user's toggles.
	b := make([]byte, 0, h.Len()*8)
	for _, t := range h.Tasks() {
		b = fmt.Appendf(b, "%d:%d,", t.ID, t.ParentID)
	}
	return string(b)
}

type Row struct {
	Task        model.Task     `json:"task"`
	Kind        hierarchy.Kind `json:"kind"`
	Depth       int            `json:"depth"`
	ColorIndex  int            `json:"colorIndex"`
	Color       string         `json:"color"`
	Geometry    Geometry       `json:"geometry"`
	Badge       *Badge         `json:"badge,omitempty"`
	HasChildren bool           `json:"hasChildren"`
	Expanded    bool           `json:"expanded"`
}

type Layout struct {
	Bounds    Bounds  `json:"bounds"`
	Months    []Month `json:"months"`
	Days      []Day   `json:"days"`
	Rows      []Row   `json:"rows"`
	Span      string  `json:"span"`
	TaskCount int     `json:"taskCount"`
}

// Compute lays out every top-level task followed, when expanded, by its direct children.
func Compute(h hierarchy.Hierarchy, exp Expansion, today time.Time) Layout {
	today = model.Date(today)
	b := ComputeBounds(h.Tasks(), today)
	l := Layout{
		Bounds:    b,
		Months:    Months(b),
		Days:      DayHeader(b),
		Span:      FormatSpan(b),
		TaskCount: h.Len(),
	}

	for _, t := range h.TopLevel() {
		row := newRow(h, b, t, 0, today)
		row.Expanded = row.HasChildren && exp.IsOpen(t.ID)
		l.Rows = append(l.Rows, row)
		if !row.Expanded {
			continue
		}
		for _, c := range h.ChildrenOf(t.ID) {
			child := newRow(h, b, c, 1, today)
			child.ColorIndex = row.ColorIndex
			child.Color = row.Color
			l.Rows = append(l.Rows, child)
		}
	}
	return l
}

func newRow(h hierarchy.Hierarchy, b Bounds, t model.Task, depth int, today time.Time) Row {
	kind, _ := h.KindOf(t.ID)
	ci := ColorIndex(h, t.ID)
	r := Row{
		Task:        t,
		Kind:        kind,
		Depth:       depth,
		ColorIndex:  ci,
		Color:       Palette[ci],
		Geometry:    BarGeometry(b, taskStart(t, today), durationOf(t)),
		HasChildren: h.HasChildren(t.ID),
	}
	if badge, ok := ParentBadge(h, t.ID); ok {
		r.Badge = &badge
	}
	return r
}

// FormatSpan renders "Jan 2, 2025 – Feb 3, 2025".
func FormatSpan(b Bounds) string {
	const layout = "Jan 2, 2006"
	return b.Start.Format(layout) + " – " + b.End.Format(layout)
}
