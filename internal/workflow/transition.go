package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
)

type TargetKind int

const (
	TargetColumn TargetKind = iota
	TargetTask
)

// DropTarget is where a card was released: empty column space, or on top of another card.
type DropTarget struct {
	Kind   TargetKind `json:"kind"`
	Column ColumnID   `json:"column,omitempty"`
	TaskID int64      `json:"taskId,omitempty"`
}

func ColumnTarget(c ColumnID) DropTarget { return DropTarget{Kind: TargetColumn, Column: c} }
func TaskTarget(id int64) DropTarget     { return DropTarget{Kind: TargetTask, TaskID: id} }

// ParseDropTarget reads a target as it arrives from a form or a flag: numeric strings (and
// "task:<id>") are task ids, anything else is a column id.
func ParseDropTarget(s string) DropTarget {
	s = strings.TrimSpace(s)
	raw := strings.TrimPrefix(s, "task:")
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return TaskTarget(id)
	}
	return ColumnTarget(ColumnID(strings.TrimPrefix(s, "column:")))
}

func (t DropTarget) String() string {
	if t.Kind == TargetTask {
		return fmt.Sprintf("task:%d", t.TaskID)
	}
	return "column:" + string(t.Column)
}

// ResolveTarget turns a drop target into the status the dragged task would take. A card
// target resolves to that card's current status, whatever it is; the guard in Plan decides
// whether it is acceptable. Unknown cards do not resolve.
func ResolveTarget(h hierarchy.Hierarchy, target DropTarget) (model.Status, bool) {
	switch target.Kind {
	case TargetColumn:
		return model.Status(target.Column), true
	case TargetTask:
		t, ok := h.Task(target.TaskID)
		if !ok {
			return "", false
		}
		return t.Status, true
	}
	return "", false
}

type Decision int

const (
	// DecisionUnresolved: the dragged task or the drop target is unknown.
	DecisionUnresolved Decision = iota
	// DecisionRejected: the target is not a valid workflow status (the invalid column included).
	DecisionRejected
	// DecisionNoop: the task already has the target status.
	DecisionNoop
	// DecisionUpdate: a status update must be sent.
	DecisionUpdate
)

func (d Decision) String() string {
	switch d {
	case DecisionRejected:
		return "rejected"
	case DecisionNoop:
		return "noop"
	case DecisionUpdate:
		return "update"
	default:
		return "unresolved"
	}
}

type Transition struct {
	Decision Decision     `json:"decision"`
	TaskID   int64        `json:"taskId"`
	From     model.Status `json:"from"`
	To       model.Status `json:"to"`
	Target   DropTarget   `json:"target"`
}

// Plan evaluates a drop without side effects.
func Plan(h hierarchy.Hierarchy, taskID int64, target DropTarget) Transition {
	tr := Transition{TaskID: taskID, Target: target}
	task, ok := h.Task(taskID)
	if !ok {
		return tr
	}
	tr.From = task.Status

	to, ok := ResolveTarget(h, target)
	if !ok {
		return tr
	}
	tr.To = to

	switch {
	case !to.Valid():
		tr.Decision = DecisionRejected
	case to == task.Status:
		tr.Decision = DecisionNoop
	default:
		tr.Decision = DecisionUpdate
	}
	return tr
}

// Updater sends a partial status update to the task API.
type Updater interface {
	UpdateTaskStatus(ctx context.Context, id int64, status model.Status) (model.Task, error)
}

// Refetcher reloads the whole task snapshot.
type Refetcher interface {
	Refetch(ctx context.Context) ([]model.Task, error)
}

type RefetchFunc func(ctx context.Context) ([]model.Task, error)

func (f RefetchFunc) Refetch(ctx context.Context) ([]model.Task, error) { return f(ctx) }

// Outcome is the result of applying a transition. Err is set when the update or the
// follow-up refetch failed; the caller's snapshot is never touched here.
type Outcome struct {
	Transition Transition
	Updated    bool
	Task       model.Task
	Snapshot   []model.Task
	Refetched  bool
	Err        error
}

// Apply sends the update for DecisionUpdate transitions and does nothing otherwise.
func Apply(ctx context.Context, u Updater, tr Transition) Outcome {
	out := Outcome{Transition: tr}
	if tr.Decision != DecisionUpdate || u == nil {
		return out
	}
	task, err := u.UpdateTaskStatus(ctx, tr.TaskID, tr.To)
	if err != nil {
		out.Err = fmt.Errorf("update task %d status to %q: %w", tr.TaskID, tr.To, err)
		return out
	}
	out.Updated = true
	out.Task = task
	return out
}

// Commit plans a drop, applies it, and on a successful update reloads the snapshot so every
// view re-derives from server state.
func Commit(ctx context.Context, u Updater, r Refetcher, h hierarchy.Hierarchy, taskID int64, target DropTarget) Outcome {
	out := Apply(ctx, u, Plan(h, taskID, target))
	if !out.Updated || r == nil {
		return out
	}
	tasks, err := r.Refetch(ctx)
	if err != nil {
		out.Err = fmt.Errorf("refetch after update: %w", err)
		return out
	}
	out.Snapshot = tasks
	out.Refetched = true
	return out
}
