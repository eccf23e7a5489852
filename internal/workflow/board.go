// Package workflow maps tasks onto workflow columns and turns drag gestures into validated
// status transitions.
package workflow

import (
	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
)

type ColumnID string

const (
	ColumnToDo       ColumnID = ColumnID(model.StatusToDo)
	ColumnInProgress ColumnID = ColumnID(model.StatusInProgress)
	ColumnDone       ColumnID = ColumnID(model.StatusDone)
	// ColumnInvalid holds every top-level task whose status is missing or unknown.
	ColumnInvalid ColumnID = "Invalid Status"
)

// ColumnOrder is the left-to-right board order.
var ColumnOrder = []ColumnID{ColumnToDo, ColumnInProgress, ColumnDone, ColumnInvalid}

func (c ColumnID) String() string { return string(c) }

// Status returns the workflow status a column stands for. The invalid column has none.
func (c ColumnID) Status() (model.Status, bool) {
	s := model.Status(c)
	if c == ColumnInvalid || !s.Valid() {
		return "", false
	}
	return s, true
}

func (c ColumnID) Known() bool {
	for _, id := range ColumnOrder {
		if id == c {
			return true
		}
	}
	return false
}

// ColumnFor is the only place a status is projected onto a column. There is no fuzzy
// matching: "todo" or "done " land in the invalid column.
func ColumnFor(s model.Status) ColumnID {
	if s.Valid() {
		return ColumnID(s)
	}
	return ColumnInvalid
}

type Column struct {
	ID    ColumnID     `json:"id"`
	Tasks []model.Task `json:"tasks"`
}

type Board struct {
	Columns []Column `json:"columns"`
}

// Classify places every top-level task in exactly one column, preserving snapshot order.
// Children (dangling ones included) are not placed.
func Classify(h hierarchy.Hierarchy) Board {
	cols := make([]Column, len(ColumnOrder))
	pos := make(map[ColumnID]int, len(ColumnOrder))
	for i, id := range ColumnOrder {
		cols[i] = Column{ID: id, Tasks: []model.Task{}}
		pos[id] = i
	}
	for _, t := range h.TopLevel() {
		i := pos[ColumnFor(t.Status)]
		cols[i].Tasks = append(cols[i].Tasks, t)
	}
	return Board{Columns: cols}
}

func (b Board) Column(id ColumnID) (Column, bool) {
	for _, c := range b.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnOf reports which column shows taskID.
func (b Board) ColumnOf(taskID int64) (ColumnID, bool) {
	for _, c := range b.Columns {
		for _, t := range c.Tasks {
			if t.ID == taskID {
				return c.ID, true
			}
		}
	}
	return "", false
}

// Locate returns the column index and row of taskID, or (-1, -1).
func (b Board) Locate(taskID int64) (col, row int) {
	for ci, c := range b.Columns {
		for ri, t := range c.Tasks {
			if t.ID == taskID {
				return ci, ri
			}
		}
	}
	return -1, -1
}

func (b Board) Total() int {
	n := 0
	for _, c := range b.Columns {
		n += len(c.Tasks)
	}
	return n
}
