package workflow

import "taskboard-cli/internal/hierarchy"

// Drag is the gesture state owned by a board view. The zero value is idle.
//
// At most one task is active. While a task is active, text selection is suspended; Hover is
// visual feedback only and never affects the transition.
type Drag struct {
	active  int64
	dragged bool
	hover   ColumnID
}

// Start grabs a card. It refuses while another gesture is in progress.
func (d *Drag) Start(taskID int64) bool {
	if d.dragged {
		return false
	}
	d.active = taskID
	d.dragged = true
	d.hover = ""
	return true
}

func (d *Drag) Active() (int64, bool) { return d.active, d.dragged }

func (d *Drag) IsActive(taskID int64) bool { return d.dragged && d.active == taskID }

// Hover records the single hovered column. Unknown ids clear it.
func (d *Drag) Hover(c ColumnID) {
	if !d.dragged || !c.Known() {
		d.hover = ""
		return
	}
	d.hover = c
}

func (d *Drag) Hovered() ColumnID { return d.hover }

// Cancel returns to idle with no side effect.
func (d *Drag) Cancel() { *d = Drag{} }

// End releases the active card over target and returns the planned transition. Releasing a
// task that is not the active one yields an unresolved transition; either way the gesture is
// over.
func (d *Drag) End(h hierarchy.Hierarchy, taskID int64, target DropTarget) Transition {
	active, ok := d.active, d.dragged
	*d = Drag{}
	if !ok || active != taskID {
		return Transition{TaskID: taskID, Target: target}
	}
	return Plan(h, taskID, target)
}

func (d *Drag) SelectionSuspended() bool { return d.dragged }
