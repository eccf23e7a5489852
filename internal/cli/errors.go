package cli

import "fmt"

type notFoundError struct {
	kind string
	id   int64
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.kind, e.id)
}

func errNotFound(kind string, id int64) error {
	return notFoundError{kind: kind, id: id}
}

// moveRejectedError is returned when a move names a target that is not a workflow status.
type moveRejectedError struct {
	taskID int64
	to     string
}

func (e moveRejectedError) Error() string {
	return fmt.Sprintf("cannot move #%d to %q: not a workflow status (To Do, In Progress, Done)", e.taskID, e.to)
}
