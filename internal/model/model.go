package model

import (
	"strings"
	"time"
)

// Status is the raw workflow status string as delivered by the Task API.
//
// Only the three workflow literals are valid. Anything else (including the empty string)
// is kept verbatim so the UI can surface it as an invalid status instead of coercing it.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// WorkflowStatuses lists the valid statuses in board order.
var WorkflowStatuses = []Status{StatusToDo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// Label is the display text for a status; empty statuses render as "(none)".
func (s Status) Label() string {
	if strings.TrimSpace(string(s)) == "" {
		return "(none)"
	}
	return string(s)
}

type Task struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"projectId,omitempty"`
	TaskNumber  string `json:"taskNumber,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	Priority    string `json:"priority,omitempty"`
	Assignee    string `json:"assignee,omitempty"`

	// StartDate is always set after normalization (see api.Normalize).
	StartDate    time.Time `json:"startDate"`
	DueDate      time.Time `json:"dueDate,omitzero"`
	DurationDays int       `json:"durationDays"`
	Progress     int       `json:"progress"`

	// ParentID is 0 for top-level tasks.
	ParentID      int64   `json:"parentId,omitempty"`
	DependencyIDs []int64 `json:"dependencyIds,omitempty"`

	IsCritical bool `json:"isCritical,omitempty"`
	TotalFloat *int `json:"totalFloat,omitempty"`
}

// EndDate is the last calendar day the task occupies.
func (t Task) EndDate() time.Time {
	d := t.DurationDays
	if d < 1 {
		d = 1
	}
	return t.StartDate.AddDate(0, 0, d-1)
}

type Project struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// NewTask is the payload for creating a task (or subtask when ParentID is set).
type NewTask struct {
	ProjectID    int64
	ParentID     int64
	Title        string
	Description  string
	Status       Status
	Priority     string
	StartDate    time.Time
	DurationDays int
}

// TaskPatch is a partial edit of a task. Nil fields are left as they are.
type TaskPatch struct {
	Title        *string
	Description  *string
	Priority     *string
	StartDate    *time.Time
	DurationDays *int
	Progress     *int
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.StartDate == nil && p.DurationDays == nil && p.Progress == nil
}

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date (an RFC 3339 timestamp is accepted too; only its date
// part is kept).
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Date(t), true
	}
	return time.Time{}, false
}
