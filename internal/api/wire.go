package api

import (
	"time"

	"taskboard-cli/internal/model"
	"taskboard-cli/internal/timeline"
)

// RawTask is a task as the REST API serializes it. Every optional field is a pointer so
// "absent" and "zero" stay distinguishable until Normalize.
type RawTask struct {
	ID               int64   `json:"id"`
	Project          *int64  `json:"project,omitempty"`
	TaskNumber       string  `json:"task_number,omitempty"`
	Title            string  `json:"title"`
	Description      *string `json:"description,omitempty"`
	Status           *string `json:"status,omitempty"`
	Priority         *string `json:"priority,omitempty"`
	StartDate        *string `json:"start_date,omitempty"`
	DueDate          *string `json:"due_date,omitempty"`
	Duration         *int    `json:"duration,omitempty"`
	Progress         *int    `json:"progress,omitempty"`
	ParentTask       *int64  `json:"parent_task,omitempty"`
	AssigneeUsername *string `json:"assignee_username,omitempty"`
	Dependencies     []int64 `json:"dependencies,omitempty"`
	IsCritical       bool    `json:"is_critical,omitempty"`
	TotalFloat       *int    `json:"total_float,omitempty"`
}

// Normalize converts a wire task into the canonical model. Unparseable dates are treated as
// absent; a missing start date is derived from the due date, else today.
func Normalize(r RawTask, today time.Time) model.Task {
	t := model.Task{
		ID:            r.ID,
		TaskNumber:    r.TaskNumber,
		Title:         r.Title,
		Description:   deref(r.Description),
		Status:        model.Status(deref(r.Status)),
		Priority:      deref(r.Priority),
		Assignee:      deref(r.AssigneeUsername),
		IsCritical:    r.IsCritical,
		TotalFloat:    r.TotalFloat,
		DependencyIDs: append([]int64(nil), r.Dependencies...),
	}
	if r.Project != nil {
		t.ProjectID = *r.Project
	}
	if r.ParentTask != nil {
		t.ParentID = *r.ParentTask
	}

	t.DurationDays = 1
	if r.Duration != nil && *r.Duration > 1 {
		t.DurationDays = *r.Duration
	}
	// Only floored: a child over 100 is not "at 100%" and does not count as completed.
	if r.Progress != nil {
		t.Progress = max(*r.Progress, 0)
	}

	var start, due *time.Time
	if r.StartDate != nil {
		if d, ok := model.ParseDate(*r.StartDate); ok {
			start = &d
		}
	}
	if r.DueDate != nil {
		if d, ok := model.ParseDate(*r.DueDate); ok {
			due = &d
			t.DueDate = d
		}
	}
	t.StartDate = timeline.DeriveStartDate(start, due, t.DurationDays, today)
	return t
}

func NormalizeAll(raw []RawTask, today time.Time) []model.Task {
	out := make([]model.Task, 0, len(raw))
	for _, r := range raw {
		out = append(out, Normalize(r, today))
	}
	return out
}

// ToRaw is the inverse used by the development server when serializing stored tasks.
func ToRaw(t model.Task) RawTask {
	r := RawTask{
		ID:           t.ID,
		TaskNumber:   t.TaskNumber,
		Title:        t.Title,
		Dependencies: t.DependencyIDs,
		IsCritical:   t.IsCritical,
		TotalFloat:   t.TotalFloat,
	}
	status := string(t.Status)
	r.Status = &status
	dur := t.DurationDays
	r.Duration = &dur
	progress := t.Progress
	r.Progress = &progress
	if t.Description != "" {
		r.Description = &t.Description
	}
	if t.Priority != "" {
		r.Priority = &t.Priority
	}
	if t.Assignee != "" {
		r.AssigneeUsername = &t.Assignee
	}
	if t.ProjectID != 0 {
		r.Project = &t.ProjectID
	}
	if t.ParentID != 0 {
		r.ParentTask = &t.ParentID
	}
	if !t.StartDate.IsZero() {
		s := t.StartDate.Format(model.DateLayout)
		r.StartDate = &s
	}
	if !t.DueDate.IsZero() {
		s := t.DueDate.Format(model.DateLayout)
		r.DueDate = &s
	}
	return r
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

type rawProject struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (p rawProject) model() model.Project {
	return model.Project{ID: p.ID, Name: p.Name, Description: deref(p.Description), Status: deref(p.Status)}
}

// createRequest mirrors the API's create serializer.
type createRequest struct {
	Project      int64  `json:"project,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Status       string `json:"status,omitempty"`
	Priority     string `json:"priority,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	Duration     int    `json:"duration,omitempty"`
	ParentTaskID *int64 `json:"parent_task_id,omitempty"`
}

func newCreateRequest(nt model.NewTask) createRequest {
	req := createRequest{
		Project:     nt.ProjectID,
		Title:       nt.Title,
		Description: nt.Description,
		Status:      string(nt.Status),
		Priority:    nt.Priority,
		Duration:    nt.DurationDays,
	}
	if !nt.StartDate.IsZero() {
		req.StartDate = nt.StartDate.Format(model.DateLayout)
	}
	if nt.ParentID != 0 {
		id := nt.ParentID
		req.ParentTaskID = &id
	}
	return req
}

// patchRequest carries only the fields being changed.
type patchRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	Duration    *int    `json:"duration,omitempty"`
	Progress    *int    `json:"progress,omitempty"`
}

func newPatchRequest(p model.TaskPatch) patchRequest {
	req := patchRequest{
		Title:       p.Title,
		Description: p.Description,
		Priority:    p.Priority,
		Duration:    p.DurationDays,
		Progress:    p.Progress,
	}
	if p.StartDate != nil {
		s := p.StartDate.Format(model.DateLayout)
		req.StartDate = &s
	}
	return req
}
