package tui

import (
	"context"

	"taskboard-cli/internal/model"
)

// Backend is the slice of the Task API the TUI talks to. *api.Client satisfies it.
type Backend interface {
	FetchAllTasks(ctx context.Context, projectID int64) ([]model.Task, error)
	UpdateTaskStatus(ctx context.Context, id int64, status model.Status) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	CreateTask(ctx context.Context, nt model.NewTask) (model.Task, error)
	FetchProjects(ctx context.Context) ([]model.Project, error)
	FetchCriticalPath(ctx context.Context, projectID int64) (model.CriticalPathReport, error)
	FetchFloatAnalysis(ctx context.Context, projectID int64) (model.FloatAnalysis, error)
	RecalculateCriticalPath(ctx context.Context, projectID int64) (model.CriticalPathReport, error)
}
