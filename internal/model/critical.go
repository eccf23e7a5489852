package model

// CriticalPathReport is the precomputed output of the external critical-path calculator.
type CriticalPathReport struct {
	CriticalTasks      []ScheduledTask   `json:"critical_tasks" yaml:"critical_tasks"`
	CriticalPaths      [][]ScheduledTask `json:"critical_paths" yaml:"critical_paths"`
	ProjectDuration    int               `json:"project_duration" yaml:"project_duration"`
	EarliestCompletion string            `json:"earliest_completion,omitempty" yaml:"earliest_completion"`
	CriticalTasksCount int               `json:"critical_tasks_count" yaml:"critical_tasks_count"`
	TotalTasks         int               `json:"total_tasks" yaml:"total_tasks"`
	RiskLevel          string            `json:"risk_level" yaml:"risk_level"`
}

// ScheduledTask is a task row as it appears in critical-path and float documents.
type ScheduledTask struct {
	ID               int64  `json:"id" yaml:"id"`
	TaskNumber       string `json:"task_number,omitempty" yaml:"task_number"`
	Title            string `json:"title" yaml:"title"`
	Description      string `json:"description,omitempty" yaml:"description"`
	Duration         int    `json:"duration" yaml:"duration"`
	EarlyStart       int    `json:"early_start" yaml:"early_start"`
	EarlyFinish      int    `json:"early_finish" yaml:"early_finish"`
	LateStart        int    `json:"late_start" yaml:"late_start"`
	LateFinish       int    `json:"late_finish" yaml:"late_finish"`
	TotalFloat       int    `json:"total_float" yaml:"total_float"`
	Status           string `json:"status,omitempty" yaml:"status"`
	Progress         int    `json:"progress" yaml:"progress"`
	AssigneeUsername string `json:"assignee_username,omitempty" yaml:"assignee_username"`
}

type FloatSummary struct {
	Critical     int `json:"critical" yaml:"critical"`
	NearCritical int `json:"near_critical" yaml:"near_critical"`
	Normal       int `json:"normal" yaml:"normal"`
}

type FloatAnalysis struct {
	Summary      FloatSummary    `json:"summary" yaml:"summary"`
	NearCritical []ScheduledTask `json:"near_critical" yaml:"near_critical"`
}
