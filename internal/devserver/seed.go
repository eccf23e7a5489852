package devserver

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"taskboard-cli/internal/model"
)

// Seed is the YAML fixture format for the development server.
//
//	projects:
//	  - id: 1
//	    name: Website
//	tasks:
//	  - id: 1
//	    project: 1
//	    title: Design
//	    status: To Do
//	    start_date: 2025-01-01
//	    duration: 5
//	    dependencies: [2]
//	reports:
//	  - project: 1
//	    critical_path: {...}
//	    float_analysis: {...}
type Seed struct {
	Projects []SeedProject `yaml:"projects"`
	Tasks    []SeedTask    `yaml:"tasks"`
	Reports  []SeedReport  `yaml:"reports"`
}

type SeedProject struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
}

type SeedTask struct {
	ID           int64   `yaml:"id"`
	Project      int64   `yaml:"project"`
	TaskNumber   string  `yaml:"task_number"`
	Title        string  `yaml:"title"`
	Description  string  `yaml:"description"`
	Status       *string `yaml:"status"`
	Priority     string  `yaml:"priority"`
	StartDate    string  `yaml:"start_date"`
	DueDate      string  `yaml:"due_date"`
	Duration     int     `yaml:"duration"`
	Progress     *int    `yaml:"progress"`
	Parent       int64   `yaml:"parent"`
	Assignee     string  `yaml:"assignee"`
	Dependencies []int64 `yaml:"dependencies"`
	IsCritical   bool    `yaml:"is_critical"`
	TotalFloat   *int    `yaml:"total_float"`
}

type SeedReport struct {
	Project       int64                     `yaml:"project"`
	CriticalPath  *model.CriticalPathReport `yaml:"critical_path"`
	FloatAnalysis *model.FloatAnalysis      `yaml:"float_analysis"`
}

func LoadSeedFile(path string) (Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	return ParseSeed(b)
}

func ParseSeed(b []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return s, nil
}

// Apply writes the fixture into db. Seeded statuses are stored verbatim (an invalid status
// is a legitimate fixture); a missing status defaults to To Do.
func (s Seed) Apply(ctx context.Context, db *DB, today time.Time) error {
	for _, p := range s.Projects {
		if err := db.UpsertProject(ctx, model.Project{ID: p.ID, Name: p.Name, Description: p.Description, Status: p.Status}); err != nil {
			return fmt.Errorf("seed project %d: %w", p.ID, err)
		}
	}
	for _, st := range s.Tasks {
		t := model.Task{
			ID:            st.ID,
			ProjectID:     st.Project,
			TaskNumber:    st.TaskNumber,
			Title:         st.Title,
			Description:   st.Description,
			Status:        model.StatusToDo,
			Priority:      st.Priority,
			DurationDays:  st.Duration,
			ParentID:      st.Parent,
			Assignee:      st.Assignee,
			DependencyIDs: st.Dependencies,
			IsCritical:    st.IsCritical,
			TotalFloat:    st.TotalFloat,
		}
		if st.Status != nil {
			t.Status = model.Status(*st.Status)
		}
		t.StartDate, _ = model.ParseDate(st.StartDate)
		t.DueDate, _ = model.ParseDate(st.DueDate)
		explicit := st.Progress != nil
		if explicit {
			t.Progress = *st.Progress
		}
		t = applyTaskDefaults(t, explicit, true, today)
		if _, err := db.InsertTask(ctx, t); err != nil {
			return fmt.Errorf("seed task %d: %w", st.ID, err)
		}
	}
	for _, r := range s.Reports {
		if r.CriticalPath != nil {
			if err := db.PutReport(ctx, r.Project, reportCriticalPath, r.CriticalPath); err != nil {
				return err
			}
		}
		if r.FloatAnalysis != nil {
			if err := db.PutReport(ctx, r.Project, reportFloatAnalysis, r.FloatAnalysis); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyTaskDefaults fills derived fields the way the real API does on save: a missing start
// or due date is derived from the other (or today), Done forces 100% and a freshly started
// task shows 50% unless progress was given explicitly.
func applyTaskDefaults(t model.Task, explicitProgress, isNew bool, today time.Time) model.Task {
	if t.DurationDays < 1 {
		t.DurationDays = 1
	}
	span := t.DurationDays - 1
	switch {
	case t.StartDate.IsZero() && !t.DueDate.IsZero():
		t.StartDate = t.DueDate.AddDate(0, 0, -span)
	case t.DueDate.IsZero() && !t.StartDate.IsZero():
		t.DueDate = t.StartDate.AddDate(0, 0, span)
	case t.StartDate.IsZero() && t.DueDate.IsZero():
		t.StartDate = model.Date(today)
		t.DueDate = t.StartDate.AddDate(0, 0, span)
	}

	if !explicitProgress {
		switch {
		case t.Status == model.StatusDone && t.Progress < 100:
			t.Progress = 100
		case t.Status == model.StatusInProgress && t.Progress == 0:
			t.Progress = 50
		case t.Status == model.StatusToDo && isNew:
			t.Progress = 0
		}
	}
	t.Progress = min(max(t.Progress, 0), 100)
	return t
}
