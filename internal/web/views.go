package web

import (
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"taskboard-cli/internal/critpath"
	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/timeline"
	"taskboard-cli/internal/workflow"
)

type baseVM struct {
	View        string
	ProjectID   int64
	ProjectName string
	Projects    []model.Project
	StreamURL   string
	DatastarURL string
	Flash       string
	FlashKind   string
	Now         string
}

type cardVM struct {
	ID       int64
	Title    string
	Meta     []string
	Progress int
	Invalid  bool
	Status   string
}

type columnVM struct {
	ID      string
	Invalid bool
	Cards   []cardVM
}

type boardVM struct {
	baseVM
	Columns []columnVM
}

type monthVM struct {
	Label string
	Left  string
	Width string
}

type timelineRowVM struct {
	ID          int64
	Title       string
	Depth       int
	Badge       string
	BadgeDone   bool
	HasChildren bool
	Expanded    bool
	Left        string
	Width       string
	Color       string
	Progress    int
	Range       string
}

type timelineVM struct {
	baseVM
	Span      string
	TaskCount int
	Months    []monthVM
	Rows      []timelineRowVM
}

type criticalRowVM struct {
	ID       int64
	Title    string
	Status   string
	Float    string
	Category string
	Critical bool
}

type criticalVM struct {
	baseVM
	Message  string
	Summary  critpath.Summary
	Risk     string
	Severity string
	Paths    []string
	Rows     []criticalRowVM
}

type taskVM struct {
	baseVM
	Task         model.Task
	Column       string
	Description  template.HTML
	Parent       *model.Task
	Children     []model.Task
	Stats        hierarchy.Stats
	Predecessors []model.Task
	Schedule     string
}

func pct(v float64) string { return fmt.Sprintf("%.2f%%", v) }

func boardColumns(h hierarchy.Hierarchy) []columnVM {
	b := workflow.Classify(h)
	cols := make([]columnVM, 0, len(b.Columns))
	for _, c := range b.Columns {
		cv := columnVM{ID: c.ID.String(), Invalid: c.ID == workflow.ColumnInvalid}
		for _, t := range c.Tasks {
			cv.Cards = append(cv.Cards, cardFor(h, t, cv.Invalid))
		}
		cols = append(cols, cv)
	}
	return cols
}

func cardFor(h hierarchy.Hierarchy, t model.Task, invalid bool) cardVM {
	meta := []string{t.StartDate.Format("Jan 2"), fmt.Sprintf("%dd", max(t.DurationDays, 1))}
	if st := h.SubtaskStats(t.ID); st.Total > 0 {
		meta = append(meta, fmt.Sprintf("%d/%d subtasks", st.Completed, st.Total))
	}
	if t.Assignee != "" {
		meta = append(meta, "@"+t.Assignee)
	}
	return cardVM{
		ID:       t.ID,
		Title:    t.Title,
		Meta:     meta,
		Progress: min(max(t.Progress, 0), 100),
		Invalid:  invalid,
		Status:   t.Status.Label(),
	}
}

func timelineView(l timeline.Layout) ([]monthVM, []timelineRowVM) {
	months := make([]monthVM, 0, len(l.Months))
	for _, mo := range l.Months {
		g := timeline.BarGeometry(l.Bounds, l.Bounds.Start.AddDate(0, 0, mo.StartOffset), mo.WidthDays)
		months = append(months, monthVM{
			Label: fmt.Sprintf("%s %d", mo.Name, mo.Year),
			Left:  pct(g.LeftPercent),
			Width: pct(g.WidthPercent),
		})
	}
	rows := make([]timelineRowVM, 0, len(l.Rows))
	for _, r := range l.Rows {
		rv := timelineRowVM{
			ID:          r.Task.ID,
			Title:       r.Task.Title,
			Depth:       r.Depth,
			HasChildren: r.HasChildren,
			Expanded:    r.Expanded,
			Left:        pct(r.Geometry.LeftPercent),
			Width:       pct(r.Geometry.WidthPercent),
			Color:       r.Color,
			Progress:    min(max(r.Task.Progress, 0), 100),
			Range:       r.Task.StartDate.Format("Jan 2") + " – " + r.Task.EndDate().Format("Jan 2"),
		}
		if r.Badge != nil {
			rv.Badge = r.Badge.String()
			rv.BadgeDone = r.Badge.Done
		}
		rows = append(rows, rv)
	}
	return months, rows
}

func criticalView(h hierarchy.Hierarchy, report model.CriticalPathReport, analysis *model.FloatAnalysis) ([]string, []criticalRowVM) {
	paths := make([]string, 0, len(report.CriticalPaths))
	for _, p := range report.CriticalPaths {
		titles := make([]string, 0, len(p))
		for _, st := range p {
			titles = append(titles, st.Title)
		}
		paths = append(paths, strings.Join(titles, " → "))
	}

	annotated := critpath.Annotate(h, &report, analysis)
	rank := map[critpath.FloatCategory]int{
		critpath.FloatCritical:     0,
		critpath.FloatNearCritical: 1,
		critpath.FloatNormal:       2,
		critpath.FloatUnknown:      3,
	}
	sort.SliceStable(annotated, func(i, j int) bool { return rank[annotated[i].Category] < rank[annotated[j].Category] })

	rows := make([]criticalRowVM, 0, len(annotated))
	for _, r := range annotated {
		f := "-"
		if r.Float != nil {
			f = fmt.Sprintf("%dd", *r.Float)
		}
		rows = append(rows, criticalRowVM{
			ID:       r.Task.ID,
			Title:    r.Task.Title,
			Status:   r.Task.Status.Label(),
			Float:    f,
			Category: string(r.Category),
			Critical: r.Critical,
		})
	}
	return paths, rows
}

func projectName(projects []model.Project, id int64) string {
	if id == 0 {
		return "All projects"
	}
	for _, p := range projects {
		if p.ID == id {
			return p.Name
		}
	}
	return fmt.Sprintf("Project %d", id)
}

func nowStamp(now time.Time) string { return now.Format(time.RFC3339) }
