// Package critpath annotates a task snapshot with externally computed critical-path and float
// data. Nothing here schedules; it only maps documents onto display categories.
package critpath

import (
	"math"
	"strings"

	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
)

type FloatCategory string

const (
	FloatCritical     FloatCategory = "critical"
	FloatNearCritical FloatCategory = "near-critical"
	FloatNormal       FloatCategory = "normal"
	FloatUnknown      FloatCategory = "unknown"
)

// Categorize buckets a float value: 0 days is critical, 1–2 near-critical, more is normal.
// Negative float (a late schedule) counts as critical.
func Categorize(float *int) FloatCategory {
	if float == nil {
		return FloatUnknown
	}
	switch f := *float; {
	case f <= 0:
		return FloatCritical
	case f <= 2:
		return FloatNearCritical
	default:
		return FloatNormal
	}
}

type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityOK
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// RiskSeverity maps the calculator's risk level to a display severity.
func RiskSeverity(level string) Severity {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low":
		return SeverityOK
	case "medium":
		return SeverityWarning
	case "high", "critical":
		return SeverityError
	default:
		return SeverityUnknown
	}
}

// CriticalShare is the rounded percentage of critical tasks, 0 when there are no tasks.
func CriticalShare(r model.CriticalPathReport) int {
	if r.TotalTasks <= 0 {
		return 0
	}
	return int(math.Round(float64(r.CriticalTasksCount) / float64(r.TotalTasks) * 100))
}

type Row struct {
	Task     model.Task    `json:"task"`
	Critical bool          `json:"critical"`
	Float    *int          `json:"float,omitempty"`
	Category FloatCategory `json:"category"`
}

// Annotate returns one row per snapshot task, in snapshot order. A task is critical when the
// report lists it or the API already flagged it. Float comes from the report, then the float
// analysis, then the task itself.
func Annotate(h hierarchy.Hierarchy, report *model.CriticalPathReport, analysis *model.FloatAnalysis) []Row {
	inReport := map[int64]bool{}
	floats := map[int64]int{}
	if analysis != nil {
		for _, st := range analysis.NearCritical {
			floats[st.ID] = st.TotalFloat
		}
	}
	if report != nil {
		for _, st := range report.CriticalTasks {
			inReport[st.ID] = true
			floats[st.ID] = st.TotalFloat
		}
	}

	tasks := h.Tasks()
	rows := make([]Row, 0, len(tasks))
	for _, t := range tasks {
		r := Row{Task: t, Critical: t.IsCritical || inReport[t.ID]}
		if f, ok := floats[t.ID]; ok {
			r.Float = &f
		} else if t.TotalFloat != nil {
			f := *t.TotalFloat
			r.Float = &f
		}
		r.Category = Categorize(r.Float)
		if r.Critical && r.Category == FloatUnknown {
			r.Category = FloatCritical
		}
		rows = append(rows, r)
	}
	return rows
}

// Summary is the headline of the critical-path view.
type Summary struct {
	ProjectDuration    int                 `json:"projectDuration"`
	EarliestCompletion string              `json:"earliestCompletion,omitempty"`
	CriticalCount      int                 `json:"criticalCount"`
	TotalTasks         int                 `json:"totalTasks"`
	CriticalShare      int                 `json:"criticalShare"`
	RiskLevel          string              `json:"riskLevel"`
	Severity           Severity            `json:"severity"`
	PathCount          int                 `json:"pathCount"`
	Float              *model.FloatSummary `json:"float,omitempty"`
}

func Summarize(report model.CriticalPathReport, analysis *model.FloatAnalysis) Summary {
	risk := report.RiskLevel
	if strings.TrimSpace(risk) == "" {
		risk = "unknown"
	}
	s := Summary{
		ProjectDuration:    report.ProjectDuration,
		EarliestCompletion: report.EarliestCompletion,
		CriticalCount:      report.CriticalTasksCount,
		TotalTasks:         report.TotalTasks,
		CriticalShare:      CriticalShare(report),
		RiskLevel:          risk,
		Severity:           RiskSeverity(risk),
		PathCount:          len(report.CriticalPaths),
	}
	if analysis != nil {
		fs := analysis.Summary
		s.Float = &fs
	}
	return s
}
