package critpath

import (
	"testing"

	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
)

func intp(v int) *int { return &v }

func TestCategorize(t *testing.T) {
	cases := []struct {
		in   *int
		want FloatCategory
	}{
		{nil, FloatUnknown},
		{intp(-1), FloatCritical},
		{intp(0), FloatCritical},
		{intp(1), FloatNearCritical},
		{intp(2), FloatNearCritical},
		{intp(3), FloatNormal},
	}
	for _, tc := range cases {
		if got := Categorize(tc.in); got != tc.want {
			t.Fatalf("Categorize(%v): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestRiskSeverity(t *testing.T) {
	cases := map[string]Severity{
		"low":      SeverityOK,
		"Medium":   SeverityWarning,
		"high":     SeverityError,
		"critical": SeverityError,
		"":         SeverityUnknown,
		"weird":    SeverityUnknown,
	}
	for in, want := range cases {
		if got := RiskSeverity(in); got != want {
			t.Fatalf("RiskSeverity(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestCriticalShare(t *testing.T) {
	if got := CriticalShare(model.CriticalPathReport{CriticalTasksCount: 1, TotalTasks: 3}); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
	if got := CriticalShare(model.CriticalPathReport{CriticalTasksCount: 2, TotalTasks: 3}); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
	if got := CriticalShare(model.CriticalPathReport{}); got != 0 {
		t.Fatalf("expected 0 with no tasks, got %d", got)
	}
}

func TestAnnotate(t *testing.T) {
	h := hierarchy.Build([]model.Task{
		{ID: 1, Title: "Foundation"},
		{ID: 2, Title: "Walls"},
		{ID: 3, Title: "Roof", TotalFloat: intp(5)},
		{ID: 4, Title: "Paint", IsCritical: true},
		{ID: 5, Title: "Garden"},
	})
	report := &model.CriticalPathReport{
		CriticalTasks: []model.ScheduledTask{{ID: 1, TotalFloat: 0}},
	}
	analysis := &model.FloatAnalysis{
		NearCritical: []model.ScheduledTask{{ID: 2, TotalFloat: 2}},
	}

	rows := Annotate(h, report, analysis)
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	want := []struct {
		critical bool
		cat      FloatCategory
	}{
		{true, FloatCritical},
		{false, FloatNearCritical},
		{false, FloatNormal},
		{true, FloatCritical},
		{false, FloatUnknown},
	}
	for i, w := range want {
		if rows[i].Critical != w.critical || rows[i].Category != w.cat {
			t.Fatalf("row %d: expected critical=%v %q, got critical=%v %q", i, w.critical, w.cat, rows[i].Critical, rows[i].Category)
		}
	}
	if rows[2].Float == nil || *rows[2].Float != 5 {
		t.Fatalf("expected task float to carry through, got %v", rows[2].Float)
	}
}

func TestAnnotate_NilDocuments(t *testing.T) {
	rows := Annotate(hierarchy.Build([]model.Task{{ID: 1}}), nil, nil)
	if len(rows) != 1 || rows[0].Critical || rows[0].Category != FloatUnknown {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(model.CriticalPathReport{
		ProjectDuration:    12,
		CriticalTasksCount: 2,
		TotalTasks:         4,
		CriticalPaths:      [][]model.ScheduledTask{{{ID: 1}}, {{ID: 2}}},
	}, &model.FloatAnalysis{Summary: model.FloatSummary{Critical: 2, Normal: 2}})
	if s.RiskLevel != "unknown" || s.Severity != SeverityUnknown {
		t.Fatalf("missing risk level should read unknown, got %q", s.RiskLevel)
	}
	if s.CriticalShare != 50 || s.PathCount != 2 || s.Float == nil || s.Float.Critical != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
