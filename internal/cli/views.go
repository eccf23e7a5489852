package cli

import (
	"fmt"
	"strings"
	"time"

	"taskboard-cli/internal/critpath"
	"taskboard-cli/internal/hierarchy"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/timeline"
	"taskboard-cli/internal/workflow"

	"github.com/spf13/cobra"
)

type boardColumn struct {
	ID    workflow.ColumnID `json:"id"`
	Count int               `json:"count"`
	Cards []boardCard       `json:"cards"`
}

type boardCard struct {
	model.Task
	Subtasks *hierarchy.Stats `json:"subtasks,omitempty"`
}

func newBoardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the Kanban board (top-level tasks by column)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := app.projectID()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			tasks, err := app.client().FetchAllTasks(ctx, pid)
			if err != nil {
				return writeErr(cmd, err)
			}

			h := hierarchy.Build(tasks)
			b := workflow.Classify(h)
			cols := make([]boardColumn, 0, len(b.Columns))
			for _, c := range b.Columns {
				bc := boardColumn{ID: c.ID, Count: len(c.Tasks), Cards: []boardCard{}}
				for _, t := range c.Tasks {
					card := boardCard{Task: t}
					if st := h.SubtaskStats(t.ID); st.Total > 0 {
						card.Subtasks = &st
					}
					bc.Cards = append(bc.Cards, card)
				}
				cols = append(cols, bc)
			}
			return writeOut(cmd, app, newResult(map[string]any{"projectId": pid, "columns": cols}, func() string {
				return renderBoard(cols)
			}))
		},
	}
	return cmd
}

func renderBoard(cols []boardColumn) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (%d)\n", c.ID, c.Count)
		if len(c.Cards) == 0 {
			b.WriteString("  (empty)\n")
			continue
		}
		for _, card := range c.Cards {
			meta := []string{shortDate(card.StartDate), fmt.Sprintf("%dd", card.DurationDays), fmt.Sprintf("%d%%", card.Progress)}
			if card.Subtasks != nil {
				meta = append(meta, fmt.Sprintf("%d/%d subtasks", card.Subtasks.Completed, card.Subtasks.Total))
			}
			if card.Assignee != "" {
				meta = append(meta, "@"+card.Assignee)
			}
			if c.ID == workflow.ColumnInvalid {
				meta = append([]string{"status: " + card.Status.Label()}, meta...)
			}
			fmt.Fprintf(&b, "  #%d %s  [%s]\n", card.ID, card.Title, strings.Join(meta, " · "))
		}
	}
	return b.String()
}

func newTimelineCmd(app *App) *cobra.Command {
	var width int
	var collapse []string

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show the timeline (Gantt) layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := app.projectID()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			tasks, err := app.client().FetchAllTasks(ctx, pid)
			if err != nil {
				return writeErr(cmd, err)
			}

			h := hierarchy.Build(tasks)
			exp := timeline.SyncExpansion(timeline.Expansion{}, h)
			for _, raw := range collapse {
				id, err := parseTaskID(raw)
				if err != nil {
					return writeErr(cmd, fmt.Errorf("--collapse: %w", err))
				}
				if exp.IsOpen(id) {
					exp = exp.Toggle(id)
				}
			}
			l := timeline.Compute(h, exp, time.Now())
			return writeOut(cmd, app, newResult(l, func() string {
				return renderTimeline(l, max(width, 10))
			}))
		},
	}

	cmd.Flags().IntVar(&width, "width", 60, "Bar area width in cells (text output)")
	cmd.Flags().StringSliceVar(&collapse, "collapse", nil, "Parent task ids to collapse (comma-separated)")
	return cmd
}

func renderTimeline(l timeline.Layout, width int) string {
	const labelWidth = 34
	var b strings.Builder
	fmt.Fprintf(&b, "%s · %d tasks\n", l.Span, l.TaskCount)

	months := []rune(strings.Repeat(" ", width))
	for _, mo := range l.Months {
		g := timeline.BarGeometry(l.Bounds, l.Bounds.Start.AddDate(0, 0, mo.StartOffset), mo.WidthDays)
		start, _ := timeline.Cells(g, width)
		label := []rune(fmt.Sprintf("%.3s %d", mo.Name, mo.Year))
		for i, r := range label {
			if start+i < width {
				months[start+i] = r
			}
		}
	}
	fmt.Fprintf(&b, "%-*s %s\n", labelWidth, "", strings.TrimRight(string(months), " "))

	for _, r := range l.Rows {
		twisty := "  "
		if r.HasChildren {
			twisty = "▸ "
			if r.Expanded {
				twisty = "▾ "
			}
		}
		label := strings.Repeat("  ", r.Depth) + twisty + fmt.Sprintf("#%d %s", r.Task.ID, r.Task.Title)
		if r.Badge != nil {
			label += " " + r.Badge.String()
			if r.Badge.Done {
				label += " ✓"
			}
		}
		label = truncateRunes(label, labelWidth)

		start, n := timeline.Cells(r.Geometry, width)
		bar := strings.Repeat(" ", start) + strings.Repeat("█", n)
		fmt.Fprintf(&b, "%-*s %s\n", labelWidth, label, bar)
	}
	return b.String()
}

// truncateRunes pads or cuts s to exactly n runes; %-*s counts bytes, not runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s + strings.Repeat(" ", n-len(r))
}

type criticalPathResult struct {
	ProjectID int64            `json:"projectId"`
	Summary   critpath.Summary `json:"summary"`
	Paths     [][]string       `json:"paths"`
	Rows      []critpath.Row   `json:"rows"`
}

func (r criticalPathResult) text() string {
	s := r.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "duration:   %d days\n", s.ProjectDuration)
	if s.EarliestCompletion != "" {
		fmt.Fprintf(&b, "completion: %s\n", s.EarliestCompletion)
	}
	fmt.Fprintf(&b, "critical:   %d/%d (%d%%)\n", s.CriticalCount, s.TotalTasks, s.CriticalShare)
	fmt.Fprintf(&b, "risk:       %s\n", strings.ToUpper(s.RiskLevel))
	if f := s.Float; f != nil {
		fmt.Fprintf(&b, "float:      %d critical · %d near · %d normal\n", f.Critical, f.NearCritical, f.Normal)
	}
	for i, p := range r.Paths {
		fmt.Fprintf(&b, "path %d:     %s\n", i+1, strings.Join(p, " → "))
	}

	var rows [][]string
	for _, row := range r.Rows {
		if row.Category != critpath.FloatCritical && row.Category != critpath.FloatNearCritical {
			continue
		}
		f := "-"
		if row.Float != nil {
			f = fmt.Sprintf("%dd", *row.Float)
		}
		rows = append(rows, []string{fmt.Sprintf("#%d", row.Task.ID), string(row.Category), f, row.Task.Title})
	}
	if len(rows) > 0 {
		b.WriteByte('\n')
		b.WriteString(table([]string{"ID", "CATEGORY", "FLOAT", "TITLE"}, rows))
	}
	return b.String()
}

func newCriticalPathCmd(app *App) *cobra.Command {
	var recalc bool

	cmd := &cobra.Command{
		Use:     "critical-path",
		Aliases: []string{"critical"},
		Short:   "Show the critical path report for the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := app.requireProject()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			c := app.client()

			var report model.CriticalPathReport
			if recalc {
				report, err = c.RecalculateCriticalPath(ctx, pid)
			} else {
				report, err = c.FetchCriticalPath(ctx, pid)
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			var analysis *model.FloatAnalysis
			if fa, err := c.FetchFloatAnalysis(ctx, pid); err == nil {
				analysis = &fa
			} else {
				app.logger.Printf("op=fetch-float-analysis project=%d err=%v", pid, err)
			}
			tasks, err := c.FetchAllTasks(ctx, pid)
			if err != nil {
				return writeErr(cmd, err)
			}

			res := criticalPathResult{
				ProjectID: pid,
				Summary:   critpath.Summarize(report, analysis),
				Paths:     [][]string{},
				Rows:      critpath.Annotate(hierarchy.Build(tasks), &report, analysis),
			}
			for _, p := range report.CriticalPaths {
				titles := make([]string, 0, len(p))
				for _, st := range p {
					titles = append(titles, st.Title)
				}
				res.Paths = append(res.Paths, titles)
			}
			return writeOut(cmd, app, newResult(res, res.text))
		},
	}

	cmd.Flags().BoolVar(&recalc, "recalc", false, "Ask the server to recalculate before reporting")
	return cmd
}
