package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"taskboard-cli/internal/model"
)

// result is the envelope every command prints: {"data": ..., "_hints": [...]}.
type result struct {
	Data  any      `json:"data"`
	Hints []string `json:"_hints,omitempty"`
}

// textResult is a result that also has a --format text rendering.
type textResult struct {
	result
	render func() string
}

func (r textResult) Text() string {
	s := r.render()
	for _, h := range r.Hints {
		s = strings.TrimRight(s, "\n") + "\nhint: " + h
	}
	return s
}

func newResult(data any, render func() string, hints ...string) any {
	r := result{Data: data, Hints: hints}
	if render == nil {
		return r
	}
	return textResult{result: r, render: render}
}

// table renders rows with aligned columns.
func table(header []string, rows [][]string) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
	return b.String()
}

func shortDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(model.DateLayout)
}

func taskRow(t model.Task) []string {
	return []string{
		fmt.Sprintf("#%d", t.ID),
		t.Status.Label(),
		shortDate(t.StartDate),
		fmt.Sprintf("%dd", t.DurationDays),
		fmt.Sprintf("%d%%", t.Progress),
		t.Title,
	}
}

var taskHeader = []string{"ID", "STATUS", "START", "DUR", "PROG", "TITLE"}
