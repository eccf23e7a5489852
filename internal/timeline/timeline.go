// Package timeline lays tasks out on a day-based grid: window bounds, month and day header
// bands, and per-task bar geometry expressed as percentages of the window.
//
// Every function here is pure. "Today" is always passed in by the caller.
package timeline

import (
	"math"
	"time"

	"taskboard-cli/internal/model"
)

const (
	// MinWindowDays is the shortest visible window, regardless of how compact the task set is.
	MinWindowDays = 30
	// MaxDayCells caps the day header band.
	MaxDayCells = 31
)

type Bounds struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	TotalDays int       `json:"totalDays"`
}

type Month struct {
	Name        string `json:"name"`
	Year        int    `json:"year"`
	StartOffset int    `json:"startOffset"`
	WidthDays   int    `json:"widthDays"`
}

type Day struct {
	Offset     int       `json:"offset"`
	Date       time.Time `json:"date"`
	DayOfMonth int       `json:"dayOfMonth"`
}

type Geometry struct {
	LeftPercent  float64 `json:"leftPercent"`
	WidthPercent float64 `json:"widthPercent"`
}

// DeriveStartDate fills in a missing start date: due − (duration − 1) days when a due date
// and a positive duration exist, otherwise today.
func DeriveStartDate(start, due *time.Time, durationDays int, today time.Time) time.Time {
	if start != nil && !start.IsZero() {
		return model.Date(*start)
	}
	if due != nil && !due.IsZero() && durationDays > 0 {
		return model.Date(*due).AddDate(0, 0, -(durationDays - 1))
	}
	return model.Date(today)
}

// DaysBetween counts whole calendar days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(math.Round(model.Date(b).Sub(model.Date(a)).Hours() / 24))
}

// ComputeBounds spans every task in the set, children included. A zero start date counts as
// today.
func ComputeBounds(tasks []model.Task, today time.Time) Bounds {
	today = model.Date(today)
	if len(tasks) == 0 {
		return Bounds{Start: today, End: today, TotalDays: MinWindowDays}
	}

	var minStart, maxEnd time.Time
	for i, t := range tasks {
		start := taskStart(t, today)
		end := start.AddDate(0, 0, durationOf(t)-1)
		if i == 0 || start.Before(minStart) {
			minStart = start
		}
		if i == 0 || end.After(maxEnd) {
			maxEnd = end
		}
	}

	total := DaysBetween(minStart, maxEnd) + 1
	if total < MinWindowDays {
		total = MinWindowDays
	}
	return Bounds{Start: minStart, End: maxEnd, TotalDays: total}
}

// Months walks the window day by day and emits one bucket per calendar-month run.
func Months(b Bounds) []Month {
	if b.TotalDays <= 0 {
		return nil
	}
	out := make([]Month, 0, b.TotalDays/28+2)
	var cur *Month
	for i := 0; i < b.TotalDays; i++ {
		d := b.Start.AddDate(0, 0, i)
		if cur == nil || d.Month().String() != cur.Name || d.Year() != cur.Year {
			out = append(out, Month{Name: d.Month().String(), Year: d.Year(), StartOffset: i})
			cur = &out[len(out)-1]
		}
		cur.WidthDays++
	}
	return out
}

// DayHeader labels the first min(TotalDays, MaxDayCells) days of the window.
func DayHeader(b Bounds) []Day {
	n := b.TotalDays
	if n > MaxDayCells {
		n = MaxDayCells
	}
	if n < 0 {
		n = 0
	}
	out := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		d := b.Start.AddDate(0, 0, i)
		out = append(out, Day{Offset: i, Date: d, DayOfMonth: d.Day()})
	}
	return out
}

// BarGeometry positions a bar inside the window. The bar never starts before the left edge
// and never overflows the right edge.
func BarGeometry(b Bounds, start time.Time, durationDays int) Geometry {
	if b.TotalDays <= 0 {
		return Geometry{}
	}
	if durationDays < 1 {
		durationDays = 1
	}
	total := float64(b.TotalDays)
	left := float64(DaysBetween(b.Start, start)) / total * 100
	left = clamp(left, 0, 100)
	width := float64(durationDays) / total * 100
	if width > 100-left {
		width = 100 - left
	}
	if width < 0 {
		width = 0
	}
	return Geometry{LeftPercent: left, WidthPercent: width}
}

// Cells maps a geometry onto a strip of width terminal cells. Bars with a non-zero width
// always get at least one cell.
func Cells(g Geometry, width int) (start, n int) {
	if width <= 0 {
		return 0, 0
	}
	start = int(math.Floor(g.LeftPercent / 100 * float64(width)))
	end := int(math.Round((g.LeftPercent + g.WidthPercent) / 100 * float64(width)))
	if start >= width {
		start = width - 1
	}
	if end > width {
		end = width
	}
	n = end - start
	if n < 1 && g.WidthPercent > 0 {
		n = 1
	}
	if n < 0 {
		n = 0
	}
	return start, n
}

func taskStart(t model.Task, today time.Time) time.Time {
	if t.StartDate.IsZero() {
		return today
	}
	return model.Date(t.StartDate)
}

func durationOf(t model.Task) int {
	if t.DurationDays < 1 {
		return 1
	}
	return t.DurationDays
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
