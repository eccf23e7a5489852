package model

import (
	"testing"
	"time"
)

func TestStatusValid(t *testing.T) {
	cases := []struct {
		in   Status
		want bool
	}{
		{StatusToDo, true},
		{StatusInProgress, true},
		{StatusDone, true},
		{"", false},
		{"Blocked", false},
		{"done", false},
		{"In progress", false},
		{"Invalid Status", false},
	}
	for _, tc := range cases {
		if got := tc.in.Valid(); got != tc.want {
			t.Fatalf("Status(%q).Valid(): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2025-02-10")
	if !ok || !got.Equal(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 2025-02-10, got %v ok=%v", got, ok)
	}
	got, ok = ParseDate("2025-02-10T22:30:00+00:00")
	if !ok || !got.Equal(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected timestamp to truncate to date, got %v ok=%v", got, ok)
	}
	for _, bad := range []string{"", "  ", "not-a-date", "2025-13-40"} {
		if _, ok := ParseDate(bad); ok {
			t.Fatalf("ParseDate(%q): expected failure", bad)
		}
	}
}

func TestTaskEndDate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tk := Task{StartDate: start, DurationDays: 5}
	if got := tk.EndDate(); !got.Equal(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected Jan 5, got %v", got)
	}
	tk.DurationDays = 0
	if got := tk.EndDate(); !got.Equal(start) {
		t.Fatalf("expected zero duration to behave as one day, got %v", got)
	}
}
