package api

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestError_TruncatesBodyOnRuneBoundary(t *testing.T) {
	e := &Error{Op: "fetch tasks", StatusCode: 500, Body: strings.Repeat("é", 150) + strings.Repeat("ü", 150)}
	msg := e.Error()
	if !utf8.ValidString(msg) {
		t.Fatalf("error text is not valid UTF-8: %q", msg)
	}
	if !strings.HasSuffix(msg, "…") {
		t.Fatalf("expected truncation marker, got %q", msg)
	}
	body := strings.TrimSuffix(msg[strings.LastIndex(msg, ": ")+2:], "…")
	if n := utf8.RuneCountInString(body); n != maxErrorBodyRunes {
		t.Fatalf("expected %d runes of body, got %d", maxErrorBodyRunes, n)
	}

	short := (&Error{Op: "delete task", StatusCode: 404}).Error()
	if short != "delete task: 404 Not Found" {
		t.Fatalf("unexpected message %q", short)
	}
}
