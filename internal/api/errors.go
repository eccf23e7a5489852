package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const maxErrorBodyRunes = 200

// Error is a non-2xx response from the task API.
type Error struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	body := strings.TrimSpace(e.Body)
	if r := []rune(body); len(r) > maxErrorBodyRunes {
		body = string(r[:maxErrorBodyRunes]) + "…"
	}
	if body == "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode), body)
}

func statusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

func IsUnauthorized(err error) bool {
	s := statusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

// IsBadRequest reports a rejected payload, e.g. an invalid status value.
func IsBadRequest(err error) bool { return statusOf(err) == http.StatusBadRequest }

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
