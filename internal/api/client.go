// Package api is the boundary to the external task REST API. Responses are decoded and
// normalized here; nothing past this package sees wire shapes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard-cli/internal/model"
)

const (
	DefaultBaseURL = "http://localhost:8001/api"

	maxRetries   = 3
	initialDelay = 250 * time.Millisecond
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *log.Logger
	now     func() time.Time
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithLogger(l *log.Logger) Option      { return func(c *Client) { c.logger = l } }

// WithClock overrides "today" used when deriving missing start dates.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func New(baseURL, token string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  log.New(io.Discard, "", 0),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) BaseURL() string { return strings.TrimRight(c.baseURL, "/") }

// FetchAllTasks returns the flat task list, scoped to a project when projectID is non-zero.
func (c *Client) FetchAllTasks(ctx context.Context, projectID int64) ([]model.Task, error) {
	body, err := c.do(ctx, "fetch tasks", http.MethodGet, "tasks/all_tasks/"+projectQuery(projectID), nil)
	if err != nil {
		return nil, err
	}
	list := DecodeList[RawTask](body)
	if list.Shape == ShapeUnknown {
		c.logger.Printf("op=fetch-tasks warn=unrecognized list response reason=%q", list.Reason)
	}
	return NormalizeAll(list.Items, c.now()), nil
}

func (c *Client) FetchTask(ctx context.Context, id int64) (model.Task, error) {
	body, err := c.do(ctx, "fetch task", http.MethodGet, fmt.Sprintf("tasks/%d/", id), nil)
	if err != nil {
		return model.Task{}, err
	}
	return c.decodeTask("fetch task", body)
}

// UpdateTaskStatus sends a partial update of the status field only.
func (c *Client) UpdateTaskStatus(ctx context.Context, id int64, status model.Status) (model.Task, error) {
	payload := map[string]string{"status": string(status)}
	body, err := c.do(ctx, "update task status", http.MethodPatch, fmt.Sprintf("tasks/%d/", id), payload)
	if err != nil {
		return model.Task{}, err
	}
	return c.decodeTask("update task status", body)
}

// UpdateTask sends a partial update of the fields set in p and returns the stored task.
func (c *Client) UpdateTask(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error) {
	if p.Empty() {
		return model.Task{}, fmt.Errorf("update task: nothing to change")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return model.Task{}, fmt.Errorf("update task: title cannot be empty")
	}
	body, err := c.do(ctx, "update task", http.MethodPatch, fmt.Sprintf("tasks/%d/", id), newPatchRequest(p))
	if err != nil {
		return model.Task{}, err
	}
	return c.decodeTask("update task", body)
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	_, err := c.do(ctx, "delete task", http.MethodDelete, fmt.Sprintf("tasks/%d/", id), nil)
	return err
}

func (c *Client) CreateTask(ctx context.Context, nt model.NewTask) (model.Task, error) {
	if strings.TrimSpace(nt.Title) == "" {
		return model.Task{}, fmt.Errorf("create task: title is required")
	}
	body, err := c.do(ctx, "create task", http.MethodPost, "tasks/", newCreateRequest(nt))
	if err != nil {
		return model.Task{}, err
	}
	return c.decodeTask("create task", body)
}

func (c *Client) FetchProjects(ctx context.Context) ([]model.Project, error) {
	body, err := c.do(ctx, "fetch projects", http.MethodGet, "projects/", nil)
	if err != nil {
		return nil, err
	}
	list := DecodeList[rawProject](body)
	if list.Shape == ShapeUnknown {
		c.logger.Printf("op=fetch-projects warn=unrecognized list response reason=%q", list.Reason)
	}
	out := make([]model.Project, 0, len(list.Items))
	for _, p := range list.Items {
		out = append(out, p.model())
	}
	return out, nil
}

func (c *Client) FetchCriticalPath(ctx context.Context, projectID int64) (model.CriticalPathReport, error) {
	var r model.CriticalPathReport
	body, err := c.do(ctx, "fetch critical path", http.MethodGet, "tasks/critical_path/"+projectQuery(projectID), nil)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("fetch critical path: decode: %w", err)
	}
	return r, nil
}

func (c *Client) FetchFloatAnalysis(ctx context.Context, projectID int64) (model.FloatAnalysis, error) {
	var fa model.FloatAnalysis
	body, err := c.do(ctx, "fetch float analysis", http.MethodGet, "tasks/float_analysis/"+projectQuery(projectID), nil)
	if err != nil {
		return fa, err
	}
	if err := json.Unmarshal(body, &fa); err != nil {
		return fa, fmt.Errorf("fetch float analysis: decode: %w", err)
	}
	return fa, nil
}

// RecalculateCriticalPath asks the server to rerun its calculation and returns the new report.
func (c *Client) RecalculateCriticalPath(ctx context.Context, projectID int64) (model.CriticalPathReport, error) {
	var r model.CriticalPathReport
	payload := map[string]int64{"project_id": projectID}
	body, err := c.do(ctx, "recalculate critical path", http.MethodPost, "tasks/calculate_critical_path/", payload)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("recalculate critical path: decode: %w", err)
	}
	return r, nil
}

func (c *Client) decodeTask(op string, body []byte) (model.Task, error) {
	var raw RawTask
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.Task{}, fmt.Errorf("%s: decode: %w", op, err)
	}
	return Normalize(raw, c.now()), nil
}

// do performs one API call. Reads are retried with backoff on transport errors, 429 and 5xx;
// writes are sent once.
func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal: %w", op, err)
		}
		reqBody = b
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = maxRetries
	}
	requestID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", op, err)
			c.logger.Printf("op=%s method=%s path=%s request_id=%s err=%v", op, method, path, requestID, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%s: read body: %w", op, err)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastErr = &Error{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
			c.logger.Printf("op=%s method=%s path=%s request_id=%s status=%d", op, method, path, requestID, resp.StatusCode)
			if retryable(resp.StatusCode) {
				continue
			}
			return nil, lastErr
		}
		return body, nil
	}
	return nil, lastErr
}

func projectQuery(projectID int64) string {
	if projectID == 0 {
		return ""
	}
	v := url.Values{}
	v.Set("project_id", strconv.FormatInt(projectID, 10))
	return "?" + v.Encode()
}
