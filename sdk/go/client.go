package lynksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Learnlynk HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	ActorID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	DueAt         string `json:"due_at"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// Event represents a log entry. PayloadJSON carries the payload as the
// JSON document the server stores; Payload decodes it.
type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts"`
	Type        string `json:"type"`
	EntityKind  string `json:"entity_kind"`
	EntityID    string `json:"entity_id"`
	ActorID     string `json:"actor_id"`
	PayloadJSON string `json:"payload_json"`
}

// Payload decodes the event payload document.
func (e Event) Payload() (map[string]any, error) {
	if e.PayloadJSON == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(e.PayloadJSON), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTaskResult is the create acknowledgement.
type CreateTaskResult struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
}

// CompleteTaskResult is the completion acknowledgement.
type CompleteTaskResult struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
}

// TaskList wraps list responses.
type TaskList struct {
	Items []Task `json:"items"`
	Count int    `json:"count"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a follow-up task. dueAt must be a future RFC3339 timestamp.
func (c *Client) CreateTask(ctx context.Context, applicationID, taskType, dueAt string) (CreateTaskResult, error) {
	body := map[string]any{
		"application_id": applicationID,
		"task_type":      taskType,
		"due_at":         dueAt,
	}
	var resp CreateTaskResult
	err := c.do(ctx, http.MethodPost, "v1/tasks", body, &resp)
	return resp, err
}

// ListDueToday returns open tasks due on the server's current day.
func (c *Client) ListDueToday(ctx context.Context) ([]Task, error) {
	var resp TaskList
	err := c.do(ctx, http.MethodGet, "v1/tasks/today", nil, &resp)
	return resp.Items, err
}

// ListTasks lists tasks, optionally filtered by application and status.
func (c *Client) ListTasks(ctx context.Context, applicationID, status string, limit int) ([]Task, error) {
	q := url.Values{}
	if applicationID != "" {
		q.Set("application_id", applicationID)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	endpoint := "v1/tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp TaskList
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "v1/tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CompleteTask marks an open task completed.
func (c *Client) CompleteTask(ctx context.Context, id string) (CompleteTaskResult, error) {
	var resp CompleteTaskResult
	err := c.do(ctx, http.MethodPost, "v1/tasks/"+url.PathEscape(id)+"/complete", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v1/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "v1/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
