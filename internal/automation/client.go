// Package automation is a client for the browser automation provider's v2
// API: one-shot skill execution plus the session and task endpoints used
// by authenticated action skills.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.browser-use.com/api/v2"
	apiKeyHeader   = "X-Browser-Use-API-Key"
)

// Config holds the provider endpoint and timeouts.
type Config struct {
	BaseURL        string
	APIKey         string
	ConnectTimeout time.Duration
	DirectTimeout  time.Duration
	SessionTimeout time.Duration
}

// APIError is a response outside the accepted status codes.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Session is an authenticated browser session.
type Session struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// TaskRequest starts an agent task inside a session.
type TaskRequest struct {
	SessionID string   `json:"sessionId"`
	Skills    []string `json:"skills"`
	Task      string   `json:"task"`
}

// Task is the provider's view of an agent task.
type Task struct {
	ID        string            `json:"id"`
	SessionID string            `json:"sessionId,omitempty"`
	Status    string            `json:"status"`
	IsSuccess *bool             `json:"isSuccess,omitempty"`
	Output    json.RawMessage   `json:"output,omitempty"`
	Steps     []json.RawMessage `json:"steps,omitempty"`
}

// Terminal reports whether the task has stopped running.
func (t *Task) Terminal() bool {
	switch t.Status {
	case "finished", "failed", "stopped":
		return true
	}
	return false
}

// Succeeded reports whether the task finished and the agent reported
// success.
func (t *Task) Succeeded() bool {
	return t.Status == "finished" && t.IsSuccess != nil && *t.IsSuccess
}

// OutputText returns the task output as text. String outputs are
// unquoted; anything else is returned as raw JSON.
func (t *Task) OutputText() string {
	if len(t.Output) == 0 || string(t.Output) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(t.Output, &s); err == nil {
		return s
	}
	return string(t.Output)
}

// Client talks to the automation provider. Direct calls and session
// traffic use separate HTTP clients with their own deadlines.
type Client struct {
	cfg     Config
	direct  *http.Client
	session *http.Client
	logger  *zap.Logger
}

// New creates a client, filling unset timeouts with provider defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.DirectTimeout == 0 {
		cfg.DirectTimeout = 30 * time.Second
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 180 * time.Second
	}
	return &Client{
		cfg:     cfg,
		direct:  newHTTPClient(cfg.ConnectTimeout, cfg.DirectTimeout),
		session: newHTTPClient(cfg.ConnectTimeout, cfg.SessionTimeout),
		logger:  logger,
	}
}

func newHTTPClient(connect, total time.Duration) *http.Client {
	return &http.Client{
		Timeout: total,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: connect}).DialContext,
			TLSHandshakeTimeout: connect,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// DirectTimeout is the total deadline applied to ExecuteSkill.
func (c *Client) DirectTimeout() time.Duration { return c.cfg.DirectTimeout }

// ExecuteSkill runs a skill once and returns the raw response body.
func (c *Client) ExecuteSkill(ctx context.Context, skillID string, params map[string]any) (json.RawMessage, error) {
	body, err := c.do(ctx, c.direct, http.MethodPost, "/skills/"+skillID+"/execute",
		map[string]any{"parameters": params}, "execute skill")
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// CreateSession opens a browser session seeded from a credential profile.
func (c *Client) CreateSession(ctx context.Context, profileID string) (*Session, error) {
	body, err := c.do(ctx, c.session, http.MethodPost, "/sessions",
		map[string]string{"profileId": profileID}, "create session", http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("create session: response has no id")
	}
	return &s, nil
}

// DeleteSession releases a session. A session that no longer exists is
// not an error.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, c.session, http.MethodDelete, "/sessions/"+sessionID, nil, "delete session")
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// CreateTask starts an agent task.
func (c *Client) CreateTask(ctx context.Context, req TaskRequest) (*Task, error) {
	body, err := c.do(ctx, c.session, http.MethodPost, "/tasks", req, "create task",
		http.StatusOK, http.StatusCreated, http.StatusAccepted)
	if err != nil {
		return nil, err
	}
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if t.ID == "" {
		return nil, fmt.Errorf("create task: response has no id")
	}
	return &t, nil
}

// GetTask fetches the current state of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	body, err := c.do(ctx, c.session, http.MethodGet, "/tasks/"+taskID, nil, "get task")
	if err != nil {
		return nil, err
	}
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &t, nil
}

// do sends one request. With no accepted codes any 2xx status succeeds.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, payload any, op string, accept ...int) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	c.logger.Debug("automation request",
		zap.String("op", op),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if !accepted(resp.StatusCode, accept) {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func accepted(code int, accept []int) bool {
	if len(accept) == 0 {
		return code >= 200 && code < 300
	}
	for _, a := range accept {
		if code == a {
			return true
		}
	}
	return false
}
