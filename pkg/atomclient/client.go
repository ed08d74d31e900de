// Package atomclient is a thin Go SDK over the atomsched HTTP API,
// grounded on the teacher's internal/cli Client envelope-parsing
// convention, exported here so non-CLI callers can drive a server too.
package atomclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/atomsched/pkg/tensor"
)

// Client is an HTTP client for the atomsched API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New creates an atomsched API client.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		Logger:     logger,
	}
}

// apiError mirrors internal/server.APIError for JSON decoding.
type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

type envelope struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     *apiError       `json:"error"`
}

func (c *Client) do(method, path string, body any) (*envelope, error) {
	url := c.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.Logger.Debug("http request", "method", method, "url", url)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w\nbody: %s", resp.StatusCode, err, string(respBody))
	}
	if env.Status == "error" && env.Error != nil {
		return &env, env.Error
	}
	return &env, nil
}

// SubmitTaskRequest mirrors the server's task submission body.
type SubmitTaskRequest struct {
	ID        string            `json:"id,omitempty"`
	ModelID   string            `json:"model_id"`
	Priority  int               `json:"priority"`
	DependsOn []string          `json:"depends_on,omitempty"`
	Inputs    []tensor.Tensor   `json:"inputs"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SubmitTask submits a single task and returns its assigned ID.
func (c *Client) SubmitTask(req SubmitTaskRequest) (string, error) {
	env, err := c.do("POST", "/api/v1/tasks/", req)
	if err != nil {
		return "", err
	}
	var data struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("parse submit response: %w", err)
	}
	return data.ID, nil
}

// TaskStatus mirrors the server's task status/result response shape.
type TaskStatus struct {
	ID         string                   `json:"id"`
	Status     string                   `json:"status"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Outputs    []tensor.Tensor          `json:"outputs"`
	Profiling  map[string]time.Duration `json:"profiling"`
	Error      string                   `json:"error"`
}

// GetTask fetches a task's current status.
func (c *Client) GetTask(id string) (*TaskStatus, error) {
	env, err := c.do("GET", "/api/v1/tasks/"+id, nil)
	if err != nil {
		return nil, err
	}
	var ts TaskStatus
	if err := json.Unmarshal(env.Data, &ts); err != nil {
		return nil, fmt.Errorf("parse task response: %w", err)
	}
	return &ts, nil
}

// WaitTask blocks (server-side) until the task reaches a terminal state
// or timeout elapses.
func (c *Client) WaitTask(id string, timeout time.Duration) (*TaskStatus, error) {
	path := "/api/v1/tasks/" + id + "/wait"
	if timeout > 0 {
		path += "?timeout=" + timeout.String()
	}
	env, err := c.do("GET", path, nil)
	if err != nil {
		return nil, err
	}
	var ts TaskStatus
	if err := json.Unmarshal(env.Data, &ts); err != nil {
		return nil, fmt.Errorf("parse task response: %w", err)
	}
	return &ts, nil
}

// CancelTask requests cooperative cancellation of a task.
func (c *Client) CancelTask(id string) error {
	_, err := c.do("POST", "/api/v1/tasks/"+id+"/cancel", nil)
	return err
}

// Stats fetches the scheduler's aggregate counters.
func (c *Client) Stats() (map[string]any, error) {
	env, err := c.do("GET", "/api/v1/stats", nil)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("parse stats response: %w", err)
	}
	return data, nil
}

// LoadModelRequest mirrors the server's model load body.
type LoadModelRequest struct {
	ID      string         `json:"id"`
	Factory string         `json:"factory"`
	Config  map[string]any `json:"config,omitempty"`
}

// LoadModel loads a model into the server's registry.
func (c *Client) LoadModel(req LoadModelRequest) error {
	_, err := c.do("POST", "/api/v1/models/", req)
	return err
}

// UnloadModel unloads a model from the server's registry.
func (c *Client) UnloadModel(id string) error {
	_, err := c.do("DELETE", "/api/v1/models/"+id, nil)
	return err
}

// ListModels lists currently loaded models.
func (c *Client) ListModels() ([]map[string]any, error) {
	env, err := c.do("GET", "/api/v1/models/", nil)
	if err != nil {
		return nil, err
	}
	var data []map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("parse models response: %w", err)
	}
	return data, nil
}
