package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reelcast/internal/api"
	"reelcast/internal/pipeline"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

const defaultTimeout = 15 * time.Second

// Client talks to the daemon's HTTP API.
type Client struct {
	base       *url.URL
	token      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New builds a client for server, which may be a bare host:port.
func New(server string, opts ...Option) (*Client, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return nil, errors.New("server address is required")
	}
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	base, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server address: %w", err)
	}
	c := &Client{base: base, httpClient: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Error is a non-2xx API answer.
type Error struct {
	Status  int
	Message string
	Kind    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d", e.Status)
	}
	return e.Message
}

// Unwrap maps the status code onto the services sentinels.
func (e *Error) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return services.ErrNotFound
	case e.Status == http.StatusBadRequest && e.Kind == "precondition":
		return services.ErrPrecondition
	case e.Status == http.StatusBadRequest:
		return services.ErrValidation
	default:
		return nil
	}
}

// CreateProject creates a project and returns its id.
func (c *Client) CreateProject(ctx context.Context, req pipeline.CreateRequest) (string, error) {
	var resp api.CreatedResponse
	if err := c.do(ctx, http.MethodPost, "/api/projects", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ListProjects returns every project.
func (c *Client) ListProjects(ctx context.Context) ([]*store.Project, error) {
	var projects []*store.Project
	err := c.do(ctx, http.MethodGet, "/api/projects", nil, &projects)
	return projects, err
}

// Project returns one project with its stage progress.
func (c *Client) Project(ctx context.Context, id string) (*pipeline.ProjectView, error) {
	view := &pipeline.ProjectView{}
	if err := c.do(ctx, http.MethodGet, projectPath(id), nil, view); err != nil {
		return nil, err
	}
	return view, nil
}

// DeleteProject removes a project and its artifacts.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, projectPath(id), nil, nil)
}

// StartStage starts download, merge, or split.
func (c *Client) StartStage(ctx context.Context, id, stage string) (string, error) {
	var resp api.ProcessResponse
	if err := c.do(ctx, http.MethodPost, projectPath(id, stage), nil, &resp); err != nil {
		return "", err
	}
	return resp.ProcessID, nil
}

// Caption starts captioning a single segment.
func (c *Client) Caption(ctx context.Context, id string, segmentID int) (string, error) {
	var resp api.ProcessResponse
	path := projectPath(id, "segments", strconv.Itoa(segmentID), "caption")
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.ProcessID, nil
}

// CaptionBatch captions segments through the worker pool. An empty ids
// captions every segment not yet completed.
func (c *Client) CaptionBatch(ctx context.Context, id string, ids []int) (pipeline.BatchStart, error) {
	var resp pipeline.BatchStart
	err := c.do(ctx, http.MethodPost, projectPath(id, "captions"), api.BatchRequest{Segments: ids}, &resp)
	return resp, err
}

// Cancel stops a project's running work.
func (c *Client) Cancel(ctx context.Context, id string) (int, error) {
	var resp api.CancelResponse
	if err := c.do(ctx, http.MethodPost, projectPath(id, "cancel"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Canceled, nil
}

// Segments lists a project's segments.
func (c *Client) Segments(ctx context.Context, id string) ([]*store.Segment, error) {
	var segments []*store.Segment
	err := c.do(ctx, http.MethodGet, projectPath(id, "segments"), nil, &segments)
	return segments, err
}

// ClearSegments deletes a project's segments and their artifacts.
func (c *Client) ClearSegments(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, projectPath(id, "segments"), nil, nil)
}

// Health fetches the daemon health report. A degraded report is returned
// without error.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable && resp.Status != "" {
		return resp, nil
	}
	return resp, err
}

func projectPath(id string, parts ...string) string {
	segments := append([]string{"/api/projects", url.PathEscape(id)}, parts...)
	return strings.Join(segments, "/")
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	endpoint := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{Status: resp.StatusCode}
		var payload api.ErrorResponse
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
			apiErr.Kind = payload.Kind
		}
		if out != nil && resp.StatusCode == http.StatusServiceUnavailable {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
