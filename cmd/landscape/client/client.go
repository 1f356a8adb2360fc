// Package client is the HTTP client the session commands use to talk to a
// running "landscape serve".
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/papercomputeco/landscape/api"
	"github.com/papercomputeco/landscape/pkg/session"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Client calls the landscape API at a base URL.
type Client struct {
	target *url.URL
	http   *http.Client
}

// New returns a client for the API at target.
func New(target string) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API target URL %q: scheme must be http or https", target)
	}
	return &Client{target: u, http: &http.Client{Timeout: defaultTimeout}}, nil
}

// Target returns the API base URL.
func (c *Client) Target() string {
	return c.target.String()
}

// Start starts a session and returns its id.
func (c *Client) Start(ctx context.Context, req api.StartRequest) (string, error) {
	var resp api.StartResponse
	if err := c.do(ctx, http.MethodPost, "/sessions", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

// Status returns a session's current state.
func (c *Client) Status(ctx context.Context, id string) (*session.Session, error) {
	var s session.Session
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Pause pauses a session and returns the checkpoint it wrote.
func (c *Client) Pause(ctx context.Context, id string) (string, error) {
	var resp api.PauseResponse
	if err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(id)+"/pause", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.CheckpointID, nil
}

// Resume resumes a session from checkpointID, or the latest checkpoint when
// it is empty.
func (c *Client) Resume(ctx context.Context, id, checkpointID string) (*session.Session, error) {
	var s session.Session
	req := api.ResumeRequest{CheckpointID: checkpointID}
	if err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(id)+"/resume", nil, req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Abandon stops a session and marks it failed.
func (c *Client) Abandon(ctx context.Context, id string) (*session.Session, error) {
	var s session.Session
	if err := c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Checkpoints lists a session's checkpoints oldest first.
func (c *Client) Checkpoints(ctx context.Context, id string) ([]api.CheckpointSummary, error) {
	var cps []api.CheckpointSummary
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id)+"/checkpoints", nil, nil, &cps); err != nil {
		return nil, err
	}
	return cps, nil
}

// Memory returns the stored profile and up to limit history entries of a
// subject.
func (c *Client) Memory(ctx context.Context, subject string, limit int) (*api.MemoryResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var m api.MemoryResponse
	if err := c.do(ctx, http.MethodGet, "/memory/"+url.PathEscape(subject), q, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.target
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to landscape API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		var e api.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			apiErr.Kind = e.Kind
			apiErr.Message = e.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
