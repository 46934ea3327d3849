// Package client provides a Go client for a remote pagewatch instance
// over its HTTP API.
//
// Usage:
//
//	c := client.New("http://pagewatch:8080")
//
//	recs, err := c.ListResults(ctx)
//	payload, ct, err := c.Payload(ctx, jobID)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/result"
	"github.com/pagewatch/pagewatch/scheduler"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// Client talks to a remote pagewatch server.
type Client struct {
	baseURL string
	hc      *http.Client
	logger  *slog.Logger
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Job is the API's job representation: the descriptor joined with its live
// scheduling state.
type Job struct {
	ID                  id.JobID      `json:"id"`
	Name                string        `json:"name"`
	Target              string        `json:"target"`
	Cadence             string        `json:"cadence"`
	MaxAttempts         int           `json:"max_attempts"`
	BackoffBase         time.Duration `json:"backoff_base"`
	BackoffCeiling      time.Duration `json:"backoff_ceiling"`
	Timeout             time.Duration `json:"timeout"`
	NextDueAt           *time.Time    `json:"next_due_at,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Exhausted           bool          `json:"exhausted"`
	InFlight            bool          `json:"in_flight"`
}

// apiError is the server's JSON error body.
type apiError struct {
	Error string `json:"error"`
}

// do issues a request and decodes the JSON response into out (if non-nil).
// 404s are mapped back to the domain sentinels.
func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("pagewatch/client: build request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("pagewatch/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.asError(resp, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("pagewatch/client: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) asError(resp *http.Response, path string) error {
	var body apiError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	if resp.StatusCode == http.StatusNotFound {
		if strings.Contains(path, "/results") {
			return fmt.Errorf("%w: %s", pagewatch.ErrResultNotFound, body.Error)
		}
		return fmt.Errorf("%w: %s", pagewatch.ErrJobNotFound, body.Error)
	}
	return fmt.Errorf("pagewatch/client: %s: status %d: %s", path, resp.StatusCode, body.Error)
}

// Health reports whether the server and its store are reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil)
}

// ListJobs returns all jobs with their scheduling state.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var out []Job
	if err := c.do(ctx, http.MethodGet, "/v1/jobs", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetJob returns one job by ID.
func (c *Client) GetJob(ctx context.Context, jobID id.JobID) (*Job, error) {
	var out Job
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+jobID.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetJob clears a job's failure streak and exhaustion.
func (c *Client) ResetJob(ctx context.Context, jobID id.JobID) error {
	return c.do(ctx, http.MethodPost, "/v1/jobs/"+jobID.String()+"/reset", nil)
}

// ListResults returns every cached result record.
func (c *Client) ListResults(ctx context.Context) ([]*result.Record, error) {
	var out []*result.Record
	if err := c.do(ctx, http.MethodGet, "/v1/results", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetResult returns the latest result record for a job.
func (c *Client) GetResult(ctx context.Context, jobID id.JobID) (*result.Record, error) {
	var out result.Record
	if err := c.do(ctx, http.MethodGet, "/v1/results/"+jobID.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Payload returns the latest rendered document for a job along with its
// content type.
func (c *Client) Payload(ctx context.Context, jobID id.JobID) ([]byte, string, error) {
	path := "/v1/results/" + jobID.String() + "/payload"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("pagewatch/client: build request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("pagewatch/client: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", c.asError(resp, path)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, "", fmt.Errorf("pagewatch/client: read payload: %w", err)
	}
	return buf.Bytes(), resp.Header.Get("Content-Type"), nil
}

// Stats returns the scheduler's aggregate counters.
func (c *Client) Stats(ctx context.Context) (*scheduler.Stats, error) {
	var out scheduler.Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tick asks the server to run one scheduling pass and returns how many
// attempts it dispatched.
func (c *Client) Tick(ctx context.Context) (int, error) {
	var out struct {
		Dispatched int `json:"dispatched"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/tick", &out); err != nil {
		return 0, err
	}
	return out.Dispatched, nil
}

// Reload asks the server to re-read its jobs file.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/reload", nil)
}
