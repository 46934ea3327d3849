package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// renderRequest is the wire shape sent to the rendering service.
type renderRequest struct {
	Target string `json:"target"`
}

// HTTPRenderer talks to a remote rendering service over HTTP. Each Render
// call issues a fresh request; no cookies or session state are carried
// between calls. The engine contract is minimal: POST /render with a
// target, receive the rendered content or an error status.
type HTTPRenderer struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPRenderer.
type HTTPOption func(*HTTPRenderer)

// WithHTTPClient sets a custom http.Client. The client's own timeout is
// left untouched; the per-attempt deadline comes from the request context.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPRenderer) { r.client = c }
}

// NewHTTPRenderer creates a renderer backed by the rendering service at
// baseURL.
func NewHTTPRenderer(baseURL string, opts ...HTTPOption) *HTTPRenderer {
	r := &HTTPRenderer{
		baseURL: baseURL,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render requests a render of target and returns the content.
func (r *HTTPRenderer) Render(ctx context.Context, target string) (*Content, error) {
	body, err := json.Marshal(renderRequest{Target: target})
	if err != nil {
		return nil, fmt.Errorf("render: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("render: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("render: engine returned http %d", res.StatusCode)
	}

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("render: read content: %w", err)
	}

	ct := res.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}

	return &Content{
		Body:        payload,
		ContentType: ct,
		RenderedAt:  time.Now().UTC(),
	}, nil
}

// Recycle drops all idle engine connections so the next attempt starts
// from a clean transport.
func (r *HTTPRenderer) Recycle() {
	r.client.CloseIdleConnections()
}
