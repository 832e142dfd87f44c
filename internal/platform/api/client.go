// Package api implements the platform client over the ICA REST API.
//
// All failures are mapped onto the apperrors taxonomy: connection errors,
// 429 and 5xx responses are retryable network errors; auth and other 4xx
// responses are not.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"icabatch/internal/apperrors"
	"icabatch/internal/config"
)

const maxErrorBody = 4096

// Client talks to the ICA REST API for one project.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	project string
	logger  *slog.Logger

	mu        sync.Mutex
	projectID string // resolved lazily from the project name
}

// New creates a REST client from platform configuration.
func New(cfg *config.PlatformConfig) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		project: cfg.Project,
		logger:  slog.With("component", "ica-api"),
	}
}

// Ready verifies the endpoint is reachable and the API key is accepted.
func (c *Client) Ready(ctx context.Context) error {
	var out struct {
		Items []json.RawMessage `json:"items"`
	}
	return c.doJSON(ctx, http.MethodGet, "/api/projects", url.Values{"pageSize": {"1"}}, nil, &out)
}

// projectRef resolves the configured project name to its platform ID.
// The result is cached for the lifetime of the client.
func (c *Client) projectRef(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.projectID != "" {
		return c.projectID, nil
	}

	var out struct {
		Items []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}
	query := url.Values{"search": {c.project}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/projects", query, nil, &out); err != nil {
		return "", err
	}
	for _, item := range out.Items {
		if item.Name == c.project || item.ID == c.project {
			c.projectID = item.ID
			return c.projectID, nil
		}
	}
	return "", apperrors.NotFound("project", c.project)
}

// doJSON performs one authenticated request and decodes the JSON response
// into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	op := fmt.Sprintf("api.%s %s", method, path)

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return apperrors.IO(op, err)
		}
		body = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return apperrors.Network(op, err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Network(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(op, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.Network(op, fmt.Errorf("decoding response: %w", err))
		}
	}
	return nil
}

// statusError maps an HTTP error response onto the error taxonomy.
func (c *Client) statusError(op string, resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(detail))
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &apperrors.Error{
			Sentinel: apperrors.ErrNotFound,
			Message:  fmt.Sprintf("%s: %s", op, msg),
			Op:       op,
		}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return apperrors.Network(op, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg))
	default:
		return apperrors.Resource(op, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, msg))
	}
}
