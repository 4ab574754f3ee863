// Package client talks to the algorithm service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kmeansviz/internal/api"
	"kmeansviz/internal/logger"
)

// ErrUnavailable wraps transport-level failures: the service could not be reached
// or answered with something that is not a service payload.
var ErrUnavailable = errors.New("algorithm service unavailable")

// Client is an HTTP client for the algorithm service
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a client for the service at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.Component("client"),
	}
}

// Initialize requests a new dataset
func (c *Client) Initialize(ctx context.Context, sessionID string, req api.InitializeRequest) (*api.InitializeResponse, error) {
	var resp api.InitializeResponse
	if err := c.post(ctx, "initialize", sessionID, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &api.ServiceError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return &resp, nil
}

// Step requests one assignment/update round
func (c *Client) Step(ctx context.Context, sessionID string, req api.IterateRequest) (*api.StepResponse, error) {
	var resp api.StepResponse
	if err := c.post(ctx, "step", sessionID, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &api.ServiceError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return &resp, nil
}

// Converge requests a run to completion
func (c *Client) Converge(ctx context.Context, sessionID string, req api.IterateRequest) (*api.ConvergeResponse, error) {
	var resp api.ConvergeResponse
	if err := c.post(ctx, "converge", sessionID, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &api.ServiceError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return &resp, nil
}

// Reset asks the service to drop its centroids
func (c *Client) Reset(ctx context.Context, sessionID string) error {
	var resp api.ResetResponse
	return c.post(ctx, "reset", sessionID, struct{}{}, &resp)
}

// post sends a JSON request and decodes a JSON response. Non-2xx answers with an
// error payload become *api.ServiceError; everything else that goes wrong on the
// way is ErrUnavailable.
func (c *Client) post(ctx context.Context, op, sessionID string, body, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		observe(op, start, err)
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+op, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if sessionID != "" {
		req.Header.Set(api.SessionHeader, sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("Algorithm service request failed", "op", op, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %v", ErrUnavailable, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if jsonErr := json.Unmarshal(data, &errResp); jsonErr == nil && errResp.Error != "" {
			c.log.Info("Algorithm service reported an error", "op", op, "status", resp.StatusCode, "message", errResp.Error)
			return &api.ServiceError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return fmt.Errorf("%w: %s returned status code %d", ErrUnavailable, op, resp.StatusCode)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrUnavailable, op, err)
	}

	c.log.Debug("Algorithm service request completed", "op", op, "duration", time.Since(start))
	return nil
}
