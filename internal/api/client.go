// Package api provides a client for the refund-discovery backend.
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
	"time"

	"github.com/polisee/polisee/internal/common"
	"github.com/polisee/polisee/internal/service"
	"golang.org/x/oauth2"
)

const defaultTimeout = 20 * time.Second

// Config holds refund API configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("api base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid api base URL: %w", err)
	}
	if c.Token == "" {
		return fmt.Errorf("api token is required")
	}
	return nil
}

// Client implements the RefundService interface over HTTP.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	retryOpts  *service.RetryOptions
	baseURL    string
	timeout    time.Duration
}

// NewClient creates a new refund API client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	// Bearer auth on every request, including the notification stream.
	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bearer",
	})

	// Deadlines are applied per request via context so the long-lived
	// notification stream is not cut off by a client-wide timeout.
	httpClient := oauth2.NewClient(context.Background(), ts)

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		logger:     slog.Default().With("component", "api"),
		retryOpts: &service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     2 * time.Second,
			Multiplier:   1.0, // fixed delay between attempts
		},
	}, nil
}

// APIError carries the HTTP status and server-provided message of a failed call.
type APIError struct {
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// HTTPClient exposes the authenticated transport for streaming consumers.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// endpoint joins the base URL with a path and optional query parameters.
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// getJSON performs a GET with retry and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return common.WithRetry(ctx, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.endpoint(path, query), nil)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		req.Header.Set("Accept", "application/json")

		return c.doJSON(req, out)
	}, *c.retryOpts)
}

// postJSON performs a POST with retry, re-encoding the body on every attempt.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return common.WithRetry(ctx, func() error {
		payload, err := json.Marshal(body)
		if err != nil {
			return &common.RetryableError{Err: fmt.Errorf("failed to encode request: %w", err), Retryable: false}
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(payload))
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		return c.doJSON(req, out)
	}, *c.retryOpts)
}

// doJSON executes a request and decodes the response, classifying failures
// into retryable and terminal errors.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures are worth another attempt
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: %v", common.ErrAPIConnection, err),
			Retryable: true,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &common.RetryableError{
			Err:       fmt.Errorf("failed to decode response: %w", err),
			Retryable: false,
		}
	}

	return nil
}

// classifyStatus maps a non-2xx response to an error with retry semantics.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := readErrorMessage(resp.Body)
	apiErr := &APIError{Status: resp.StatusCode, Message: msg}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &common.RetryableError{
			Err:       common.NewUserError("Your session has expired", common.ErrUnauthorized),
			Retryable: false,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %v", common.ErrRateLimit, apiErr), Retryable: true}
	case resp.StatusCode >= 500:
		return &common.RetryableError{Err: apiErr, Retryable: true}
	default:
		return &common.RetryableError{Err: apiErr, Retryable: false}
	}
}

// readErrorMessage pulls a human-readable message out of an error body.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	return strings.TrimSpace(string(data))
}

// Ensure Client implements RefundService.
var _ service.RefundService = (*Client)(nil)
