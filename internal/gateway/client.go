// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/nbassist/internal/notebook"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes gateway errors.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeStatus
	ErrTypeInvalidResponse
)

// Error is returned by every Client method on failure.
type Error struct {
	Type ErrorType
	// Status is the HTTP status code for ErrTypeStatus, 0 otherwise.
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsStatus reports whether err is a gateway error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Type == ErrTypeStatus && gwErr.Status == status
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

const (
	// DefaultBaseURL is the root of a local notebook server.
	DefaultBaseURL = "http://127.0.0.1:8888/"
	// BasePath is the path segment every endpoint lives under.
	BasePath = "ai-assistant/"
)

// ClientConfig holds configuration options for the gateway client.
type ClientConfig struct {
	// BaseURL is the server root (default: http://127.0.0.1:8888/)
	BaseURL string

	// Timeout bounds each round trip. Zero means no client timeout; the
	// caller's context bounds the request instead.
	Timeout time.Duration

	// Token, when set, is sent as "Authorization: token <Token>".
	Token string

	// HTTPClient overrides the transport; Timeout is ignored when set.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: DefaultBaseURL,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the assistant backend. It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client, filling zero values with defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:     &cfg,
		httpClient: httpClient,
		logger:     logger.With("component", "gateway"),
	}
}

// BaseURL returns the configured server root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// endpoint builds "<base>/ai-assistant/<name>".
func (c *Client) endpoint(name string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + BasePath + name
}

// =============================================================================
// OPERATIONS
// =============================================================================

// FetchConfig lists the backends the server offers. A success body that is
// empty or not the expected shape yields an empty list rather than an error.
func (c *Client) FetchConfig(ctx context.Context) ([]BackendDescriptor, error) {
	body, err := c.do(ctx, http.MethodGet, "config", nil)
	if err != nil {
		return nil, err
	}
	var resp ConfigResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Warn("ignoring malformed backend config", "error", err)
		return []BackendDescriptor{}, nil
	}
	if resp.AvailableModels == nil {
		return []BackendDescriptor{}, nil
	}
	return resp.AvailableModels, nil
}

// Generate asks the backend for a chat reply.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Messages == nil {
		req.Messages = []ChatMessage{}
	}
	if req.NotebookContent.Cells == nil {
		req.NotebookContent.Cells = []notebook.ContentCell{}
	}
	if len(req.NotebookContent.Metadata) == 0 {
		req.NotebookContent.Metadata = json.RawMessage("{}")
	}
	body, err := c.do(ctx, http.MethodPost, "llm", req)
	if err != nil {
		return nil, err
	}
	var resp GenerateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &resp, nil
}

// FixError asks the backend for a corrected version of code.
func (c *Client) FixError(ctx context.Context, req FixRequest) (*FixResponse, error) {
	if req.Errors == nil {
		req.Errors = []ErrorDetail{}
	}
	body, err := c.do(ctx, http.MethodPost, "fix-error", req)
	if err != nil {
		return nil, err
	}
	var resp FixResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &resp, nil
}

// do performs one JSON round trip and returns the success body.
func (c *Client) do(ctx context.Context, method, name string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		reqBody = bytes.NewReader(b)
	}

	url := c.endpoint(name)
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, &Error{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "token "+c.config.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Type: ErrTypeTimeout, Message: "request to " + name + " timed out", Cause: err}
		}
		return nil, &Error{Type: ErrTypeConnection, Message: "failed to reach " + url, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Type: ErrTypeConnection, Message: "failed to read response", Cause: err}
	}
	c.logger.Debug("gateway round trip", "endpoint", name, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, body)
	}
	return body, nil
}

// statusError builds the error for a non-2xx response.
func statusError(resp *http.Response, body []byte) *Error {
	msg := http.StatusText(resp.StatusCode)
	if msg == "" {
		msg = resp.Status
	}
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		msg = eb.Message
	}
	return &Error{Type: ErrTypeStatus, Status: resp.StatusCode, Message: msg}
}
