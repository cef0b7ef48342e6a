// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches on the error type, so errors.Is(err, ErrNotRunning) holds for
// any not-running error regardless of message or cause.
func (e *ClientError) Is(target error) bool {
	var t *ClientError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// ErrorType categorizes Ollama errors.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
)

var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// DefaultBaseURL is where a local Ollama listens.
const DefaultBaseURL = "http://127.0.0.1:11434"

// ClientConfig holds configuration for the Ollama client.
type ClientConfig struct {
	BaseURL string

	// Timeout bounds each request. Local generation can be slow.
	Timeout time.Duration

	// DefaultModel is used when Chat is called without a model.
	DefaultModel string

	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:      DefaultBaseURL,
		Timeout:      120 * time.Second,
		DefaultModel: "llama3",
	}
}

// Client is an HTTP client for the Ollama API.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a client with the default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client, filling zero fields with defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	d := DefaultConfig()
	if config == nil {
		config = d
	}
	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.BaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = d.DefaultModel
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{config: &cfg, httpClient: hc}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// CheckRunning reports whether the server answers at its root.
func (c *Client) CheckRunning(ctx context.Context) error {
	if err := c.roundTrip(ctx, http.MethodGet, "/", nil, nil); err != nil {
		return err
	}
	return nil
}

// ListModels returns the models pulled on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var result ListModelsResponse
	if err := c.roundTrip(ctx, http.MethodGet, "/api/tags", nil, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// Chat sends a non-streaming chat request. opts may be nil; an empty model
// selects the configured default.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, opts *Options) (*ChatResponse, error) {
	if model == "" {
		model = c.config.DefaultModel
	}
	in := ChatRequest{Model: model, Messages: messages, Options: opts}
	var result ChatResponse
	if err := c.roundTrip(ctx, http.MethodPost, "/api/chat", in, &result); err != nil {
		var ce *ClientError
		if errors.As(err, &ce) && ce.Type == ErrTypeModelNotFound {
			ce.Message = "model not found: " + model
		}
		return nil, err
	}
	return &result, nil
}

// roundTrip sends in (when non-nil) as JSON and decodes a 200 body into out
// (when non-nil).
func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// statusError prefers the {"error": ...} body Ollama sends over the status.
func statusError(path string, resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound && path == "/api/chat" {
		return &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
	}
	var oe OllamaError
	if err := json.NewDecoder(resp.Body).Decode(&oe); err == nil && oe.Error != "" {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: oe.Error}
	}
	return &ClientError{Type: ErrTypeInvalidResponse, Message: strings.TrimPrefix(path, "/") + ": unexpected status " + resp.Status}
}

// transportError maps a failed round trip to a timeout or not-running error.
func transportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	case errors.Is(err, context.Canceled):
		return err
	}
	return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running", Cause: err}
}
