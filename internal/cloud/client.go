// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxRetries is the default number of attempts for transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay caps a single backoff delay.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024
)

// Error variables for common API failures. APIError wraps one of these when
// the status code maps to it.
var (
	ErrNotConfigured = errors.New("API key not configured")
	ErrAuthFailed    = errors.New("authentication failed")
	ErrRateLimited   = errors.New("rate limited")
	ErrModelNotFound = errors.New("model not found")
	ErrEmptyResponse = errors.New("empty response content")
)

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider string
	Status   int
	Type     string
	Message  string
	kind     error
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s error [%s] (HTTP %d): %s", e.Provider, e.Type, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error (HTTP %d): %s", e.Provider, e.Status, e.Message)
}

// Unwrap exposes the sentinel matching the status, if any.
func (e *APIError) Unwrap() error {
	return e.kind
}

// ChatMessage is a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

// Request is a provider-neutral completion request.
type Request struct {
	Model    string
	System   string
	Messages []ChatMessage
	// Temperature is omitted from the wire request when zero.
	Temperature float64
	MaxTokens   int
}

// Options configures a client.
type Options struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// base holds what both wire formats share.
type base struct {
	provider   string
	apiKey     string
	baseURL    string
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger
}

func newBase(provider, defaultURL string, opts Options) base {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		provider:   provider,
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		maxRetries: opts.MaxRetries,
		httpClient: hc,
		logger:     logger.With("component", "cloud", "provider", provider),
	}
}

// IsConfigured reports whether an API key is set.
func (b *base) IsConfigured() bool {
	return b.apiKey != ""
}

// KeyFingerprint identifies the API key in logs without exposing it.
func (b *base) KeyFingerprint() string {
	if b.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(b.apiKey))
	return hex.EncodeToString(h[:4])
}

// post sends payload with retries on rate limiting and 5xx responses and
// returns the 200 body. setHeaders adds auth headers to each attempt.
func (b *base) post(ctx context.Context, path string, payload any, setHeaders func(*http.Request),
	parseError func(status int, body []byte) *APIError) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	url := b.baseURL + path

	var lastErr error
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}

		respBody, err := b.once(ctx, url, body, setHeaders, parseError)
		if err == nil {
			return respBody, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
		b.logger.Debug("retrying request", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (b *base) once(ctx context.Context, url string, body []byte, setHeaders func(*http.Request),
	parseError func(status int, body []byte) *APIError) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "nbassist/1.0")
	setHeaders(req)

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Headers and bodies are never logged; they carry keys and notebook code.
	b.logger.Debug("api response", "path", req.URL.Path, "status", resp.StatusCode,
		"duration", time.Since(start), "key_fingerprint", b.KeyFingerprint())

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := parseError(resp.StatusCode, respBody)
		apiErr.Provider = b.provider
		apiErr.Status = resp.StatusCode
		apiErr.kind = statusKind(resp.StatusCode)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}
	return respBody, nil
}

// readResponse reads the body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

func statusKind(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// isRetryable reports whether err is a rate limit or server error.
func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && apiErr.Status < 600
	}
	return false
}

// calculateBackoff returns the delay before the given attempt.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// normalizeRole maps anything but assistant to user.
func normalizeRole(role string) string {
	if role == "assistant" {
		return role
	}
	return "user"
}
