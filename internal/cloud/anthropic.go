// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	// DefaultAnthropicURL is the base URL of the Anthropic API.
	DefaultAnthropicURL = "https://api.anthropic.com"

	// AnthropicVersion is the API version header value.
	AnthropicVersion = "2023-06-01"

	// defaultAnthropicMaxTokens is sent when the request leaves MaxTokens
	// unset; the messages API requires it.
	defaultAnthropicMaxTokens = 4000
)

// AnthropicClient talks to the Anthropic messages API.
type AnthropicClient struct {
	base
}

// NewAnthropicClient creates a client.
func NewAnthropicClient(opts Options) *AnthropicClient {
	return &AnthropicClient{base: newBase("Anthropic", DefaultAnthropicURL, opts)}
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one message request and returns the concatenated text
// blocks. System messages inside Messages are folded into the system prompt.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	system := req.System
	msgs := make([]ChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = strings.TrimSpace(system + "\n\n" + m.Content)
			continue
		}
		msgs = append(msgs, ChatMessage{Role: normalizeRole(m.Role), Content: m.Content})
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	body, err := c.post(ctx, "/v1/messages", anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    msgs,
		Temperature: req.Temperature,
	}, c.setHeaders, parseAnthropicError)
	if err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func (c *AnthropicClient) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", AnthropicVersion)
}

func parseAnthropicError(_ int, body []byte) *APIError {
	var e anthropicError
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return &APIError{Type: e.Error.Type, Message: e.Error.Message}
	}
	return &APIError{Message: truncateBody(body)}
}
