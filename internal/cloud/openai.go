// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DefaultOpenAIURL is the base URL of the OpenAI API.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	base
}

// NewOpenAIClient creates a client. An empty API key yields a client whose
// Complete returns ErrNotConfigured.
func NewOpenAIClient(opts Options) *OpenAIClient {
	return &OpenAIClient{base: newBase("OpenAI", DefaultOpenAIURL, opts)}
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one chat completion and returns the first choice's text.
// The system prompt, when set, is sent as the leading system message.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	msgs := make([]ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, ChatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		role := m.Role
		if role != "system" {
			role = normalizeRole(role)
		}
		msgs = append(msgs, ChatMessage{Role: role, Content: m.Content})
	}

	body, err := c.post(ctx, "/chat/completions", openAIRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, c.setHeaders, parseOpenAIError)
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func parseOpenAIError(_ int, body []byte) *APIError {
	var e openAIError
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return &APIError{Type: e.Error.Type, Message: e.Error.Message}
	}
	return &APIError{Message: truncateBody(body)}
}

// truncateBody keeps unparseable error bodies short.
func truncateBody(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
