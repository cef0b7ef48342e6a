// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import "github.com/jeranaias/nbassist/internal/notebook"

// =============================================================================
// BACKEND DESCRIPTORS
// =============================================================================

// ModelInfo is one selectable model of a backend.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BackendDescriptor describes one LLM backend offered by the server.
type BackendDescriptor struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Models       []ModelInfo `json:"models"`
	DefaultModel string      `json:"defaultModel"`
	Local        bool        `json:"local"`
}

// DisplayName returns the backend name, or its ID when unnamed.
func (b BackendDescriptor) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return b.ID
}

// HasModel reports whether id is one of the backend's models.
func (b BackendDescriptor) HasModel(id string) bool {
	for _, m := range b.Models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// FindBackend returns the descriptor with the given ID.
func FindBackend(backends []BackendDescriptor, id string) (BackendDescriptor, bool) {
	for _, b := range backends {
		if b.ID == id {
			return b, true
		}
	}
	return BackendDescriptor{}, false
}

// ConfigResponse is the body of GET config.
type ConfigResponse struct {
	AvailableModels []BackendDescriptor `json:"available_models"`
}

// =============================================================================
// GENERATE
// =============================================================================

// ChatMessage is one prior conversation turn forwarded to the backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest is the body of POST llm. Model is optional; the server uses
// the backend's default model when it is empty or unknown.
type GenerateRequest struct {
	Backend         string           `json:"llm_type"`
	Model           string           `json:"model,omitempty"`
	Prompt          string           `json:"prompt"`
	Messages        []ChatMessage    `json:"messages"`
	NotebookContent notebook.Content `json:"notebook_content"`
}

// GenerateResponse is the body returned by POST llm. Error is set when the
// backend reports a provider failure in-band.
type GenerateResponse struct {
	Content  string `json:"content"`
	HasCode  bool   `json:"hasCode"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Error    bool   `json:"error,omitempty"`
}

// =============================================================================
// FIX ERROR
// =============================================================================

// ErrorDetail is one error message attached to a fix request.
type ErrorDetail struct {
	Message string `json:"message"`
}

// FixRequest is the body of POST fix-error.
type FixRequest struct {
	Backend string        `json:"llm_type"`
	Model   string        `json:"model,omitempty"`
	Code    string        `json:"code"`
	Errors  []ErrorDetail `json:"errors"`
}

// FixResponse is the body returned by POST fix-error.
type FixResponse struct {
	FixedCode string `json:"fixed_code"`
}

// ErrorBody is the JSON body of a non-2xx response.
type ErrorBody struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
