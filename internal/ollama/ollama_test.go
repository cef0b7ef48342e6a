// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessageConstructors(t *testing.T) {
	tests := []struct {
		msg  Message
		role string
	}{
		{NewUserMessage("a"), "user"},
		{NewAssistantMessage("a"), "assistant"},
		{NewSystemMessage("a"), "system"},
	}
	for _, tt := range tests {
		if tt.msg.Role != tt.role {
			t.Errorf("Role = %q, want %q", tt.msg.Role, tt.role)
		}
		if tt.msg.Content != "a" {
			t.Errorf("Content = %q", tt.msg.Content)
		}
	}
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestNewClientWithConfig_Defaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://gpu:11434/"})

	if c.BaseURL() != "http://gpu:11434" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", c.BaseURL())
	}
	if c.config.DefaultModel != "llama3" {
		t.Errorf("DefaultModel = %q, want llama3", c.config.DefaultModel)
	}
	if c.config.Timeout != 120*time.Second {
		t.Errorf("Timeout = %v", c.config.Timeout)
	}

	if NewClientWithConfig(nil).BaseURL() != DefaultBaseURL {
		t.Error("nil config should use defaults")
	}
}

// =============================================================================
// HTTP TESTS
// =============================================================================

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if req.Model != "llama3" {
			t.Errorf("model = %q, want default llama3", req.Model)
		}
		if req.Options == nil || req.Options.Temperature != 0.2 {
			t.Errorf("options = %+v", req.Options)
		}
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"hi there"},"done":true}`))
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	resp, err := c.Chat(context.Background(), "", []Message{NewUserMessage("hi")}, &Options{Temperature: 0.2})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Message.Content != "hi there" {
		t.Errorf("content = %q", resp.Message.Content)
	}
}

func TestChat_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'x' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), "x", nil, nil)
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestChat_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), "llama3", nil, nil)
	if err == nil || err.Error() != "out of memory" {
		t.Fatalf("expected server message, got %v", err)
	}
}

func TestNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url})
	if err := c.CheckRunning(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("CheckRunning: expected ErrNotRunning, got %v", err)
	}
	if _, err := c.ListModels(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("ListModels: expected ErrNotRunning, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest","size":1},{"name":"codellama:7b","size":2}]}`))
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels error: %v", err)
	}
	if len(models) != 2 || models[0].Name != "llama3:latest" || models[1].Name != "codellama:7b" {
		t.Errorf("models = %+v", models)
	}
}

func TestCheckRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Ollama is running"))
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	if err := c.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning error: %v", err)
	}
}

func TestClientError_Is(t *testing.T) {
	err := &ClientError{Type: ErrTypeTimeout, Message: "slow", Cause: context.DeadlineExceeded}
	if !errors.Is(err, ErrTimeout) {
		t.Error("expected type match")
	}
	if errors.Is(err, ErrNotRunning) {
		t.Error("different types must not match")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected cause to unwrap")
	}
}
