// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/jeranaias/nbassist/internal/cloud"
	"github.com/jeranaias/nbassist/internal/ollama"
)

// Message is one conversation turn sent to a provider.
type Message struct {
	Role    string
	Content string
}

// Request is a provider-neutral completion request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Provider completes a conversation against one LLM backend.
type Provider interface {
	// Configured reports whether the provider has the credentials it needs.
	Configured() bool
	Complete(ctx context.Context, req Request) (string, error)
}

// ModelLister lists models installed on a local backend.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// ErrNoContent is returned when a provider answers with no text.
var ErrNoContent = errors.New("provider returned no content")

// =============================================================================
// CLOUD ADAPTERS
// =============================================================================

// OpenAI adapts cloud.OpenAIClient.
type OpenAI struct {
	client *cloud.OpenAIClient
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(opts cloud.Options) *OpenAI {
	return &OpenAI{client: cloud.NewOpenAIClient(opts)}
}

// Configured implements Provider.
func (p *OpenAI) Configured() bool { return p.client.IsConfigured() }

// Complete implements Provider.
func (p *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	return p.client.Complete(ctx, cloudRequest(req))
}

// Anthropic adapts cloud.AnthropicClient.
type Anthropic struct {
	client *cloud.AnthropicClient
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(opts cloud.Options) *Anthropic {
	return &Anthropic{client: cloud.NewAnthropicClient(opts)}
}

// Configured implements Provider.
func (p *Anthropic) Configured() bool { return p.client.IsConfigured() }

// Complete implements Provider.
func (p *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	return p.client.Complete(ctx, cloudRequest(req))
}

func cloudRequest(req Request) cloud.Request {
	msgs := make([]cloud.ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = cloud.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return cloud.Request{
		Model:       req.Model,
		System:      req.System,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

// =============================================================================
// GEMINI
// =============================================================================

// GeminiOptions configures the Gemini provider.
type GeminiOptions struct {
	APIKey string
	// BaseURL overrides the Gemini API endpoint.
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini talks to the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a Gemini provider. Without an API key the provider is
// returned unconfigured rather than failing.
func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if opts.APIKey == "" {
		return &Gemini{}, nil
	}
	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// Configured implements Provider.
func (p *Gemini) Configured() bool { return p.client != nil }

// Complete implements Provider. Assistant turns are sent with the model role;
// every other role is sent as user.
func (p *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	if p.client == nil {
		return "", cloud.ErrNotConfigured
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// =============================================================================
// OLLAMA
// =============================================================================

// Ollama adapts a local ollama.Client. It needs no credentials.
type Ollama struct {
	client *ollama.Client
}

// NewOllama creates an Ollama provider.
func NewOllama(client *ollama.Client) *Ollama {
	return &Ollama{client: client}
}

// Configured implements Provider.
func (p *Ollama) Configured() bool { return true }

// ListModels implements ModelLister.
func (p *Ollama) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// Complete implements Provider. Roles Ollama does not know are sent as user.
func (p *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]ollama.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, ollama.NewSystemMessage(req.System))
	}
	for _, m := range req.Messages {
		role := m.Role
		switch role {
		case "system", "user", "assistant":
		default:
			role = "user"
		}
		msgs = append(msgs, ollama.Message{Role: role, Content: m.Content})
	}

	var opts *ollama.Options
	if req.Temperature > 0 || req.MaxTokens > 0 {
		opts = &ollama.Options{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}
	resp, err := p.client.Chat(ctx, req.Model, msgs, opts)
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
