// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jeranaias/nbassist/internal/gateway"
	"github.com/jeranaias/nbassist/internal/offline"
)

// Backend IDs as sent in llm_type.
const (
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendGemini    = "gemini"
	BackendOllama    = "ollama"
)

const (
	fmtKeyMissing     = "Error: %s API key is not set or is invalid. Please provide a valid API key in the settings."
	fmtFixKeyMissing  = "# Error: %s API key is not set or is invalid. Please provide a valid API key in the settings.\n%s"
	fmtGenerateFailed = "Error generating response: %v"
	fmtFixFailed      = "# Error fixing code: %v\n%s"
	fmtChatFallback   = "[Note: Using OpenAI as fallback due to issues with %s]\n\n%s"
	fmtFixFallback    = "# Note: Using OpenAI as fallback due to issues with %s\n%s"
	fmtBlocked        = "Error: %s is not available: %v."
	fmtFixBlocked     = "# Error: %s is not available: %v.\n%s"

	fixErrorPrefix = "# Error"

	// ollamaCatalogTimeout bounds the model refresh done for GET config.
	ollamaCatalogTimeout = 5 * time.Second

	DefaultChatMaxTokens = 4000
	DefaultFixMaxTokens  = 2000
)

// backendInfo is the static description of a known backend.
type backendInfo struct {
	descriptor gateway.BackendDescriptor
	provider   string // name reported in replies
	keyLabel   string // name used in missing-key messages
}

// Catalog returns the built-in backend list served by GET config.
func Catalog() []gateway.BackendDescriptor {
	out := make([]gateway.BackendDescriptor, len(catalog))
	for i, b := range catalog {
		out[i] = b.descriptor
		out[i].Models = append([]gateway.ModelInfo(nil), b.descriptor.Models...)
	}
	return out
}

var catalog = []backendInfo{
	{
		descriptor: gateway.BackendDescriptor{
			ID:   BackendOpenAI,
			Name: "OpenAI",
			Models: []gateway.ModelInfo{
				{ID: "gpt-4o", Name: "GPT-4o"},
				{ID: "gpt-4-turbo", Name: "GPT-4 Turbo"},
				{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo"},
			},
			DefaultModel: "gpt-4o",
		},
		provider: "OpenAI",
		keyLabel: "OpenAI",
	},
	{
		descriptor: gateway.BackendDescriptor{
			ID:   BackendAnthropic,
			Name: "Anthropic",
			Models: []gateway.ModelInfo{
				{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet"},
				{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus"},
				{ID: "claude-3-sonnet-20240229", Name: "Claude 3 Sonnet"},
				{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku"},
			},
			DefaultModel: "claude-3-5-sonnet-20241022",
		},
		provider: "Anthropic",
		keyLabel: "Anthropic",
	},
	{
		descriptor: gateway.BackendDescriptor{
			ID:   BackendGemini,
			Name: "Google Gemini",
			Models: []gateway.ModelInfo{
				{ID: "gemini-pro", Name: "Gemini Pro"},
				{ID: "gemini-ultra", Name: "Gemini Ultra"},
			},
			DefaultModel: "gemini-pro",
		},
		provider: "Google Gemini",
		keyLabel: "Google",
	},
	{
		descriptor: gateway.BackendDescriptor{
			ID:   BackendOllama,
			Name: "Ollama (Local)",
			Models: []gateway.ModelInfo{
				{ID: "llama3", Name: "Llama 3"},
				{ID: "mistral", Name: "Mistral"},
				{ID: "codellama", Name: "Code Llama"},
			},
			DefaultModel: "llama3",
			Local:        true,
		},
		provider: "Ollama",
		keyLabel: "Ollama",
	},
}

func lookup(id string) (backendInfo, bool) {
	for _, b := range catalog {
		if b.descriptor.ID == id {
			return b, true
		}
	}
	return backendInfo{}, false
}

// =============================================================================
// SERVICE
// =============================================================================

// Options configures a Service.
type Options struct {
	// Providers maps backend IDs to their provider. A known backend with no
	// provider behaves as one without credentials.
	Providers map[string]Provider

	// LocalModels refreshes the ollama model list for Backends. Optional.
	LocalModels ModelLister

	// Policy restricts the service to local backends when LocalOnly is set.
	Policy offline.Policy

	ChatTemperature float64
	FixTemperature  float64
	ChatMaxTokens   int
	FixMaxTokens    int

	Logger *slog.Logger
}

// Service answers chat and fix requests on behalf of the HTTP server.
type Service struct {
	providers map[string]Provider
	local     ModelLister
	opts      Options
	logger    *slog.Logger
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	if opts.ChatMaxTokens <= 0 {
		opts.ChatMaxTokens = DefaultChatMaxTokens
	}
	if opts.FixMaxTokens <= 0 {
		opts.FixMaxTokens = DefaultFixMaxTokens
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	providers := make(map[string]Provider, len(opts.Providers))
	for id, p := range opts.Providers {
		providers[id] = p
	}
	return &Service{
		providers: providers,
		local:     opts.LocalModels,
		opts:      opts,
		logger:    logger.With("component", "providers"),
	}
}

// Backends returns the backend catalog. When a local model lister is set and
// reachable, the ollama entry lists the installed models instead of the
// built-in ones.
func (s *Service) Backends(ctx context.Context) []gateway.BackendDescriptor {
	backends := s.opts.Policy.Filter(Catalog())
	if s.local == nil {
		return backends
	}

	ctx, cancel := context.WithTimeout(ctx, ollamaCatalogTimeout)
	defer cancel()
	installed, err := s.local.ListModels(ctx)
	if err != nil {
		s.logger.Debug("local models unavailable", "error", err)
		return backends
	}
	if len(installed) == 0 {
		return backends
	}

	models := make([]gateway.ModelInfo, len(installed))
	for i, m := range installed {
		models[i] = gateway.ModelInfo{ID: m.Name, Name: m.Name}
	}
	for i := range backends {
		if backends[i].ID == BackendOllama {
			backends[i].Models = models
		}
	}
	return backends
}

// resolve maps llm_type to a known backend; unknown types are served by
// openai, or by ollama in local-only mode.
func (s *Service) resolve(llmType string) backendInfo {
	if b, ok := lookup(llmType); ok {
		return b
	}
	def := BackendOpenAI
	if s.opts.Policy.LocalOnly {
		def = BackendOllama
	}
	b, _ := lookup(def)
	return b
}

// canFallback reports whether a failure on b may be retried with openai.
func (s *Service) canFallback(b backendInfo) bool {
	return b.descriptor.ID != BackendOpenAI && !s.opts.Policy.LocalOnly
}

// model picks the requested model when it was requested for this backend,
// else the backend default.
func model(b backendInfo, llmType, requested string) string {
	if requested == "" || llmType != b.descriptor.ID {
		return b.descriptor.DefaultModel
	}
	if b.descriptor.Local || b.descriptor.HasModel(requested) {
		return requested
	}
	return b.descriptor.DefaultModel
}

// =============================================================================
// GENERATE
// =============================================================================

// Generate answers a chat request. A failing non-openai backend is retried
// once with openai; when that succeeds its reply is returned with a note.
func (s *Service) Generate(ctx context.Context, req gateway.GenerateRequest) gateway.GenerateResponse {
	b := s.resolve(req.Backend)
	resp := s.generate(ctx, b, model(b, req.Backend, req.Model), req)
	if !s.canFallback(b) || !resp.Error {
		return resp
	}

	s.logger.Info("primary backend failed, falling back to openai", "backend", b.descriptor.ID)
	fb, _ := lookup(BackendOpenAI)
	fallback := s.generate(ctx, fb, fb.descriptor.DefaultModel, req)
	if fallback.Error {
		return resp
	}
	fallback.Content = fmt.Sprintf(fmtChatFallback, req.Backend, fallback.Content)
	return fallback
}

func (s *Service) generate(ctx context.Context, b backendInfo, modelID string, req gateway.GenerateRequest) gateway.GenerateResponse {
	resp := gateway.GenerateResponse{Model: modelID, Provider: b.provider}

	if err := s.opts.Policy.AllowBackend(b.descriptor); err != nil {
		resp.Content = fmt.Sprintf(fmtBlocked, b.provider, err)
		resp.Error = true
		return resp
	}

	p := s.providers[b.descriptor.ID]
	if p == nil || !p.Configured() {
		resp.Content = fmt.Sprintf(fmtKeyMissing, b.keyLabel)
		resp.Error = true
		return resp
	}

	msgs := make([]Message, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, Message{
		Role:    "user",
		Content: ChatPrompt(FormatNotebookContext(req.NotebookContent), req.Prompt),
	})

	start := time.Now()
	content, err := p.Complete(ctx, Request{
		Model:       modelID,
		System:      ChatSystemPrompt,
		Messages:    msgs,
		Temperature: s.opts.ChatTemperature,
		MaxTokens:   s.opts.ChatMaxTokens,
	})
	if err != nil {
		s.logger.Warn("generate failed", "backend", b.descriptor.ID, "model", modelID, "error", err)
		resp.Content = fmt.Sprintf(fmtGenerateFailed, err)
		resp.Error = true
		return resp
	}
	s.logger.Debug("generate complete", "backend", b.descriptor.ID, "model", modelID,
		"duration", time.Since(start), "chars", len(content))

	resp.Content = content
	resp.HasCode = HasCode(content)
	return resp
}

// =============================================================================
// FIX
// =============================================================================

// Fix repairs code given its errors. Failures come back as the original code
// behind a "# Error" comment; on a non-openai backend such a result is
// retried once with openai.
func (s *Service) Fix(ctx context.Context, req gateway.FixRequest) gateway.FixResponse {
	b := s.resolve(req.Backend)
	fixed := s.fix(ctx, b, model(b, req.Backend, req.Model), req)
	if !s.canFallback(b) || !strings.HasPrefix(fixed, fixErrorPrefix) {
		return gateway.FixResponse{FixedCode: fixed}
	}

	s.logger.Info("primary backend fix failed, falling back to openai", "backend", b.descriptor.ID)
	fb, _ := lookup(BackendOpenAI)
	fallback := s.fix(ctx, fb, fb.descriptor.DefaultModel, req)
	if strings.HasPrefix(fallback, fixErrorPrefix) {
		return gateway.FixResponse{FixedCode: fixed}
	}
	return gateway.FixResponse{FixedCode: fmt.Sprintf(fmtFixFallback, req.Backend, fallback)}
}

func (s *Service) fix(ctx context.Context, b backendInfo, modelID string, req gateway.FixRequest) string {
	if err := s.opts.Policy.AllowBackend(b.descriptor); err != nil {
		return fmt.Sprintf(fmtFixBlocked, b.provider, err, req.Code)
	}

	p := s.providers[b.descriptor.ID]
	if p == nil || !p.Configured() {
		return fmt.Sprintf(fmtFixKeyMissing, b.keyLabel, req.Code)
	}

	content, err := p.Complete(ctx, Request{
		Model:       modelID,
		System:      FixSystemPrompt,
		Messages:    []Message{{Role: "user", Content: FixPrompt(req.Code, req.Errors)}},
		Temperature: s.opts.FixTemperature,
		MaxTokens:   s.opts.FixMaxTokens,
	})
	if err != nil {
		s.logger.Warn("fix failed", "backend", b.descriptor.ID, "model", modelID, "error", err)
		return fmt.Sprintf(fmtFixFailed, err, req.Code)
	}
	return StripFences(content)
}
