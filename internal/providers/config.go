// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jeranaias/nbassist/internal/cloud"
	"github.com/jeranaias/nbassist/internal/config"
	"github.com/jeranaias/nbassist/internal/offline"
	"github.com/jeranaias/nbassist/internal/ollama"
)

// FromConfig builds a Service with every backend wired from application
// configuration. Backends without credentials are still registered and
// answer with the missing-key message. In local-only mode the ollama URL
// must be a loopback address.
func FromConfig(ctx context.Context, cfg config.ProvidersConfig, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	policy := offline.Policy{LocalOnly: cfg.LocalOnly}
	if cfg.OllamaURL != "" {
		if err := policy.ValidateURL(cfg.OllamaURL); err != nil {
			return nil, fmt.Errorf("providers.ollama_url: %w", err)
		}
	}
	timeout := cfg.Timeout()
	httpClient := &http.Client{Timeout: timeout}

	gemini, err := NewGemini(ctx, GeminiOptions{APIKey: cfg.GeminiKey, HTTPClient: httpClient})
	if err != nil {
		return nil, err
	}

	oc := ollama.DefaultConfig()
	oc.BaseURL = cfg.OllamaURL
	oc.Timeout = timeout
	local := NewOllama(ollama.NewClientWithConfig(oc))

	return NewService(Options{
		Providers: map[string]Provider{
			BackendOpenAI: NewOpenAI(cloud.Options{
				APIKey: cfg.OpenAIKey, BaseURL: cfg.OpenAIURL, Timeout: timeout, Logger: logger,
			}),
			BackendAnthropic: NewAnthropic(cloud.Options{
				APIKey: cfg.AnthropicKey, BaseURL: cfg.AnthropicURL, Timeout: timeout, Logger: logger,
			}),
			BackendGemini: gemini,
			BackendOllama: local,
		},
		LocalModels:     local,
		Policy:          policy,
		ChatTemperature: cfg.ChatTemperature,
		FixTemperature:  cfg.FixTemperature,
		ChatMaxTokens:   cfg.MaxTokens,
		Logger:          logger,
	}), nil
}
