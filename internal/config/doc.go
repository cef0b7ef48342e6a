// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for nbassist.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (NBASSIST_*, OPENAI_API_KEY, ANTHROPIC_API_KEY,
//     GEMINI_API_KEY, OLLAMA_HOST)
//   - ~/.nbassist/config.toml
//   - ~/.nbassist/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := gateway.NewClientWithConfig(&gateway.ClientConfig{
//	    BaseURL: cfg.Gateway.URL,
//	    Timeout: cfg.Gateway.Timeout(),
//	})
package config
