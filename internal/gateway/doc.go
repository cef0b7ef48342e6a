// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway is the typed HTTP client for the assistant backend.
//
// The backend exposes three JSON endpoints under "<base>/ai-assistant/":
//
//	GET  config     -> {"available_models": [BackendDescriptor...]}
//	POST llm        -> {"content", "hasCode", "model", "provider"}
//	POST fix-error  -> {"fixed_code"}
//
// Each call is a single round trip. Failures are returned as *Error with a
// human-readable Message: the "message" field of a JSON error body when
// present, otherwise the HTTP status text.
//
// # Usage
//
//	c := gateway.NewClientWithConfig(&gateway.ClientConfig{BaseURL: "http://127.0.0.1:8888/"})
//	backends, err := c.FetchConfig(ctx)
//	resp, err := c.Generate(ctx, gateway.GenerateRequest{Backend: "openai", Prompt: "hi"})
package gateway
