// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package providers implements the backend side of the assistant: it turns
// chat and fix requests into prompts, sends them to one of the supported LLM
// providers and shapes the reply the notebook panel expects.
//
// # Backends
//
// Four backends are known, identified by the llm_type the panel sends:
//
//	openai     OpenAI-compatible chat completions (cloud.OpenAIClient)
//	anthropic  Anthropic Messages API (cloud.AnthropicClient)
//	gemini     Google Gemini via google.golang.org/genai
//	ollama     a local Ollama server (ollama.Client)
//
// Unknown types are served by openai. A failing non-openai backend is retried
// once against openai and the reply carries a note saying so.
//
// # Errors
//
// Provider failures are reported in-band: Generate returns a response with
// Error set and Fix returns the original code behind a "# Error" comment.
// Neither method returns a Go error.
package providers
