// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for a local Ollama server.
//
// Only the non-streaming chat endpoint and the model listing are used: the
// backend service answers each request with a single complete reply, and
// the config endpoint lists whatever models the local server has pulled.
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL: "http://localhost:11434",
//	})
//	resp, err := client.Chat(ctx, "llama3", []ollama.Message{
//	    ollama.NewUserMessage("Hello"),
//	}, nil)
package ollama
