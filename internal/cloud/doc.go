// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides clients for hosted LLM chat APIs.
//
// Two wire formats are supported: the OpenAI chat completions API (also
// served by most OpenAI-compatible gateways) and the Anthropic messages
// API. Both clients share the same retry policy, response size limit and
// error type.
//
// # Usage
//
//	c := cloud.NewOpenAIClient(cloud.Options{APIKey: key})
//	text, err := c.Complete(ctx, cloud.Request{
//	    Model:    "gpt-4o",
//	    System:   "You are terse.",
//	    Messages: []cloud.ChatMessage{cloud.NewUserMessage("Hello")},
//	})
package cloud
