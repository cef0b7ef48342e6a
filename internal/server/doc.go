// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the assistant backend over HTTP.
//
// # Endpoints
//
//   - GET  /ai-assistant/config    - Backend catalog
//   - POST /ai-assistant/llm       - Chat reply for a notebook prompt
//   - POST /ai-assistant/fix-error - Corrected code for a failing cell
//   - GET  /health                 - Health check
//   - GET  /stats                  - Request counters
//
// Provider failures are answered in-band with HTTP 200 (see package
// providers). Non-2xx responses carry a JSON body with a message field.
//
// # Middleware
//
//   - Request IDs and real client IPs (chi middleware)
//   - Token authentication with constant-time comparison
//   - CORS for browser frontends on another origin
//   - Request logging through log/slog
//   - Panic recovery with a JSON 500 body
//
// # Usage
//
//	svc, _ := providers.FromConfig(ctx, cfg.Providers, logger)
//	srv := server.New(svc, server.Options{Addr: "127.0.0.1:8888", Logger: logger})
//	if err := srv.ListenAndServe(ctx); err != nil {
//		log.Fatal(err)
//	}
package server
