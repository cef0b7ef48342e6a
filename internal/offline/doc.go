// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline implements local-only mode for the backend service.
//
// In local-only mode notebook content never leaves the machine: cloud
// backends are hidden from the backend list and refused when requested, the
// OpenAI fallback is skipped, and the local model server must live on a
// loopback address.
//
// # Usage
//
//	policy := offline.Policy{LocalOnly: cfg.Providers.LocalOnly}
//	if err := policy.ValidateURL(cfg.Providers.OllamaURL); err != nil {
//		return err
//	}
//	backends = policy.Filter(backends)
package offline
