// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import "maps"

// Persisted setting keys.
const (
	KeyCredentials    = "apiKeys"
	KeySelectedModels = "selectedModels"
	KeyActiveBackend  = "selectedLLM"
)

// DefaultBackend is active until the user picks another one.
const DefaultBackend = "openai"

// Selection is the user's backend choice. Missing map entries mean "use the
// backend's default model" and "no credential".
type Selection struct {
	ActiveBackendID     string
	ModelByBackend      map[string]string
	CredentialByBackend map[string]string
}

// DefaultSelection returns the selection used before anything is loaded.
func DefaultSelection() Selection {
	return Selection{
		ActiveBackendID: DefaultBackend,
		ModelByBackend: map[string]string{
			"openai":    "gpt-4o",
			"anthropic": "claude-3-5-sonnet-20241022",
			"gemini":    "gemini-pro",
			"ollama":    "llama3",
		},
		CredentialByBackend: map[string]string{
			"openai":    "",
			"anthropic": "",
			"gemini":    "",
		},
	}
}

// Clone returns a deep copy.
func (s Selection) Clone() Selection {
	out := Selection{ActiveBackendID: s.ActiveBackendID}
	out.ModelByBackend = maps.Clone(s.ModelByBackend)
	if out.ModelByBackend == nil {
		out.ModelByBackend = map[string]string{}
	}
	out.CredentialByBackend = maps.Clone(s.CredentialByBackend)
	if out.CredentialByBackend == nil {
		out.CredentialByBackend = map[string]string{}
	}
	return out
}

// Model returns the chosen model for backend, or fallback when none is set.
func (s Selection) Model(backend, fallback string) string {
	if m := s.ModelByBackend[backend]; m != "" {
		return m
	}
	return fallback
}

// Credential returns the credential for backend, or "".
func (s Selection) Credential(backend string) string {
	return s.CredentialByBackend[backend]
}

// ConfiguredCredentials returns the IDs of backends with a non-empty
// credential. Used for logging without exposing values.
func (s Selection) ConfiguredCredentials() []string {
	var ids []string
	for id, v := range s.CredentialByBackend {
		if v != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
