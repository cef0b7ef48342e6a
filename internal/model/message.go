// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/nbassist/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry of the conversation history.
// Values are treated as immutable after construction; helpers return copies.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`
	HasCode bool   `json:"hasCode,omitempty"`

	// Provenance (assistant messages)
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`

	// Error marks assistant messages that report a failed request.
	Error bool `json:"error,omitempty"`
}

// NewMessage creates a message with a time-ordered ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        newID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewSystemMessage creates a system notice.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewAssistantMessage creates an assistant reply with its provenance.
func NewAssistantMessage(content string, hasCode bool, model, provider string) Message {
	m := NewMessage(RoleAssistant, content)
	m.HasCode = hasCode
	m.Model = model
	m.Provider = provider
	return m
}

// NewErrorMessage creates an assistant message that reports a failure.
func NewErrorMessage(content string) Message {
	m := NewMessage(RoleAssistant, content)
	m.Error = true
	return m
}

// Preview returns the content cut to maxLen runes, ending in "..." when cut.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Source returns "provider/model" for assistant replies, or "" when unknown.
func (m Message) Source() string {
	switch {
	case m.Provider != "" && m.Model != "":
		return m.Provider + "/" + m.Model
	case m.Provider != "":
		return m.Provider
	default:
		return m.Model
	}
}

// newID returns a UUIDv7 so IDs sort in creation order. Falls back to v4 if
// the clock source fails.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
