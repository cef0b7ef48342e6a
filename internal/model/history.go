// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "sync"

// =============================================================================
// HISTORY TYPE
// =============================================================================

// History is the ordered, append-only list of messages of one session.
// It is safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	messages []Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{messages: make([]Message, 0, 16)}
}

// Append adds messages to the end of the history.
func (h *History) Append(msgs ...Message) {
	h.mu.Lock()
	h.messages = append(h.messages, msgs...)
	h.mu.Unlock()
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Messages returns a copy of the messages in insertion order.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Last returns the most recent message.
func (h *History) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// LastAssistant returns the most recent non-error assistant message.
func (h *History) LastAssistant() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.messages) - 1; i >= 0; i-- {
		if m := h.messages[i]; m.Role == RoleAssistant && !m.Error {
			return m, true
		}
	}
	return Message{}, false
}

