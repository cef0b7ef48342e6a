// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the assistant conversation.
//
// Messages are immutable once created and the History that holds them is
// append-only: nothing in the application edits or removes a message after it
// has been appended.
//
// # Key Types
//
//   - Role: Message role enumeration (user, assistant, system)
//   - Message: Single message with role, content, timestamp and provenance
//   - History: Concurrency-safe, append-only ordered list of messages
//
// # Usage
//
//	h := model.NewHistory()
//	h.Append(model.NewUserMessage("why does cell 3 fail?"))
//	for _, m := range h.Messages() {
//	    fmt.Println(m.Role.DisplayName(), m.Content)
//	}
package model
