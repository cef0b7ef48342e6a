// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across nbassist.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TruncateWidth: Terminal-cell aware truncation for the panel
//   - FirstLine: First non-empty line of a block of text
//
// # Usage
//
//	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
//	    return err
//	}
//	label := util.TruncateWidth(msg.Content, 40)
package util
