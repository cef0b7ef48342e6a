// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the process logger.
//
// Every component takes a *slog.Logger in its constructor. New returns one
// backed by a text or JSON handler that replaces credential-bearing
// attributes with a fixed marker, so a stray "api_key" or "token" attribute
// never reaches the log output.
package logging
