// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings holds the user's backend selection and persists it.
//
// The selection is three values: the active backend ID, the chosen model per
// backend and the credential per backend. Manager keeps them in memory, loads
// them from a ConfigStore at startup and writes all three keys back after
// every change. Writes happen in the background and never fail the caller;
// failures are logged without the credential values.
//
// # Key Types
//
//   - Selection: The in-memory selection value
//   - Manager: Owner of the selection with load/persist behaviour
//   - ConfigStore: Key/value persistence (MemoryStore, FileStore, SQLiteStore)
//   - Sealer: Optional AES-GCM sealing of credentials at rest
//
// # Usage
//
//	store := settings.NewFileStore(path)
//	mgr := settings.NewManager(settings.Options{Store: store, Logger: logger})
//	mgr.Load(ctx)
//	mgr.SetModel("anthropic", "claude-3-haiku-20240307")
//	defer mgr.Close(ctx)
package settings
