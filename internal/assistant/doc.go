// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant is the conversation and error-remediation engine.
//
// An Engine owns the message history and an Idle/Busy status. It turns the
// three user flows into backend requests and appends their results:
//
//   - SendMessage: user message, then the backend's reply or a diagnostic
//   - FixLastError: fix request for the last erroring unit
//   - FixAllErrors: one fix request per erroring unit, run concurrently
//
// Only one flow runs at a time. Starting a flow while another is outstanding
// returns ErrBusy without touching the history. The Busy to Idle transition
// is deferred, so it happens whatever the flow's outcome.
//
// The engine never edits the document itself during a flow. Applying a fix,
// appending a unit or copying text are separate calls (ApplyCode,
// AppendCode, CopyCode) made by the presentation layer.
//
// # Usage
//
//	eng, err := assistant.New(assistant.Options{
//	    Gateway:  gateway.NewClient(),
//	    Settings: mgr,
//	    Document: nb,
//	})
//	cancel := eng.Subscribe(func(s assistant.Snapshot) { render(s) })
//	defer cancel()
//	_ = eng.RefreshBackends(ctx)
//	err = eng.SendMessage(ctx, "Why is cell 2 slow?")
package assistant
