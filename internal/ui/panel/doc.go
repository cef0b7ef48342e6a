// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package panel is the terminal rendering of the assistant panel.

The panel is a Bubble Tea model over an assistant engine. It never holds
conversation state of its own: every engine change arrives through
Subscribe and the panel re-reads State() to render.

Layout, top to bottom:

	header      product name, active backend and model
	viewport    the conversation; code blocks are numbered and highlighted
	input       single-line prompt
	status      Ready or a spinner while a flow runs, plus the last notice

Tab moves focus between the input and the conversation. With the
conversation focused, up/down select a code block, and a, i, y and d apply
it to the active cell, insert it below, copy it, or compare it with the
active cell side by side.
*/
package panel
