// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the color palette and Lip Gloss styles of the
terminal assistant panel.

# Colors (colors.go)

All palette entries are lipgloss.AdaptiveColor values so one palette serves
dark and light terminals:

	Purple  - assistant messages, selection
	Cyan    - user messages, info
	Emerald - success, added diff lines
	Amber   - warnings, busy status, changed diff lines
	Rose    - errors, removed diff lines

Status messages always carry a shape indicator ([OK], [X], [!], [i]) next to
the color so they stay readable without color.

# Theme (theme.go)

A Theme is built once per panel:

	theme := styles.NewTheme(cfg.UI.Theme) // "dark", "light" or "auto"
	header := theme.Header.Render("nbassist")

GlamourStyle names the glamour standard style matching the resolved
background so prose and chrome agree.
*/
package styles
