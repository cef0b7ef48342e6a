// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the panel's key bindings.
type KeyMap struct {
	// Global
	Send         key.Binding
	FixLast      key.Binding
	FixAll       key.Binding
	CycleBackend key.Binding
	CycleModel   key.Binding
	SwitchFocus  key.Binding
	Quit         key.Binding

	// Conversation focus
	PrevBlock key.Binding
	NextBlock key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Apply     key.Binding
	Insert    key.Binding
	Copy      key.Binding
	Diff      key.Binding
	Help      key.Binding
	Back      key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		FixLast: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("C-f", "fix last error"),
		),
		FixAll: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "fix all errors"),
		),
		CycleBackend: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("C-b", "next backend"),
		),
		CycleModel: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "next model"),
		),
		SwitchFocus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "input/conversation"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "quit"),
		),
		PrevBlock: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous code block"),
		),
		NextBlock: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next code block"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Apply: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "apply to cell"),
		),
		Insert: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "insert below"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y", "c"),
			key.WithHelp("y", "copy"),
		),
		Diff: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "diff with cell"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "back"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.FixLast, k.FixAll, k.SwitchFocus, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.FixLast, k.FixAll, k.Quit},
		{k.CycleBackend, k.CycleModel, k.SwitchFocus, k.Back},
		{k.PrevBlock, k.NextBlock, k.PageUp, k.PageDown},
		{k.Apply, k.Insert, k.Copy, k.Diff},
	}
}
