// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeDark  = "dark"
	ModeLight = "light"
	ModeAuto  = "auto"
)

// Theme holds the styled components of the panel.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// GlamourStyle is the glamour standard style for prose ("dark" or "light").
	GlamourStyle string

	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderMeta  lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	ErrorLabel     lipgloss.Style

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	SystemBubble    lipgloss.Style
	ErrorBubble     lipgloss.Style

	MessageMeta lipgloss.Style

	// ==========================================================================
	// CODE BLOCKS
	// ==========================================================================

	CodeBlock         lipgloss.Style
	CodeBlockSelected lipgloss.Style
	CodeBadge         lipgloss.Style
	CodeLineNumber    lipgloss.Style
	ActionHint        lipgloss.Style
	ActionKey         lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	Input        lipgloss.Style
	InputFocused lipgloss.Style
	StatusBar    lipgloss.Style
	StatusIdle   lipgloss.Style
	StatusBusy   lipgloss.Style
	StatusNotice lipgloss.Style
	Spinner      lipgloss.Style
	Help         lipgloss.Style

	// ==========================================================================
	// DIFF
	// ==========================================================================

	DiffTitle   lipgloss.Style
	DiffHeader  lipgloss.Style
	DiffSame    lipgloss.Style
	DiffAdded   lipgloss.Style
	DiffRemoved lipgloss.Style
	DiffChanged lipgloss.Style
	DiffLineNum lipgloss.Style
}

// NewTheme creates a theme for mode ("dark", "light" or "auto"). Unknown
// modes behave like "auto".
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case ModeDark:
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case ModeLight:
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
		GlamourStyle: ModeLight,
	}
	if isDark {
		t.GlamourStyle = ModeDark
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.UserLabel = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.AssistantLabel = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.SystemLabel = lipgloss.NewStyle().Foreground(TextSecondary).Bold(true)
	t.ErrorLabel = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	bubble := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		PaddingLeft(1)
	t.UserBubble = bubble.BorderForeground(Cyan).Foreground(TextPrimary)
	t.AssistantBubble = bubble.BorderForeground(Purple).Foreground(TextPrimary)
	t.SystemBubble = bubble.BorderForeground(Overlay).Foreground(TextSecondary).Italic(true)
	t.ErrorBubble = bubble.BorderForeground(Rose).Foreground(Rose)

	t.MessageMeta = lipgloss.NewStyle().Foreground(TextMuted)

	t.CodeBlock = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.CodeBlockSelected = t.CodeBlock.BorderForeground(Purple)
	t.CodeBadge = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(OverlayDim).
		Padding(0, 1).
		Bold(true)
	t.CodeLineNumber = lipgloss.NewStyle().Foreground(TextMuted)
	t.ActionHint = lipgloss.NewStyle().Foreground(TextMuted)
	t.ActionKey = lipgloss.NewStyle().Foreground(Purple).Bold(true)

	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)
	t.InputFocused = t.Input.BorderForeground(Cyan)
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusIdle = lipgloss.NewStyle().Foreground(Emerald)
	t.StatusBusy = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.StatusNotice = lipgloss.NewStyle().Foreground(TextPrimary)
	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
	t.Help = lipgloss.NewStyle().Foreground(TextMuted).Padding(0, 1)

	t.DiffTitle = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.DiffHeader = lipgloss.NewStyle().Foreground(TextSecondary).Bold(true).Underline(true)
	t.DiffSame = lipgloss.NewStyle().Foreground(TextSecondary)
	t.DiffAdded = lipgloss.NewStyle().Foreground(Emerald).Background(DiffAddedBg)
	t.DiffRemoved = lipgloss.NewStyle().Foreground(Rose).Background(DiffRemovedBg)
	t.DiffChanged = lipgloss.NewStyle().Foreground(Amber).Background(DiffChangedBg)
	t.DiffLineNum = lipgloss.NewStyle().Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// LayoutMode is the responsive layout class of the current width.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// GetLayoutMode returns the layout mode for the current width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}
