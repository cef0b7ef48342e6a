// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

var (
	// Purple marks assistant messages and the selected code block.
	Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	// Cyan marks user messages and informational text.
	Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	// Emerald marks success and added lines.
	Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	// Amber marks warnings, the busy state and changed lines.
	Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	// Rose marks errors and removed lines.
	Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
)

// =============================================================================
// SURFACES AND TEXT
// =============================================================================

var (
	Surface    = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1E1E2E"}
	SurfaceDim = lipgloss.AdaptiveColor{Light: "#F1F5F9", Dark: "#181825"}
	Overlay    = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#45475A"}
	OverlayDim = lipgloss.AdaptiveColor{Light: "#E2E8F0", Dark: "#313244"}

	TextPrimary   = lipgloss.AdaptiveColor{Light: "#0F172A", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#475569", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#6C7086"}
	TextInverse   = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#11111B"}
)

// =============================================================================
// DIFF BACKGROUNDS
// =============================================================================

var (
	DiffAddedBg   = lipgloss.AdaptiveColor{Light: "#DCFCE7", Dark: "#14301F"}
	DiffRemovedBg = lipgloss.AdaptiveColor{Light: "#FFE4E6", Dark: "#3B1219"}
	DiffChangedBg = lipgloss.AdaptiveColor{Light: "#FEF3C7", Dark: "#3A2E0B"}
)

// =============================================================================
// STATUS INDICATORS
// =============================================================================

// IndicatorSet holds the text markers shown next to colored status text.
type IndicatorSet struct {
	Success string
	Error   string
	Warning string
	Info    string
}

// Indicators are ASCII so they survive any terminal font.
var Indicators = IndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Info:    "[i]",
}

func renderIndicator(color lipgloss.AdaptiveColor, indicator, message string) string {
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(indicator + " " + message)
}

// RenderSuccess renders message with the success marker.
func RenderSuccess(message string) string {
	return renderIndicator(Emerald, Indicators.Success, message)
}

// RenderError renders message with the error marker.
func RenderError(message string) string {
	return renderIndicator(Rose, Indicators.Error, message)
}

// RenderWarning renders message with the warning marker.
func RenderWarning(message string) string {
	return renderIndicator(Amber, Indicators.Warning, message)
}

// RenderInfo renders message with the info marker.
func RenderInfo(message string) string {
	return renderIndicator(Cyan, Indicators.Info, message)
}
