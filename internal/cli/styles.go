// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/nbassist/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// Shared styles for command output.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Purple)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.TextPrimary).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Width(28)

	ValueStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	AssistantStyle = lipgloss.NewStyle().Foreground(styles.Purple).Bold(true)
)

// printKV writes one aligned "label value" line.
func printKV(w io.Writer, label string, value any) {
	fmt.Fprintln(w, LabelStyle.Render(label)+ValueStyle.Render(fmt.Sprint(value)))
}

// printSuccess writes message with the success marker.
func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styles.RenderSuccess(fmt.Sprintf(format, args...)))
}

// printWarning writes message with the warning marker.
func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styles.RenderWarning(fmt.Sprintf(format, args...)))
}
