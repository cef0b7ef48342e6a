// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewTheme_ExplicitModes(t *testing.T) {
	dark := NewTheme("dark")
	if !dark.IsDark || dark.GlamourStyle != ModeDark {
		t.Errorf("dark theme: IsDark=%v GlamourStyle=%q", dark.IsDark, dark.GlamourStyle)
	}

	light := NewTheme("LIGHT")
	if light.IsDark || light.GlamourStyle != ModeLight {
		t.Errorf("light theme: IsDark=%v GlamourStyle=%q", light.IsDark, light.GlamourStyle)
	}
}

func TestThemeStylesRender(t *testing.T) {
	theme := NewTheme("dark")
	for name, out := range map[string]string{
		"header":    theme.HeaderTitle.Render("nbassist"),
		"user":      theme.UserBubble.Render("hello"),
		"assistant": theme.AssistantBubble.Render("hello"),
		"error":     theme.ErrorBubble.Render("hello"),
		"code":      theme.CodeBlock.Render("x = 1"),
		"selected":  theme.CodeBlockSelected.Render("x = 1"),
		"status":    theme.StatusBar.Render("idle"),
		"added":     theme.DiffAdded.Render("+"),
	} {
		if strings.TrimSpace(out) == "" {
			t.Errorf("%s style rendered empty output", name)
		}
	}
}

func TestGetLayoutMode(t *testing.T) {
	theme := NewTheme("dark")
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
	}
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("width %d: got %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestRenderIndicators(t *testing.T) {
	tests := []struct {
		name   string
		render func(string) string
		marker string
	}{
		{"success", RenderSuccess, Indicators.Success},
		{"error", RenderError, Indicators.Error},
		{"warning", RenderWarning, Indicators.Warning},
		{"info", RenderInfo, Indicators.Info},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.render("done")
			if !strings.Contains(out, tt.marker) || !strings.Contains(out, "done") {
				t.Errorf("got %q, want marker %q and message", out, tt.marker)
			}
		})
	}
}
