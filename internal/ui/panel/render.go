// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/nbassist/internal/ui/styles"
)

// defaultLanguage is assumed for unlabelled fences; cells are Python.
const defaultLanguage = "python"

// =============================================================================
// PROSE
// =============================================================================

// prose renders message text. With glamour disabled, or when glamour fails,
// the text is returned trimmed.
type prose struct {
	renderer *glamour.TermRenderer
}

func newProse(enabled bool, style string, width int) prose {
	if !enabled {
		return prose{}
	}
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return prose{}
	}
	return prose{renderer: r}
}

func (p prose) render(text string) string {
	if p.renderer == nil {
		return strings.TrimSpace(text)
	}
	out, err := p.renderer.Render(text)
	if err != nil {
		return strings.TrimSpace(text)
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// CODE BLOCKS
// =============================================================================

// renderCode draws a numbered, highlighted code block with a language badge.
func renderCode(theme *styles.Theme, code, language string, width int, selected bool) string {
	if language == "" {
		language = defaultLanguage
	}

	lines := strings.Split(highlight(code, language, theme.IsDark), "\n")
	gutter := len(strconv.Itoa(len(lines)))
	numStyle := theme.CodeLineNumber.Width(gutter).Align(lipgloss.Right).MarginRight(1)

	var sb strings.Builder
	sb.WriteString(theme.CodeBadge.Render(language))
	for i, line := range lines {
		sb.WriteString("\n")
		sb.WriteString(numStyle.Render(strconv.Itoa(i + 1)))
		sb.WriteString(line)
	}

	box := theme.CodeBlock
	if selected {
		box = theme.CodeBlockSelected
	}
	if width > 4 {
		box = box.MaxWidth(width)
	}
	return box.Render(sb.String())
}

// highlight applies chroma highlighting; on failure the code is returned as is.
func highlight(code, language string, dark bool) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "github"
	if dark {
		styleName = "monokai"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
