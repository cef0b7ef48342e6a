// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/nbassist/internal/content"
	"github.com/jeranaias/nbassist/internal/diff"
	"github.com/jeranaias/nbassist/internal/model"
	"github.com/jeranaias/nbassist/internal/util"
)

const emptyConversation = "Ask a question about the notebook, or press C-f to fix the last error."

// View renders the panel.
func (m Model) View() string {
	parts := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
		m.renderStatus(),
	}
	if m.help.ShowAll {
		parts = append(parts, m.theme.Help.Render(m.help.View(m.keys)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

// =============================================================================
// HEADER, INPUT, STATUS
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("nbassist")
	backend := m.snap.ActiveBackend
	for _, b := range m.snap.Backends {
		if b.ID == backend {
			backend = b.DisplayName()
			break
		}
	}
	meta := backend
	if m.snap.ActiveModel != "" {
		meta += " / " + m.snap.ActiveModel
	}
	line := title + "  " + m.theme.HeaderMeta.Render(util.TruncateWidth(meta, max(10, m.contentWidth()-14)))
	return m.theme.Header.Width(m.contentWidth()).Render(line)
}

func (m Model) renderInput() string {
	box := m.theme.Input
	if m.focus == focusInput {
		box = m.theme.InputFocused
	}
	return box.Width(max(10, m.contentWidth()-2)).Render(m.input.View())
}

func (m Model) renderStatus() string {
	var state string
	if m.snap.Busy() {
		state = m.spinner.View() + " " + m.theme.StatusBusy.Render("Thinking...")
	} else {
		state = m.theme.StatusIdle.Render("Ready")
	}

	text, style := m.focusHint(), m.theme.ActionHint
	if m.notice != "" {
		text, style = m.notice, m.theme.StatusNotice
		if !m.noticeOK {
			style = m.theme.ErrorLabel
		}
	}
	if room := m.contentWidth() - lipgloss.Width(state) - 4; room > 0 {
		text = util.TruncateWidth(text, room)
	}
	notice := style.Render(text)
	return m.theme.StatusBar.Width(m.contentWidth()).Render(state + "  " + notice)
}

func (m Model) focusHint() string {
	switch m.focus {
	case focusConversation:
		return "a apply  i insert  y copy  d diff  ? help  Esc back"
	case focusDiff:
		return "a apply  Esc back"
	default:
		return "Enter send  C-f fix last  C-t fix all  Tab code blocks"
	}
}

// =============================================================================
// CONVERSATION
// =============================================================================

// renderConversation fills the viewport and records the line of every code
// block.
func (m *Model) renderConversation() {
	if len(m.snap.Messages) == 0 {
		m.viewport.SetContent(m.theme.MessageMeta.Render(emptyConversation))
		return
	}

	width := m.contentWidth()
	var out []string
	line := 0
	block := 0
	for i, msg := range m.snap.Messages {
		if i > 0 && !m.opts.Compact {
			out = append(out, "")
			line++
		}
		rendered := m.renderMessage(msg, width, line, &block)
		out = append(out, rendered)
		line += lipgloss.Height(rendered)
	}
	m.viewport.SetContent(strings.Join(out, "\n"))
}

// renderMessage renders one message starting at viewport line start. block
// is the running code block index across the conversation.
func (m *Model) renderMessage(msg model.Message, width, start int, block *int) string {
	label, bubble := m.messageStyle(msg)
	inner := max(20, width-4)

	if msg.Role != model.RoleAssistant || msg.Error {
		return label + "\n" + bubble.Width(inner).Render(strings.TrimSpace(msg.Content))
	}

	var parts []string
	line := start + 1
	for _, seg := range content.Parse(msg.Content) {
		var part string
		if seg.Kind == content.KindCode && seg.Value != "" {
			idx := *block
			*block++
			selected := idx == m.selected && m.focus == focusConversation
			if idx < len(m.blocks) {
				m.blocks[idx].line = line
			}
			part = renderCode(m.theme, seg.Value, seg.Language, inner, selected)
			if selected {
				part += "\n" + m.actionHints()
			}
		} else {
			part = m.prose.render(seg.Value)
			if part == "" {
				continue
			}
		}
		parts = append(parts, part)
		line += lipgloss.Height(part)
	}
	return label + "\n" + bubble.Render(strings.Join(parts, "\n"))
}

func (m Model) messageStyle(msg model.Message) (string, lipgloss.Style) {
	switch {
	case msg.Error:
		return m.theme.ErrorLabel.Render("Error"), m.theme.ErrorBubble
	case msg.Role == model.RoleUser:
		return m.theme.UserLabel.Render(msg.Role.DisplayName()), m.theme.UserBubble
	case msg.Role == model.RoleSystem:
		return m.theme.SystemLabel.Render(msg.Role.DisplayName()), m.theme.SystemBubble
	}

	label := m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	source := msg.Provider
	if m.opts.ShowModel {
		source = msg.Source()
	}
	if source != "" {
		label += m.theme.MessageMeta.Render(" (" + source + ")")
	}
	return label, m.theme.AssistantBubble
}

func (m Model) actionHints() string {
	hint := func(k, desc string) string {
		return m.theme.ActionKey.Render("["+k+"]") + m.theme.ActionHint.Render(" "+desc)
	}
	return strings.Join([]string{
		hint("a", "apply"),
		hint("i", "insert"),
		hint("y", "copy"),
		hint("d", "diff"),
	}, "  ")
}

// =============================================================================
// DIFF
// =============================================================================

// renderDiff renders the active cell against the selected block, side by side.
func (m Model) renderDiff() string {
	a := m.diff
	col := max(8, (m.contentWidth()-5)/2)

	var sb strings.Builder
	sb.WriteString(m.theme.DiffTitle.Render("Active cell vs. suggested code"))
	sb.WriteString(m.theme.MessageMeta.Render("  " + a.Summary()))
	sb.WriteString("\n\n")

	pad := func(s string) string {
		s = util.TruncateWidth(s, col)
		return s + strings.Repeat(" ", max(0, col-util.StringWidth(s)))
	}
	sb.WriteString(m.theme.DiffHeader.Render(pad("Original")))
	sb.WriteString("   ")
	sb.WriteString(m.theme.DiffHeader.Render(pad("Fixed")))
	sb.WriteString("\n")

	for _, r := range a.Rows {
		style := m.diffStyle(r.Type)
		sb.WriteString(style.Render(pad(r.Original)))
		sb.WriteString(fmt.Sprintf(" %s ", r.Type.Marker()))
		sb.WriteString(style.Render(pad(r.Fixed)))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) diffStyle(t diff.RowType) lipgloss.Style {
	switch t {
	case diff.RowAdded:
		return m.theme.DiffAdded
	case diff.RowRemoved:
		return m.theme.DiffRemoved
	case diff.RowChanged:
		return m.theme.DiffChanged
	default:
		return m.theme.DiffSame
	}
}
