// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"fmt"
	"strings"

	"github.com/jeranaias/nbassist/internal/gateway"
	"github.com/jeranaias/nbassist/internal/notebook"
)

// =============================================================================
// SYSTEM PROMPTS
// =============================================================================

// ChatSystemPrompt instructs the model for notebook conversations.
const ChatSystemPrompt = "You are an expert coding assistant in JupyterLab. You have access to the current notebook " +
	"content and chat history. Provide helpful, concise responses to code-related questions. " +
	"When providing code suggestions, ensure they are correct, well-documented, and follow best practices. " +
	"You can reference specific cells from the notebook in your responses. " +
	"For code suggestions, wrap the code in ```python and ``` tags."

// FixSystemPrompt instructs the model for error remediation.
const FixSystemPrompt = "You are an expert Python code debugger. When provided code with errors, " +
	"fix the errors and return only the corrected code without explanations or markdown formatting."

const fence = "```"

// =============================================================================
// PROMPT CONSTRUCTION
// =============================================================================

// FormatNotebookContext renders a notebook snapshot as plain text for the
// model. Code cells are fenced and followed by their textual output; markdown
// cells are inlined; other cells are skipped. Cell numbers are 0-based.
func FormatNotebookContext(c notebook.Content) string {
	var sections []string
	for idx, cell := range c.Cells {
		switch cell.CellType {
		case string(notebook.KindCode):
			sections = append(sections, fmt.Sprintf("Cell [%d] (Code):\n```python\n%s\n```", idx, cell.Source))
			if out, ok := outputText(cell.Outputs); ok {
				sections = append(sections, fmt.Sprintf("Output:\n```\n%s\n```", out))
			}
		case string(notebook.KindMarkdown):
			sections = append(sections, fmt.Sprintf("Cell [%d] (Markdown):\n%s", idx, cell.Source))
		}
	}
	return strings.Join(sections, "\n\n")
}

// outputText concatenates the plain-text view of each output: the text/plain
// MIME entry, else stream text, else the traceback lines.
func outputText(outputs []notebook.ContentOutput) (string, bool) {
	var b strings.Builder
	found := false
	for _, o := range outputs {
		if plain, ok := o.Data["text/plain"]; ok {
			b.WriteString(plain)
			found = true
			continue
		}
		if o.Text != "" {
			b.WriteString(o.Text)
			found = true
			continue
		}
		if len(o.Traceback) > 0 {
			b.WriteString(strings.Join(o.Traceback, "\n"))
			found = true
		}
	}
	return b.String(), found
}

// ChatPrompt is the final user turn of a chat request.
func ChatPrompt(notebookContext, prompt string) string {
	return fmt.Sprintf("Current notebook:\n%s\n\nUser request: %s", notebookContext, prompt)
}

// FixPrompt asks the model to repair code given the errors it raised.
func FixPrompt(code string, errs []gateway.ErrorDetail) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = fmt.Sprintf("Error %d: %s", i+1, e.Message)
	}
	return fmt.Sprintf("Fix the following Python code that has errors:\n\n```python\n%s\n```\n\nErrors:\n%s\n\n"+
		"Provide only the fixed code without explanations.", code, strings.Join(lines, "\n"))
}

// StripFences unwraps a reply that arrived as one fenced code block despite
// the instructions. Only a leading fence and its matching trailing fence are
// removed.
func StripFences(s string) string {
	for _, open := range []string{fence + "python", fence} {
		if rest, ok := strings.CutPrefix(s, open); ok {
			s = strings.TrimSuffix(rest, fence)
			break
		}
	}
	return strings.TrimSpace(s)
}

// HasCode reports whether a reply contains a fenced block.
func HasCode(content string) bool {
	return strings.Contains(content, fence)
}
