// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package diff

import (
	"fmt"
	"strings"

	"github.com/jeranaias/nbassist/internal/util"
)

// =============================================================================
// ROW TYPES
// =============================================================================

// RowType classifies an aligned row.
type RowType int

const (
	// RowSame means both sides hold the same line.
	RowSame RowType = iota
	// RowChanged means both sides exist but differ.
	RowChanged
	// RowAdded means only the fixed side has a line.
	RowAdded
	// RowRemoved means only the original side has a line.
	RowRemoved
)

// String returns the string representation of a row type.
func (t RowType) String() string {
	switch t {
	case RowSame:
		return "same"
	case RowChanged:
		return "changed"
	case RowAdded:
		return "added"
	case RowRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Marker returns the gutter character shown between the two columns.
func (t RowType) Marker() string {
	switch t {
	case RowChanged:
		return "|"
	case RowAdded:
		return ">"
	case RowRemoved:
		return "<"
	default:
		return " "
	}
}

// =============================================================================
// ALIGNMENT
// =============================================================================

// Row is one aligned pair. Line numbers are 1-based; 0 means the side has no
// line at this row.
type Row struct {
	Type     RowType
	Original string
	Fixed    string
	OldLine  int
	NewLine  int
}

// Alignment is the full side-by-side view of two texts.
type Alignment struct {
	Rows    []Row
	Changed int
	Added   int
	Removed int
}

// Align pairs the lines of original and fixed by position.
func Align(original, fixed string) Alignment {
	oldLines := splitLines(original)
	newLines := splitLines(fixed)

	n := max(len(oldLines), len(newLines))
	a := Alignment{Rows: make([]Row, 0, n)}
	for i := 0; i < n; i++ {
		var r Row
		switch {
		case i < len(oldLines) && i < len(newLines):
			r = Row{Original: oldLines[i], Fixed: newLines[i], OldLine: i + 1, NewLine: i + 1}
			if oldLines[i] == newLines[i] {
				r.Type = RowSame
			} else {
				r.Type = RowChanged
				a.Changed++
			}
		case i < len(oldLines):
			r = Row{Type: RowRemoved, Original: oldLines[i], OldLine: i + 1}
			a.Removed++
		default:
			r = Row{Type: RowAdded, Fixed: newLines[i], NewLine: i + 1}
			a.Added++
		}
		a.Rows = append(a.Rows, r)
	}
	return a
}

// Identical reports whether both sides are line-for-line equal.
func (a Alignment) Identical() bool {
	return a.Changed == 0 && a.Added == 0 && a.Removed == 0
}

// Summary returns e.g. "2 changed, 1 added" or "no changes".
func (a Alignment) Summary() string {
	if a.Identical() {
		return "no changes"
	}
	var parts []string
	if a.Changed > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", a.Changed))
	}
	if a.Added > 0 {
		parts = append(parts, fmt.Sprintf("%d added", a.Added))
	}
	if a.Removed > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", a.Removed))
	}
	return strings.Join(parts, ", ")
}

// splitLines splits on "\n" and drops one trailing newline so "a\n" is a
// single line. Empty content has no lines.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatSideBySide renders the alignment as two columns of width cells each,
// with headers "Original" and "Fixed". Long lines are truncated.
func FormatSideBySide(a Alignment, width int) string {
	if width < 8 {
		width = 8
	}
	var sb strings.Builder
	writeRow := func(left, marker, right string) {
		left = util.TruncateWidth(left, width)
		sb.WriteString(left)
		sb.WriteString(strings.Repeat(" ", width-util.StringWidth(left)))
		sb.WriteString(" ")
		sb.WriteString(marker)
		sb.WriteString(" ")
		sb.WriteString(strings.TrimRight(util.TruncateWidth(right, width), " "))
		sb.WriteString("\n")
	}
	writeRow("Original", " ", "Fixed")
	writeRow(strings.Repeat("-", width), " ", strings.Repeat("-", width))
	for _, r := range a.Rows {
		writeRow(r.Original, r.Type.Marker(), r.Fixed)
	}
	return sb.String()
}
