// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package errscan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jeranaias/nbassist/internal/notebook"
)

// Record describes one erroring unit.
type Record struct {
	UnitIndex  int    `json:"unitIndex"`
	Message    string `json:"message"`
	SourceCode string `json:"code"`
}

var (
	// textErrorLine matches "FooError: ..." or "...Exception: ..." lines in
	// plain text output.
	textErrorLine = regexp.MustCompile(`(?:[A-Za-z_][A-Za-z0-9_.]*)?(?:Error|Exception):[^\n]*`)

	typeAndMessage = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*(?:Error|Exception)):\s*(.*?)(?:\n|$)`)
	lineAndColumn  = regexp.MustCompile(`(?i)line\s+(\d+)(?:,\s*column\s+(\d+))?`)
)

// =============================================================================
// EXTRACTION
// =============================================================================

// Extract returns one record per code unit whose results contain an error,
// ordered by unit index. A nil document or a clean document yields nil.
func Extract(doc notebook.Document) []Record {
	if doc == nil {
		return nil
	}
	var records []Record
	for i, u := range doc.Units() {
		if u.Kind != notebook.KindCode {
			continue
		}
		for _, r := range u.Results {
			if !IsError(r) {
				continue
			}
			records = append(records, Record{
				UnitIndex:  i,
				Message:    Message(r),
				SourceCode: u.Text,
			})
			break
		}
	}
	return records
}

// IsError reports whether r is an execution error.
func IsError(r notebook.Result) bool {
	if r.Kind == notebook.ResultError || r.ErrorName != "" || r.ErrorValue != "" {
		return true
	}
	return r.Text != "" && textErrorLine.MatchString(r.Text)
}

// Message renders r as "Type: value". A missing name becomes "Error". For
// text results the first error-looking line is returned as is.
func Message(r notebook.Result) string {
	if r.Kind == notebook.ResultError || r.ErrorName != "" || r.ErrorValue != "" {
		name := r.ErrorName
		if name == "" {
			name = "Error"
		}
		return name + ": " + r.ErrorValue
	}
	if m := textErrorLine.FindString(r.Text); m != "" {
		return strings.TrimSpace(m)
	}
	return strings.TrimSpace(r.Text)
}

// =============================================================================
// MESSAGE PARSING
// =============================================================================

// Details is the structured form of an error message.
type Details struct {
	Type    string
	Message string
	// Line and Column are 0 when the message has no location.
	Line   int
	Column int
}

// Location renders "line N" or "line N, column M", or "" without a line.
func (d Details) Location() string {
	switch {
	case d.Line > 0 && d.Column > 0:
		return "line " + strconv.Itoa(d.Line) + ", column " + strconv.Itoa(d.Column)
	case d.Line > 0:
		return "line " + strconv.Itoa(d.Line)
	default:
		return ""
	}
}

// ParseMessage splits error text into its type, message and location.
// Text that does not start with "SomethingError:" keeps Type "Error" and the
// whole trimmed text as Message.
func ParseMessage(text string) Details {
	d := Details{Type: "Error", Message: strings.TrimSpace(text)}
	if m := typeAndMessage.FindStringSubmatch(text); m != nil {
		d.Type = m[1]
		d.Message = m[2]
	}
	if m := lineAndColumn.FindStringSubmatch(text); m != nil {
		d.Line, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			d.Column, _ = strconv.Atoi(m[2])
		}
	}
	return d
}
