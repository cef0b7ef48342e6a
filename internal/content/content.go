// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package content splits message text into prose and fenced code segments.
//
// A fence is three backticks, optionally followed by a language tag, and is
// closed by the next three backticks. Fences do not nest. An opening fence
// with no closing fence is left in the surrounding text verbatim.
package content

import (
	"regexp"
	"strings"
)

// Kind distinguishes prose from code.
type Kind int

const (
	KindText Kind = iota
	KindCode
)

func (k Kind) String() string {
	if k == KindCode {
		return "code"
	}
	return "text"
}

// Segment is one contiguous piece of a message.
type Segment struct {
	Kind  Kind
	Value string
	// Language is the fence tag of a code segment, possibly empty.
	Language string
}

// fence captures the optional language tag and the non-greedy body. The tag
// is any word ending the opening line, a common language name followed by a
// space, or "python" run straight into the code.
var fence = regexp.MustCompile("```" +
	`(?:([A-Za-z0-9_+#.-]+)[ \t]*\r?\n` +
	`|(python|py|ipython|bash|sh|shell|sql|json|text)[ \t]+` +
	`|(python))?` +
	"([\\s\\S]*?)```")

// fenceTags are the submatch groups that can hold the language tag.
var fenceTags = []int{1, 2, 3}

// Parse returns the ordered segments of text. Code values are trimmed of
// surrounding whitespace; text values are kept verbatim and empty ones are
// dropped.
func Parse(text string) []Segment {
	var segs []Segment
	last := 0
	for _, m := range fence.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			segs = append(segs, Segment{Kind: KindText, Value: text[last:m[0]]})
		}
		seg := Segment{Kind: KindCode, Value: strings.TrimSpace(text[m[8]:m[9]])}
		for _, g := range fenceTags {
			if m[2*g] >= 0 {
				seg.Language = text[m[2*g]:m[2*g+1]]
				break
			}
		}
		segs = append(segs, seg)
		last = m[1]
	}
	if last < len(text) {
		segs = append(segs, Segment{Kind: KindText, Value: text[last:]})
	}
	return segs
}

// Code returns the bodies of all code segments in order.
func Code(text string) []string {
	var out []string
	for _, s := range Parse(text) {
		if s.Kind == KindCode {
			out = append(out, s.Value)
		}
	}
	return out
}

// HasCode reports whether text contains at least one closed fence.
func HasCode(text string) bool {
	return fence.MatchString(text)
}

// Join reassembles segments into message text, re-fencing code segments.
func Join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Kind == KindCode {
			b.WriteString("```")
			b.WriteString(s.Language)
			b.WriteString("\n")
			b.WriteString(s.Value)
			b.WriteString("\n```")
			continue
		}
		b.WriteString(s.Value)
	}
	return b.String()
}
