// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrIndexOutOfRange is returned when a unit index does not exist.
var ErrIndexOutOfRange = errors.New("unit index out of range")

// =============================================================================
// UNIT AND RESULT TYPES
// =============================================================================

// UnitKind is the kind of a document unit.
type UnitKind string

const (
	KindCode     UnitKind = "code"
	KindMarkdown UnitKind = "markdown"
	KindRaw      UnitKind = "raw"
)

// ResultKind is the nbformat output_type of an execution result.
type ResultKind string

const (
	ResultStream  ResultKind = "stream"
	ResultExecute ResultKind = "execute_result"
	ResultDisplay ResultKind = "display_data"
	ResultError   ResultKind = "error"
)

// Result is one execution output attached to a code unit.
type Result struct {
	Kind       ResultKind
	ErrorName  string
	ErrorValue string
	Traceback  []string

	// Text holds stream text or the text/plain representation of rich output.
	Text string

	// wire keeps the decoded file form so Save does not drop mime bundles
	// this type does not model.
	wire *fileOutput
}

// Unit is one cell of the document.
type Unit struct {
	Kind    UnitKind
	Text    string
	Results []Result

	metadata       json.RawMessage
	executionCount json.RawMessage
}

// NewCodeUnit returns an unexecuted code unit.
func NewCodeUnit(text string) Unit {
	return Unit{Kind: KindCode, Text: text}
}

// NewMarkdownUnit returns a markdown unit.
func NewMarkdownUnit(text string) Unit {
	return Unit{Kind: KindMarkdown, Text: text}
}

func (u Unit) clone() Unit {
	out := u
	if u.Results != nil {
		out.Results = make([]Result, len(u.Results))
		for i, r := range u.Results {
			rc := r
			if r.Traceback != nil {
				rc.Traceback = append([]string(nil), r.Traceback...)
			}
			out.Results[i] = rc
		}
	}
	return out
}

// =============================================================================
// DOCUMENT INTERFACE
// =============================================================================

// Document is the host document surface the assistant reads and edits.
// Implementations must be safe for concurrent use.
type Document interface {
	// Units returns a copy of all units in order.
	Units() []Unit
	// ActiveIndex returns the index of the focused unit, or -1 when empty.
	ActiveIndex() int
	// SetActiveIndex moves focus to unit i.
	SetActiveIndex(i int) error
	// SetUnitText overwrites the text of unit i.
	SetUnitText(i int, text string) error
	// InsertUnit inserts u so that it ends up at index at.
	InsertUnit(at int, u Unit) error
}

// =============================================================================
// IN-MEMORY NOTEBOOK
// =============================================================================

// Notebook is an in-memory Document.
type Notebook struct {
	mu       sync.RWMutex
	units    []Unit
	active   int
	metadata json.RawMessage
	minor    int
}

var _ Document = (*Notebook)(nil)

// New creates a notebook holding units, with the first unit active.
func New(units ...Unit) *Notebook {
	nb := &Notebook{active: -1, minor: 5}
	for _, u := range units {
		nb.units = append(nb.units, u.clone())
	}
	if len(nb.units) > 0 {
		nb.active = 0
	}
	return nb
}

// Units returns a copy of all units.
func (n *Notebook) Units() []Unit {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Unit, len(n.units))
	for i, u := range n.units {
		out[i] = u.clone()
	}
	return out
}

// Len returns the number of units.
func (n *Notebook) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.units)
}

// Unit returns a copy of unit i.
func (n *Notebook) Unit(i int) (Unit, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if i < 0 || i >= len(n.units) {
		return Unit{}, fmt.Errorf("unit %d: %w", i, ErrIndexOutOfRange)
	}
	return n.units[i].clone(), nil
}

// ActiveIndex returns the focused unit index, or -1 for an empty notebook.
func (n *Notebook) ActiveIndex() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.active
}

// SetActiveIndex focuses unit i.
func (n *Notebook) SetActiveIndex(i int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i < 0 || i >= len(n.units) {
		return fmt.Errorf("unit %d: %w", i, ErrIndexOutOfRange)
	}
	n.active = i
	return nil
}

// SetUnitText overwrites the text of unit i. Existing results are kept, as a
// notebook editor keeps stale outputs until the unit is re-run.
func (n *Notebook) SetUnitText(i int, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i < 0 || i >= len(n.units) {
		return fmt.Errorf("unit %d: %w", i, ErrIndexOutOfRange)
	}
	n.units[i].Text = text
	return nil
}

// InsertUnit inserts u at index at (0..Len). The active index is shifted so
// it keeps pointing at the same unit.
func (n *Notebook) InsertUnit(at int, u Unit) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if at < 0 || at > len(n.units) {
		return fmt.Errorf("insert at %d: %w", at, ErrIndexOutOfRange)
	}
	n.units = append(n.units, Unit{})
	copy(n.units[at+1:], n.units[at:])
	n.units[at] = u.clone()

	switch {
	case n.active < 0:
		n.active = at
	case at <= n.active:
		n.active++
	}
	return nil
}

// SetResults replaces the execution results of unit i. Used by hosts that
// execute code and by tests.
func (n *Notebook) SetResults(i int, results ...Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i < 0 || i >= len(n.units) {
		return fmt.Errorf("unit %d: %w", i, ErrIndexOutOfRange)
	}
	n.units[i].Results = append([]Result(nil), results...)
	return nil
}
