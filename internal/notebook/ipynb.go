// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/nbassist/internal/util"
)

// =============================================================================
// NBFORMAT V4 FILE FORMAT
// =============================================================================

// multiline decodes nbformat's "string or list of strings" fields.
type multiline string

func (m *multiline) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*m = multiline(s)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(b, &parts); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*m = multiline(strings.Join(parts, ""))
	return nil
}

// MarshalJSON writes the list form, one element per line, as Jupyter does.
func (m multiline) MarshalJSON() ([]byte, error) {
	return json.Marshal(splitLines(string(m)))
}

func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if lines == nil {
		lines = []string{}
	}
	return lines
}

type fileNotebook struct {
	Cells         []fileCell      `json:"cells"`
	Metadata      json.RawMessage `json:"metadata"`
	NBFormat      int             `json:"nbformat"`
	NBFormatMinor int             `json:"nbformat_minor"`
}

type fileCell struct {
	CellType       string          `json:"cell_type"`
	ID             string          `json:"id,omitempty"`
	Metadata       json.RawMessage `json:"metadata"`
	Source         multiline       `json:"source"`
	ExecutionCount json.RawMessage `json:"execution_count,omitempty"`
	Outputs        *[]fileOutput   `json:"outputs,omitempty"`
}

type fileOutput struct {
	OutputType     string                     `json:"output_type"`
	Name           string                     `json:"name,omitempty"`
	Text           *multiline                 `json:"text,omitempty"`
	Data           map[string]json.RawMessage `json:"data,omitempty"`
	Metadata       json.RawMessage            `json:"metadata,omitempty"`
	ExecutionCount json.RawMessage            `json:"execution_count,omitempty"`
	EName          string                     `json:"ename,omitempty"`
	EValue         string                     `json:"evalue,omitempty"`
	Traceback      []string                   `json:"traceback,omitempty"`
}

// plainText returns the text/plain representation of a rich output.
func (o *fileOutput) plainText() string {
	raw, ok := o.Data["text/plain"]
	if !ok {
		return ""
	}
	var m multiline
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	return string(m)
}

func resultFromFile(o fileOutput) Result {
	r := Result{
		Kind:       ResultKind(o.OutputType),
		ErrorName:  o.EName,
		ErrorValue: o.EValue,
		Traceback:  o.Traceback,
	}
	if o.Text != nil {
		r.Text = string(*o.Text)
	} else {
		r.Text = o.plainText()
	}
	r.wire = &o
	return r
}

func (r Result) toFile() fileOutput {
	if r.wire != nil {
		return *r.wire
	}
	o := fileOutput{OutputType: string(r.Kind)}
	switch r.Kind {
	case ResultError:
		o.EName, o.EValue, o.Traceback = r.ErrorName, r.ErrorValue, r.Traceback
		if o.Traceback == nil {
			o.Traceback = []string{}
		}
	case ResultStream:
		text := multiline(r.Text)
		o.Name = "stdout"
		o.Text = &text
	default:
		plain, _ := json.Marshal(splitLines(r.Text))
		o.Data = map[string]json.RawMessage{"text/plain": plain}
		o.Metadata = json.RawMessage("{}")
		if r.Kind == ResultExecute {
			o.ExecutionCount = json.RawMessage("null")
		}
	}
	return o
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Decode reads an nbformat v4 notebook.
func Decode(r io.Reader) (*Notebook, error) {
	var f fileNotebook
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse notebook: %w", err)
	}
	if f.NBFormat != 0 && f.NBFormat < 4 {
		return nil, fmt.Errorf("unsupported nbformat %d (need 4)", f.NBFormat)
	}

	nb := New()
	nb.metadata = f.Metadata
	nb.minor = f.NBFormatMinor
	for _, c := range f.Cells {
		u := Unit{
			Kind:           UnitKind(c.CellType),
			Text:           string(c.Source),
			metadata:       c.Metadata,
			executionCount: c.ExecutionCount,
		}
		if c.Outputs != nil {
			for _, o := range *c.Outputs {
				u.Results = append(u.Results, resultFromFile(o))
			}
		}
		nb.units = append(nb.units, u)
	}
	if len(nb.units) > 0 {
		nb.active = 0
	}
	return nb, nil
}

// Load reads an nbformat v4 notebook from path.
func Load(path string) (*Notebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open notebook: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes the notebook as nbformat v4 JSON with one-space indent.
func (n *Notebook) Encode(w io.Writer) error {
	n.mu.RLock()
	f := fileNotebook{
		Cells:         make([]fileCell, 0, len(n.units)),
		Metadata:      orEmptyObject(n.metadata),
		NBFormat:      4,
		NBFormatMinor: n.minor,
	}
	for _, u := range n.units {
		c := fileCell{
			CellType: string(u.Kind),
			Metadata: orEmptyObject(u.metadata),
			Source:   multiline(u.Text),
		}
		if u.Kind == KindCode {
			c.ExecutionCount = u.executionCount
			if len(c.ExecutionCount) == 0 {
				c.ExecutionCount = json.RawMessage("null")
			}
			outs := make([]fileOutput, 0, len(u.Results))
			for _, r := range u.Results {
				outs = append(outs, r.toFile())
			}
			c.Outputs = &outs
		}
		f.Cells = append(f.Cells, c)
	}
	n.mu.RUnlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.SetEscapeHTML(false)
	return enc.Encode(f)
}

// Save writes the notebook to path atomically.
func (n *Notebook) Save(path string) error {
	var buf bytes.Buffer
	if err := n.Encode(&buf); err != nil {
		return fmt.Errorf("failed to encode notebook: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to save notebook: %w", err)
	}
	return nil
}

func orEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
