// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notebook

import "encoding/json"

// =============================================================================
// NOTEBOOK CONTENT SNAPSHOT
// =============================================================================

// Content is the serializable view of a document sent with chat requests
// (the notebook_content field).
type Content struct {
	Cells    []ContentCell   `json:"cells"`
	Metadata json.RawMessage `json:"metadata"`
}

// ContentCell is one unit in a Content snapshot.
type ContentCell struct {
	CellType string          `json:"cell_type"`
	Source   string          `json:"source"`
	Outputs  []ContentOutput `json:"outputs,omitempty"`
}

// ContentOutput is one execution result in a Content snapshot.
type ContentOutput struct {
	OutputType string            `json:"output_type"`
	Text       string            `json:"text,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	EName      string            `json:"ename,omitempty"`
	EValue     string            `json:"evalue,omitempty"`
	Traceback  []string          `json:"traceback,omitempty"`
}

// Snapshot captures the current units of doc. A nil document yields an empty
// snapshot.
func Snapshot(doc Document) Content {
	c := Content{Cells: []ContentCell{}, Metadata: json.RawMessage("{}")}
	if doc == nil {
		return c
	}
	if nb, ok := doc.(*Notebook); ok {
		nb.mu.RLock()
		c.Metadata = orEmptyObject(nb.metadata)
		nb.mu.RUnlock()
	}
	for _, u := range doc.Units() {
		cell := ContentCell{CellType: string(u.Kind), Source: u.Text}
		if u.Kind == KindCode {
			for _, r := range u.Results {
				cell.Outputs = append(cell.Outputs, contentOutput(r))
			}
		}
		c.Cells = append(c.Cells, cell)
	}
	return c
}

func contentOutput(r Result) ContentOutput {
	o := ContentOutput{OutputType: string(r.Kind)}
	switch r.Kind {
	case ResultError:
		o.EName, o.EValue, o.Traceback = r.ErrorName, r.ErrorValue, r.Traceback
	case ResultStream:
		o.Text = r.Text
	default:
		if r.Text != "" {
			o.Data = map[string]string{"text/plain": r.Text}
		}
	}
	return o
}

// UnmarshalJSON accepts source as a string or a list of strings, as the
// notebook frontend sends either.
func (c *ContentCell) UnmarshalJSON(b []byte) error {
	var aux struct {
		CellType string          `json:"cell_type"`
		Source   multiline       `json:"source"`
		Outputs  []ContentOutput `json:"outputs"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.CellType, c.Source, c.Outputs = aux.CellType, string(aux.Source), aux.Outputs
	return nil
}

// UnmarshalJSON accepts multiline text fields and keeps only the textual
// entries of a MIME bundle.
func (o *ContentOutput) UnmarshalJSON(b []byte) error {
	var aux struct {
		OutputType string                     `json:"output_type"`
		Text       multiline                  `json:"text"`
		Data       map[string]json.RawMessage `json:"data"`
		EName      string                     `json:"ename"`
		EValue     string                     `json:"evalue"`
		Traceback  []string                   `json:"traceback"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*o = ContentOutput{
		OutputType: aux.OutputType,
		Text:       string(aux.Text),
		EName:      aux.EName,
		EValue:     aux.EValue,
		Traceback:  aux.Traceback,
	}
	for mime, raw := range aux.Data {
		var m multiline
		if json.Unmarshal(raw, &m) != nil {
			continue
		}
		if o.Data == nil {
			o.Data = make(map[string]string)
		}
		o.Data[mime] = string(m)
	}
	return nil
}
