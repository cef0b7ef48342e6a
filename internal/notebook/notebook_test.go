// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notebook

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIPYNB = `{
 "cells": [
  {"cell_type": "markdown", "metadata": {}, "source": ["# Title\n", "intro"]},
  {"cell_type": "code", "execution_count": 1, "metadata": {}, "source": "x = 1",
   "outputs": [{"output_type": "stream", "name": "stdout", "text": ["ok\n"]}]},
  {"cell_type": "code", "execution_count": 2, "metadata": {"tags": ["t"]}, "source": ["int('a')"],
   "outputs": [{"output_type": "error", "ename": "ValueError", "evalue": "bad input", "traceback": ["tb1", "tb2"]}]},
  {"cell_type": "code", "execution_count": 3, "metadata": {}, "source": "df",
   "outputs": [{"output_type": "execute_result", "execution_count": 3, "metadata": {},
     "data": {"text/plain": ["   a\n", "0  1"], "text/html": "<table></table>"}}]}
 ],
 "metadata": {"kernelspec": {"name": "python3"}},
 "nbformat": 4,
 "nbformat_minor": 5
}`

// =============================================================================
// DOCUMENT TESTS
// =============================================================================

func TestNotebook_InsertShiftsActive(t *testing.T) {
	nb := New(NewCodeUnit("a"), NewCodeUnit("b"))
	require.NoError(t, nb.SetActiveIndex(1))

	require.NoError(t, nb.InsertUnit(0, NewMarkdownUnit("m")))
	assert.Equal(t, 2, nb.ActiveIndex(), "active unit should still be 'b'")

	require.NoError(t, nb.InsertUnit(3, NewCodeUnit("c")))
	assert.Equal(t, 2, nb.ActiveIndex())

	texts := []string{}
	for _, u := range nb.Units() {
		texts = append(texts, u.Text)
	}
	assert.Equal(t, []string{"m", "a", "b", "c"}, texts)
}

func TestNotebook_EmptyInsertBecomesActive(t *testing.T) {
	nb := New()
	assert.Equal(t, -1, nb.ActiveIndex())
	require.NoError(t, nb.InsertUnit(0, NewCodeUnit("x")))
	assert.Equal(t, 0, nb.ActiveIndex())
}

func TestNotebook_OutOfRange(t *testing.T) {
	nb := New(NewCodeUnit("a"))
	assert.True(t, errors.Is(nb.SetUnitText(3, "x"), ErrIndexOutOfRange))
	assert.True(t, errors.Is(nb.SetActiveIndex(-1), ErrIndexOutOfRange))
	assert.True(t, errors.Is(nb.InsertUnit(5, NewCodeUnit("x")), ErrIndexOutOfRange))
	_, err := nb.Unit(1)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestNotebook_UnitsReturnsCopies(t *testing.T) {
	nb := New(Unit{Kind: KindCode, Text: "a", Results: []Result{{Kind: ResultError, Traceback: []string{"x"}}}})
	units := nb.Units()
	units[0].Text = "changed"
	units[0].Results[0].Traceback[0] = "changed"

	u, err := nb.Unit(0)
	require.NoError(t, err)
	assert.Equal(t, "a", u.Text)
	assert.Equal(t, "x", u.Results[0].Traceback[0])
}

// =============================================================================
// IPYNB TESTS
// =============================================================================

func TestDecode_Sample(t *testing.T) {
	nb, err := Decode(strings.NewReader(sampleIPYNB))
	require.NoError(t, err)

	units := nb.Units()
	require.Len(t, units, 4)
	assert.Equal(t, KindMarkdown, units[0].Kind)
	assert.Equal(t, "# Title\nintro", units[0].Text)
	assert.Equal(t, "ok\n", units[1].Results[0].Text)

	errRes := units[2].Results[0]
	assert.Equal(t, ResultError, errRes.Kind)
	assert.Equal(t, "ValueError", errRes.ErrorName)
	assert.Equal(t, "bad input", errRes.ErrorValue)
	assert.Equal(t, []string{"tb1", "tb2"}, errRes.Traceback)

	assert.Equal(t, "   a\n0  1", units[3].Results[0].Text)
	assert.Equal(t, 0, nb.ActiveIndex())
}

func TestDecode_RejectsOldFormat(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"cells": [], "metadata": {}, "nbformat": 3, "nbformat_minor": 0}`))
	require.Error(t, err)
}

func TestSave_PreservesRichOutputAndMetadata(t *testing.T) {
	nb, err := Decode(strings.NewReader(sampleIPYNB))
	require.NoError(t, err)
	require.NoError(t, nb.SetUnitText(2, "int('1')"))
	require.NoError(t, nb.InsertUnit(3, NewCodeUnit("print(2)\n")))

	path := filepath.Join(t.TempDir(), "out.ipynb")
	require.NoError(t, nb.Save(path))

	again, err := Load(path)
	require.NoError(t, err)
	units := again.Units()
	require.Len(t, units, 5)
	assert.Equal(t, "int('1')", units[2].Text)
	assert.Equal(t, "print(2)\n", units[3].Text)
	assert.Empty(t, units[3].Results)

	var buf bytes.Buffer
	require.NoError(t, again.Encode(&buf))
	out := buf.String()
	assert.Contains(t, out, `"text/html": "<table></table>"`)
	assert.Contains(t, out, `"kernelspec"`)
	assert.Contains(t, out, `"tags"`)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	cells := raw["cells"].([]any)
	inserted := cells[3].(map[string]any)
	assert.Contains(t, inserted, "outputs", "code cells always carry an outputs list")
	assert.Nil(t, inserted["execution_count"])
}

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

func TestSnapshot(t *testing.T) {
	nb, err := Decode(strings.NewReader(sampleIPYNB))
	require.NoError(t, err)

	snap := Snapshot(nb)
	require.Len(t, snap.Cells, 4)
	assert.Equal(t, "markdown", snap.Cells[0].CellType)
	assert.Empty(t, snap.Cells[0].Outputs)
	assert.Equal(t, "ok\n", snap.Cells[1].Outputs[0].Text)
	assert.Equal(t, "ValueError", snap.Cells[2].Outputs[0].EName)
	assert.Equal(t, "   a\n0  1", snap.Cells[3].Outputs[0].Data["text/plain"])
	assert.JSONEq(t, `{"kernelspec": {"name": "python3"}}`, string(snap.Metadata))
}

func TestSnapshot_NilDocument(t *testing.T) {
	snap := Snapshot(nil)
	assert.Empty(t, snap.Cells)
	b, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cells": [], "metadata": {}}`, string(b))
}

func TestContent_DecodeFrontendShapes(t *testing.T) {
	raw := `{
		"cells": [
			{"cell_type": "code", "source": ["import pandas\n", "df.head()"],
			 "outputs": [
				{"output_type": "execute_result",
				 "data": {"text/plain": ["   a\n", "0  1"], "application/json": {"a": 1}}},
				{"output_type": "stream", "name": "stdout", "text": ["hi\n"]}
			 ]},
			{"cell_type": "markdown", "source": "# Title"}
		],
		"metadata": {"kernelspec": {"name": "python3"}}
	}`

	var c Content
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	require.Len(t, c.Cells, 2)
	assert.Equal(t, "import pandas\ndf.head()", c.Cells[0].Source)
	require.Len(t, c.Cells[0].Outputs, 2)
	assert.Equal(t, map[string]string{"text/plain": "   a\n0  1"}, c.Cells[0].Outputs[0].Data)
	assert.Equal(t, "hi\n", c.Cells[0].Outputs[1].Text)
	assert.Equal(t, "# Title", c.Cells[1].Source)
	assert.JSONEq(t, `{"kernelspec": {"name": "python3"}}`, string(c.Metadata))
}
