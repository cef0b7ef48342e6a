// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notebook models the host document the assistant works against.
//
// The assistant never talks to an editor directly. It reads and edits units
// (cells) through the Document interface, which a host integration
// implements. Notebook is the in-memory implementation used by the CLI and
// the tests; it can be loaded from and saved to nbformat v4 (.ipynb) files.
//
// # Key Types
//
//   - Document: Interface the assistant uses to read and mutate units
//   - Unit: One cell (code, markdown or raw) with its execution results
//   - Result: One execution output (stream, display, execute_result, error)
//   - Notebook: Concurrency-safe in-memory Document
//   - Content: Serializable snapshot sent to the backend as notebook_content
//
// # Usage
//
//	nb, err := notebook.Load("analysis.ipynb")
//	if err != nil {
//	    return err
//	}
//	snap := notebook.Snapshot(nb)
//	_ = nb.InsertUnit(nb.ActiveIndex()+1, notebook.NewCodeUnit("print(1)"))
//	err = nb.Save("analysis.ipynb")
package notebook
