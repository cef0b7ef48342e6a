// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diff lines up an original and a fixed version of a unit for a
// side-by-side preview.
//
// Alignment is naive: line i of the original is paired with line i of the
// fixed code. There is no longest-common-subsequence search, so an inserted
// line shifts every following row to "changed".
//
// # Key Types
//
//   - RowType: Same, Changed, Added or Removed
//   - Row: One aligned pair of lines
//   - Alignment: All rows plus counts
//
// # Usage
//
//	a := diff.Align(record.SourceCode, fixed)
//	fmt.Println(a.Summary())
//	fmt.Print(diff.FormatSideBySide(a, 40))
package diff
