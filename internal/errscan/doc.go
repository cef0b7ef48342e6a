// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errscan finds execution errors in a notebook document.
//
// Extract walks the code units of a Document and reports at most one Record
// per unit: the first result that looks like an error. A result is an error
// when its kind is "error", when it carries an error name or value, or when
// its plain text contains a "SomethingError:" or "Exception:" line.
//
// # Usage
//
//	for _, rec := range errscan.Extract(doc) {
//	    fmt.Printf("cell %d: %s\n", rec.UnitIndex+1, rec.Message)
//	}
package errscan
