// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package actions performs the side effects a user triggers from a message:
// applying code to the active unit, appending a new unit, copying text.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jeranaias/nbassist/internal/notebook"
)

var (
	// ErrNoDocument is returned when no document is attached.
	ErrNoDocument = errors.New("no document is open")
	// ErrNoActiveUnit is returned by Apply on an empty document.
	ErrNoActiveUnit = errors.New("document has no active unit")
)

// Clipboard writes text somewhere the user can paste it from.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// ClipboardFunc adapts a function to Clipboard.
type ClipboardFunc func(ctx context.Context, text string) error

// Copy implements Clipboard.
func (f ClipboardFunc) Copy(ctx context.Context, text string) error {
	return f(ctx, text)
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher applies user actions to a document and clipboard.
type Dispatcher struct {
	doc      notebook.Document
	primary  Clipboard
	fallback Clipboard
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. doc may be nil when no document is
// open; either clipboard may be nil.
func NewDispatcher(doc notebook.Document, primary, fallback Clipboard, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		doc:      doc,
		primary:  primary,
		fallback: fallback,
		logger:   logger.With("component", "actions"),
	}
}

// Document returns the attached document, or nil.
func (d *Dispatcher) Document() notebook.Document {
	return d.doc
}

// Apply replaces the text of the active unit with code.
func (d *Dispatcher) Apply(code string) error {
	if d.doc == nil {
		return ErrNoDocument
	}
	idx := d.doc.ActiveIndex()
	if idx < 0 {
		return ErrNoActiveUnit
	}
	if err := d.doc.SetUnitText(idx, code); err != nil {
		return fmt.Errorf("apply code to unit %d: %w", idx, err)
	}
	d.logger.Debug("applied code", "unit", idx, "bytes", len(code))
	return nil
}

// AppendUnit inserts a new code unit holding code right after the active
// unit and makes it active. An empty document gets the unit at index 0.
func (d *Dispatcher) AppendUnit(code string) error {
	if d.doc == nil {
		return ErrNoDocument
	}
	at := d.doc.ActiveIndex() + 1
	if err := d.doc.InsertUnit(at, notebook.NewCodeUnit(code)); err != nil {
		return fmt.Errorf("insert unit at %d: %w", at, err)
	}
	if err := d.doc.SetActiveIndex(at); err != nil {
		return fmt.Errorf("activate unit %d: %w", at, err)
	}
	d.logger.Debug("appended unit", "unit", at)
	return nil
}

// Copy writes text to the primary clipboard, falling back to the secondary
// one when the primary fails. The fallback's error is returned.
func (d *Dispatcher) Copy(ctx context.Context, text string) error {
	var primaryErr error
	if d.primary != nil {
		if primaryErr = d.primary.Copy(ctx, text); primaryErr == nil {
			return nil
		}
		d.logger.Debug("primary clipboard failed, trying fallback", "error", primaryErr)
	}
	if d.fallback == nil {
		if primaryErr == nil {
			primaryErr = errors.New("no clipboard configured")
		}
		return fmt.Errorf("copy to clipboard: %w", primaryErr)
	}
	if err := d.fallback.Copy(ctx, text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}
