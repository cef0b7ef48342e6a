// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package actions

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
)

// ErrClipboardUnavailable is returned when the system has no clipboard
// utility (headless Linux without xclip/xsel/wl-copy).
var ErrClipboardUnavailable = errors.New("system clipboard unavailable")

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

// Copy implements Clipboard.
func (SystemClipboard) Copy(_ context.Context, text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnavailable
	}
	return clipboard.WriteAll(text)
}

// OSC52Clipboard asks the terminal to set the clipboard with an OSC 52
// escape sequence. Works over SSH where no local clipboard exists.
type OSC52Clipboard struct {
	// Out receives the sequence; nil means os.Stderr.
	Out io.Writer
	// Tmux wraps the sequence in a tmux passthrough.
	Tmux bool
}

// Copy implements Clipboard.
func (c OSC52Clipboard) Copy(_ context.Context, text string) error {
	out := c.Out
	if out == nil {
		out = os.Stderr
	}
	seq := osc52.New(text)
	if c.Tmux || os.Getenv("TMUX") != "" {
		seq = seq.Tmux()
	}
	_, err := seq.WriteTo(out)
	return err
}
