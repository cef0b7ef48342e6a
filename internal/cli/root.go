// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/nbassist/internal/ui/styles"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "nbassist",
		Short: "Notebook assistant: chat about a notebook and fix its errors",
		Long: `nbassist is an LLM assistant for notebooks.

It answers questions with the notebook as context, proposes fixes for cells
that raised errors, and applies or inserts suggested code. The backend service
(nbassist serve) talks to OpenAI, Anthropic, Gemini or a local Ollama.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (.toml or .json); default ~/.nbassist/config.toml")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	pf.StringVar(&a.flags.gatewayURL, "url", "", "override gateway.url")

	root.AddCommand(
		newServeCommand(a),
		newChatCommand(a),
		newFixCommand(a),
		newBackendsCommand(a),
		newSettingsCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styles.RenderError(err.Error()))
		return 1
	}
	return 0
}
