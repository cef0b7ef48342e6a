// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/nbassist/internal/assistant"
)

func newFixCommand(a *app) *cobra.Command {
	var (
		all    bool
		apply  bool
		save   bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "fix NOTEBOOK",
		Short: "Ask the assistant to fix failing cells of a notebook",
		Long: `Sends the last erroring cell (or every erroring cell with --all) to the
backend and prints the suggested fixes. With --apply the fixed code replaces
the failing cells; --save writes the notebook back in place, --output writes
it elsewhere.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			path := args[0]

			nb, err := loadNotebook(path)
			if err != nil {
				return err
			}
			h, err := a.openSettings(ctx)
			if err != nil {
				return err
			}
			defer h.Close(context.WithoutCancel(ctx))

			eng, err := a.newEngine(h.Manager, nb, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := eng.RefreshBackends(ctx); err != nil {
				a.logger.Warn("backend list unavailable", "error", err)
			}

			if all {
				err = eng.FixAllErrors(ctx)
			} else {
				err = eng.FixLastError(ctx)
			}
			if err != nil {
				return err
			}
			msgs := eng.State().Messages
			for _, msg := range msgs {
				printMessage(out, msg)
			}

			if !apply {
				return nil
			}
			applied, err := applyFixes(eng)
			if err != nil {
				return err
			}
			if applied == 0 {
				printWarning(out, "No fixes to apply")
				return nil
			}
			printSuccess(out, "Applied %d fix(es)", applied)

			dest := output
			if dest == "" && save {
				dest = path
			}
			if dest == "" {
				printWarning(out, "Fixes were not saved (use --save or --output)")
				return nil
			}
			if err := nb.Save(dest); err != nil {
				return fmt.Errorf("failed to save notebook: %w", err)
			}
			printSuccess(out, "Saved %s", dest)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "fix every erroring cell")
	cmd.Flags().BoolVar(&apply, "apply", false, "replace failing cells with the fixed code")
	cmd.Flags().BoolVar(&save, "save", false, "write the notebook back in place after --apply")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the fixed notebook to this path after --apply")
	return cmd
}

// applyFixes writes every successful fix reply into the cell it names.
func applyFixes(eng *assistant.Engine) (int, error) {
	doc := eng.Document()
	applied := 0
	for _, msg := range eng.State().Messages {
		idx, code, ok := assistant.FixedUnit(msg)
		if !ok {
			continue
		}
		if err := doc.SetActiveIndex(idx); err != nil {
			return applied, err
		}
		if err := eng.ApplyCode(code); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
