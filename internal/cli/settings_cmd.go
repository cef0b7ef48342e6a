// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/nbassist/internal/settings"
)

func newSettingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the backend, model and credential selection",
	}
	cmd.AddCommand(
		newSettingsShowCommand(a),
		newSettingsBackendCommand(a),
		newSettingsModelCommand(a),
		newSettingsKeyCommand(a),
	)
	return cmd
}

// withSettings opens the selection, runs fn and flushes the result.
func (a *app) withSettings(ctx context.Context, fn func(*settings.Manager) error) error {
	h, err := a.openSettings(ctx)
	if err != nil {
		return err
	}
	err = fn(h.Manager)
	return errors.Join(err, h.Close(context.WithoutCancel(ctx)))
}

func newSettingsShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current selection (credentials are never shown)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return a.withSettings(cmd.Context(), func(m *settings.Manager) error {
				sel := m.Selection()
				fmt.Fprintln(out, TitleStyle.Render("Settings"))
				printKV(out, "active backend", sel.ActiveBackendID)

				fmt.Fprintln(out, SectionStyle.Render("Models"))
				ids := make([]string, 0, len(sel.ModelByBackend))
				for id := range sel.ModelByBackend {
					ids = append(ids, id)
				}
				slices.Sort(ids)
				for _, id := range ids {
					printKV(out, id, sel.ModelByBackend[id])
				}

				configured := sel.ConfiguredCredentials()
				slices.Sort(configured)
				fmt.Fprintln(out, SectionStyle.Render("Credentials"))
				if len(configured) == 0 {
					fmt.Fprintln(out, MutedStyle.Render("  none configured"))
				}
				for _, id := range configured {
					printKV(out, id, "configured")
				}
				return nil
			})
		},
	}
}

func newSettingsBackendCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backend ID",
		Short: "Make ID the active backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("backend id is empty")
			}
			return a.withSettings(cmd.Context(), func(m *settings.Manager) error {
				m.SetActiveBackend(id)
				printSuccess(cmd.OutOrStdout(), "Active backend: %s", id)
				return nil
			})
		},
	}
}

func newSettingsModelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "model BACKEND MODEL",
		Short: "Choose the model used with BACKEND",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, model := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if backend == "" || model == "" {
				return errors.New("backend and model must not be empty")
			}
			return a.withSettings(cmd.Context(), func(m *settings.Manager) error {
				m.SetModel(backend, model)
				printSuccess(cmd.OutOrStdout(), "Model for %s: %s", backend, model)
				return nil
			})
		},
	}
}

func newSettingsKeyCommand(a *app) *cobra.Command {
	var (
		fromStdin bool
		clear     bool
	)
	cmd := &cobra.Command{
		Use:   "key BACKEND",
		Short: "Store the API key for BACKEND",
		Long: `Stores the API key for BACKEND. On a terminal the key is read without
echo; with --stdin it is read from the first line of standard input.
--clear removes the stored key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := strings.TrimSpace(args[0])
			key := ""
			if !clear {
				var err error
				key, err = readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), fromStdin, "API key for "+backend+": ")
				if err != nil {
					return err
				}
				if key == "" {
					return errors.New("empty key (use --clear to remove a key)")
				}
			}
			return a.withSettings(cmd.Context(), func(m *settings.Manager) error {
				m.SetCredential(backend, key)
				if clear {
					printSuccess(cmd.OutOrStdout(), "Removed key for %s", backend)
				} else {
					printSuccess(cmd.OutOrStdout(), "Stored key for %s", backend)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the key from standard input")
	cmd.Flags().BoolVar(&clear, "clear", false, "remove the stored key")
	return cmd
}

// readSecret reads one line without echo from a terminal, or plainly from in.
func readSecret(in io.Reader, prompt io.Writer, fromStdin bool, label string) (string, error) {
	if !fromStdin && in == os.Stdin && IsTTY() {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
