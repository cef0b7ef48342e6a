// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newBackendsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the backends and models offered by the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			backends, err := a.newGateway().FetchConfig(ctx)
			if err != nil {
				return fmt.Errorf("failed to reach %s: %w", a.cfg.Gateway.URL, err)
			}

			h, err := a.openSettings(ctx)
			if err != nil {
				return err
			}
			defer h.Close(ctx)
			active := h.Manager.ActiveBackend()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("Backends"))
			if len(backends) == 0 {
				fmt.Fprintln(out, MutedStyle.Render("  (none)"))
				return nil
			}
			for _, b := range backends {
				marker := "  "
				if b.ID == active {
					marker = "* "
				}
				name := b.DisplayName()
				if b.Local {
					name += " [local]"
				}
				fmt.Fprintln(out, marker+LabelStyle.Render(b.ID)+ValueStyle.Render(name))

				selected := h.Manager.Model(b.ID, b.DefaultModel)
				ids := make([]string, 0, len(b.Models))
				for _, m := range b.Models {
					id := m.ID
					if id == selected {
						id += " (selected)"
					}
					ids = append(ids, id)
				}
				if len(ids) > 0 {
					fmt.Fprintln(out, "    "+MutedStyle.Render(strings.Join(ids, ", ")))
				}
			}
			return nil
		},
	}
}
