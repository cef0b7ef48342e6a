// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/nbassist/internal/ollama"
	"github.com/jeranaias/nbassist/internal/providers"
	"github.com/jeranaias/nbassist/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant backend service",
		Long: `Serves the assistant endpoints under /ai-assistant/ (config, llm,
fix-error) plus /health and /stats.

Provider keys come from the config file or from OPENAI_API_KEY,
ANTHROPIC_API_KEY, GEMINI_API_KEY and OLLAMA_HOST. With providers.local_only
only the local Ollama backend is offered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := a.cfg

			svc, err := providers.FromConfig(ctx, cfg.Providers, a.logger)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			srv := server.New(svc, server.Options{
				Addr:           addr,
				ReadTimeout:    time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
				WriteTimeout:   time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
				Token:          cfg.Server.Token,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Logger:         a.logger,
			})

			out := cmd.OutOrStdout()
			printSuccess(out, "nbassist %s listening on http://%s/ai-assistant/", Version, addr)
			if err := checkOllama(ctx, cfg.Providers.OllamaURL); err != nil {
				printWarning(out, "local models unavailable: %v", err)
			}
			if cfg.Providers.LocalOnly {
				printWarning(out, "local-only mode: cloud backends are disabled")
			}
			if cfg.Server.Token == "" {
				printWarning(out, "no server token set; any local client can use the configured provider keys")
			}
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

// checkOllama reports whether the local model server answers.
func checkOllama(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: baseURL}).CheckRunning(ctx)
}
