// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jeranaias/nbassist/internal/actions"
	"github.com/jeranaias/nbassist/internal/assistant"
	"github.com/jeranaias/nbassist/internal/config"
	"github.com/jeranaias/nbassist/internal/gateway"
	"github.com/jeranaias/nbassist/internal/logging"
	"github.com/jeranaias/nbassist/internal/notebook"
	"github.com/jeranaias/nbassist/internal/settings"
)

type globalFlags struct {
	configPath string
	logLevel   string
	gatewayURL string
}

// app holds what every command shares once PersistentPreRunE ran.
type app struct {
	flags   globalFlags
	cfg     *config.Config
	logger  *slog.Logger
	logFile io.Closer
}

// init loads the configuration and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.flags.configPath != "" {
		cfg, err = config.LoadFromPath(a.flags.configPath)
		if err != nil {
			return err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return err
		}
		if err != nil {
			printWarning(cmd.ErrOrStderr(), "%v (using defaults)", err)
		}
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if a.flags.gatewayURL != "" {
		cfg.Gateway.URL = a.flags.gatewayURL
	}
	a.cfg = cfg

	out := cmd.ErrOrStderr()
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.logFile = f
		out = f
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	slog.SetDefault(logger)
	return nil
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

// settingsHandle owns the selection manager and its store.
type settingsHandle struct {
	Manager *settings.Manager
	file    *settings.FileStore
	closeFn func() error
}

// Close flushes pending writes and releases the store.
func (h *settingsHandle) Close(ctx context.Context) error {
	err := h.Manager.Close(ctx)
	if h.closeFn != nil {
		err = errors.Join(err, h.closeFn())
	}
	return err
}

// openSettings builds the selection manager over the configured store and
// loads the stored selection.
func (a *app) openSettings(ctx context.Context) (*settingsHandle, error) {
	h := &settingsHandle{}
	var store settings.ConfigStore

	switch strings.ToLower(a.cfg.Settings.Store) {
	case "memory":
		store = settings.NewMemoryStore()
	case "sqlite":
		path, err := a.cfg.SettingsPath()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create settings directory: %w", err)
		}
		db, err := settings.OpenSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		store = db
		h.closeFn = db.Close
	default:
		path, err := a.cfg.SettingsPath()
		if err != nil {
			return nil, err
		}
		h.file = settings.NewFileStore(path)
		store = h.file
	}

	sealer, err := a.sealer()
	if err != nil {
		if h.closeFn != nil {
			_ = h.closeFn()
		}
		return nil, err
	}

	h.Manager = settings.NewManager(settings.Options{
		Store:    store,
		Logger:   a.logger,
		Sealer:   sealer,
		Debounce: a.cfg.Settings.Debounce(),
	})
	h.Manager.Load(ctx)
	return h, nil
}

// sealer returns a credential sealer when a passphrase is configured.
func (a *app) sealer() (*settings.Sealer, error) {
	passphrase := a.cfg.Settings.Passphrase()
	if passphrase == "" {
		return nil, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	salt, err := settings.LoadOrCreateSalt(filepath.Join(dir, "settings.salt"))
	if err != nil {
		return nil, err
	}
	return settings.NewSealer(passphrase, salt)
}

// watchSettings reloads the selection when the settings file changes on
// disk. It returns immediately; watching stops with ctx.
func (a *app) watchSettings(ctx context.Context, h *settingsHandle) {
	if !a.cfg.Settings.Watch || h.file == nil {
		return
	}
	go func() {
		err := h.file.Watch(ctx, a.cfg.Settings.Debounce(), a.logger, func() {
			h.Manager.Load(ctx)
		})
		if err != nil {
			a.logger.Warn("settings watch stopped", "error", err)
		}
	}()
}

// =============================================================================
// GATEWAY AND ENGINE
// =============================================================================

func (a *app) newGateway() *gateway.Client {
	return gateway.NewClientWithConfig(&gateway.ClientConfig{
		BaseURL: a.cfg.Gateway.URL,
		Timeout: a.cfg.Gateway.Timeout(),
		Token:   a.cfg.Gateway.Token,
		Logger:  a.logger,
	})
}

// clipboards returns the primary and fallback clipboards for ui.clipboard.
func (a *app) clipboards(out io.Writer) (actions.Clipboard, actions.Clipboard) {
	osc := actions.OSC52Clipboard{Out: out}
	switch strings.ToLower(a.cfg.UI.Clipboard) {
	case "system":
		return actions.SystemClipboard{}, nil
	case "osc52":
		return osc, nil
	case "none":
		return nil, nil
	default:
		return actions.SystemClipboard{}, osc
	}
}

// newEngine builds an engine over doc (nil for none) and the given selection.
func (a *app) newEngine(mgr *settings.Manager, doc notebook.Document, clipOut io.Writer) (*assistant.Engine, error) {
	primary, fallback := a.clipboards(clipOut)
	return assistant.New(assistant.Options{
		Gateway:        a.newGateway(),
		Settings:       mgr,
		Document:       doc,
		Actions:        actions.NewDispatcher(doc, primary, fallback, a.logger),
		Logger:         a.logger,
		FixConcurrency: a.cfg.Assistant.FixConcurrency,
		FixRate:        rate.Limit(a.cfg.Assistant.FixRate),
		FixBurst:       a.cfg.Assistant.FixBurst,
	})
}

// loadNotebook opens an .ipynb file, or returns an empty document for "".
func loadNotebook(path string) (*notebook.Notebook, error) {
	if path == "" {
		return notebook.New(), nil
	}
	nb, err := notebook.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open notebook: %w", err)
	}
	return nb, nil
}
