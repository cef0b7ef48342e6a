// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the nbassist command line.

	nbassist serve                      run the assistant backend service
	nbassist chat [notebook.ipynb]      open the assistant panel
	nbassist fix notebook.ipynb         fix the last (or --all) erroring cell
	nbassist backends                   list backends offered by the service
	nbassist settings                   show or change backend, model, key
	nbassist config                     show, get or set configuration

Every command loads the configuration once (config.Load or --config), builds
a redacting slog logger and runs under a context cancelled by SIGINT or
SIGTERM.
*/
package cli
