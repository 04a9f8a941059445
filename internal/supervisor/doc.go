// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

/*
Package supervisor runs the gateway's long-lived components under a suture v4
supervisor tree.

# Overview

	RootSupervisor ("solutio")
	├── DataSupervisor ("data-layer")
	│   └── queue-compactor
	├── SyncSupervisor ("sync-layer")
	│   ├── connectivity-monitor
	│   ├── sync-coordinator
	│   └── notify-consumer
	└── APISupervisor ("api-layer")
	    ├── websocket-hub
	    └── http-server

Crashed services restart with backoff once FailureThreshold failures
accumulate (decaying at FailureDecay per second). Layers count failures
independently, so a sync loop that keeps failing never takes the proxy down.

Supervisor events (start, stop, panic, backoff) are logged through the
zerolog-backed slog adapter using sutureslog.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddDataService(services.NewComponentService("queue-compactor", compactor))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor tree stopped")
	}

Service wrappers live in the services subpackage.
*/
package supervisor
