// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

/*
Package services adapts gateway components to suture.Service.

Components that already implement Serve(ctx) error (the WebSocket hub) are
added to the tree directly. The rest are wrapped:

  - ComponentService: Start(ctx)/Stop()/IsRunning() loops such as the queue
    compactor, the connectivity monitor and the sync coordinator
  - FuncService: a blocking func(ctx) error such as the notification consumer
  - HTTPServerService: an *http.Server with graceful shutdown

Every wrapper returns ctx.Err() on a requested shutdown and a wrapped error
on failure, so suture restarts it with backoff. String() names the service
in supervisor log events.

Example:

	tree.AddDataService(services.NewComponentService("queue-compactor", compactor))
	tree.AddSyncService(services.NewComponentService("sync-coordinator", coordinator))
	tree.AddSyncService(services.NewFuncService("notify-consumer", consume))
	tree.AddAPIService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
*/
package services
