// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"syscall"
	"time"

	"github.com/tomtom215/solutio/internal/api"
	"github.com/tomtom215/solutio/internal/cache"
	"github.com/tomtom215/solutio/internal/config"
	"github.com/tomtom215/solutio/internal/connectivity"
	"github.com/tomtom215/solutio/internal/events"
	"github.com/tomtom215/solutio/internal/interceptor"
	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/metrics"
	"github.com/tomtom215/solutio/internal/middleware"
	"github.com/tomtom215/solutio/internal/notify"
	"github.com/tomtom215/solutio/internal/queue"
	"github.com/tomtom215/solutio/internal/records"
	"github.com/tomtom215/solutio/internal/store"
	"github.com/tomtom215/solutio/internal/supervisor"
	"github.com/tomtom215/solutio/internal/supervisor/services"
	"github.com/tomtom215/solutio/internal/syncer"
	"github.com/tomtom215/solutio/internal/upstream"
	ws "github.com/tomtom215/solutio/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// csrfTokenTTL is how long a fetched anti-forgery token is reused.
const csrfTokenTTL = 10 * time.Minute

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("upstream", cfg.Upstream.URL).
		Str("store_path", cfg.Store.Path).
		Str("cache_version", cfg.Interceptor.CacheVersion).
		Msg("Starting Solutio with supervisor tree")
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	// === OFFLINE DATA ===

	storeCfg := store.DefaultConfig()
	storeCfg.Path = cfg.Store.Path
	storeCfg.SyncWrites = cfg.Store.SyncWrites
	storeCfg.MaxSizeBytes = cfg.Store.MaxSizeBytes
	storeCfg.CacheTTL = cfg.Store.CacheTTL
	storeCfg.GCRatio = cfg.Store.GCDiscardRatio
	storeCfg.CloseTimeout = cfg.Store.CloseTimeout

	st, err := store.Open(storeCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Msg("Store opened successfully")

	q, err := queue.New(st, queue.Config{
		MaxRetries:      cfg.Queue.MaxRetries,
		MaxEntries:      int64(cfg.Queue.MaxEntries),
		SyncedRetention: cfg.Queue.SyncedRetention,
		CompactInterval: cfg.Queue.CompactInterval,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize mutation queue")
	}
	compactor := queue.NewCompactor(q, st)
	rs := records.New(st, q)

	bus := events.NewBus(events.DefaultConfig())
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	// === UPSTREAM ===

	client, err := upstream.New("upstream", upstream.Config{
		BaseURL:           cfg.Upstream.URL,
		Timeout:           cfg.Upstream.Timeout,
		MaxRequests:       cfg.Upstream.BreakerMaxRequests,
		Interval:          cfg.Upstream.BreakerInterval,
		BreakerTimeout:    cfg.Upstream.BreakerTimeout,
		FailureThreshold:  cfg.Upstream.BreakerFailureThreshold,
		FailureRatio:      cfg.Upstream.BreakerFailureRatio,
		MinimumRequests:   cfg.Upstream.BreakerMinimumRequests,
		TripOnServerError: cfg.Upstream.BreakerTripOnServerError,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	monitor, err := connectivity.New(connectivity.Config{
		HealthURL:     cfg.Upstream.HealthURL(),
		ProbeInterval: cfg.Connectivity.ProbeInterval,
		ProbeTimeout:  cfg.Connectivity.ProbeTimeout,
	}, bus)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create connectivity monitor")
	}
	client.SetReporter(monitor)

	// === INTERCEPTOR ===

	icCfg := interceptor.DefaultConfig()
	icCfg.CacheVersion = cfg.Interceptor.CacheVersion
	icCfg.APIPrefixes = cfg.Interceptor.APIPrefixes
	icCfg.StaticPrefixes = cfg.Interceptor.StaticPrefixes
	icCfg.ExcludedPrefixes = cfg.Interceptor.ExcludedPrefixes
	icCfg.PrecachePaths = cfg.Interceptor.PrecachePaths
	icCfg.OfflinePath = cfg.Interceptor.OfflinePath
	icCfg.HotCacheTTL = cfg.Interceptor.HotCacheTTL
	icCfg.MaxBodyBytes = cfg.Interceptor.MaxBodyBytes

	ic, err := interceptor.New(icCfg, client, st, q, rs, bus)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create interceptor")
	}
	defer ic.Close()

	// === SYNC AND NOTIFICATIONS ===

	tokenMemo := cache.New("csrf", csrfTokenTTL)
	defer tokenMemo.Close()
	tokens := syncer.NewCookieTokenSource(client, cfg.Upstream.CSRFURL(), cfg.Upstream.CSRFCookie, tokenMemo, csrfTokenTTL)

	syncCfg := syncer.DefaultConfig()
	syncCfg.Interval = cfg.Sync.Interval
	syncCfg.ReplayTimeout = cfg.Sync.ReplayTimeout
	syncCfg.ReplayRate = cfg.Sync.ReplayRate
	syncCfg.ReplayBurst = cfg.Sync.ReplayBurst
	syncCfg.OnStartup = cfg.Sync.OnStartup
	syncCfg.CSRFHeader = cfg.Upstream.CSRFHeader
	syncCfg.CSRFCookie = cfg.Upstream.CSRFCookie

	coord, err := syncer.New(syncCfg, q, rs, client, tokens, bus)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create sync coordinator")
	}
	coord.DrainOnReconnect(monitor)

	wsHub := ws.NewHub()
	wsHub.SetSyncHandler(func() {
		coord.Trigger(syncer.TriggerManual)
	})

	notifyCfg := notify.DefaultConfig()
	notifyCfg.MaxVisible = cfg.Notify.MaxVisible
	notifyCfg.DismissAfter = cfg.Notify.DismissAfter
	notifyCfg.DefaultTitle = cfg.Notify.DefaultTitle
	notifyCfg.DefaultBody = cfg.Notify.DefaultBody
	notifyCfg.Icon = cfg.Notify.Icon
	notifyCfg.Badge = cfg.Notify.Badge

	center, err := notify.New(notifyCfg, wsHub)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create notification center")
	}
	defer center.Close()

	// === CACHE LIFECYCLE ===

	installCtx, installCancel := context.WithTimeout(context.Background(), cfg.Upstream.Timeout)
	if _, err := ic.Precache(installCtx); err != nil {
		logging.Warn().Err(err).Msg("Precache incomplete, offline copies will fill as pages are visited")
	}
	activated, err := ic.Activate(installCtx)
	installCancel()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to activate cache version")
	} else if activated.Changed {
		logging.Info().
			Str("version", activated.Version).
			Str("previous", activated.PreviousVersion).
			Int("pruned", activated.Pruned).
			Msg("Cache version changed")
		center.AnnounceUpdate(activated.Version)
	}

	// === HTTP ===

	handler := api.NewHandler(api.Deps{
		Config:      cfg,
		Version:     version,
		Store:       st,
		Queue:       q,
		Compactor:   compactor,
		Records:     rs,
		Syncer:      coord,
		Monitor:     monitor,
		Client:      client,
		Interceptor: ic,
		Notify:      center,
		Hub:         wsHub,
		Perf:        middleware.NewPerformanceMonitor(1000, time.Second),
	})
	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(cfg.Security))

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if cfg.IsProduction() && slices.Contains(cfg.Security.CORSOrigins, "*") {
		logging.Warn().Msg("CORS_ORIGINS=* in production lets any site drive the /_offline control API")
	}

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === SUPERVISOR TREE ===

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewComponentService("queue-compactor", compactor))

	tree.AddSyncService(services.NewComponentService("connectivity-monitor", monitor))
	tree.AddSyncService(services.NewComponentService("sync-coordinator", coord))
	tree.AddSyncService(services.NewFuncService("notify-consumer", func(ctx context.Context) error {
		return center.Consume(ctx, bus, handler.SyncStatus)
	}))
	logging.Info().Msg("Sync services added to supervisor tree")

	tree.AddAPIService(wsHub)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
