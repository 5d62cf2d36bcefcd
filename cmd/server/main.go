// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/sentinel/internal/api"
	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/cache"
	"github.com/tomtom215/sentinel/internal/config"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/monitor"
	"github.com/tomtom215/sentinel/internal/session"
	"github.com/tomtom215/sentinel/internal/supervisor"
	"github.com/tomtom215/sentinel/internal/supervisor/services"
	"github.com/tomtom215/sentinel/internal/websocket"
)

// readHeaderTimeout bounds slow-header clients regardless of configuration.
const readHeaderTimeout = 10 * time.Second

//nolint:gocyclo // Sequential wiring of every component
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.LoggingSettings())
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("audit_store", cfg.Audit.Store).
		Str("session_store", cfg.Session.Store).
		Bool("monitor_enabled", cfg.Monitor.Enabled).
		Msg("Starting Sentinel")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit
	auditStore, closeAuditStore, err := initAuditStore(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize audit store")
	}
	defer closeAuditStore()
	auditLogger := audit.NewLogger(auditStore, cfg.AuditConfig(), nil)
	auditWAL, closeAuditWAL, err := initAuditWAL(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize audit WAL")
	}
	defer closeAuditWAL()
	if auditWAL != nil {
		auditLogger.SetSpool(auditWAL)
	}

	// Sessions
	storeFactory, err := session.NewStoreFactory(ctx, cfg.SessionStoreOptions())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize session store")
	}
	defer func() {
		if err := storeFactory.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()
	sessions := session.NewManager(storeFactory.CreateStore(), auditLogger, cfg.SessionConfig(), nil)
	logging.Info().Str("store", string(storeFactory.Type())).Msg("Session manager initialized")

	// Monitor
	var mon *monitor.Monitor
	var stream *websocket.Hub
	if cfg.Monitor.Enabled {
		var extra []monitor.AlertSink
		if cfg.Alerts.StreamEnabled {
			stream = websocket.NewHub(websocket.HubConfig{AllowedOrigins: cfg.Server.CORSOrigins})
			extra = append(extra, stream)
		}
		sink, closeSinks := initAlertSinks(cfg, extra...)
		defer closeSinks()
		mon = monitor.New(auditLogger, sink, cfg.MonitorThresholds(), nil)
		logging.Info().Dur("interval", cfg.Monitor.Interval).Msg("Security monitor initialized")
	} else {
		logging.Info().Msg("Security monitor disabled (MONITOR_ENABLED=false)")
	}

	// HTTP
	var sweeper api.Sweeper
	if mon != nil {
		sweeper = mon
	}
	handler := api.NewHandler(auditLogger, sessions, sweeper)
	var queryCache *cache.Cache
	if cfg.Server.QueryCacheTTL > 0 {
		queryCache = cache.New("api", cfg.Server.QueryCacheTTL, cache.DefaultMaxEntries)
		handler.WithQueryCache(queryCache)
	}
	router := api.NewRouter(handler, api.NewMiddleware(middlewareConfig(cfg)))
	if stream != nil {
		router.WithAlertStream(stream)
	}
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Supervisor tree
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.TreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewAuditDrainService(auditLogger))
	cleanup, err := services.NewSessionCleanupService(sessions, cfg.Session.CleanupInterval)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create session cleanup service")
	}
	tree.AddDataService(cleanup)
	if auditWAL != nil {
		retry, err := services.NewWALRetryService(auditWAL, auditLogger, cfg.Audit.WALRetryInterval)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create audit WAL retry service")
		}
		tree.AddDataService(retry)
	}
	if queryCache != nil {
		cacheCleanup, err := services.NewCacheCleanupService(queryCache, cacheCleanupInterval(cfg.Server.QueryCacheTTL))
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create cache cleanup service")
		}
		tree.AddDataService(cacheCleanup)
	}

	if mon != nil {
		sweep, err := services.NewMonitorSweepService(mon, cfg.Monitor.Interval, cfg.Monitor.SweepTimeout)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create monitor sweep service")
		}
		tree.AddMonitorService(sweep)
	}
	if stream != nil {
		tree.AddMonitorService(stream)
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	watchConfig()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	// The drain service closes the logger on a clean stop; Close is idempotent.
	// The WAL closes after it, so a late store failure can still spool.
	if err := auditLogger.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing audit logger")
	}

	logging.Info().Msg("Sentinel stopped")
}

// middlewareConfig maps server settings to the API middleware. Ingest
// endpoints get ten times the query limit.
func middlewareConfig(cfg *config.Config) api.MiddlewareConfig {
	mw := api.DefaultMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mw.RateLimitRequests = cfg.Server.RateLimitRequests
	mw.RateLimitWindow = cfg.Server.RateLimitWindow
	mw.IngestRateLimit = cfg.Server.RateLimitRequests * 10
	return mw
}

// cacheCleanupInterval sweeps the query cache at most once a minute.
func cacheCleanupInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return time.Minute
	}
	return ttl
}

// watchConfig logs configuration file changes. Settings are read once at
// startup, so a change needs a restart.
func watchConfig() {
	path := config.FilePath()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		logging.Warn().Str("path", path).Msg("Configuration file changed; restart to apply")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Failed to watch configuration file")
	}
}
