package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"

	_ "github.com/lib/pq"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/warden/pkg/admin"
	"github.com/platinummonkey/warden/pkg/api"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/cache"
	"github.com/platinummonkey/warden/pkg/config"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/rbac"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("OpenTelemetry initialization failed, continuing without it")
	}

	var otelMetrics *observability.OTelMetrics
	if providers != nil {
		if otelMetrics, err = observability.NewOTelMetrics(); err != nil {
			logger.WithError(err).Warn("Failed to create OpenTelemetry instruments")
		}
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	// Role catalog. Startup aborts if it cannot be loaded.
	catalog, watcher := setupCatalog(ctx, cfg.Catalog, metrics)
	logger.WithFields(map[string]interface{}{
		"version": catalog.Version(),
		"roles":   catalog.Snapshot().Len(),
	}).Info("Role catalog loaded")

	// Tenant directory
	directory := orgs.NewMemoryDirectory()
	if cfg.Directory.SeedFile != "" {
		seed, err := orgs.LoadSeedFile(cfg.Directory.SeedFile)
		if err != nil {
			log.Fatalf("Failed to load directory seed: %v", err)
		}
		seed.Apply(directory)
	}

	var db *sql.DB
	var store *orgs.SQLStore
	var syncer *orgs.Syncer
	if cfg.Directory.Type == "postgres" {
		db, err = sql.Open("postgres", cfg.Directory.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}

		store = orgs.NewSQLStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare directory schema: %v", err)
		}

		syncer = orgs.NewSyncer(store, directory, cfg.Directory.SyncSchedule, logger)
		if err := syncer.Start(ctx); err != nil {
			log.Fatalf("Failed to start directory sync: %v", err)
		}
	}

	// Decision cache
	decisions, redisClient := setupCache(ctx, cfg.Cache, logger, metrics)
	catalog.OnReload(func(snap *rbac.Snapshot) {
		if err := decisions.InvalidateAll(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to invalidate decision cache after catalog reload")
		}
		logger.WithField("version", snap.Version).Info("Role catalog reloaded")
	})
	directory.OnOrganizationStatusChange(func(orgID string, active bool) {
		if err := decisions.InvalidateOrganization(context.Background(), orgID); err != nil {
			logger.WithError(err).WithField("organization_id", orgID).Warn("Failed to invalidate organization decisions")
		}
	})

	// Audit recorder
	sink := setupAuditSink(cfg.Audit, db, logger)
	recorder := audit.NewRecorder(sink, audit.RecorderConfig{
		QueueSize: cfg.Audit.QueueSize,
		Logger:    logger,
		Metrics:   metrics,
		OTel:      otelMetrics,
	})

	evaluator := rbac.NewEvaluator(catalog, directory,
		rbac.WithCache(decisions),
		rbac.WithRecorder(recorder),
		rbac.WithMetrics(metrics),
		rbac.WithOTelMetrics(otelMetrics),
		rbac.WithLogger(logger),
	)

	adminOpts := []admin.Option{admin.WithRecorder(recorder), admin.WithLogger(logger)}
	if store != nil {
		adminOpts = append(adminOpts, admin.WithStore(store))
	}
	adminService := admin.NewService(catalog, directory, adminOpts...)

	serverOpts := []api.Option{
		api.WithLogger(logger),
		api.WithHealthChecker(observability.NewHealthChecker(db, redisClient, cfg.Observability.OTelServiceVersion)),
	}
	if metrics != nil {
		serverOpts = append(serverOpts, api.WithMetrics(metrics), api.WithMetricsHandler(observability.MetricsHandler(registry)))
	}
	server := api.NewServer(evaluator, adminService, serverOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(server, "warden"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Shutdown functions run in reverse order
	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	if db != nil {
		shutdown.RegisterShutdownFunc("database", func(ctx context.Context) error { return db.Close() })
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(ctx context.Context) error { return redisClient.Close() })
	}
	shutdown.RegisterShutdownFunc("audit", recorder.Close)
	if syncer != nil {
		shutdown.RegisterShutdownFunc("directory-sync", syncer.Stop)
	}
	if watcher != nil {
		shutdown.RegisterShutdownFunc("catalog-watcher", func(ctx context.Context) error { return watcher.Stop() })
	}

	go func() {
		logger.Infof("Starting Warden permission service on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown completed with errors")
		os.Exit(1)
	}
	logger.Info("Warden stopped")
}

func setupCatalog(ctx context.Context, cfg config.CatalogConfig, metrics *observability.Metrics) (*rbac.Catalog, *rbac.Watcher) {
	var source rbac.DefinitionSource = rbac.NewStaticSource(rbac.DefaultDefinition())
	if cfg.Path != "" {
		source = rbac.NewFileSource(cfg.Path, logrus.StandardLogger())
	}

	catalog, err := rbac.NewCatalog(ctx, source, rbac.WithCatalogMetrics(metrics))
	if err != nil {
		log.Fatalf("Failed to load role catalog: %v", err)
	}

	if !cfg.Watch {
		return catalog, nil
	}

	watcher, err := rbac.NewWatcher(catalog, cfg.Path, rbac.DefaultWatchDelay, logrus.StandardLogger())
	if err != nil {
		log.Fatalf("Failed to create catalog watcher: %v", err)
	}
	watcher.Start()
	return catalog, watcher
}

func setupCache(ctx context.Context, cfg config.CacheConfig, logger *observability.Logger, metrics *observability.Metrics) (cache.Cache, *redis.Client) {
	if !cfg.Enabled {
		logger.Info("Decision cache disabled")
		return cache.NewNoop(), nil
	}

	if cfg.Backend == "redis" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		logger.Info("Using Redis decision cache")
		return cache.NewRedisCache(client, cfg.TTL, logger, metrics), client
	}

	logger.WithField("max_entries", cfg.MaxEntries).Info("Using in-memory decision cache")
	return cache.NewMemoryCache(cfg.MaxEntries, cfg.TTL, metrics), nil
}

func setupAuditSink(cfg config.AuditConfig, db *sql.DB, logger *observability.Logger) audit.Logger {
	var sinks []audit.Logger

	if cfg.FileDir != "" {
		fileCfg := audit.DefaultFileLoggerConfig()
		fileCfg.BasePath = cfg.FileDir
		fileLogger, err := audit.NewFileLogger(fileCfg)
		if err != nil {
			log.Fatalf("Failed to create audit file logger: %v", err)
		}
		sinks = append(sinks, fileLogger)
	}

	if cfg.Database {
		if db == nil {
			log.Fatalf("Database audit requires the postgres directory")
		}
		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			log.Fatalf("Failed to create audit database logger: %v", err)
		}
		sinks = append(sinks, dbLogger)
	}

	switch len(sinks) {
	case 0:
		logger.Warn("No audit sink configured, audit records are discarded")
		return audit.NewNoOpLogger()
	case 1:
		return sinks[0]
	default:
		return audit.NewMultiLogger(sinks...)
	}
}
