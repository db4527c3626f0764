package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/docvault/pkg/access"
	"github.com/platinummonkey/docvault/pkg/audit"
	"github.com/platinummonkey/docvault/pkg/config"
	"github.com/platinummonkey/docvault/pkg/database"
	"github.com/platinummonkey/docvault/pkg/documents"
	"github.com/platinummonkey/docvault/pkg/filetypes"
	"github.com/platinummonkey/docvault/pkg/growers"
	"github.com/platinummonkey/docvault/pkg/httpapi"
	"github.com/platinummonkey/docvault/pkg/migrations"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/storage"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

var version = "dev"

func main() {
	migrateOnly := flag.Bool("migrate", false, "Run database migrations and exit")
	userHeader := flag.String("user-header", "X-User-ID", "Header carrying the authenticated user id")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize OpenTelemetry")
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	if err := migrations.RunMigrations(ctx, db.Primary(), logger); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	if *migrateOnly {
		db.Close()
		return
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	if cfg.Observability.OTelEnabled {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			logger.WithError(err).Warn("OpenTelemetry metrics disabled")
		} else {
			metrics = metrics.WithOTel(otelMetrics)
		}
	}

	backend, err := storage.NewBackend(ctx, cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}
	store := storage.NewStore(backend,
		storage.WithMetrics(metrics),
		storage.WithLogger(logger),
		storage.WithLimits(cfg.Storage.MaxUploadSize, cfg.Storage.MaxReplaceSize),
		storage.WithScanBudget(cfg.Storage.ScanBudget),
	)
	logger.WithField("backend", store.BackendName()).Info("Storage initialized")

	var redisClient *redis.Client
	var loader rbac.Loader = rbac.NewStore(db.Replica())
	var invalidator growers.Invalidator
	if cfg.Cache.Enabled {
		var cache rbac.Cache
		if cfg.Cache.RedisURL != "" {
			opts, err := redis.ParseURL(cfg.Cache.RedisURL)
			if err != nil {
				logger.WithError(err).Fatal("Invalid Redis URL")
			}
			if cfg.Cache.RedisPassword != "" {
				opts.Password = cfg.Cache.RedisPassword
			}
			opts.DB = cfg.Cache.RedisDB
			redisClient = redis.NewClient(opts)
			cache = rbac.NewRedisCache(redisClient, cfg.Cache.RedisPrefix, cfg.Cache.TTL)
		} else {
			cache = rbac.NewMemoryCache(cfg.Cache.Size, cfg.Cache.TTL)
		}
		cached := rbac.NewCachedLoader(loader, cache, logger)
		loader, invalidator = cached, cached
	}
	principals := rbac.NewResolver(loader, cfg.RBACOptions())

	dbActivity, err := audit.NewDBLogger(db.Primary())
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize activity log")
	}
	activity := audit.NewMultiLogger(dbActivity, audit.NewLogrusLogger(logger))
	activity.SetAsync(true)
	activity.SetErrorLogger(logger)

	types := filetypes.NewResolver()
	builder := access.NewBuilder(cfg.AccessConfig(), types)
	growerRepo := growers.NewRepository(db)

	docs := documents.NewService(
		documents.NewPostgresRepository(db),
		store,
		filetypes.NewRepository(db.Replica()),
		growerRepo,
		documents.WithBuilder(builder),
		documents.WithActivityLogger(activity),
		documents.WithMetrics(metrics),
		documents.WithLogger(logger),
	)

	growerOpts := []growers.Option{growers.WithActivityLogger(activity), growers.WithLogger(logger)}
	if invalidator != nil {
		growerOpts = append(growerOpts, growers.WithInvalidator(invalidator))
	}
	catalog := growers.NewService(growerRepo, builder, growerOpts...)

	fileTypes := filetypes.NewService(
		filetypes.NewRepository(db.Primary()),
		builder,
		filetypes.WithActivityLogger(activity),
		filetypes.WithLogger(logger),
	)

	api := httpapi.NewHandler(
		docs,
		tenant.NewPostgresResolver(db.Replica()),
		httpapi.HeaderAuthenticator{Header: *userHeader},
		principals,
		logger,
		httpapi.Options{
			HideForbidden: cfg.Server.HideForbidden,
			Metrics:       metrics,
			Catalog:       catalog,
			FileTypes:     fileTypes,
			Usage:         store,
		},
	)

	var handler http.Handler = api.Router()
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "docvault")
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db.Primary(), redisClient, store, version))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.MetricsHandler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, server, healthServer)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return activity.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return db.Close()
	})
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(otelProviders.Shutdown)
	}

	for _, srv := range []*http.Server{server, healthServer} {
		go func(srv *http.Server) {
			defer observability.RecoverPanic(logger, "http server")
			logger.WithField("addr", srv.Addr).Info("Starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).WithField("addr", srv.Addr).Fatal("HTTP server failed")
			}
		}(srv)
	}

	logger.WithFields(logrus.Fields{
		"version":         version,
		"hide_forbidden":  cfg.Server.HideForbidden,
		"principal_cache": cfg.Cache.Enabled,
	}).Info("docvault started")

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown completed with errors")
		os.Exit(1)
	}
}
