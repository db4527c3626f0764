// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing and health checks.
//
// # Structured Logging
//
// Loggers are plain logrus loggers with the JSON formatter:
//
//	logger := observability.NewLogger("info", os.Stdout)
//	observability.FromContext(ctx, logger).Warn("blob delete failed")
//
// FromContext adds request_id, tenant_id, user_id and the active trace ids.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordAccessDecision(ctx, "edit", true)
//
// Record* helpers are safe on a nil *Metrics so components can run
// without instrumentation in tests. WithOTel mirrors the storage and
// access measurements into OpenTelemetry instruments.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "docvault",
//		Insecure:    true,
//	}, logger)
//	defer providers.Shutdown(ctx)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, blobStore, version)
//	observability.RegisterHealthRoutes(mux, checker)
package observability
