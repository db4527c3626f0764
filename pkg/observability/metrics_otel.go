package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	accessDecisions   metric.Int64Counter
	storageOperations metric.Int64Counter
	storageDuration   metric.Float64Histogram
	storageBytes      metric.Int64Histogram
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return newOTelMetrics(otel.Meter("github.com/platinummonkey/docvault"))
}

func newOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.accessDecisions, err = meter.Int64Counter(
		"docvault.access.decisions",
		metric.WithDescription("Per-record capability decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access decisions counter: %w", err)
	}

	m.storageOperations, err = meter.Int64Counter(
		"docvault.storage.operations",
		metric.WithDescription("Blob storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage operations counter: %w", err)
	}

	m.storageDuration, err = meter.Float64Histogram(
		"docvault.storage.duration",
		metric.WithDescription("Blob storage operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage duration histogram: %w", err)
	}

	m.storageBytes, err = meter.Int64Histogram(
		"docvault.storage.bytes",
		metric.WithDescription("Blob size per storage operation"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage bytes histogram: %w", err)
	}

	return m, nil
}

func (m *OTelMetrics) recordAccessDecision(ctx context.Context, check, result string) {
	if m == nil {
		return
	}
	m.accessDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("result", result),
	))
}

func (m *OTelMetrics) recordStorageOperation(ctx context.Context, operation, backend, status string, duration time.Duration, bytes int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("backend", backend),
		attribute.String("status", status),
	)
	m.storageOperations.Add(ctx, 1, attrs)
	m.storageDuration.Record(ctx, duration.Seconds(), attrs)
	if bytes > 0 {
		m.storageBytes.Record(ctx, bytes, attrs)
	}
}
