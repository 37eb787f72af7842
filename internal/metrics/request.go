package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RequestMetrics defines the instrumentation recorded around request scopes:
// per-operation counts and durations, pool timeouts and session lifecycle
// events.
type RequestMetrics interface {
	// RecordQuery records one query operation with its status.
	// Operation examples: "event", "writableEvents". Status is "success"
	// or "error".
	RecordQuery(ctx context.Context, operation, status string)

	// RecordQueryDuration records how long an operation took, including
	// connection acquisition and commit.
	RecordQueryDuration(ctx context.Context, operation string, duration time.Duration, status string)

	// RecordPoolTimeout records a request rejected because no database
	// connection became available in time.
	RecordPoolTimeout(ctx context.Context)

	// RecordSessionEvent records a session lifecycle event: "login",
	// "logout" or "expired_removed".
	RecordSessionEvent(ctx context.Context, event string)
}

// requestMetrics implements RequestMetrics using OpenTelemetry metrics.
type requestMetrics struct {
	queryCounter   metric.Int64Counter
	durationHisto  metric.Float64Histogram
	timeoutCounter metric.Int64Counter
	sessionCounter metric.Int64Counter
}

// NewRequestMetrics creates a RequestMetrics implementation using the provided
// meter provider. The namespace parameter prefixes all metric names.
func NewRequestMetrics(meterProvider metric.MeterProvider, namespace string) (RequestMetrics, error) {
	meter := meterProvider.Meter(namespace)

	queryCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_queries_total", namespace),
		metric.WithDescription("Total number of query operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_query_duration_seconds", namespace),
		metric.WithDescription("Duration of query operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	timeoutCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_pool_timeouts_total", namespace),
		metric.WithDescription("Requests rejected waiting for a database connection"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool timeout counter: %w", err)
	}

	sessionCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_session_events_total", namespace),
		metric.WithDescription("Session lifecycle events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session counter: %w", err)
	}

	return &requestMetrics{
		queryCounter:   queryCounter,
		durationHisto:  durationHisto,
		timeoutCounter: timeoutCounter,
		sessionCounter: sessionCounter,
	}, nil
}

func (r *requestMetrics) RecordQuery(ctx context.Context, operation, status string) {
	r.queryCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

func (r *requestMetrics) RecordQueryDuration(
	ctx context.Context,
	operation string,
	duration time.Duration,
	status string,
) {
	r.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

func (r *requestMetrics) RecordPoolTimeout(ctx context.Context) {
	r.timeoutCounter.Add(ctx, 1)
}

func (r *requestMetrics) RecordSessionEvent(ctx context.Context, event string) {
	r.sessionCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("event", event)),
	)
}

// NoOpRequestMetrics is a no-op implementation of RequestMetrics for when
// metrics are disabled.
type NoOpRequestMetrics struct{}

// NewNoOpRequestMetrics creates a no-op RequestMetrics implementation.
func NewNoOpRequestMetrics() RequestMetrics {
	return &NoOpRequestMetrics{}
}

// RecordQuery does nothing when metrics are disabled.
func (n *NoOpRequestMetrics) RecordQuery(ctx context.Context, operation, status string) {}

// RecordQueryDuration does nothing when metrics are disabled.
func (n *NoOpRequestMetrics) RecordQueryDuration(
	ctx context.Context,
	operation string,
	duration time.Duration,
	status string,
) {
}

// RecordPoolTimeout does nothing when metrics are disabled.
func (n *NoOpRequestMetrics) RecordPoolTimeout(ctx context.Context) {}

// RecordSessionEvent does nothing when metrics are disabled.
func (n *NoOpRequestMetrics) RecordSessionEvent(ctx context.Context, event string) {}
