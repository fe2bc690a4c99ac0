// Package observability provides OpenTelemetry instrumentation for tracing and metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ShivamThakkar1/imgtovideo/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes the OpenTelemetry metrics provider with a Prometheus exporter.
// It returns the HTTP handler for the /metrics endpoint and a shutdown function.
// The handler also serves collectors registered through promauto.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// RegisterJobGauge exposes the number of jobs per status, read from counts on
// every collection.
func RegisterJobGauge(counts func(context.Context) (store.StatusCounts, error)) error {
	meter := otel.Meter("imgtovideo/jobs")
	gauge, err := meter.Int64ObservableGauge("imgtovideo.jobs",
		otelmetric.WithDescription("Jobs currently held, by status"))
	if err != nil {
		return fmt.Errorf("failed to create jobs gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, o otelmetric.Observer) error {
		c, err := counts(ctx)
		if err != nil {
			return err
		}
		for status, n := range map[store.JobStatus]int{
			store.JobStatusQueued:     c.Queued,
			store.JobStatusProcessing: c.Processing,
			store.JobStatusCompleted:  c.Completed,
			store.JobStatusFailed:     c.Failed,
		} {
			o.ObserveInt64(gauge, int64(n), otelmetric.WithAttributes(attribute.String("status", string(status))))
		}
		return nil
	}, gauge)
	if err != nil {
		return fmt.Errorf("failed to register jobs gauge callback: %w", err)
	}
	return nil
}
