// Package telemetry wires OpenTelemetry tracing, metrics and logs for the
// editor backend, plus Pyroscope continuous profiling.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// ServiceVersion is reported on every resource
const ServiceVersion = "1.0.0"

const shutdownTimeout = 10 * time.Second

// Collector is the OTLP/gRPC endpoint shared by the span, metric and log
// exporters, and the service name they report under.
type Collector struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
}

func (c Collector) resource() (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(c.ServiceName),
		semconv.ServiceVersion(ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build %s resource: %w", c.ServiceName, err)
	}
	return res, nil
}

// stop runs a provider shutdown bounded by shutdownTimeout
func stop(ctx context.Context, what string, log *zap.Logger, shutdown func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Error("Telemetry shutdown failed", zap.String("signal", what), zap.Error(err))
		return fmt.Errorf("shutdown %s provider: %w", what, err)
	}
	log.Debug("Telemetry provider stopped", zap.String("signal", what))
	return nil
}
