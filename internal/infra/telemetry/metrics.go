// internal/infra/telemetry/metrics.go
package telemetry

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// MetricsOptions selects where instruments are exported.
type MetricsOptions struct {
	Version string

	// Stdout prints every collection to Writer (nil means os.Stdout).
	Stdout bool
	Writer io.Writer

	// OTLPEndpoint is a full OTLP/HTTP metrics URL (e.g. http://collector:4318/v1/metrics).
	OTLPEndpoint string

	// Interval between exports (0 means one minute).
	Interval time.Duration
}

// SetupMetrics installs a global meter provider so instruments created through
// otel.Meter record real values. Shutdown exports one last collection.
func SetupMetrics(ctx context.Context, o MetricsOptions) (ShutdownFunc, error) {
	interval := o.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(o.Version),
		)),
	}

	if o.Stdout {
		exOpts := []stdoutmetric.Option{stdoutmetric.WithPrettyPrint()}
		if o.Writer != nil {
			exOpts = append(exOpts, stdoutmetric.WithWriter(o.Writer))
		}
		exporter, err := stdoutmetric.New(exOpts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
	}

	if endpoint := strings.TrimSpace(o.OTLPEndpoint); endpoint != "" {
		exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
