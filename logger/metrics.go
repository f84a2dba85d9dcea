package logger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
)

const (
	defaultServiceName    = "proxsense"
	defaultExportInterval = 15 * time.Second
)

// ErrMetricsDisabled is returned when no collector endpoint is configured.
var ErrMetricsDisabled = errors.New("metrics exporter disabled")

var (
	meterMu       sync.Mutex
	meterProvider *sdkmetric.MeterProvider
)

// MetricsConfig selects the OTLP collector that receives sensor counters.
type MetricsConfig struct {
	Endpoint       string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure       bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	ServiceName    string            `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	ExportInterval time.Duration     `json:"-" yaml:"-"`
}

// InitializeMetrics installs a global MeterProvider exporting over OTLP/gRPC.
// Repeated calls return the provider already installed.
func InitializeMetrics(ctx context.Context, config MetricsConfig) (*sdkmetric.MeterProvider, error) {
	if config.Endpoint == "" {
		return nil, ErrMetricsDisabled
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(config.Endpoint)}
	if config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	if len(config.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP metric exporter: %w", err)
	}

	interval := config.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	return installMeterProvider(ctx, config.ServiceName, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
}

func installMeterProvider(ctx context.Context, serviceName string, reader sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	meterMu.Lock()
	defer meterMu.Unlock()

	if meterProvider != nil {
		return meterProvider, nil
	}

	if serviceName == "" {
		serviceName = defaultServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("create metrics resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(provider)
	meterProvider = provider
	return provider, nil
}

// ShutdownMetrics flushes and stops the installed provider, if any.
func ShutdownMetrics(ctx context.Context) error {
	meterMu.Lock()
	defer meterMu.Unlock()

	if meterProvider == nil {
		return nil
	}
	if err := meterProvider.Shutdown(ctx); err != nil {
		return err
	}
	meterProvider = nil
	return nil
}
