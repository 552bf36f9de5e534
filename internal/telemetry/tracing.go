// Package telemetry configures OpenTelemetry tracing for the relay.
//
// Spans created by the relay use the `relay.` prefix for custom
// attributes; Bot API calls are recorded as client spans named after the
// method (e.g. "telegram.copyMessage").
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName = "tgrelay"
	tracerName  = "github.com/flemzord/tgrelay"
)

// Config selects the OTLP/HTTP collector.
type Config struct {
	// Endpoint is host:port of the collector. Empty disables tracing.
	Endpoint string `yaml:"endpoint"`
	// Insecure sends spans over plain HTTP.
	Insecure bool `yaml:"insecure"`
	// SampleRatio is the fraction of root spans kept. Zero keeps all.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Validate checks the sampling ratio.
func (c Config) Validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("tracing: sample_ratio %v must be between 0 and 1", c.SampleRatio)
	}
	return nil
}

// Tracer returns the process-wide tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider installs a global trace provider exporting over
// OTLP/HTTP. If cfg.Endpoint is empty the global provider is left as the
// noop default. The returned function flushes and stops the exporter.
func InitTraceProvider(ctx context.Context, cfg Config, version string) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
