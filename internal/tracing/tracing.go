// Package tracing installs the OpenTelemetry tracer provider used by the
// service spans.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"onboard/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Shutdown flushes pending spans and stops the provider.
type Shutdown func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs a global tracer provider for cfg. The "none" exporter
// leaves the default no-op provider in place.
func Setup(cfg config.TracingConfig, serviceName string) (Shutdown, error) {
	return setup(cfg, serviceName, os.Stdout)
}

func setup(cfg config.TracingConfig, serviceName string, out io.Writer) (Shutdown, error) {
	var exp sdktrace.SpanExporter
	switch cfg.Exporter {
	case "", "none":
		return noopShutdown, nil
	case "stdout":
		e, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		exp = e
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}

	tp := NewProvider(exp, serviceName, cfg.SampleRatio)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// NewProvider batches spans into exp, sampling root spans at ratio.
func NewProvider(exp sdktrace.SpanExporter, serviceName string, ratio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
}
