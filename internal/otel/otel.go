// Package otel wires the OpenTelemetry SDK for acquisition tracing. Which
// span exporters run is config-driven: the OTLP HTTP exporter ships spans to
// a collector, and a stdout exporter mirrors them for local debugging.
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"

	"github.com/argus-sec/argus/internal/config"
)

// SetupOTelSDK installs the global tracer provider. The returned shutdown
// function flushes pending spans and must be called before process exit.
func SetupOTelSDK(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	exporters, err := buildExporters(ctx, config.AppConfig.OTLP)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	opts := []trace.TracerProviderOption{trace.WithResource(res)}
	for _, exporter := range exporters {
		opts = append(opts, trace.WithBatcher(exporter, trace.WithBatchTimeout(time.Second)))
	}

	provider := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// buildExporters resolves the configured span exporters. With no exporter
// flag set, spans are still recorded for in-process consumers but never
// leave the process.
func buildExporters(ctx context.Context, cfg config.OTLPConfig) ([]trace.SpanExporter, error) {
	var exporters []trace.SpanExporter

	if cfg.EnableOTLPExporter {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}

		exporters = append(exporters, exporter)
	}

	if cfg.OTLPStdOut {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}

		exporters = append(exporters, exporter)
	}

	return exporters, nil
}
