// Package telemetry records traces of a CLI invocation into a local file.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceName is the service.name resource attribute of recorded spans.
const ServiceName = "fp"

// Setup installs a global tracer provider that writes spans to path as
// OTLP/JSON. With an empty path tracing stays disabled.
//
// Parameters:
//   - path: File to append spans to, or ""
//   - version: The CLI version, recorded as service.version
//
// Returns:
//   - func(context.Context) error: Flushes pending spans and closes the file
//   - error: If the file can't be opened
func Setup(path, version string) (func(context.Context) error, error) {
	if path == "" {
		return func(context.Context) error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	provider := NewTracerProvider(NewFileExporter(f), version)
	otel.SetTracerProvider(provider)
	log.Debug("Tracing enabled", "file", path)

	return provider.Shutdown, nil
}

// NewTracerProvider creates a provider batching spans into exporter.
func NewTracerProvider(exporter sdktrace.SpanExporter, version string) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", version),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
}
