// Package telemetry wires the runtime's Operation and Event lifecycle
// into OpenTelemetry tracing. A nil Tracer anywhere in this module is
// a valid, zero-cost pass-through — tracing is an optional ambient
// concern, never a requirement for the core to function.
package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the process-wide TracerProvider and its exporter.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Init creates a TracerProvider that writes spans as JSON to w (pretty
// stdout by default). Call Shutdown before the process exits to flush
// pending spans.
func Init(serviceName string, w io.Writer) (*Provider, error) {
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}, nil
}

// Shutdown flushes any buffered spans and releases the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns a named Tracer off the global provider. Safe to call
// before Init; the global no-op provider answers until Init runs.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
