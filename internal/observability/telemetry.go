// Package observability wires OpenTelemetry tracing.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds telemetry configuration
type Config struct {
	Enabled     bool
	Endpoint    string  // localhost:4318
	ServiceName string  // ttlcache
	SampleRate  float64 // 0.0 to 1.0
}

// Provider wraps the OpenTelemetry TracerProvider
type Provider struct {
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
	enabled bool
}

var (
	mu             sync.RWMutex
	globalProvider = &Provider{tracer: noop.NewTracerProvider().Tracer("")}
)

// Init initializes the global telemetry provider
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		setProvider(&Provider{tracer: noop.NewTracerProvider().Tracer("")})
		return nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ttlcache"
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	)

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("create OTLP exporter: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 && cfg.SampleRate >= 0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	setProvider(&Provider{
		tp:      tp,
		tracer:  tp.Tracer(cfg.ServiceName),
		enabled: true,
	})
	return nil
}

// UseTracerProvider installs an already built provider. Tests use it with an
// in-memory span recorder.
func UseTracerProvider(tp *sdktrace.TracerProvider, name string) {
	setProvider(&Provider{tp: tp, tracer: tp.Tracer(name), enabled: true})
}

func setProvider(p *Provider) {
	mu.Lock()
	globalProvider = p
	mu.Unlock()
}

func current() *Provider {
	mu.RLock()
	defer mu.RUnlock()
	return globalProvider
}

// Shutdown flushes pending spans and stops the exporter.
func Shutdown(ctx context.Context) error {
	p := current()
	if p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

// Tracer returns the global tracer
func Tracer() trace.Tracer {
	return current().tracer
}

// Enabled returns whether tracing is enabled
func Enabled() bool {
	return current().enabled
}
