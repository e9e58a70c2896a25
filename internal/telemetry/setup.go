package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Config struct {
	ServiceName  string
	OTLPEndpoint string
	Insecure     bool

	// SpanExporter replaces the OTLP/HTTP trace exporter.
	SpanExporter sdktrace.SpanExporter
	// MetricReader replaces the periodic OTLP/HTTP metric reader.
	MetricReader sdkmetric.Reader
}

func (c Config) enabled() bool {
	return c.OTLPEndpoint != "" || c.SpanExporter != nil || c.MetricReader != nil
}

// Setup installs global tracer and meter providers. Spans and metrics go to
// the OTLP/HTTP endpoint unless an exporter or reader is supplied. The
// returned function flushes and stops both providers. With nothing to
// export the globals are left untouched and shutdown is a no-op.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.enabled() {
		return func(context.Context) error { return nil }, nil
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	spanExp := cfg.SpanExporter
	if spanExp == nil {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		spanExp, err = otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", err)
		}
	}
	reader := cfg.MetricReader
	if reader == nil {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		metricExp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			spanExp.Shutdown(ctx)
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(metricExp)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// GlobalObserver builds a CallObserver from the global providers.
func GlobalObserver() (*CallObserver, error) {
	return NewCallObserver(
		otel.GetMeterProvider().Meter("taskline/engine"),
		otel.GetTracerProvider().Tracer("taskline/engine"),
	)
}
