package telemetry_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"taskline/internal/engine"
	"taskline/internal/telemetry"
)

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func TestCallObserverRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	obs, err := telemetry.NewCallObserver(mp.Meter("test"), noop.NewTracerProvider().Tracer("test"))
	if err != nil {
		t.Fatalf("NewCallObserver: %v", err)
	}
	start := time.Now()
	obs.ObserveCall(context.Background(), engine.CallObservation{CallID: "c1", Tool: "list_lists", StartedAt: start, Duration: 20 * time.Millisecond, Success: true})
	obs.ObserveCall(context.Background(), engine.CallObservation{CallID: "c2", Tool: "nope", StartedAt: start, Duration: time.Millisecond, ErrorCode: engine.CodeToolNotFound})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	calls := findMetric(&rm, "taskline.tool.calls")
	if calls == nil {
		t.Fatal("taskline.tool.calls metric not found")
	}
	sum, ok := calls.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("calls type = %T", calls.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Fatalf("expected 2 calls, got %d", total)
	}
	latency := findMetric(&rm, "taskline.tool.latency")
	if latency == nil {
		t.Fatal("taskline.tool.latency metric not found")
	}
	if _, ok := latency.Data.(metricdata.Histogram[float64]); !ok {
		t.Fatalf("latency type = %T", latency.Data)
	}
}

func TestCallObserverRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	mp := sdkmetric.NewMeterProvider()
	obs, err := telemetry.NewCallObserver(mp.Meter("test"), tp.Tracer("test"))
	if err != nil {
		t.Fatal(err)
	}
	obs.ObserveCall(context.Background(), engine.CallObservation{CallID: "c1", Tool: "fail", StartedAt: time.Now(), Duration: time.Millisecond, ErrorCode: engine.CodeExecutionFailed})
	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "tool.call" {
		t.Fatalf("unexpected spans %v", spans)
	}
	if spans[0].Status().Description != engine.CodeExecutionFailed {
		t.Fatalf("status %+v", spans[0].Status())
	}
}

func TestNilObserverIsSafe(t *testing.T) {
	var obs *telemetry.CallObserver
	obs.ObserveCall(context.Background(), engine.CallObservation{Tool: "x"})
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), telemetry.Config{ServiceName: "taskline"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupInstallsGlobalProviders(t *testing.T) {
	prevMP, prevTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMP)
		otel.SetTracerProvider(prevTP)
	})

	reader := sdkmetric.NewManualReader()
	shutdown, err := telemetry.Setup(context.Background(), telemetry.Config{
		ServiceName:  "taskline",
		SpanExporter: tracetest.NewInMemoryExporter(),
		MetricReader: reader,
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer shutdown(context.Background())
	if _, ok := otel.GetMeterProvider().(*sdkmetric.MeterProvider); !ok {
		t.Fatalf("global meter provider is %T", otel.GetMeterProvider())
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("global tracer provider is %T", otel.GetTracerProvider())
	}

	obs, err := telemetry.GlobalObserver()
	if err != nil {
		t.Fatalf("global observer: %v", err)
	}
	obs.ObserveCall(context.Background(), engine.CallObservation{CallID: "c1", Tool: "list_lists", StartedAt: time.Now(), Duration: time.Millisecond, Success: true})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if findMetric(&rm, "taskline.tool.calls") == nil {
		t.Fatal("calls recorded by the global observer were not collected")
	}
}
