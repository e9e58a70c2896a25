// Package telemetry reports tool calls to OpenTelemetry.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"taskline/internal/engine"
)

// CallObserver records one counter increment, one latency sample and one
// span per engine call.
type CallObserver struct {
	tracer trace.Tracer

	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

func NewCallObserver(meter metric.Meter, tracer trace.Tracer) (*CallObserver, error) {
	calls, err := meter.Int64Counter(
		"taskline.tool.calls",
		metric.WithDescription("Number of tool calls"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"taskline.tool.latency",
		metric.WithDescription("Tool call latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &CallObserver{tracer: tracer, calls: calls, latency: latency}, nil
}

func (o *CallObserver) ObserveCall(ctx context.Context, obs engine.CallObservation) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("tool_name", obs.Tool),
		attribute.Bool("success", obs.Success),
	}
	if obs.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", obs.ErrorCode))
	}
	// Metrics outlive a cancelled request context.
	mctx := context.WithoutCancel(ctx)
	options := metric.WithAttributes(attrs...)
	o.calls.Add(mctx, 1, options)
	o.latency.Record(mctx, obs.Duration.Seconds(), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "tool.call",
		trace.WithTimestamp(obs.StartedAt),
		trace.WithAttributes(append(attrs, attribute.String("call_id", obs.CallID))...),
	)
	if obs.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, obs.ErrorCode)
	}
	span.End(trace.WithTimestamp(obs.StartedAt.Add(obs.Duration)))
}
