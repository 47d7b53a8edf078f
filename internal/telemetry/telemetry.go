// Package telemetry wraps an OpenTelemetry tracer for the gateway's two
// span-worthy operations: one dispatch attempt against a node, and one
// cache synchronizer tick. Grounded on digitallysavvy-go-ai's
// pkg/telemetry (Settings/GetTracer/RecordSpan), generalized from
// per-AI-operation spans to the gateway's own two operations, and
// defaulting to a no-op tracer so telemetry is opt-in rather than a
// hard dependency on a configured OTel SDK.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName identifies spans emitted by this module in a shared OTel backend.
const TracerName = "cluster-gateway"

// Settings controls whether spans are emitted at all.
type Settings struct {
	Enabled bool
	Tracer  trace.Tracer
}

// DefaultSettings disables telemetry; callers opt in explicitly.
func DefaultSettings() Settings {
	return Settings{Enabled: false}
}

// GetTracer returns a no-op tracer when settings.Enabled is false, even if
// settings.Tracer is set; when enabled it returns settings.Tracer if set,
// else the global OTel tracer.
func GetTracer(settings Settings) trace.Tracer {
	if !settings.Enabled {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	if settings.Tracer != nil {
		return settings.Tracer
	}
	return otel.Tracer(TracerName)
}

// RecordSpan runs fn inside a span named name, recording any returned error
// on the span before ending it.
func RecordSpan[T any](ctx context.Context, tracer trace.Tracer, name string, attrs []attribute.KeyValue, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	result, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// DispatchAttributes builds the attribute set for one dispatch-attempt span.
func DispatchAttributes(nodeID, model string, stream bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("gateway.node_id", nodeID),
		attribute.String("gateway.model", model),
		attribute.Bool("gateway.stream", stream),
	}
}

// CacheSyncAttributes builds the attribute set for one cache-sync-tick span.
func CacheSyncAttributes(nodeID string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("gateway.node_id", nodeID)}
}
