// Package tracing adapts the reference node's StartTracing/deferFn idiom
// (services/coinbase/Coinbase.go, services/blockchain/Server.go) to a single
// shared otel tracer for the whole staking core, so every package gets one
// call to start a span and one deferred call to end it, with errors recorded
// onto the span instead of swallowed.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("stakingcore")

// Start begins a span named name under ctx's trace, returning the derived
// context and a deferFn that ends the span. Call pattern:
//
//	ctx, deferFn := tracing.Start(ctx, "DeliverTx")
//	defer deferFn(&err)
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(errp *error)) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}

// StartSimple begins a span that never records an error, for call sites that
// have no fallible operation to report (e.g. BeginBlock, Commit).
func StartSimple(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func()) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span.End
}
