// Package telemetry holds the OpenTelemetry span helpers of the session
// client. Spans go to the global provider, which is a no-op unless the host
// application installs one.
//
// Custom span attributes use the `authclient.` prefix. Token values are
// never recorded.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jrsteele09/go-auth-client"

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSessionSpan starts a span for a session operation (login, refresh,
// logout, register).
func StartSessionSpan(ctx context.Context, tracer trace.Tracer, operation string) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = Tracer()
	}
	return tracer.Start(ctx, "session."+operation,
		trace.WithAttributes(
			attribute.String("authclient.operation", operation),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan records the outcome and err on span and ends it.
func EndSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("authclient.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
