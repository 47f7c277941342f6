package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/go-auth-client/telemetry"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSessionSpan(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")

	ctx, span := telemetry.StartSessionSpan(context.Background(), tracer, "login")
	require.NotNil(t, ctx)
	require.NotPanics(t, func() { telemetry.EndSpan(span, "rejected", errors.New("nope")) })

	_, span = telemetry.StartSessionSpan(context.Background(), nil, "refresh")
	require.NotPanics(t, func() { telemetry.EndSpan(span, "success", nil) })
}
