package tracing

import (
	"context"
	"testing"

	"github.com/hilthontt/interchange/internal/infrastructure/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), configs.TracingConfig{Enabled: false}, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
}

func TestSetupEnabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// The exporter connects lazily, so no collector is needed to build it.
	shutdown, err := Setup(context.Background(), configs.TracingConfig{
		Enabled:     true,
		ServiceName: "interchange-test",
		Environment: "test",
		Endpoint:    "http://127.0.0.1:4318/v1/traces",
		SampleRatio: 1,
	}, zap.NewNop().Sugar())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "sampled")
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_ = shutdown(ctx)
}
