package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/campe111/turnero/internal/config"
)

func TestSetupWithoutEndpointOnlyPropagates(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "turnero", SampleRatio: 1}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")
}

func TestSetupWithEndpointInstallsProvider(t *testing.T) {
	cfg := config.TelemetryConfig{
		ServiceName:    "turnero-devserver",
		ServiceVersion: "test",
		Endpoint:       "127.0.0.1:4317",
		Insecure:       true,
		SampleRatio:    0.5,
	}
	shutdown, err := Setup(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = shutdown(ctx)
	})

	_, span := otel.Tracer("test").Start(context.Background(), "take-ticket")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
}
