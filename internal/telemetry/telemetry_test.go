package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNew_DisabledIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()

	p, err := New(context.Background(), Config{}, discard)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Equal(t, before, otel.GetTracerProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledRequiresEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true}, discard)
	assert.Error(t, err)
}

func TestNew_EnabledInstallsProviders(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	p, err := New(context.Background(), Config{
		Enabled:  true,
		Endpoint: "127.0.0.1:4317",
		Insecure: true,
	}, discard)
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)

	// nothing listens on the endpoint; shutdown may report the failed flush
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}
