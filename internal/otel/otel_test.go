package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-sec/argus/internal/config"
)

func withOTLPConfig(t *testing.T, cfg config.OTLPConfig) {
	t.Helper()

	original := config.AppConfig
	config.AppConfig = &config.Config{OTLP: cfg}
	t.Cleanup(func() { config.AppConfig = original })
}

func TestSetupOTelSDK_NoExporters(t *testing.T) {
	withOTLPConfig(t, config.OTLPConfig{EnableOTLP: true})

	ctx := context.Background()

	shutdown, err := SetupOTelSDK(ctx, "argus-test-service")
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestSetupOTelSDK_StdoutExporter(t *testing.T) {
	withOTLPConfig(t, config.OTLPConfig{EnableOTLP: true, OTLPStdOut: true})

	ctx := context.Background()

	shutdown, err := SetupOTelSDK(ctx, "argus-test-service")
	require.NoError(t, err)

	assert.NoError(t, shutdown(ctx))
}

func TestBuildExporters(t *testing.T) {
	ctx := context.Background()

	t.Run("none configured", func(t *testing.T) {
		exporters, err := buildExporters(ctx, config.OTLPConfig{})
		require.NoError(t, err)
		assert.Empty(t, exporters)
	})

	t.Run("stdout only", func(t *testing.T) {
		exporters, err := buildExporters(ctx, config.OTLPConfig{OTLPStdOut: true})
		require.NoError(t, err)
		assert.Len(t, exporters, 1)
	})

	t.Run("otlp and stdout", func(t *testing.T) {
		exporters, err := buildExporters(ctx, config.OTLPConfig{
			EnableOTLPExporter: true,
			OTLPStdOut:         true,
		})
		require.NoError(t, err)
		assert.Len(t, exporters, 2)
	})
}
