package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"go.opentelemetry.io/otel"

	"github.com/argus-sec/argus/internal/config"
	"github.com/argus-sec/argus/internal/testutils"
)

const (
	valkeyImage = "valkey/valkey:8-alpine"
)

// TestValkeyDataPlane_InterfaceCompliance is a compile-time check that does
// not require a running Valkey server.
func TestValkeyDataPlane_InterfaceCompliance(t *testing.T) {
	var _ DataPlane = (*ValkeyDataPlane)(nil)
}

func TestValkeyDataPlane_Constructor(t *testing.T) {
	t.Run("constructor with empty address", func(t *testing.T) {
		cfg := config.ValkeyConfig{
			Address: "", // Empty address should cause an error
		}

		plane, err := NewValkeyDataPlane(cfg)
		if err == nil {
			t.Error("Expected error with empty address")

			if plane != nil {
				_ = plane.Close()
			}
		} else {
			t.Logf("Got expected error with empty address: %v", err)
		}
	})

	t.Run("sentinel configuration with missing master name", func(t *testing.T) {
		cfg := config.ValkeyConfig{
			EnableSentinel: true,
			SentinelAddrs:  []string{"localhost:26379"},
			SentinelMaster: "", // Missing master name
		}

		plane, err := NewValkeyDataPlane(cfg)
		if err == nil {
			t.Error("Expected error with missing sentinel master name")

			if plane != nil {
				_ = plane.Close()
			}
		} else {
			t.Logf("Got expected error with missing master: %v", err)
		}
	})
}

func TestRecordKeys(t *testing.T) {
	assert.Equal(t, "argus:rec:findings:abc", recordKey(IndexFindings, "abc"))
	assert.Equal(t, "argus:idx:findings", indexKey(IndexFindings))
}

func TestValkeyDataPlane_CompressionHelpers(t *testing.T) {
	plane := &ValkeyDataPlane{
		enableCompression: true,
		logger:            testutils.NewTestLogger(),
		tracer:            otel.Tracer("valkey-data-plane-test"),
	}

	t.Run("small data passes through", func(t *testing.T) {
		data := []byte("short")

		compressed, err := plane.compress(context.Background(), data)
		require.NoError(t, err)
		assert.Equal(t, data, compressed)
	})

	t.Run("large data round-trips", func(t *testing.T) {
		data := make([]byte, 0, 4096)
		for i := 0; i < 256; i++ {
			data = append(data, []byte("repetitive payload ")...)
		}

		compressed, err := plane.compress(context.Background(), data)
		require.NoError(t, err)
		assert.Less(t, len(compressed), len(data))

		decompressed, err := plane.decompress(context.Background(), compressed)
		require.NoError(t, err)
		assert.Equal(t, data, decompressed)
	})

	t.Run("disabled compression is identity", func(t *testing.T) {
		disabled := &ValkeyDataPlane{
			enableCompression: false,
			logger:            testutils.NewTestLogger(),
			tracer:            otel.Tracer("valkey-data-plane-test"),
		}

		data := []byte("anything at all")

		compressed, err := disabled.compress(context.Background(), data)
		require.NoError(t, err)
		assert.Equal(t, data, compressed)
	})
}

// Integration tests using testcontainers - these require Docker
func TestValkeyDataPlane_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Start Valkey container
	redisContainer, err := redis.Run(ctx, valkeyImage)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)

	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cfg := config.ValkeyConfig{
		Address:           fmt.Sprintf("%s:%s", host, port.Port()),
		EnableCompression: true,
	}

	plane, err := NewValkeyDataPlane(cfg)
	require.NoError(t, err)
	require.NotNil(t, plane)

	t.Cleanup(func() { _ = plane.Close() })

	records := []Record{
		{"findingId": "f-1", "rule": "java/log4shell", "severity": "CRITICAL"},
		{"findingId": "f-2", "rule": "go/sql-injection", "severity": "HIGH"},
	}

	t.Run("write and count", func(t *testing.T) {
		require.NoError(t, plane.WriteRecords(ctx, IndexFindings, records))

		count, err := plane.CountRecords(ctx, IndexFindings)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("re-submission is idempotent", func(t *testing.T) {
		require.NoError(t, plane.WriteRecords(ctx, IndexFindings, records))

		count, err := plane.CountRecords(ctx, IndexFindings)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("indices are independent", func(t *testing.T) {
		require.NoError(t, plane.WriteRecords(ctx, IndexSBOM, []Record{
			{"componentId": "c-1", "component": "left-pad"},
		}))

		count, err := plane.CountRecords(ctx, IndexSBOM)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		count, err = plane.CountRecords(ctx, IndexFindings)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("empty index counts zero", func(t *testing.T) {
		count, err := plane.CountRecords(ctx, IndexReachability)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, plane.Ping(ctx))
	})
}
