package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-sec/argus/internal/config"
)

func TestNewDataPlane_Memory(t *testing.T) {
	plane, err := NewDataPlane(config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	require.NotNil(t, plane)

	_, ok := plane.(*MemoryDataPlane)
	assert.True(t, ok, "expected a MemoryDataPlane, got %T", plane)
}

func TestNewDataPlane_UnsupportedType(t *testing.T) {
	tests := []struct {
		name        string
		storageType string
	}{
		{name: "unknown type", storageType: "postgres"},
		{name: "empty type", storageType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plane, err := NewDataPlane(config.StorageConfig{Type: tt.storageType})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidType))
			assert.Nil(t, plane)
		})
	}
}

func TestNewDataPlane_ValkeyUnreachable(t *testing.T) {
	// With no server listening the factory must surface a connection error.
	plane, err := NewDataPlane(config.StorageConfig{
		Type: "valkey",
		Valkey: config.ValkeyConfig{
			Address: "localhost:1",
		},
	})
	assert.Error(t, err)
	assert.Nil(t, plane)
}

func TestIndices_Order(t *testing.T) {
	assert.Equal(t, []Index{
		IndexArtifacts,
		IndexDependencies,
		IndexSBOM,
		IndexFindings,
		IndexReachability,
		IndexThreatIntel,
		IndexActions,
	}, Indices())
}
