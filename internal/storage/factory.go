package storage

import (
	"fmt"

	"github.com/argus-sec/argus/internal/config"
)

// NewDataPlane creates a data plane based on the provided configuration.
func NewDataPlane(cfg config.StorageConfig) (DataPlane, error) {
	switch cfg.Type {
	case string(StoreTypeMemory):
		return NewMemoryDataPlane(), nil
	case string(StoreTypeValkey):
		plane, err := NewValkeyDataPlane(cfg.Valkey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Valkey data plane: %w", err)
		}

		return plane, nil
	default:
		return nil, fmt.Errorf("%w: unsupported storage type %s", ErrInvalidType, cfg.Type)
	}
}
