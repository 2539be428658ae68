package storage

import (
	"context"
	"errors"
)

var (
	ErrInvalidType = errors.New("invalid storage type")
	ErrWriteFailed = errors.New("write failed")
)

// Record is one normalized row bound for a stage index. Values follow the
// canonical JSON data model.
type Record = map[string]any

// Index names one of the per-stage record collections.
type Index string

const (
	IndexArtifacts    Index = "artifacts"
	IndexDependencies Index = "dependencies"
	IndexSBOM         Index = "sbom"
	IndexFindings     Index = "findings"
	IndexReachability Index = "reachability"
	IndexThreatIntel  Index = "threat_intel"
	IndexActions      Index = "actions"
)

// Indices lists every stage index in acquisition order.
func Indices() []Index {
	return []Index{
		IndexArtifacts,
		IndexDependencies,
		IndexSBOM,
		IndexFindings,
		IndexReachability,
		IndexThreatIntel,
		IndexActions,
	}
}

// DataPlane is the write side of the acquisition store. Records are
// content-addressed, so writing the same record twice is a no-op.
type DataPlane interface {
	// WriteRecords persists a batch of records into one index.
	WriteRecords(ctx context.Context, index Index, records []Record) error

	// CountRecords reports the number of distinct records in one index.
	CountRecords(ctx context.Context, index Index) (int64, error)

	// Ping checks the connection to the backing store.
	Ping(ctx context.Context) error

	// Close closes the storage connection.
	Close() error
}

// StoreType defines the type of storage being used.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeValkey StoreType = "valkey"
)
