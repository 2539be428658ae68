package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/argus-sec/argus/internal/canonical"
)

// MemoryDataPlane implements DataPlane using in-memory storage. It doubles
// as a conformance fixture: per-index forced failures exercise the
// partial-failure paths of callers.
type MemoryDataPlane struct {
	data     map[Index]map[string]Record
	failures map[Index]error
	mutex    sync.RWMutex
}

// NewMemoryDataPlane creates a new MemoryDataPlane instance.
func NewMemoryDataPlane() *MemoryDataPlane {
	return &MemoryDataPlane{
		data:     make(map[Index]map[string]Record),
		failures: make(map[Index]error),
	}
}

// SetFailure makes every subsequent write to index fail with err. A nil err
// clears the failure.
func (m *MemoryDataPlane) SetFailure(index Index, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err == nil {
		delete(m.failures, index)
	} else {
		m.failures[index] = err
	}
}

// WriteRecords stores a batch of records, keyed by content digest.
func (m *MemoryDataPlane) WriteRecords(ctx context.Context, index Index, records []Record) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.failures[index]; err != nil {
		return fmt.Errorf("%w: index %s: %w", ErrWriteFailed, index, err)
	}

	bucket, ok := m.data[index]
	if !ok {
		bucket = make(map[string]Record)
		m.data[index] = bucket
	}

	for _, record := range records {
		digest, err := canonical.Digest(record)
		if err != nil {
			return fmt.Errorf("failed to digest record for index %s: %w", index, err)
		}

		bucket[digest] = record
	}

	return nil
}

// CountRecords reports the number of distinct records in one index.
func (m *MemoryDataPlane) CountRecords(ctx context.Context, index Index) (int64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return int64(len(m.data[index])), nil
}

// Records returns the stored records of one index in digest order. Test
// hook, not part of DataPlane.
func (m *MemoryDataPlane) Records(index Index) []Record {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	bucket := m.data[index]

	digests := make([]string, 0, len(bucket))
	for digest := range bucket {
		digests = append(digests, digest)
	}

	sort.Strings(digests)

	records := make([]Record, 0, len(digests))
	for _, digest := range digests {
		records = append(records, bucket[digest])
	}

	return records
}

// Ping reports the store as reachable.
func (m *MemoryDataPlane) Ping(ctx context.Context) error {
	return nil
}

// Close discards all stored records.
func (m *MemoryDataPlane) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.data = make(map[Index]map[string]Record)
	m.failures = make(map[Index]error)

	return nil
}
