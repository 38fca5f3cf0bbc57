package options

import (
	"context"
	"sync"

	"github.com/goliatone/go-enqueue/layering"
)

// MemoryStore keeps option groups in process memory, keyed by
// Ref.Identifier. It suits tests and single-request tooling.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	values map[string]any
	meta   Meta
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, ref Ref) (map[string]any, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}
	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return layering.Clone(record.values).(map[string]any), record.meta, true, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, ref Ref, values map[string]any, expected Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	if values == nil {
		values = map[string]any{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.records[key]; ok {
		if err := checkETag(expected, current.meta); err != nil {
			return current.meta, err
		}
	}
	meta := nextMeta()
	s.records[key] = memoryRecord{values: layering.Clone(values).(map[string]any), meta: meta}
	return meta, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, ref Ref, expected Meta) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[key]
	if !ok {
		return nil
	}
	if err := checkETag(expected, current.meta); err != nil {
		return err
	}
	delete(s.records, key)
	return nil
}

// Len reports how many groups are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
