package attachment

import (
	"context"
	"sync"

	"github.com/JonMunkholm/bomimport/internal/metrics"
)

// MemoryStore keeps attachments in a map. Used by tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[k] = append([]byte(nil), data...)
	metrics.RecordAttachment("memory", "put", len(data))
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[k]
	if !ok {
		return nil, ErrNotFound
	}
	metrics.RecordAttachment("memory", "get", len(raw))
	return append([]byte(nil), raw...), nil
}
