package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/storekit/config-hub/pkg/core"
)

// MemoryStore keeps documents as marshaled JSON so callers never alias
// store-internal state. The default backend for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, shop string) (*core.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, core.ErrStoreClosed
	}
	data, ok := m.docs[shop]
	if !ok {
		return nil, fmt.Errorf("%w: shop=%s", core.ErrConfigNotFound, shop)
	}
	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &doc, nil
}

func (m *MemoryStore) Put(ctx context.Context, shop string, doc *core.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.ErrStoreClosed
	}
	m.docs[shop] = data
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.docs = nil
	return nil
}
