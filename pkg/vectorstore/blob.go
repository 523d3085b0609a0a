package vectorstore

import (
	"context"
	"sort"
	"sync"
)

// BlobStore is the key-value backend holding vector blobs, metadata blobs and
// pointer records, keyed by partition and key.
type BlobStore interface {
	Put(ctx context.Context, partition, key string, data []byte) error
	Get(ctx context.Context, partition, key string) ([]byte, error)
	Delete(ctx context.Context, partition, key string) error
	// List returns the keys of a partition in lexical order.
	List(ctx context.Context, partition string) ([]string, error)
}

// MemoryBlobStore is an in-memory BlobStore used in tests and as a
// read-through scratch backend.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]map[string][]byte
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string]map[string][]byte)}
}

// Put stores a copy of data under (partition, key).
func (m *MemoryBlobStore) Put(_ context.Context, partition, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.blobs[partition]
	if !ok {
		p = make(map[string][]byte)
		m.blobs[partition] = p
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	p[key] = cp
	return nil
}

// Get returns the data under (partition, key), or ErrBlobNotFound.
func (m *MemoryBlobStore) Get(_ context.Context, partition, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.blobs[partition]
	if !ok {
		return nil, ErrBlobNotFound
	}
	data, ok := p[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Delete removes the blob under (partition, key). Missing keys are not an
// error.
func (m *MemoryBlobStore) Delete(_ context.Context, partition, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.blobs[partition]; ok {
		delete(p, key)
	}
	return nil
}

// List returns the keys of a partition in lexical order.
func (m *MemoryBlobStore) List(_ context.Context, partition string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.blobs[partition]
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
