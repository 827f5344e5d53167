package blob

import (
	"context"
	"fmt"
	"sync"
)

// MemoryProvider keeps artifacts in-process. Used in tests and single-node
// runs where screenshot history does not need to survive restarts.
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryProvider constructs an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string][]byte)}
}

// Put stores a copy of data under ref.
func (p *MemoryProvider) Put(_ context.Context, ref string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[ref] = append([]byte(nil), data...)
	return nil
}

// Get returns the artifact stored under ref.
func (p *MemoryProvider) Get(_ context.Context, ref string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.data[ref]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", ref)
	}
	return append([]byte(nil), data...), nil
}

// Close is a no-op.
func (p *MemoryProvider) Close() error { return nil }
