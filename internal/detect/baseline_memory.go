package detect

import (
	"context"
	"sync"

	"github.com/sitewatch/sitewatch/internal/crawler"
)

// MemoryBaselineStore keeps baselines in-process. Suitable for single-node
// deployments and tests; durable deployments persist snapshots through the
// store package instead.
type MemoryBaselineStore struct {
	mu        sync.RWMutex
	baselines map[string]crawler.Snapshot
}

// NewMemoryBaselineStore constructs an empty baseline store.
func NewMemoryBaselineStore() *MemoryBaselineStore {
	return &MemoryBaselineStore{baselines: make(map[string]crawler.Snapshot)}
}

// LoadBaseline returns the stored snapshot for target, nil when none exists.
func (s *MemoryBaselineStore) LoadBaseline(_ context.Context, target string) (*crawler.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.baselines[target]
	if !ok {
		return nil, nil
	}
	cp := snap
	return &cp, nil
}

// SaveBaseline replaces the stored snapshot for target.
func (s *MemoryBaselineStore) SaveBaseline(_ context.Context, target string, snap crawler.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[target] = snap
	return nil
}
