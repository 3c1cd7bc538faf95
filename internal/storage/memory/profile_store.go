package memory

import (
	"context"
	"sort"
	"sync"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

// SymbolProfileStore is an in-memory implementation of storage.SymbolProfileStore.
type SymbolProfileStore struct {
	mu   sync.RWMutex
	data map[string]domain.SymbolProfile
}

// NewSymbolProfileStore creates a new in-memory profile store.
func NewSymbolProfileStore() *SymbolProfileStore {
	return &SymbolProfileStore{
		data: make(map[string]domain.SymbolProfile),
	}
}

// Upsert inserts or replaces the profile for p.Symbol.
func (s *SymbolProfileStore) Upsert(_ context.Context, p *domain.SymbolProfile) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	if p.FloatShares != nil {
		f := *p.FloatShares
		cp.FloatShares = &f
	}
	s.data[p.Symbol] = cp
	return nil
}

// Get retrieves a profile. Returns ErrNotFound if not exists.
func (s *SymbolProfileStore) Get(_ context.Context, symbol string) (*domain.SymbolProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[symbol]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// List returns all profiles ordered by symbol.
func (s *SymbolProfileStore) List(_ context.Context) ([]*domain.SymbolProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SymbolProfile, 0, len(s.data))
	for _, p := range s.data {
		p := p
		result = append(result, &p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

var _ storage.SymbolProfileStore = (*SymbolProfileStore)(nil)
