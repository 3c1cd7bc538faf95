package memory

import (
	"context"
	"sort"
	"sync"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

// EligibilityStore is an in-memory implementation of storage.EligibilityStore.
type EligibilityStore struct {
	mu   sync.RWMutex
	data map[string]map[domain.EligibilityKey]domain.EligibilityDay // run_id -> key -> day
}

// NewEligibilityStore creates a new in-memory eligibility store.
func NewEligibilityStore() *EligibilityStore {
	return &EligibilityStore{
		data: make(map[string]map[domain.EligibilityKey]domain.EligibilityDay),
	}
}

// InsertBulk stores a run's decisions. Fails entire batch on any duplicate.
func (s *EligibilityStore) InsertBulk(_ context.Context, runID string, days []domain.EligibilityDay) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(days) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[runID]
	batch := make(map[domain.EligibilityKey]domain.EligibilityDay, len(days))
	for _, d := range days {
		k := domain.EligibilityKey{Symbol: d.Symbol, Date: d.Date}
		if _, dup := existing[k]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := batch[k]; dup {
			return storage.ErrDuplicateKey
		}
		batch[k] = d
	}

	if existing == nil {
		existing = make(map[domain.EligibilityKey]domain.EligibilityDay, len(batch))
		s.data[runID] = existing
	}
	for k, d := range batch {
		existing[k] = d
	}
	return nil
}

// GetByRunID retrieves decisions ordered by (symbol, date).
func (s *EligibilityStore) GetByRunID(_ context.Context, runID string) ([]domain.EligibilityDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.EligibilityDay, 0, len(s.data[runID]))
	for _, d := range s.data[runID] {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Symbol != result[j].Symbol {
			return result[i].Symbol < result[j].Symbol
		}
		return result[i].Date < result[j].Date
	})
	return result, nil
}

var _ storage.EligibilityStore = (*EligibilityStore)(nil)
