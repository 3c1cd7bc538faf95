package memory

import (
	"context"
	"sort"
	"sync"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu    sync.RWMutex
	data  map[string]domain.Trade // keyed by trade_id
	byRun map[string][]string     // run_id -> trade_ids in ledger order
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data:  make(map[string]domain.Trade),
		byRun: make(map[string][]string),
	}
}

// InsertBulk appends trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t.TradeID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		s.data[t.TradeID] = t
		s.byRun[t.RunID] = append(s.byRun[t.RunID], t.TradeID)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

// GetByRunID retrieves a run's trades in ledger order.
func (s *TradeStore) GetByRunID(_ context.Context, runID string) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRun[runID]
	result := make([]domain.Trade, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.data[id])
	}
	return result, nil
}

// GetBySymbol retrieves every trade for a symbol, ordered by exit time.
func (s *TradeStore) GetBySymbol(_ context.Context, symbol string) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Trade
	for _, t := range s.data {
		if t.Symbol == symbol {
			result = append(result, t)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ExitTime.Equal(result[j].ExitTime) {
			return result[i].ExitTime.Before(result[j].ExitTime)
		}
		return result[i].TradeID < result[j].TradeID
	})
	return result, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)
