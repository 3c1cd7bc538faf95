package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

type barKey struct {
	symbol string
	res    domain.Resolution
}

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[barKey][]domain.Bar // sorted by timestamp
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[barKey][]domain.Bar),
	}
}

// InsertBulk adds bars. Fails entire batch on duplicate (symbol, resolution, timestamp).
func (s *BarStore) InsertBulk(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type fullKey struct {
		barKey
		ts int64
	}
	seen := make(map[fullKey]struct{}, len(bars))
	for _, b := range bars {
		if b.Symbol == "" || b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		k := fullKey{barKey{b.Symbol, b.Resolution}, b.Timestamp.UnixMilli()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		if s.has(k.barKey, b.Timestamp) {
			return storage.ErrDuplicateKey
		}
	}

	touched := make(map[barKey]struct{})
	for _, b := range bars {
		k := barKey{b.Symbol, b.Resolution}
		s.data[k] = append(s.data[k], b)
		touched[k] = struct{}{}
	}
	for k := range touched {
		series := s.data[k]
		sort.Slice(series, func(i, j int) bool {
			return series[i].Timestamp.Before(series[j].Timestamp)
		})
	}
	return nil
}

func (s *BarStore) has(k barKey, ts time.Time) bool {
	series := s.data[k]
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(ts)
	})
	return i < len(series) && series[i].Timestamp.Equal(ts)
}

// GetBySymbol retrieves all bars of a resolution for a symbol, ordered by timestamp ASC.
func (s *BarStore) GetBySymbol(_ context.Context, symbol string, res domain.Resolution) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[barKey{symbol, res}]
	result := make([]domain.Bar, len(series))
	copy(result, series)
	return result, nil
}

// GetByTimeRange retrieves bars within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(_ context.Context, symbol string, res domain.Resolution, start, end time.Time) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Bar
	for _, b := range s.data[barKey{symbol, res}] {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		result = append(result, b)
	}
	return result, nil
}

// Symbols lists symbols with bars of the given resolution, sorted.
func (s *BarStore) Symbols(_ context.Context, res domain.Resolution) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []string
	for k, series := range s.data {
		if k.res == res && len(series) > 0 {
			result = append(result, k.symbol)
		}
	}
	sort.Strings(result)
	return result, nil
}

var _ storage.BarStore = (*BarStore)(nil)
