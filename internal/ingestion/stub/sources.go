package stub

import (
	"context"
	"sort"

	"hod-momentum-lab/internal/domain"
)

// BarSource returns fixed in-memory bars for testing.
// Bars can be intentionally unordered to test sorting.
// Implements ingestion.BarSource interface.
type BarSource struct {
	bars []domain.Bar
	err  error
}

// NewBarSource creates a new stub bar source with the given bars.
func NewBarSource(bars []domain.Bar) *BarSource {
	return &BarSource{bars: bars}
}

// FailWith makes every later call return err.
func (s *BarSource) FailWith(err error) *BarSource {
	s.err = err
	return s
}

// Symbols lists the distinct symbols with bars at res.
func (s *BarSource) Symbols(_ context.Context, res domain.Resolution) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	seen := make(map[string]struct{})
	for _, b := range s.bars {
		if b.Resolution == res {
			seen[b.Symbol] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

// Fetch returns copies of the bars matching symbol and res, in source order.
func (s *BarSource) Fetch(_ context.Context, symbol string, res domain.Resolution) ([]domain.Bar, error) {
	if s.err != nil {
		return nil, s.err
	}
	var result []domain.Bar
	for _, b := range s.bars {
		if b.Symbol == symbol && b.Resolution == res {
			result = append(result, b)
		}
	}
	return result, nil
}

// ProfileSource returns fixed profiles for testing.
// Implements ingestion.ProfileSource interface.
type ProfileSource struct {
	profiles []*domain.SymbolProfile
}

// NewProfileSource creates a new stub profile source.
func NewProfileSource(profiles []*domain.SymbolProfile) *ProfileSource {
	return &ProfileSource{profiles: profiles}
}

// Fetch returns copies of the profiles.
func (s *ProfileSource) Fetch(_ context.Context) ([]*domain.SymbolProfile, error) {
	out := make([]*domain.SymbolProfile, len(s.profiles))
	for i, p := range s.profiles {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}
