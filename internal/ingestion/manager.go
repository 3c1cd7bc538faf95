package ingestion

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

// Manager moves data from sources to storage.
// It enforces timestamp ordering and relies on the storage layer for
// duplicate rejection.
type Manager struct {
	barSource     BarSource
	profileSource ProfileSource

	barStore     storage.BarStore
	profileStore storage.SymbolProfileStore

	incremental bool
	log         zerolog.Logger
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	BarSource     BarSource
	ProfileSource ProfileSource

	BarStore     storage.BarStore
	ProfileStore storage.SymbolProfileStore

	// Incremental skips bars whose timestamp is already stored instead of
	// failing the batch with storage.ErrDuplicateKey.
	Incremental bool
	Logger      *zerolog.Logger
}

// NewManager creates a new ingestion manager with the provided sources and stores.
func NewManager(opts ManagerOptions) *Manager {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Manager{
		barSource:     opts.BarSource,
		profileSource: opts.ProfileSource,
		barStore:      opts.BarStore,
		profileStore:  opts.ProfileStore,
		incremental:   opts.Incremental,
		log:           log.With().Str("component", "ingestion").Logger(),
	}
}

// Result counts what one Run stored.
type Result struct {
	Symbols    []string
	MinuteBars int
	DailyBars  int
	Profiles   int
}

// IngestBars fetches one symbol's bars at res and stores them.
// Returns count of stored bars.
func (m *Manager) IngestBars(ctx context.Context, symbol string, res domain.Resolution) (int, error) {
	if m.barSource == nil || m.barStore == nil {
		return 0, nil
	}

	bars, err := m.barSource.Fetch(ctx, symbol, res)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, nil
	}

	SortBars(bars)
	if err := ValidateBarOrdering(bars); err != nil {
		return 0, fmt.Errorf("%s %s: duplicate timestamp in source: %w", symbol, res, err)
	}

	if m.incremental {
		bars, err = m.dropStored(ctx, symbol, res, bars)
		if err != nil {
			return 0, err
		}
		if len(bars) == 0 {
			return 0, nil
		}
	}

	if err := m.barStore.InsertBulk(ctx, bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}

func (m *Manager) dropStored(ctx context.Context, symbol string, res domain.Resolution, bars []domain.Bar) ([]domain.Bar, error) {
	existing, err := m.barStore.GetByTimeRange(ctx, symbol, res, bars[0].Timestamp, bars[len(bars)-1].Timestamp)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return bars, nil
	}
	stored := make(map[int64]struct{}, len(existing))
	for _, b := range existing {
		stored[b.Timestamp.UnixMilli()] = struct{}{}
	}
	fresh := bars[:0]
	for _, b := range bars {
		if _, ok := stored[b.Timestamp.UnixMilli()]; !ok {
			fresh = append(fresh, b)
		}
	}
	m.log.Debug().
		Str("symbol", symbol).
		Str("resolution", string(res)).
		Int("skipped", len(bars)-len(fresh)).
		Msg("bars already stored")
	return fresh, nil
}

// IngestProfiles fetches profiles and upserts them. A newer float replaces
// the stored one.
func (m *Manager) IngestProfiles(ctx context.Context) (int, error) {
	if m.profileSource == nil || m.profileStore == nil {
		return 0, nil
	}
	profiles, err := m.profileSource.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range profiles {
		if err := m.profileStore.Upsert(ctx, p); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", p.Symbol, err)
		}
	}
	return len(profiles), nil
}

// Run ingests profiles and then both resolutions for each symbol. An empty
// symbols list means every symbol the source holds at either resolution.
func (m *Manager) Run(ctx context.Context, symbols []string) (*Result, error) {
	if len(symbols) == 0 {
		var err error
		symbols, err = m.sourceSymbols(ctx)
		if err != nil {
			return nil, err
		}
	}

	result := &Result{Symbols: symbols}

	n, err := m.IngestProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("profiles: %w", err)
	}
	result.Profiles = n

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		minute, err := m.IngestBars(ctx, sym, domain.ResolutionMinute)
		if err != nil {
			return nil, fmt.Errorf("%s minute bars: %w", sym, err)
		}
		daily, err := m.IngestBars(ctx, sym, domain.ResolutionDaily)
		if err != nil {
			return nil, fmt.Errorf("%s daily bars: %w", sym, err)
		}
		result.MinuteBars += minute
		result.DailyBars += daily
		m.log.Info().Str("symbol", sym).Int("minute", minute).Int("daily", daily).Msg("symbol ingested")
	}
	return result, nil
}

func (m *Manager) sourceSymbols(ctx context.Context) ([]string, error) {
	if m.barSource == nil {
		return nil, nil
	}
	seen := make(map[string]struct{})
	for _, res := range []domain.Resolution{domain.ResolutionMinute, domain.ResolutionDaily} {
		syms, err := m.barSource.Symbols(ctx, res)
		if err != nil {
			return nil, fmt.Errorf("list %s symbols: %w", res, err)
		}
		for _, s := range syms {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
