package storage

import (
	"context"
	"time"

	"hod-momentum-lab/internal/domain"
)

// BarStore provides access to OHLCV bar storage.
type BarStore interface {
	// InsertBulk adds bars. Fails the entire batch on a duplicate
	// (symbol, resolution, timestamp).
	InsertBulk(ctx context.Context, bars []domain.Bar) error

	// GetBySymbol retrieves all bars of a resolution for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string, res domain.Resolution) ([]domain.Bar, error)

	// GetByTimeRange retrieves bars within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, res domain.Resolution, start, end time.Time) ([]domain.Bar, error)

	// Symbols lists symbols that have bars of the given resolution, sorted.
	Symbols(ctx context.Context, res domain.Resolution) ([]string, error)
}

// SymbolProfileStore provides access to per-symbol reference data.
// Profiles are the only mutable records: a newer float replaces the old one.
type SymbolProfileStore interface {
	// Upsert inserts or replaces the profile for p.Symbol.
	Upsert(ctx context.Context, p *domain.SymbolProfile) error

	// Get retrieves a profile. Returns ErrNotFound if not exists.
	Get(ctx context.Context, symbol string) (*domain.SymbolProfile, error)

	// List returns all profiles ordered by symbol.
	List(ctx context.Context) ([]*domain.SymbolProfile, error)
}

// TradeStore provides access to the trade ledger.
type TradeStore interface {
	// InsertBulk appends a run's ledger atomically. Slice order is preserved
	// as the ledger sequence. Fails entire batch on any duplicate trade_id.
	InsertBulk(ctx context.Context, trades []domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetByRunID retrieves a run's trades in ledger order.
	GetByRunID(ctx context.Context, runID string) ([]domain.Trade, error)

	// GetBySymbol retrieves every trade for a symbol across runs, ordered by exit time.
	GetBySymbol(ctx context.Context, symbol string) ([]domain.Trade, error)
}

// EligibilityStore provides access to the daily screen audit trail.
type EligibilityStore interface {
	// InsertBulk stores a run's eligibility decisions.
	// Fails entire batch on a duplicate (run_id, symbol, date).
	InsertBulk(ctx context.Context, runID string, days []domain.EligibilityDay) error

	// GetByRunID retrieves decisions ordered by (symbol, date).
	GetByRunID(ctx context.Context, runID string) ([]domain.EligibilityDay, error)
}

// RunStore provides access to run records.
type RunStore interface {
	// Insert adds a run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// List returns all runs, newest first.
	List(ctx context.Context) ([]*domain.RunRecord, error)
}
