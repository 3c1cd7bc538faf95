package ingestion

import (
	"context"

	"hod-momentum-lab/internal/domain"
)

// BarSource provides raw OHLCV bars from an external source.
type BarSource interface {
	// Symbols lists the symbols the source holds bars for at res, sorted.
	Symbols(ctx context.Context, res domain.Resolution) ([]string, error)

	// Fetch returns every bar of a symbol at res.
	// Bars may be unordered; Manager enforces timestamp order.
	Fetch(ctx context.Context, symbol string, res domain.Resolution) ([]domain.Bar, error)
}

// ProfileSource provides static per-symbol reference data.
type ProfileSource interface {
	// Fetch returns all known profiles.
	Fetch(ctx context.Context) ([]*domain.SymbolProfile, error)
}
