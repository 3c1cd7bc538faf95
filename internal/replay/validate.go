package replay

import (
	"fmt"

	"hod-momentum-lab/internal/domain"
)

// ValidateSeries checks that bars form a usable series for symbol:
// timestamps present and strictly increasing, one symbol, sane OHLCV.
func ValidateSeries(symbol string, bars []domain.Bar) error {
	for i, b := range bars {
		if b.Timestamp.IsZero() {
			return fmt.Errorf("%s bar %d: %w", symbol, i, ErrMissingTimestamp)
		}
		if b.Symbol != "" && b.Symbol != symbol {
			return fmt.Errorf("%s bar %d has symbol %s: %w", symbol, i, b.Symbol, ErrSymbolMismatch)
		}
		if b.Low > b.High || b.Close <= 0 || b.Low <= 0 || b.Volume < 0 {
			return fmt.Errorf("%s bar %d at %s: %w", symbol, i, b.Timestamp.Format("2006-01-02T15:04"), ErrInvalidBar)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("%s bar %d at %s: %w", symbol, i, b.Timestamp.Format("2006-01-02T15:04"), ErrInvalidOrdering)
		}
	}
	return nil
}
