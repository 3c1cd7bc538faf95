package ingestion

import (
	"errors"
	"sort"

	"hod-momentum-lab/internal/domain"
)

// ErrInvalidOrdering is returned when bars are not strictly increasing.
var ErrInvalidOrdering = errors.New("bars are not in timestamp order")

// SortBars orders bars by (timestamp ASC, symbol ASC).
func SortBars(bars []domain.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return compareBars(bars[i], bars[j]) < 0
	})
}

// ValidateBarOrdering checks that bars are strictly increasing.
// Two bars with the same key are reported as ErrInvalidOrdering.
func ValidateBarOrdering(bars []domain.Bar) error {
	for i := 1; i < len(bars); i++ {
		if compareBars(bars[i-1], bars[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareBars returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (timestamp ASC, symbol ASC)
func compareBars(a, b domain.Bar) int {
	if !a.Timestamp.Equal(b.Timestamp) {
		if a.Timestamp.Before(b.Timestamp) {
			return -1
		}
		return 1
	}
	if a.Symbol != b.Symbol {
		if a.Symbol < b.Symbol {
			return -1
		}
		return 1
	}
	return 0
}
