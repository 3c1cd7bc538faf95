package replay

import (
	"sort"

	"hod-momentum-lab/internal/domain"
)

// SortEvents orders events by (timestamp ASC, symbol ASC, index ASC).
// Symbol is the tie-breaker so simultaneous multi-symbol bars always replay
// in the same order.
func SortEvents(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareEvents(events[i], events[j]) < 0
	})
}

// MergeSeries combines per-symbol bar series into one sorted event stream.
func MergeSeries(series map[string][]domain.Bar) []*Event {
	total := 0
	for _, bars := range series {
		total += len(bars)
	}

	events := make([]*Event, 0, total)
	for symbol, bars := range series {
		for i, b := range bars {
			events = append(events, &Event{
				Symbol: symbol,
				Index:  i,
				Bar:    b,
			})
		}
	}

	SortEvents(events)
	return events
}

// compareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (timestamp ASC, symbol ASC, index ASC)
func compareEvents(a, b *Event) int {
	if !a.Bar.Timestamp.Equal(b.Bar.Timestamp) {
		if a.Bar.Timestamp.Before(b.Bar.Timestamp) {
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
	if a.Index != b.Index {
		if a.Index < b.Index {
			return -1
		}
		return 1
	}
	return 0
}
