package replay

import (
	"context"

	"hod-momentum-lab/internal/domain"
)

// Event is one bar of the merged multi-symbol stream.
// Index is the position of the bar within its own symbol series, so
// per-symbol precomputed data (snapshots) can be addressed directly.
type Event struct {
	Symbol string
	Index  int
	Bar    domain.Bar
}

// ReplayEngine processes events in deterministic order.
type ReplayEngine interface {
	// OnEvent is called for each event in order.
	// Events are guaranteed to be ordered by (timestamp, symbol).
	OnEvent(ctx context.Context, event *Event) error
}

// Replay feeds events to engine in order, stopping at the first error.
func Replay(ctx context.Context, events []*Event, engine ReplayEngine) error {
	for _, event := range events {
		if err := engine.OnEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
