package backtest

import "hod-momentum-lab/internal/domain"

// Ledger is the append-only record of completed trades in close order.
type Ledger struct {
	trades []domain.Trade
}

// Append records a completed trade.
func (l *Ledger) Append(t domain.Trade) {
	l.trades = append(l.trades, t)
}

// Len returns the number of trades.
func (l *Ledger) Len() int {
	return len(l.trades)
}

// Trades returns a copy of the recorded trades.
func (l *Ledger) Trades() []domain.Trade {
	out := make([]domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}
