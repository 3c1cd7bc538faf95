package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, position_id, run_id, strategy_id, symbol,
	entry_time, entry_price, exit_time, exit_price, shares,
	pnl_abs, pnl_pct, exit_reason, partial, outcome_class`

// InsertBulk appends trades in one transaction. The slice index becomes the ledger sequence.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	query := `INSERT INTO trades (` + tradeColumns + `, seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	return s.pool.withTx(ctx, func(tx pgx.Tx) error {
		for i, t := range trades {
			_, err := tx.Exec(ctx, query,
				t.TradeID, t.PositionID, t.RunID, t.StrategyID, t.Symbol,
				t.EntryTime, t.EntryPrice, t.ExitTime, t.ExitPrice, t.Shares,
				t.PnLAbs, t.PnLPct, string(t.ExitReason), t.Partial, t.OutcomeClass,
				i,
			)
			if err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert trade %s: %w", t.TradeID, err)
			}
		}
		return nil
	})
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE trade_id = $1`

	t, err := scanTrade(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return &t, nil
}

// GetByRunID retrieves a run's trades in ledger order.
func (s *TradeStore) GetByRunID(ctx context.Context, runID string) ([]domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE run_id = $1 ORDER BY seq ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trades by run id: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetBySymbol retrieves every trade for a symbol, ordered by exit time.
func (s *TradeStore) GetBySymbol(ctx context.Context, symbol string) ([]domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE symbol = $1 ORDER BY exit_time ASC, trade_id ASC`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get trades by symbol: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var t domain.Trade
	var reason string
	err := row.Scan(
		&t.TradeID, &t.PositionID, &t.RunID, &t.StrategyID, &t.Symbol,
		&t.EntryTime, &t.EntryPrice, &t.ExitTime, &t.ExitPrice, &t.Shares,
		&t.PnLAbs, &t.PnLPct, &reason, &t.Partial, &t.OutcomeClass,
	)
	t.ExitReason = domain.ExitReason(reason)
	return t, err
}

func scanTrades(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
