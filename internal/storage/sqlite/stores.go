package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

var (
	_ storage.BarStore           = (*DB)(nil)
	_ storage.TradeStore         = (*TradeStore)(nil)
	_ storage.SymbolProfileStore = (*ProfileStore)(nil)
	_ storage.EligibilityStore   = (*EligibilityStore)(nil)
	_ storage.RunStore           = (*RunStore)(nil)
)

// Bars returns d as a storage.BarStore.
func (d *DB) Bars() storage.BarStore { return d }

// Trades returns the trade ledger view of d.
func (d *DB) Trades() *TradeStore { return &TradeStore{d} }

// Profiles returns the symbol profile view of d.
func (d *DB) Profiles() *ProfileStore { return &ProfileStore{d} }

// Eligibility returns the eligibility view of d.
func (d *DB) Eligibility() *EligibilityStore { return &EligibilityStore{d} }

// Runs returns the run record view of d.
func (d *DB) Runs() *RunStore { return &RunStore{d} }

// InsertBulk adds bars atomically.
func (d *DB) InsertBulk(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	return d.withTx(ctx, func(tx *sql.Tx) error {
		for _, b := range bars {
			if b.Symbol == "" || b.Timestamp.IsZero() {
				return storage.ErrInvalidInput
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO bars (symbol, resolution, ts, open, high, low, close, volume)
				VALUES (?,?,?,?,?,?,?,?)`,
				b.Symbol, string(b.Resolution), unixNano(b.Timestamp),
				b.Open, b.High, b.Low, b.Close, b.Volume,
			)
			if isConstraintError(err) {
				return storage.ErrDuplicateKey
			}
			if err != nil {
				return fmt.Errorf("insert bar: %w", err)
			}
		}
		return nil
	})
}

const barCols = `symbol, resolution, ts, open, high, low, close, volume`

// GetBySymbol retrieves all bars of a resolution for a symbol, ordered by timestamp.
func (d *DB) GetBySymbol(ctx context.Context, symbol string, res domain.Resolution) ([]domain.Bar, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+barCols+` FROM bars WHERE symbol = ? AND resolution = ? ORDER BY ts`,
		symbol, string(res))
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

// GetByTimeRange retrieves bars within [start, end] (inclusive).
func (d *DB) GetByTimeRange(ctx context.Context, symbol string, res domain.Resolution, start, end time.Time) ([]domain.Bar, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+barCols+` FROM bars WHERE symbol = ? AND resolution = ? AND ts >= ? AND ts <= ? ORDER BY ts`,
		symbol, string(res), unixNano(start), unixNano(end))
	if err != nil {
		return nil, fmt.Errorf("query bars by range: %w", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

// Symbols lists symbols with bars of the given resolution, sorted.
func (d *DB) Symbols(ctx context.Context, res domain.Resolution) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM bars WHERE resolution = ? ORDER BY symbol`, string(res))
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanBars(rows *sql.Rows) ([]domain.Bar, error) {
	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var res string
		var ts int64
		if err := rows.Scan(&b.Symbol, &res, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Resolution = domain.Resolution(res)
		b.Timestamp = fromNano(ts)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// TradeStore is the trade ledger view of a DB.
type TradeStore struct{ d *DB }

const tradeCols = `trade_id, position_id, run_id, strategy_id, symbol, entry_time, entry_price,
	exit_time, exit_price, shares, pnl_abs, pnl_pct, exit_reason, partial, outcome_class`

// InsertBulk appends trades atomically; slice order becomes the ledger sequence.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return s.d.withTx(ctx, func(tx *sql.Tx) error {
		for i, t := range trades {
			_, err := tx.ExecContext(ctx, `INSERT INTO trades (`+tradeCols+`, seq)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
				t.TradeID, t.PositionID, t.RunID, t.StrategyID, t.Symbol,
				unixNano(t.EntryTime), t.EntryPrice, unixNano(t.ExitTime), t.ExitPrice, t.Shares,
				t.PnLAbs, t.PnLPct, string(t.ExitReason), t.Partial, t.OutcomeClass, i,
			)
			if isConstraintError(err) {
				return storage.ErrDuplicateKey
			}
			if err != nil {
				return fmt.Errorf("insert trade %s: %w", t.TradeID, err)
			}
		}
		return nil
	})
}

// GetByID retrieves a trade. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	row := s.d.db.QueryRowContext(ctx, `SELECT `+tradeCols+` FROM trades WHERE trade_id = ?`, tradeID)
	t, err := scanTrade(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return &t, nil
}

// GetByRunID retrieves a run's trades in ledger order.
func (s *TradeStore) GetByRunID(ctx context.Context, runID string) ([]domain.Trade, error) {
	return s.query(ctx, `SELECT `+tradeCols+` FROM trades WHERE run_id = ? ORDER BY seq`, runID)
}

// GetBySymbol retrieves every trade for a symbol, ordered by exit time.
func (s *TradeStore) GetBySymbol(ctx context.Context, symbol string) ([]domain.Trade, error) {
	return s.query(ctx, `SELECT `+tradeCols+` FROM trades WHERE symbol = ? ORDER BY exit_time, trade_id`, symbol)
}

func (s *TradeStore) query(ctx context.Context, q string, arg any) ([]domain.Trade, error) {
	rows, err := s.d.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrade(scan func(dest ...any) error) (domain.Trade, error) {
	var t domain.Trade
	var entry, exit int64
	var reason string
	err := scan(&t.TradeID, &t.PositionID, &t.RunID, &t.StrategyID, &t.Symbol,
		&entry, &t.EntryPrice, &exit, &t.ExitPrice, &t.Shares,
		&t.PnLAbs, &t.PnLPct, &reason, &t.Partial, &t.OutcomeClass)
	t.EntryTime, t.ExitTime = fromNano(entry), fromNano(exit)
	t.ExitReason = domain.ExitReason(reason)
	return t, err
}

// ProfileStore is the symbol profile view of a DB.
type ProfileStore struct{ d *DB }

// Upsert inserts or replaces the profile for p.Symbol.
func (s *ProfileStore) Upsert(ctx context.Context, p *domain.SymbolProfile) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := s.d.db.ExecContext(ctx, `
		INSERT INTO symbol_profiles (symbol, float_shares, updated_at) VALUES (?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET float_shares = excluded.float_shares, updated_at = excluded.updated_at`,
		p.Symbol, p.FloatShares, unixNano(updated))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// Get retrieves a profile. Returns ErrNotFound if not exists.
func (s *ProfileStore) Get(ctx context.Context, symbol string) (*domain.SymbolProfile, error) {
	row := s.d.db.QueryRowContext(ctx, `SELECT symbol, float_shares, updated_at FROM symbol_profiles WHERE symbol = ?`, symbol)
	p, err := scanProfile(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// List returns all profiles ordered by symbol.
func (s *ProfileStore) List(ctx context.Context) ([]*domain.SymbolProfile, error) {
	rows, err := s.d.db.QueryContext(ctx, `SELECT symbol, float_shares, updated_at FROM symbol_profiles ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*domain.SymbolProfile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProfile(scan func(dest ...any) error) (*domain.SymbolProfile, error) {
	var p domain.SymbolProfile
	var float sql.NullInt64
	var updated int64
	if err := scan(&p.Symbol, &float, &updated); err != nil {
		return nil, err
	}
	if float.Valid {
		v := float.Int64
		p.FloatShares = &v
	}
	p.UpdatedAt = fromNano(updated)
	return &p, nil
}

// EligibilityStore is the eligibility view of a DB.
type EligibilityStore struct{ d *DB }

// InsertBulk stores a run's decisions atomically.
func (s *EligibilityStore) InsertBulk(ctx context.Context, runID string, days []domain.EligibilityDay) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(days) == 0 {
		return nil
	}
	return s.d.withTx(ctx, func(tx *sql.Tx) error {
		for _, day := range days {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO eligibility_days
					(run_id, symbol, session_date, eligible, close, volume, avg_volume, relative_volume, reason)
				VALUES (?,?,?,?,?,?,?,?,?)`,
				runID, day.Symbol, int(day.Date), day.Eligible, day.Close, day.Volume,
				day.AvgVolume, day.RelativeVolume, day.Reason,
			)
			if isConstraintError(err) {
				return storage.ErrDuplicateKey
			}
			if err != nil {
				return fmt.Errorf("insert eligibility: %w", err)
			}
		}
		return nil
	})
}

// GetByRunID retrieves decisions ordered by (symbol, date).
func (s *EligibilityStore) GetByRunID(ctx context.Context, runID string) ([]domain.EligibilityDay, error) {
	rows, err := s.d.db.QueryContext(ctx, `
		SELECT symbol, session_date, eligible, close, volume, avg_volume, relative_volume, reason
		FROM eligibility_days WHERE run_id = ? ORDER BY symbol, session_date`, runID)
	if err != nil {
		return nil, fmt.Errorf("query eligibility: %w", err)
	}
	defer rows.Close()

	var out []domain.EligibilityDay
	for rows.Next() {
		var day domain.EligibilityDay
		var date int
		var avg, rvol sql.NullFloat64
		if err := rows.Scan(&day.Symbol, &date, &day.Eligible, &day.Close, &day.Volume, &avg, &rvol, &day.Reason); err != nil {
			return nil, fmt.Errorf("scan eligibility: %w", err)
		}
		day.Date = domain.Date(date)
		if avg.Valid {
			v := avg.Float64
			day.AvgVolume = &v
		}
		if rvol.Valid {
			v := rvol.Float64
			day.RelativeVolume = &v
		}
		out = append(out, day)
	}
	return out, rows.Err()
}

// RunStore is the run record view of a DB.
type RunStore struct{ d *DB }

const runCols = `run_id, strategy_id, config_json, symbols, started_at, finished_at, trade_count, total_pnl`

// Insert adds a run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.d.db.ExecContext(ctx, `INSERT INTO runs (`+runCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		r.RunID, r.StrategyID, r.ConfigJSON, strings.Join(r.Symbols, ","),
		unixNano(r.StartedAt), unixNano(r.FinishedAt), r.TradeCount, r.TotalPnL)
	if isConstraintError(err) {
		return storage.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	row := s.d.db.QueryRowContext(ctx, `SELECT `+runCols+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// List returns all runs, newest first.
func (s *RunStore) List(ctx context.Context) ([]*domain.RunRecord, error) {
	rows, err := s.d.db.QueryContext(ctx, `SELECT `+runCols+` FROM runs ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRun(scan func(dest ...any) error) (*domain.RunRecord, error) {
	var r domain.RunRecord
	var symbols string
	var started, finished int64
	if err := scan(&r.RunID, &r.StrategyID, &r.ConfigJSON, &symbols, &started, &finished, &r.TradeCount, &r.TotalPnL); err != nil {
		return nil, err
	}
	if symbols != "" {
		r.Symbols = strings.Split(symbols, ",")
	}
	r.StartedAt, r.FinishedAt = fromNano(started), fromNano(finished)
	return &r, nil
}
