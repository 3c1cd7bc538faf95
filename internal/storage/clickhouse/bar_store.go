package clickhouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
// MergeTree does not enforce keys, so duplicates are checked before insert.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

type seriesKey struct {
	symbol string
	res    domain.Resolution
}

// InsertBulk adds bars. Fails entire batch on duplicate (symbol, resolution, timestamp).
func (s *BarStore) InsertBulk(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	groups := make(map[seriesKey]map[int64]struct{})
	for _, b := range bars {
		if b.Symbol == "" || b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		k := seriesKey{b.Symbol, b.Resolution}
		if groups[k] == nil {
			groups[k] = make(map[int64]struct{})
		}
		ms := b.Timestamp.UnixMilli()
		if _, dup := groups[k][ms]; dup {
			return storage.ErrDuplicateKey
		}
		groups[k][ms] = struct{}{}
	}

	for k, stamps := range groups {
		clash, err := s.anyExisting(ctx, k, stamps)
		if err != nil {
			return fmt.Errorf("check existing bars: %w", err)
		}
		if clash {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (symbol, resolution, timestamp_ms, open, high, low, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Symbol, string(b.Resolution), b.Timestamp.UnixMilli(),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// anyExisting reports whether any of stamps is already stored for k.
func (s *BarStore) anyExisting(ctx context.Context, k seriesKey, stamps map[int64]struct{}) (bool, error) {
	lo, hi := int64(1<<62), int64(-1<<62)
	for ms := range stamps {
		lo = min(lo, ms)
		hi = max(hi, ms)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT timestamp_ms FROM bars
		WHERE symbol = ? AND resolution = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
	`, k.symbol, string(k.res), lo, hi)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return false, err
		}
		if _, hit := stamps[ms]; hit {
			return true, nil
		}
	}
	return false, rows.Err()
}

// GetBySymbol retrieves all bars of a resolution for a symbol, ordered by timestamp ASC.
func (s *BarStore) GetBySymbol(ctx context.Context, symbol string, res domain.Resolution) ([]domain.Bar, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT symbol, resolution, timestamp_ms, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND resolution = ?
		ORDER BY timestamp_ms ASC
	`, symbol, string(res))
	if err != nil {
		return nil, fmt.Errorf("query bars by symbol: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByTimeRange retrieves bars within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol string, res domain.Resolution, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT symbol, resolution, timestamp_ms, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND resolution = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`, symbol, string(res), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query bars by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Symbols lists symbols with bars of the given resolution, sorted.
func (s *BarStore) Symbols(ctx context.Context, res domain.Resolution) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT symbol FROM bars WHERE resolution = ?
	`, string(res))
	if err != nil {
		return nil, fmt.Errorf("query bar symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(symbols)
	return symbols, nil
}

func scanBars(rows chRows) ([]domain.Bar, error) {
	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var res string
		var ms int64
		if err := rows.Scan(&b.Symbol, &res, &ms, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Resolution = domain.Resolution(res)
		b.Timestamp = time.UnixMilli(ms).UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}
