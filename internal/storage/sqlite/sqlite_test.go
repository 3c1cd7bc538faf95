package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "lab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var t0 = time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

func TestBars_InsertQueryDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "ABCD", Resolution: domain.ResolutionMinute, Timestamp: t0.Add(time.Minute), Open: 5, High: 5.2, Low: 4.9, Close: 5.1, Volume: 2000},
		{Symbol: "ABCD", Resolution: domain.ResolutionMinute, Timestamp: t0, Open: 5, High: 5.1, Low: 4.9, Close: 5, Volume: 1000},
		{Symbol: "ABCD", Resolution: domain.ResolutionDaily, Timestamp: t0.Truncate(24 * time.Hour), Open: 5, High: 5.2, Low: 4.9, Close: 5.1, Volume: 3000},
	}
	require.NoError(t, db.Bars().InsertBulk(ctx, bars))

	got, err := db.Bars().GetBySymbol(ctx, "ABCD", domain.ResolutionMinute)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Equal(t0))
	assert.Equal(t, int64(2000), got[1].Volume)

	ranged, err := db.Bars().GetByTimeRange(ctx, "ABCD", domain.ResolutionMinute, t0, t0)
	require.NoError(t, err)
	assert.Len(t, ranged, 1)

	err = db.Bars().InsertBulk(ctx, bars[:1])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	syms, err := db.Bars().Symbols(ctx, domain.ResolutionDaily)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABCD"}, syms)
}

func TestRunOutputs_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	run := &domain.RunRecord{
		RunID: "run-1", StrategyID: "HOD_MOMENTUM_x", ConfigJSON: `{"a":1}`,
		Symbols: []string{"AAAA", "ZZZZ"}, StartedAt: t0, FinishedAt: t0.Add(time.Second),
		TradeCount: 2, TotalPnL: 4.5,
	}
	require.NoError(t, db.Runs().Insert(ctx, run))
	assert.ErrorIs(t, db.Runs().Insert(ctx, run), storage.ErrDuplicateKey)

	gotRun, err := db.Runs().GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Symbols, gotRun.Symbols)
	assert.True(t, gotRun.StartedAt.Equal(t0))

	trades := []domain.Trade{
		{TradeID: "b", PositionID: "p", RunID: "run-1", Symbol: "ZZZZ", EntryTime: t0, ExitTime: t0.Add(time.Minute),
			EntryPrice: 2, ExitPrice: 2.1, Shares: 10, PnLAbs: 1, ExitReason: domain.ExitReasonScaleOut, Partial: true, OutcomeClass: domain.OutcomeClassWin},
		{TradeID: "a", PositionID: "p", RunID: "run-1", Symbol: "ZZZZ", EntryTime: t0, ExitTime: t0.Add(2 * time.Minute),
			EntryPrice: 2, ExitPrice: 2.35, Shares: 10, PnLAbs: 3.5, ExitReason: domain.ExitReasonTakeProfit, OutcomeClass: domain.OutcomeClassWin},
	}
	require.NoError(t, db.Trades().InsertBulk(ctx, trades))

	ledger, err := db.Trades().GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, "b", ledger[0].TradeID)
	assert.True(t, ledger[0].Partial)
	assert.False(t, ledger[1].Partial)
	assert.Equal(t, domain.ExitReasonTakeProfit, ledger[1].ExitReason)

	_, err = db.Trades().GetByID(ctx, "zzz")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	avg, rvol := 1_000_000.0, 3.0
	days := []domain.EligibilityDay{
		{Symbol: "ZZZZ", Date: 20240305, Eligible: true, Close: 2, Volume: 3_000_000, AvgVolume: &avg, RelativeVolume: &rvol, Reason: domain.EligibilityReasonOK},
		{Symbol: "AAAA", Date: 20240305, Reason: domain.EligibilityReasonFloatUnknown},
	}
	require.NoError(t, db.Eligibility().InsertBulk(ctx, "run-1", days))
	gotDays, err := db.Eligibility().GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotDays, 2)
	assert.Equal(t, "AAAA", gotDays[0].Symbol)
	assert.Nil(t, gotDays[0].AvgVolume)
	require.NotNil(t, gotDays[1].RelativeVolume)
	assert.InDelta(t, 3.0, *gotDays[1].RelativeVolume, 1e-12)
	assert.Equal(t, domain.Date(20240305), gotDays[1].Date)
}

func TestProfiles_Upsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	f := int64(9_000_000)
	require.NoError(t, db.Profiles().Upsert(ctx, &domain.SymbolProfile{Symbol: "ABCD"}))
	require.NoError(t, db.Profiles().Upsert(ctx, &domain.SymbolProfile{Symbol: "ABCD", FloatShares: &f}))

	p, err := db.Profiles().Get(ctx, "ABCD")
	require.NoError(t, err)
	require.NotNil(t, p.FloatShares)
	assert.Equal(t, f, *p.FloatShares)

	all, err := db.Profiles().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
