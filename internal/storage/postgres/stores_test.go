package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

var entry = time.Date(2024, 3, 5, 15, 32, 0, 0, time.UTC)

func insertTestRun(t *testing.T, ctx context.Context, pool *Pool, runID string, started time.Time) {
	t.Helper()
	err := NewRunStore(pool).Insert(ctx, &domain.RunRecord{
		RunID:      runID,
		StrategyID: "HOD_MOMENTUM_test",
		ConfigJSON: `{}`,
		Symbols:    []string{"ABCD", "WXYZ"},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		TradeCount: 2,
		TotalPnL:   17.16,
	})
	require.NoError(t, err)
}

func testTrade(id, runID string, exitAfter time.Duration, reason domain.ExitReason, partial bool) domain.Trade {
	return domain.Trade{
		TradeID:      id,
		PositionID:   "pos-1",
		RunID:        runID,
		StrategyID:   "HOD_MOMENTUM_test",
		Symbol:       "ABCD",
		EntryTime:    entry,
		EntryPrice:   5.06,
		ExitTime:     entry.Add(exitAfter),
		ExitPrice:    5.4648,
		Shares:       131,
		PnLAbs:       52.9,
		PnLPct:       8,
		ExitReason:   reason,
		Partial:      partial,
		OutcomeClass: domain.OutcomeClassWin,
	}
}

func TestTradeStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestRun(t, ctx, pool, "run-1", entry)
	store := NewTradeStore(pool)

	trades := []domain.Trade{
		testTrade("t-b", "run-1", 5*time.Minute, domain.ExitReasonScaleOut, true),
		testTrade("t-a", "run-1", 9*time.Minute, domain.ExitReasonTrailingStop, false),
	}
	require.NoError(t, store.InsertBulk(ctx, trades))

	got, err := store.GetByID(ctx, "t-b")
	require.NoError(t, err)
	assert.Equal(t, "pos-1", got.PositionID)
	assert.True(t, got.EntryTime.Equal(entry))
	assert.InDelta(t, 5.4648, got.ExitPrice, 1e-9)
	assert.Equal(t, int64(131), got.Shares)
	assert.Equal(t, domain.ExitReasonScaleOut, got.ExitReason)
	assert.True(t, got.Partial)

	ledger, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, "t-b", ledger[0].TradeID, "ledger order follows insertion")
	assert.Equal(t, "t-a", ledger[1].TradeID)

	bySym, err := store.GetBySymbol(ctx, "ABCD")
	require.NoError(t, err)
	assert.Len(t, bySym, 2)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_DuplicateRollsBackBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestRun(t, ctx, pool, "run-1", entry)
	insertTestRun(t, ctx, pool, "run-2", entry.Add(time.Hour))
	store := NewTradeStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []domain.Trade{testTrade("t-1", "run-1", time.Minute, domain.ExitReasonStopLoss, false)}))

	err := store.InsertBulk(ctx, []domain.Trade{
		testTrade("t-2", "run-2", time.Minute, domain.ExitReasonStopLoss, false),
		testTrade("t-1", "run-2", 2*time.Minute, domain.ExitReasonStopLoss, false),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "t-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEligibilityStore_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestRun(t, ctx, pool, "run-1", entry)
	store := NewEligibilityStore(pool)

	days := []domain.EligibilityDay{
		{Symbol: "WXYZ", Date: 20240305, Reason: domain.EligibilityReasonFloatUnknown, Close: 3, Volume: 100},
		{Symbol: "ABCD", Date: 20240305, Eligible: true, Reason: domain.EligibilityReasonOK,
			Close: 5.1, Volume: 3_000_000, AvgVolume: ptr(1_000_000.0), RelativeVolume: ptr(3.0)},
		{Symbol: "ABCD", Date: 20240304, Reason: domain.EligibilityReasonLowRelativeVolume,
			Close: 4.9, Volume: 1_000_000, AvgVolume: ptr(1_000_000.0), RelativeVolume: ptr(1.0)},
	}
	require.NoError(t, store.InsertBulk(ctx, "run-1", days))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.Date(20240304), got[0].Date)
	assert.Equal(t, domain.Date(20240305), got[1].Date)
	assert.True(t, got[1].Eligible)
	require.NotNil(t, got[1].RelativeVolume)
	assert.InDelta(t, 3.0, *got[1].RelativeVolume, 1e-9)
	assert.Equal(t, "WXYZ", got[2].Symbol)
	assert.Nil(t, got[2].AvgVolume)

	err = store.InsertBulk(ctx, "run-1", days[:1])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSymbolProfileStore_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSymbolProfileStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.SymbolProfile{Symbol: "ABCD", FloatShares: ptr(int64(10_000_000))}))
	require.NoError(t, store.Upsert(ctx, &domain.SymbolProfile{Symbol: "ABCD", FloatShares: ptr(int64(8_000_000))}))
	require.NoError(t, store.Upsert(ctx, &domain.SymbolProfile{Symbol: "AAAA"}))

	p, err := store.Get(ctx, "ABCD")
	require.NoError(t, err)
	require.NotNil(t, p.FloatShares)
	assert.Equal(t, int64(8_000_000), *p.FloatShares)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "AAAA", all[0].Symbol)
	assert.Nil(t, all[0].FloatShares)

	_, err = store.Get(ctx, "NONE")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_ListAndDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestRun(t, ctx, pool, "run-old", entry)
	insertTestRun(t, ctx, pool, "run-new", entry.Add(24*time.Hour))

	store := NewRunStore(pool)
	runs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].RunID)
	assert.Equal(t, []string{"ABCD", "WXYZ"}, runs[0].Symbols)

	err = store.Insert(ctx, &domain.RunRecord{RunID: "run-old", Symbols: []string{}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
