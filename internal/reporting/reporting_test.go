package reporting

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hod-momentum-lab/internal/decision"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
	"hod-momentum-lab/internal/storage/memory"
)

var (
	ny, _     = time.LoadLocation("America/New_York")
	entryTime = time.Date(2024, 3, 5, 10, 32, 0, 0, ny)
	fixedNow  = time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)
)

func sampleTrades() []domain.Trade {
	return []domain.Trade{
		{
			TradeID: "t1", PositionID: "p1", RunID: "run-1", StrategyID: "strat", Symbol: "ABCD",
			EntryTime: entryTime, EntryPrice: 5.06, ExitTime: entryTime.Add(20 * time.Minute), ExitPrice: 5.4648,
			Shares: 131, PnLAbs: 53.03, PnLPct: 8, ExitReason: domain.ExitReasonScaleOut, Partial: true,
			OutcomeClass: domain.OutcomeClassWin,
		},
		{
			TradeID: "t2", PositionID: "p1", RunID: "run-1", StrategyID: "strat", Symbol: "ABCD",
			EntryTime: entryTime, EntryPrice: 5.06, ExitTime: entryTime.Add(40 * time.Minute), ExitPrice: 4.9,
			Shares: 66, PnLAbs: -10.56, PnLPct: -3.1621, ExitReason: domain.ExitReasonTrailingStop,
			OutcomeClass: domain.OutcomeClassLoss,
		},
	}
}

func sampleDays() []domain.EligibilityDay {
	avg, rvol := 1_000_000.0, 3.0
	return []domain.EligibilityDay{
		{Symbol: "ABCD", Date: 20240304, Reason: domain.EligibilityReasonLowRelativeVolume, Close: 5, Volume: 900_000, AvgVolume: &avg},
		{Symbol: "ABCD", Date: 20240305, Eligible: true, Reason: domain.EligibilityReasonOK, Close: 5.1, Volume: 3_000_000, AvgVolume: &avg, RelativeVolume: &rvol},
		{Symbol: "WXYZ", Date: 20240305, Reason: domain.EligibilityReasonFloatUnknown, Close: 3, Volume: 10},
	}
}

func setupStores(t *testing.T) (*memory.RunStore, *memory.TradeStore, *memory.EligibilityStore) {
	t.Helper()
	ctx := context.Background()

	cfgJSON, err := json.Marshal(domain.DefaultStrategyConfig())
	require.NoError(t, err)

	runs := memory.NewRunStore()
	trades := memory.NewTradeStore()
	elig := memory.NewEligibilityStore()

	require.NoError(t, runs.Insert(ctx, &domain.RunRecord{
		RunID: "run-1", StrategyID: "strat", ConfigJSON: string(cfgJSON),
		Symbols: []string{"ABCD", "WXYZ"}, StartedAt: fixedNow, FinishedAt: fixedNow,
		TradeCount: 2, TotalPnL: 42.47,
	}))
	require.NoError(t, runs.Insert(ctx, &domain.RunRecord{
		RunID: "run-empty", StrategyID: "strat", ConfigJSON: string(cfgJSON), StartedAt: fixedNow,
	}))
	require.NoError(t, trades.InsertBulk(ctx, sampleTrades()))
	require.NoError(t, elig.InsertBulk(ctx, "run-1", sampleDays()))
	return runs, trades, elig
}

func TestGenerate_Report(t *testing.T) {
	runs, trades, elig := setupStores(t)
	gen := NewGenerator(runs, trades, elig).WithClock(func() time.Time { return fixedNow })

	r, err := gen.Generate(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, fixedNow, r.GeneratedAt)
	assert.Equal(t, domain.DefaultStrategyConfig().PositionNotional, r.Config.PositionNotional)
	require.NotNil(t, r.Summary)
	assert.Equal(t, 2, r.Summary.TotalTrades)
	assert.Equal(t, 1, r.Summary.Positions)
	require.NotNil(t, r.Decision)
	assert.Equal(t, decision.DecisionNOGO, r.Decision.Decision, "two trades cannot pass the sample size gate")

	assert.Equal(t, 3, r.Eligibility.SymbolDays)
	assert.Equal(t, 1, r.Eligibility.EligibleDays)
	assert.Equal(t, 2, r.Eligibility.Symbols)
	require.Len(t, r.Eligibility.ByReason, 3)
	assert.Equal(t, domain.EligibilityReasonFloatUnknown, r.Eligibility.ByReason[0].Reason)
}

func TestGenerate_NoTradesAndMissingRun(t *testing.T) {
	runs, trades, elig := setupStores(t)
	gen := NewGenerator(runs, trades, elig)

	r, err := gen.Generate(context.Background(), "run-empty")
	require.NoError(t, err)
	assert.Nil(t, r.Summary)
	assert.Nil(t, r.Decision)
	assert.Contains(t, RenderMarkdown(r), "No trades were closed")

	_, err = gen.Generate(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRenderMarkdown_Sections(t *testing.T) {
	runs, trades, elig := setupStores(t)
	gen := NewGenerator(runs, trades, elig).WithClock(func() time.Time { return fixedNow })
	r, err := gen.Generate(context.Background(), "run-1")
	require.NoError(t, err)

	md := RenderMarkdown(r)
	for _, section := range []string{
		"# HOD Momentum Backtest Report",
		"## Run", "## Daily Screen", "## Performance", "### Return Distribution (%)",
		"## Exit Reasons", "## Symbols", "## Strategy Gate: NO-GO", "## Trade Ledger",
	} {
		assert.Contains(t, md, section)
	}
	assert.Contains(t, md, "| 1 | ABCD | 2024-03-05 10:32 | 2024-03-05 10:52 |")
	assert.Contains(t, md, "SCALE_OUT (partial)")
	assert.Equal(t, md, RenderMarkdown(r), "rendering is deterministic")
}

func TestWriteLedgerCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLedgerCSV(&buf, sampleTrades(), ny))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "trade_id", rows[0][0])
	assert.Equal(t, "2024-03-05T10:32:00-05:00", rows[1][3])
	assert.Equal(t, "5.4648", rows[1][6])
	assert.Equal(t, "131", rows[1][7])
	assert.Equal(t, "true", rows[1][11])
	assert.Equal(t, "TRAILING_STOP", rows[2][10])
}

func TestWriteEligibilityCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEligibilityCSV(&buf, sampleDays()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ABCD,2024-03-04,false,5,900000,1000000,,LOW_RELATIVE_VOLUME", lines[1])
	assert.Equal(t, "ABCD,2024-03-05,true,5.1,3000000,1000000,3,OK", lines[2])
}

func TestLedgerRecords(t *testing.T) {
	recs := LedgerRecords(sampleTrades(), ny)
	require.Len(t, recs, 2)
	assert.Equal(t, "2024-03-05T10:32:00-05:00", recs[0].EntryTime)
	assert.Equal(t, "SCALE_OUT", recs[0].ExitReason)

	data, err := json.Marshal(recs[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"exit_reason":"TRAILING_STOP"`)
	assert.Contains(t, string(data), `"shares":66`)
}
