package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hod-momentum-lab/internal/domain"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

type fixture struct {
	t   *testing.T
	loc *time.Location
	day time.Time
}

func newFixture(t *testing.T) fixture {
	loc := newYork(t)
	return fixture{t: t, loc: loc, day: time.Date(2024, 3, 5, 0, 0, 0, 0, loc)}
}

// at builds a bar at hh:mm local.
func (f fixture) at(hh, mm int, o, h, l, c float64) domain.Bar {
	return domain.Bar{
		Symbol:     "ABCD",
		Resolution: domain.ResolutionMinute,
		Timestamp:  f.day.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute),
		Open:       o, High: h, Low: l, Close: c,
		Volume: 100_000,
	}
}

func (f fixture) open(cfg domain.StrategyConfig) *Machine {
	f.t.Helper()
	m, err := Open(cfg, f.loc, "run-1", f.at(10, 30, 4.95, 5.02, 4.94, 5.00))
	require.NoError(f.t, err)
	return m
}

func TestOpen_Levels(t *testing.T) {
	f := newFixture(t)
	m := f.open(domain.DefaultStrategyConfig())

	p := m.Position()
	assert.Equal(t, StageOpen, p.Stage)
	assert.Equal(t, int64(200), p.Shares)
	assert.Equal(t, int64(200), p.Remaining)
	assert.Equal(t, 4.75, p.StopPrice)
	assert.Equal(t, 5.40, p.ScaleOutPrice)
	assert.Equal(t, 5.50, p.TakeProfitPrice)
	assert.Equal(t, 5.00, p.HighestPrice)
	assert.Equal(t, domain.NewDate(2024, 3, 5), p.EntryDate)
	assert.Len(t, p.ID, 64)
}

func TestOpen_ZeroShares(t *testing.T) {
	f := newFixture(t)
	cfg := domain.DefaultStrategyConfig()
	cfg.PositionNotional = 4.99
	_, err := Open(cfg, f.loc, "run-1", f.at(10, 30, 5, 5, 5, 5.00))
	assert.ErrorIs(t, err, ErrZeroShares)
}

func TestAdvance_StopLoss(t *testing.T) {
	f := newFixture(t)
	m := f.open(domain.DefaultStrategyConfig())

	stage, trade := m.Advance(f.at(10, 31, 4.90, 4.92, 4.74, 4.80))
	assert.Equal(t, StageClosed, stage)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ExitReasonStopLoss, trade.ExitReason)
	assert.Equal(t, 4.75, trade.ExitPrice)
	assert.Equal(t, int64(200), trade.Shares)
	assert.InDelta(t, -50.0, trade.PnLAbs, 1e-9)
	assert.InDelta(t, -5.0, trade.PnLPct, 1e-9)
	assert.Equal(t, domain.OutcomeClassLoss, trade.OutcomeClass)
	assert.False(t, trade.Partial)
}

func TestAdvance_StopLossExactBoundary(t *testing.T) {
	f := newFixture(t)
	m := f.open(domain.DefaultStrategyConfig())

	stage, trade := m.Advance(f.at(10, 31, 4.90, 4.92, 4.75, 4.80))
	assert.Equal(t, StageClosed, stage)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ExitReasonStopLoss, trade.ExitReason)
}

func TestAdvance_ScaleOutThenTrailingStop(t *testing.T) {
	f := newFixture(t)
	m := f.open(domain.DefaultStrategyConfig())

	stage, scale := m.Advance(f.at(10, 31, 5.10, 5.41, 5.08, 5.35))
	assert.Equal(t, StageScaled, stage)
	require.NotNil(t, scale)
	assert.Equal(t, domain.ExitReasonScaleOut, scale.ExitReason)
	assert.Equal(t, int64(134), scale.Shares)
	assert.Equal(t, 5.40, scale.ExitPrice)
	assert.InDelta(t, 53.6, scale.PnLAbs, 1e-9)
	assert.InDelta(t, 8.0, scale.PnLPct, 1e-9)
	assert.True(t, scale.Partial)

	p := m.Position()
	assert.True(t, p.ScaledOut)
	assert.True(t, p.TrailingActive)
	assert.Equal(t, int64(66), p.Remaining)
	assert.Equal(t, 5.40, p.HighestPrice)

	// New high, trail moves to 5.32; low stays above.
	stage, trade := m.Advance(f.at(10, 32, 5.40, 5.60, 5.50, 5.55))
	assert.Equal(t, StageScaled, stage)
	assert.Nil(t, trade)
	assert.Equal(t, 5.60, m.Position().HighestPrice)

	stage, trail := m.Advance(f.at(10, 33, 5.50, 5.52, 5.31, 5.35))
	assert.Equal(t, StageClosed, stage)
	require.NotNil(t, trail)
	assert.Equal(t, domain.ExitReasonTrailingStop, trail.ExitReason)
	assert.Equal(t, 5.32, trail.ExitPrice)
	assert.Equal(t, int64(66), trail.Shares)
	assert.InDelta(t, 21.12, trail.PnLAbs, 1e-9)
	assert.Equal(t, scale.PositionID, trail.PositionID)
	assert.NotEqual(t, scale.TradeID, trail.TradeID)

	assert.Equal(t, int64(200), scale.Shares+trail.Shares, "shares conserved")
}

func TestAdvance_StopBeatsScaleOutOnSameBar(t *testing.T) {
	f := newFixture(t)
	m := f.open(domain.DefaultStrategyConfig())

	stage, trade := m.Advance(f.at(10, 31, 5.00, 5.45, 4.70, 5.00))
	assert.Equal(t, StageClosed, stage)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ExitReasonStopLoss, trade.ExitReason)
	assert.Equal(t, int64(200), trade.Shares)
}

func TestAdvance_SessionCutoffBeatsStop(t *testing.T) {
	f := newFixture(t)
	m := f.open(domain.DefaultStrategyConfig())

	stage, trade := m.Advance(f.at(15, 55, 4.80, 4.82, 4.60, 4.70))
	assert.Equal(t, StageClosed, stage)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ExitReasonEndOfDay, trade.ExitReason)
	assert.Equal(t, 4.70, trade.ExitPrice)
}

func TestAdvance_CutoffAfterScaleOutClosesRemainder(t *testing.T) {
	f := newFixture(t)
	m := f.open(domain.DefaultStrategyConfig())

	_, scale := m.Advance(f.at(10, 31, 5.10, 5.41, 5.08, 5.35))
	require.NotNil(t, scale)

	stage, trade := m.Advance(f.at(15, 56, 5.38, 5.39, 5.37, 5.38))
	assert.Equal(t, StageClosed, stage)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ExitReasonEndOfDay, trade.ExitReason)
	assert.Equal(t, int64(66), trade.Shares)
}

func TestAdvance_TakeProfitWhenScaleQuantityIsZero(t *testing.T) {
	f := newFixture(t)
	cfg := domain.DefaultStrategyConfig()
	cfg.PositionNotional = 7 // one share; floor(0.67) = 0
	m := f.open(cfg)
	require.Equal(t, int64(1), m.Position().Shares)

	stage, trade := m.Advance(f.at(10, 31, 5.10, 5.45, 5.08, 5.40))
	assert.Equal(t, StageOpen, stage, "scale rule does not apply")
	assert.Nil(t, trade)

	stage, trade = m.Advance(f.at(10, 32, 5.40, 5.55, 5.38, 5.52))
	assert.Equal(t, StageClosed, stage)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ExitReasonTakeProfit, trade.ExitReason)
	assert.Equal(t, 5.50, trade.ExitPrice)
	assert.InDelta(t, 10.0, trade.PnLPct, 1e-9)
}

func TestAdvance_FullScaleOutClosesPosition(t *testing.T) {
	f := newFixture(t)
	cfg := domain.DefaultStrategyConfig()
	cfg.ScaleOutFraction = 1.0
	m := f.open(cfg)

	stage, trade := m.Advance(f.at(10, 31, 5.10, 5.41, 5.08, 5.35))
	assert.Equal(t, StageClosed, stage)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ExitReasonScaleOut, trade.ExitReason)
	assert.Equal(t, int64(200), trade.Shares)
	assert.False(t, trade.Partial)
}

func TestAdvance_UpdatesHighWhileOpen(t *testing.T) {
	f := newFixture(t)
	m := f.open(domain.DefaultStrategyConfig())

	stage, trade := m.Advance(f.at(10, 31, 5.00, 5.20, 4.90, 5.10))
	assert.Equal(t, StageOpen, stage)
	assert.Nil(t, trade)
	assert.Equal(t, 5.20, m.Position().HighestPrice)
}

func TestAdvance_ClosedIsTerminal(t *testing.T) {
	f := newFixture(t)
	m := f.open(domain.DefaultStrategyConfig())

	_, trade := m.Advance(f.at(10, 31, 4.90, 4.92, 4.70, 4.80))
	require.NotNil(t, trade)

	stage, trade := m.Advance(f.at(10, 32, 6, 6, 6, 6))
	assert.Equal(t, StageClosed, stage)
	assert.Nil(t, trade)
	assert.Nil(t, m.Flatten(domain.ExitReasonEndOfData))
}

func TestFlatten_AtEntryBarStampsLaterExit(t *testing.T) {
	f := newFixture(t)
	m := f.open(domain.DefaultStrategyConfig())

	trade := m.Flatten(domain.ExitReasonEndOfData)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ExitReasonEndOfData, trade.ExitReason)
	assert.True(t, trade.ExitTime.After(trade.EntryTime))
	assert.Equal(t, trade.EntryTime.Add(time.Minute), trade.ExitTime)
	assert.Equal(t, 5.00, trade.ExitPrice)
	assert.Equal(t, domain.OutcomeClassFlat, trade.OutcomeClass)
	assert.Equal(t, StageClosed, m.Stage())
}

func TestFlatten_UsesLastBar(t *testing.T) {
	f := newFixture(t)
	m := f.open(domain.DefaultStrategyConfig())
	_, _ = m.Advance(f.at(10, 31, 5.00, 5.20, 4.90, 5.10))

	trade := m.Flatten(domain.ExitReasonEndOfDay)
	require.NotNil(t, trade)
	assert.Equal(t, 5.10, trade.ExitPrice)
	assert.Equal(t, f.at(10, 31, 0, 0, 0, 0).Timestamp, trade.ExitTime)
	assert.InDelta(t, 20.0, trade.PnLAbs, 1e-9)
}

func TestLevels_Rounding(t *testing.T) {
	assert.Equal(t, 3.146, levelAbove(2.913, 0.08))
	assert.Equal(t, 2.7674, levelBelow(2.913, 0.05))
	assert.Equal(t, int64(343), sizeShares(1000, 2.913))
	assert.Equal(t, int64(229), scaleQuantity(343, 0.67))
}
