package sweep

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/metrics"
	"hod-momentum-lab/internal/pipeline"
)

func TestGrid_CombosSkipRules(t *testing.T) {
	g := Grid{
		StopLoss:      []float64{0.03, 0.05},
		TakeProfit:    []float64{0.06, 0.10},
		ScaleFraction: []float64{0.5},
		ScaleTarget:   []float64{0.06, 0.08},
		TrailingStop:  []float64{0.04, 0.05},
	}
	combos := g.Combos()

	for _, c := range combos {
		assert.Less(t, c.ScaleTarget, c.TakeProfit)
		assert.LessOrEqual(t, c.TrailingStop, c.StopLoss)
	}
	// No trail fits under sl 0.03, and tp 0.06 admits no target.
	require.Len(t, combos, 4)
	assert.Equal(t, Combo{0.05, 0.10, 0.5, 0.06, 0.04}, combos[0])
	assert.Equal(t, Combo{0.05, 0.10, 0.5, 0.08, 0.05}, combos[3])
}

func TestDefaultGrid_AllCombosValid(t *testing.T) {
	base := domain.DefaultStrategyConfig()
	combos := DefaultGrid().Combos()
	require.NotEmpty(t, combos)
	for _, c := range combos {
		assert.NoError(t, c.Apply(base).Validate(), "%+v", c)
	}
}

func TestRunner_Run(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	in := pipeline.DemoInput(loc, pipeline.DefaultFixtures)

	grid := Grid{
		StopLoss:      []float64{0.05},
		TakeProfit:    []float64{0.10},
		ScaleFraction: []float64{0.5, 0.67},
		ScaleTarget:   []float64{0.08, 0.12},
		TrailingStop:  []float64{0.05, 0.06},
	}
	var seen atomic.Int32
	r := NewRunner(Options{
		Base:     domain.DefaultStrategyConfig(),
		Workers:  2,
		OnResult: func(Result) { seen.Add(1) },
	})

	results, err := r.Run(context.Background(), grid, in)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int32(2), seen.Load())

	assert.Equal(t, 0.5, results[0].Combo.ScaleFraction)
	assert.Equal(t, 0.67, results[1].Combo.ScaleFraction)
	assert.NotEqual(t, results[0].StrategyID, results[1].StrategyID)
	assert.NotEqual(t, results[0].RunID, results[1].RunID)
	for _, res := range results {
		assert.Equal(t, 6, res.Summary.TotalTrades)
		assert.Equal(t, res.RunID, res.Summary.RunID)
	}

	// The same combination reproduces the same ledger summary.
	again, err := r.Run(context.Background(), grid, in)
	require.NoError(t, err)
	assert.Equal(t, results, again)
}

func TestRunner_EmptyGrid(t *testing.T) {
	r := NewRunner(Options{Base: domain.DefaultStrategyConfig()})
	_, err := r.Run(context.Background(), Grid{StopLoss: []float64{0.02}, TakeProfit: []float64{0.05},
		ScaleFraction: []float64{0.5}, ScaleTarget: []float64{0.06}, TrailingStop: []float64{0.03}}, pipeline.DemoInput(time.UTC, nil))
	assert.ErrorIs(t, err, ErrEmptyGrid)
}

func summary(pnl, winRate, expectancy, gross float64, pf *float64) *metrics.Summary {
	return &metrics.Summary{TotalTrades: 1, TotalPnL: pnl, WinRate: winRate, Expectancy: expectancy, GrossProfit: gross, ProfitFactor: pf}
}

func ptr(f float64) *float64 { return &f }

func TestTop_Rankings(t *testing.T) {
	results := []Result{
		{Combo: Combo{StopLoss: 0.02}, Summary: summary(100, 0.4, 10, 300, ptr(1.5))},
		{Combo: Combo{StopLoss: 0.03}, Summary: summary(250, 0.3, 25, 400, nil)},
		{Combo: Combo{StopLoss: 0.04}, Summary: summary(-20, 0.6, -2, 50, ptr(0.8))},
		{Combo: Combo{StopLoss: 0.05}, Summary: summary(100, 0.5, 12, 200, ptr(3.0))},
	}

	byPnL := Top(results, ByTotalPnL, 3)
	require.Len(t, byPnL, 3)
	assert.Equal(t, 0.03, byPnL[0].Combo.StopLoss)
	assert.Equal(t, 0.02, byPnL[1].Combo.StopLoss, "ties keep grid order")
	assert.Equal(t, 0.05, byPnL[2].Combo.StopLoss)

	assert.Equal(t, 0.04, Top(results, ByWinRate, 1)[0].Combo.StopLoss)
	assert.Equal(t, 0.03, Top(results, ByProfitFactor, 1)[0].Combo.StopLoss, "no losses with profit ranks first")
	assert.Equal(t, 0.03, Top(results, ByExpectancy, 1)[0].Combo.StopLoss)
	assert.Len(t, Top(results, ByTotalPnL, 0), 4)

	assert.True(t, math.IsInf(ByProfitFactor.Score(summary(1, 1, 1, 10, nil)), 1))
	assert.Zero(t, ByProfitFactor.Score(summary(0, 0, 0, 0, nil)))
}

func TestWriteCSVAndMarkdown(t *testing.T) {
	results := []Result{
		{Combo: Combo{0.05, 0.10, 0.67, 0.08, 0.05}, Summary: summary(42.5, 0.5, 7.08, 80, ptr(2.13))},
		{Combo: Combo{0.04, 0.08, 0.5, 0.06, 0.04}, Summary: summary(-3, 0.25, -1, 5, nil)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "0.05", rows[1][0])
	assert.Equal(t, "42.5", rows[1][9])
	assert.Equal(t, "", rows[2][14], "missing profit factor is blank")

	md := RenderMarkdown(results, 1)
	for _, obj := range Objectives {
		assert.True(t, strings.Contains(md, "## Top 1 by "+string(obj)), obj)
	}
	assert.Contains(t, md, "| 1 | 5.0% | 10.0% | 67% | 8.0% | 5.0% | 1 | 50.0% | 42.50 | 2.13 | 7.08 |")
}
