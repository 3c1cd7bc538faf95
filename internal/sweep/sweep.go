// Package sweep grid-searches the exit parameters of the momentum strategy.
// Entry logic and eligibility stay fixed; each combination is a full,
// independent backtest over the same input.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hod-momentum-lab/internal/backtest"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/metrics"
)

// ErrEmptyGrid is returned when no combination survives the skip rules.
var ErrEmptyGrid = errors.New("sweep grid has no valid combinations")

// Grid lists candidate values for every exit parameter.
type Grid struct {
	StopLoss      []float64
	TakeProfit    []float64
	ScaleFraction []float64
	ScaleTarget   []float64
	TrailingStop  []float64
}

// DefaultGrid returns the reference parameter ranges.
func DefaultGrid() Grid {
	return Grid{
		StopLoss:      []float64{0.02, 0.025, 0.03, 0.04, 0.05},
		TakeProfit:    []float64{0.05, 0.06, 0.08, 0.10},
		ScaleFraction: []float64{0.25, 0.33, 0.50, 0.67},
		ScaleTarget:   []float64{0.04, 0.05, 0.06, 0.08},
		TrailingStop:  []float64{0.03, 0.04, 0.05, 0.06},
	}
}

// Combo is one point of the grid.
type Combo struct {
	StopLoss      float64 `json:"stop_loss"`
	TakeProfit    float64 `json:"take_profit"`
	ScaleFraction float64 `json:"scale_fraction"`
	ScaleTarget   float64 `json:"scale_target"`
	TrailingStop  float64 `json:"trailing_stop"`
}

// Apply returns base with the exit parameters replaced.
func (c Combo) Apply(base domain.StrategyConfig) domain.StrategyConfig {
	base.StopLossPct = c.StopLoss
	base.TakeProfitPct = c.TakeProfit
	base.ScaleOutFraction = c.ScaleFraction
	base.ScaleOutTarget = c.ScaleTarget
	base.TrailingStopPct = c.TrailingStop
	return base
}

// Combos expands the grid in nested order. Combinations whose scale target
// is not below take profit, or whose trail is wider than the stop, are skipped.
func (g Grid) Combos() []Combo {
	var out []Combo
	for _, sl := range g.StopLoss {
		for _, tp := range g.TakeProfit {
			for _, sf := range g.ScaleFraction {
				for _, st := range g.ScaleTarget {
					if st >= tp {
						continue
					}
					for _, tr := range g.TrailingStop {
						if tr > sl {
							continue
						}
						out = append(out, Combo{sl, tp, sf, st, tr})
					}
				}
			}
		}
	}
	return out
}

// Result is the outcome of one combination.
type Result struct {
	Combo      Combo            `json:"combo"`
	StrategyID string           `json:"strategy_id"`
	RunID      string           `json:"run_id"`
	Summary    *metrics.Summary `json:"summary"`
}

// Options configures a Runner.
type Options struct {
	Base    domain.StrategyConfig
	Workers int // concurrent backtests; 0 means GOMAXPROCS
	Logger  *zerolog.Logger
	// OnResult is called once per finished combination, serially.
	OnResult func(Result)
}

// Runner executes a grid.
type Runner struct {
	base     domain.StrategyConfig
	workers  int
	log      zerolog.Logger
	onResult func(Result)
}

// NewRunner creates a runner.
func NewRunner(opts Options) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Runner{base: opts.Base, workers: workers, log: log, onResult: opts.OnResult}
}

// Run backtests every combination. Combinations that produce no trades are
// left out of the results. Results come back in grid order.
func (r *Runner) Run(ctx context.Context, grid Grid, in backtest.Input) ([]Result, error) {
	combos := grid.Combos()
	if len(combos) == 0 {
		return nil, ErrEmptyGrid
	}
	r.log.Info().Int("combinations", len(combos)).Int("workers", r.workers).Msg("sweep started")

	slots := make([]*Result, len(combos))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, combo := range combos {
		g.Go(func() error {
			res, err := r.runOne(gctx, combo, in)
			if err != nil {
				return fmt.Errorf("combo %+v: %w", combo, err)
			}
			mu.Lock()
			if r.onResult != nil {
				r.onResult(*res)
			}
			mu.Unlock()
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(slots))
	for _, s := range slots {
		if s.Summary.TotalTrades > 0 {
			out = append(out, *s)
		}
	}
	r.log.Info().Int("with_trades", len(out)).Msg("sweep complete")
	return out, nil
}

func (r *Runner) runOne(ctx context.Context, combo Combo, in backtest.Input) (*Result, error) {
	// Concurrency 1: the sweep already fans out across combinations.
	d, err := backtest.NewDriver(backtest.DriverOptions{
		Config:      combo.Apply(r.base),
		Concurrency: 1,
	})
	if err != nil {
		return nil, err
	}
	res, err := d.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Result{
		Combo:      combo,
		StrategyID: res.StrategyID,
		RunID:      res.RunID,
		Summary:    metrics.Compute(res.Trades),
	}, nil
}

// Objective names a ranking criterion.
type Objective string

// Ranking objectives.
const (
	ByTotalPnL     Objective = "total_pnl"
	ByWinRate      Objective = "win_rate"
	ByProfitFactor Objective = "profit_factor"
	ByExpectancy   Objective = "expectancy"
)

// Objectives lists every ranking criterion in report order.
var Objectives = []Objective{ByTotalPnL, ByWinRate, ByProfitFactor, ByExpectancy}

// Score extracts the objective value from a summary. A profit factor without
// losing trades scores +Inf when the run made money.
func (o Objective) Score(s *metrics.Summary) float64 {
	switch o {
	case ByWinRate:
		return s.WinRate
	case ByProfitFactor:
		if s.ProfitFactor != nil {
			return *s.ProfitFactor
		}
		if s.GrossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	case ByExpectancy:
		return s.Expectancy
	default:
		return s.TotalPnL
	}
}

// Top returns the best n results for the objective, best first. Ties keep
// grid order.
func Top(results []Result, by Objective, n int) []Result {
	ranked := make([]Result, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return by.Score(ranked[i].Summary) > by.Score(ranked[j].Summary)
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
