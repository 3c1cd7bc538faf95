// Package orchestrator runs stored data through a complete backtest.
// It coordinates: load → sufficiency check → backtest → persist → decision.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hod-momentum-lab/internal/backtest"
	"hod-momentum-lab/internal/decision"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/metrics"
	"hod-momentum-lab/internal/pipeline"
	"hod-momentum-lab/internal/storage"
)

// ErrNoSymbols is returned when the universe resolves to nothing.
var ErrNoSymbols = errors.New("no symbols to backtest")

// Recorder receives run and store timings. *observability.Metrics satisfies it.
type Recorder interface {
	RecordRun(d time.Duration, trades int, err error)
	RecordDBQuery(backend, operation string, d time.Duration, err error)
}

// Orchestrator coordinates one backtest over stored data.
type Orchestrator struct {
	// Stores
	bars        storage.BarStore
	profiles    storage.SymbolProfileStore
	trades      storage.TradeStore
	eligibility storage.EligibilityStore
	runs        storage.RunStore

	// Config
	cfg         domain.StrategyConfig
	thresholds  decision.Thresholds
	symbols     []string
	start, end  time.Time
	concurrency int

	// Options
	backend  string
	observer backtest.Observer
	recorder Recorder
	log      zerolog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	BarStore         storage.BarStore
	ProfileStore     storage.SymbolProfileStore
	TradeStore       storage.TradeStore
	EligibilityStore storage.EligibilityStore
	RunStore         storage.RunStore

	// Strategy and universe
	Config      domain.StrategyConfig
	Thresholds  *decision.Thresholds // nil uses decision.DefaultThresholds
	Symbols     []string             // empty means every symbol with minute bars
	Start, End  time.Time            // optional minute-bar window [Start, End)
	Concurrency int

	// Options
	Backend  string // label for store metrics
	Observer backtest.Observer
	Recorder Recorder
	Logger   *zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	th := decision.DefaultThresholds()
	if opts.Thresholds != nil {
		th = *opts.Thresholds
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Orchestrator{
		bars:        opts.BarStore,
		profiles:    opts.ProfileStore,
		trades:      opts.TradeStore,
		eligibility: opts.EligibilityStore,
		runs:        opts.RunStore,
		cfg:         opts.Config,
		thresholds:  th,
		symbols:     opts.Symbols,
		start:       opts.Start,
		end:         opts.End,
		concurrency: opts.Concurrency,
		backend:     opts.Backend,
		observer:    opts.Observer,
		recorder:    opts.Recorder,
		log:         log,
	}
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	Backtest    *backtest.Result
	Sufficiency *pipeline.SufficiencyResult
	Summary     *metrics.Summary
	Decision    *decision.DecisionResult // nil without trades
	Persisted   bool                     // false when the run id was already stored
}

// Run executes the full pipeline.
// Phases:
//  1. Load bars and profiles for the universe
//  2. Check data sufficiency (advisory)
//  3. Run the backtest
//  4. Persist run, ledger and eligibility
//  5. Summarize and evaluate the decision gate
func (o *Orchestrator) Run(ctx context.Context) (result *RunResult, err error) {
	started := time.Now()
	defer func() {
		if o.recorder != nil {
			trades := 0
			if result != nil {
				trades = len(result.Backtest.Trades)
			}
			o.recorder.RecordRun(time.Since(started), trades, err)
		}
	}()

	loc, err := o.cfg.Location()
	if err != nil {
		return nil, err
	}

	o.log.Info().Msg("phase 1: loading universe")
	in, err := o.LoadInput(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (load): %w", err)
	}
	o.log.Info().Int("symbols", len(in.Symbols)).Msg("universe loaded")

	o.log.Info().Msg("phase 2: checking data sufficiency")
	suff := pipeline.NewSufficiencyChecker(o.cfg, loc).Check(in)
	for _, c := range suff.Checks {
		ev := o.log.Info()
		if !c.Pass {
			ev = o.log.Warn()
		}
		ev.Str("check", c.Name).Str("threshold", c.Threshold).Str("actual", c.Actual).Bool("pass", c.Pass).Msg("sufficiency")
	}

	o.log.Info().Msg("phase 3: running backtest")
	driver, err := backtest.NewDriver(backtest.DriverOptions{
		Config:      o.cfg,
		Logger:      &o.log,
		Observer:    o.observer,
		Concurrency: o.concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("phase 3 (backtest): %w", err)
	}
	res, err := driver.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("phase 3 (backtest): %w", err)
	}

	o.log.Info().Str("run_id", res.RunID).Msg("phase 4: persisting results")
	persisted, err := o.persist(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("phase 4 (persist): %w", err)
	}

	o.log.Info().Msg("phase 5: evaluating decision gate")
	result = &RunResult{
		Backtest:    res,
		Sufficiency: suff,
		Summary:     metrics.Compute(res.Trades),
		Persisted:   persisted,
	}
	result.Summary.RunID = res.RunID
	result.Summary.StrategyID = res.StrategyID

	dIn, err := decision.NewBuilder(o.thresholds).Build(result.Summary, o.cfg.PositionNotional)
	switch {
	case errors.Is(err, decision.ErrEmptySummary):
	case err != nil:
		return nil, fmt.Errorf("phase 5 (decision): %w", err)
	default:
		result.Decision = decision.NewEvaluator(o.thresholds).Evaluate(*dIn)
	}

	ev := o.log.Info().
		Str("run_id", res.RunID).
		Int("trades", result.Summary.TotalTrades).
		Float64("total_pnl", result.Summary.TotalPnL).
		Bool("persisted", persisted)
	if result.Decision != nil {
		ev = ev.Str("decision", string(result.Decision.Decision))
	}
	ev.Msg("pipeline completed")
	return result, nil
}

// LoadInput reads the universe from the stores.
func (o *Orchestrator) LoadInput(ctx context.Context) (backtest.Input, error) {
	symbols := o.symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = timed(o, "list_symbols", func() ([]string, error) {
			return o.bars.Symbols(ctx, domain.ResolutionMinute)
		})
		if err != nil {
			return backtest.Input{}, fmt.Errorf("list symbols: %w", err)
		}
	}
	if len(symbols) == 0 {
		return backtest.Input{}, ErrNoSymbols
	}

	in := backtest.Input{Symbols: make([]backtest.SymbolData, 0, len(symbols))}
	for _, sym := range symbols {
		sd, err := o.loadSymbol(ctx, sym)
		if err != nil {
			return backtest.Input{}, fmt.Errorf("load %s: %w", sym, err)
		}
		in.Symbols = append(in.Symbols, sd)
	}
	return in, nil
}

func (o *Orchestrator) loadSymbol(ctx context.Context, symbol string) (backtest.SymbolData, error) {
	sd := backtest.SymbolData{Symbol: symbol}

	minute, err := timed(o, "get_minute_bars", func() ([]domain.Bar, error) {
		if o.start.IsZero() && o.end.IsZero() {
			return o.bars.GetBySymbol(ctx, symbol, domain.ResolutionMinute)
		}
		start, end := o.start, o.end
		if end.IsZero() {
			end = time.Unix(1<<40, 0)
		}
		// The store range is inclusive; the configured end is exclusive.
		return o.bars.GetByTimeRange(ctx, symbol, domain.ResolutionMinute, start, end.Add(-time.Nanosecond))
	})
	if err != nil {
		return sd, err
	}
	sd.Minute = minute

	// Daily history keeps its lookback before the window start; only bars
	// after the window end are dropped.
	daily, err := timed(o, "get_daily_bars", func() ([]domain.Bar, error) {
		return o.bars.GetBySymbol(ctx, symbol, domain.ResolutionDaily)
	})
	if err != nil {
		return sd, err
	}
	if !o.end.IsZero() {
		cut := len(daily)
		for cut > 0 && !daily[cut-1].Timestamp.Before(o.end) {
			cut--
		}
		daily = daily[:cut]
	}
	sd.Daily = daily

	profile, err := timed(o, "get_profile", func() (*domain.SymbolProfile, error) {
		return o.profiles.Get(ctx, symbol)
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		o.log.Debug().Str("symbol", symbol).Msg("no profile; float unknown")
	case err != nil:
		return sd, err
	default:
		sd.Profile = profile
	}
	return sd, nil
}

// persist stores the run record first, then its ledger and eligibility.
// Runs are deterministic, so an existing run id means the identical run is
// already stored and nothing is written.
func (o *Orchestrator) persist(ctx context.Context, res *backtest.Result) (bool, error) {
	_, err := timed(o, "get_run", func() (*domain.RunRecord, error) {
		return o.runs.GetByID(ctx, res.RunID)
	})
	if err == nil {
		o.log.Info().Str("run_id", res.RunID).Msg("run already stored; skipping persist")
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}

	cfgJSON, err := json.Marshal(res.Config)
	if err != nil {
		return false, fmt.Errorf("encode config: %w", err)
	}
	var total float64
	for _, t := range res.Trades {
		total += t.PnLAbs
	}
	rec := &domain.RunRecord{
		RunID:      res.RunID,
		StrategyID: res.StrategyID,
		ConfigJSON: string(cfgJSON),
		Symbols:    res.Symbols(),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		TradeCount: len(res.Trades),
		TotalPnL:   total,
	}
	if rec.Symbols == nil {
		rec.Symbols = []string{}
	}

	if _, err := timed(o, "insert_run", func() (struct{}, error) {
		return struct{}{}, o.runs.Insert(ctx, rec)
	}); err != nil {
		return false, fmt.Errorf("insert run: %w", err)
	}
	if len(res.Trades) > 0 {
		if _, err := timed(o, "insert_trades", func() (struct{}, error) {
			return struct{}{}, o.trades.InsertBulk(ctx, res.Trades)
		}); err != nil {
			return false, fmt.Errorf("insert trades: %w", err)
		}
	}
	if days := res.Eligibility.All(); len(days) > 0 {
		if _, err := timed(o, "insert_eligibility", func() (struct{}, error) {
			return struct{}{}, o.eligibility.InsertBulk(ctx, res.RunID, days)
		}); err != nil {
			return false, fmt.Errorf("insert eligibility: %w", err)
		}
	}
	return true, nil
}

// timed runs a store call and reports its latency.
func timed[T any](o *Orchestrator, op string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	if o.recorder != nil {
		// A miss is an answer, not a failure.
		recErr := err
		if errors.Is(err, storage.ErrNotFound) {
			recErr = nil
		}
		o.recorder.RecordDBQuery(o.backend, op, time.Since(start), recErr)
	}
	return v, err
}
