package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/eligibility"
	"hod-momentum-lab/internal/idhash"
	"hod-momentum-lab/internal/indicators"
	"hod-momentum-lab/internal/position"
	"hod-momentum-lab/internal/replay"
	"hod-momentum-lab/internal/strategy"
)

// DriverOptions configures a Driver.
type DriverOptions struct {
	Config      domain.StrategyConfig
	Logger      *zerolog.Logger // nil disables logging
	Observer    Observer        // nil ignores events
	Concurrency int             // precompute workers; 0 means GOMAXPROCS
}

// Driver runs complete backtests. It holds no per-run state, so one Driver
// may serve several sequential or concurrent runs.
type Driver struct {
	cfg         domain.StrategyConfig
	loc         *time.Location
	log         zerolog.Logger
	observer    Observer
	concurrency int

	validator *eligibility.Validator
	engine    *indicators.Engine
}

// NewDriver validates the config and creates a driver.
func NewDriver(opts DriverOptions) (*Driver, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("strategy config: %w", err)
	}
	loc, err := opts.Config.Location()
	if err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	var observer Observer = NopObserver{}
	if opts.Observer != nil {
		observer = opts.Observer
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	return &Driver{
		cfg:         opts.Config,
		loc:         loc,
		log:         log.With().Str("component", "backtest").Logger(),
		observer:    observer,
		concurrency: concurrency,
		validator:   eligibility.NewValidator(opts.Config, loc),
		engine:      indicators.NewEngine(loc, opts.Config.AvgVolumeBars),
	}, nil
}

// Config returns the strategy parameters of the driver.
func (d *Driver) Config() domain.StrategyConfig {
	return d.cfg
}

// Run executes one backtest: parallel precompute, then a single ordered
// replay of every minute bar, then an end-of-data flush.
// Invalid symbol series are excluded and reported; they do not fail the run.
func (d *Driver) Run(ctx context.Context, in Input) (*Result, error) {
	startedAt := time.Now().UTC()

	symbols, err := sortedInput(in)
	if err != nil {
		return nil, err
	}

	preps, err := d.prepare(ctx, symbols)
	if err != nil {
		return nil, err
	}

	var (
		exclusions   []Exclusion
		days         []domain.EligibilityDay
		series       = make(map[string][]domain.Bar)
		snapshots    = make(map[string][]indicators.Snapshot)
		fingerprints []idhash.SeriesFingerprint
		lastDate     domain.Date
	)
	for _, p := range preps {
		if p.excluded != nil {
			ex := Exclusion{Symbol: p.symbol, Reason: p.excluded.Error()}
			exclusions = append(exclusions, ex)
			d.log.Warn().Str("symbol", p.symbol).Err(p.excluded).Msg("symbol excluded")
			d.observer.OnSymbolExcluded(ex.Symbol, ex.Reason)
			continue
		}
		days = append(days, p.days...)
		series[p.symbol] = p.minute
		snapshots[p.symbol] = p.snapshots

		fp := idhash.SeriesFingerprint{Symbol: p.symbol, Bars: len(p.minute)}
		if n := len(p.minute); n > 0 {
			fp.FirstMs = p.minute[0].Timestamp.UnixMilli()
			fp.LastMs = p.minute[n-1].Timestamp.UnixMilli()
			if last := p.snapshots[n-1].Session; last > lastDate {
				lastDate = last
			}
		}
		fingerprints = append(fingerprints, fp)
	}

	cfgJSON, err := json.Marshal(d.cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	runID := idhash.ComputeRunID(d.cfg.ID(), string(cfgJSON), fingerprints)
	log := d.log.With().Str("run_id", runID).Logger()

	engine := &Engine{
		cfg:         d.cfg,
		loc:         d.loc,
		runID:       runID,
		log:         log,
		observer:    d.observer,
		evaluator:   strategy.NewEntryEvaluator(d.cfg),
		watchlist:   strategy.NewWatchlist(d.cfg),
		eligibility: domain.NewEligibilityMap(days),
		snapshots:   snapshots,
		lastDate:    lastDate,
		machines:    make(map[string]*position.Machine),
		bounce:      make(map[string]strategy.BounceState),
		stats:       newStats(),
	}

	events := replay.MergeSeries(series)
	if err := replay.Replay(ctx, events, engine); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	engine.finish()

	stats := engine.stats
	stats.Symbols = len(symbols)
	stats.SymbolsExcluded = len(exclusions)

	result := &Result{
		RunID:       runID,
		StrategyID:  d.cfg.ID(),
		Config:      d.cfg,
		Trades:      engine.ledger.Trades(),
		Eligibility: engine.eligibility,
		Exclusions:  exclusions,
		Stats:       stats,
		StartedAt:   startedAt,
		FinishedAt:  time.Now().UTC(),
	}

	log.Info().
		Int("symbols", stats.Symbols).
		Int("excluded", stats.SymbolsExcluded).
		Int("bars", stats.BarsProcessed).
		Int("positions", stats.PositionsOpened).
		Int("trades", stats.TradesClosed).
		Msg("backtest complete")
	return result, nil
}

// sortedInput returns the symbols ordered by name and rejects duplicates.
func sortedInput(in Input) ([]SymbolData, error) {
	out := make([]SymbolData, len(in.Symbols))
	copy(out, in.Symbols)
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	for i, sd := range out {
		if sd.Symbol == "" {
			return nil, ErrEmptySymbol
		}
		if i > 0 && out[i-1].Symbol == sd.Symbol {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSymbol, sd.Symbol)
		}
	}
	return out, nil
}
