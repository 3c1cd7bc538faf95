package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hod-momentum-lab/internal/backtest"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/orchestrator"
	"hod-momentum-lab/internal/storage"
)

// ErrRunNotFound is returned when the run id is not stored.
var ErrRunNotFound = errors.New("run not found")

// Options configures a ReplayVerifier. Start and End must match the
// window of the original run; Symbols defaults to the run's symbols.
type Options struct {
	BarStore     storage.BarStore
	ProfileStore storage.SymbolProfileStore
	TradeStore   storage.TradeStore
	RunStore     storage.RunStore
	Symbols      []string
	Start        time.Time
	End          time.Time
	Concurrency  int
	Logger       *zerolog.Logger
}

// ReplayVerifier replays stored runs from the bar store.
type ReplayVerifier struct {
	opts   Options
	logger zerolog.Logger
}

// NewReplayVerifier creates a verifier.
func NewReplayVerifier(opts Options) *ReplayVerifier {
	l := zerolog.Nop()
	if opts.Logger != nil {
		l = *opts.Logger
	}
	return &ReplayVerifier{opts: opts, logger: l}
}

// VerifyRun re-executes runID with its stored config and compares ledgers.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*Report, error) {
	run, err := v.opts.RunStore.GetByID(ctx, runID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	var cfg domain.StrategyConfig
	if err := json.Unmarshal([]byte(run.ConfigJSON), &cfg); err != nil {
		return nil, fmt.Errorf("decode config of run %s: %w", runID, err)
	}

	stored, err := v.opts.TradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load stored trades: %w", err)
	}

	symbols := v.opts.Symbols
	if len(symbols) == 0 {
		symbols = run.Symbols
	}
	in, err := orchestrator.New(orchestrator.Options{
		BarStore:     v.opts.BarStore,
		ProfileStore: v.opts.ProfileStore,
		Config:       cfg,
		Symbols:      symbols,
		Start:        v.opts.Start,
		End:          v.opts.End,
		Logger:       &v.logger,
	}).LoadInput(ctx)
	if err != nil {
		return nil, fmt.Errorf("load input: %w", err)
	}

	driver, err := backtest.NewDriver(backtest.DriverOptions{
		Config:      cfg,
		Concurrency: v.opts.Concurrency,
		Logger:      &v.logger,
	})
	if err != nil {
		return nil, err
	}
	res, err := driver.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	report := Compare(runID, stored, res.RunID, res.Trades)
	v.logger.Info().
		Str("run_id", runID).
		Bool("inputs_match", report.InputsMatch).
		Int("matched", report.Matched).
		Int("divergent", report.Divergent).
		Int("missing", len(report.Missing)).
		Int("extra", len(report.Extra)).
		Msg("run verified")
	return report, nil
}

// Compare pairs stored and replayed trades by natural key. Results follow
// the stored ledger order.
func Compare(runID string, stored []domain.Trade, replayedRunID string, replayed []domain.Trade) *Report {
	report := &Report{
		RunID:          runID,
		ReplayedRunID:  replayedRunID,
		InputsMatch:    runID == replayedRunID,
		StoredTrades:   len(stored),
		ReplayedTrades: len(replayed),
		Results:        make([]TradeResult, 0, len(stored)),
	}

	byKey := make(map[TradeKey]domain.Trade, len(replayed))
	for _, t := range replayed {
		byKey[KeyOf(t)] = t
	}

	seen := make(map[TradeKey]bool, len(stored))
	for _, s := range stored {
		key := KeyOf(s)
		seen[key] = true
		r, ok := byKey[key]
		if !ok {
			report.Missing = append(report.Missing, key)
			continue
		}
		div := CompareTrades(s, r)
		report.Results = append(report.Results, TradeResult{
			TradeID:     s.TradeID,
			Symbol:      s.Symbol,
			Match:       len(div) == 0,
			Divergences: div,
		})
		if len(div) == 0 {
			report.Matched++
		} else {
			report.Divergent++
		}
	}
	for _, t := range replayed {
		if key := KeyOf(t); !seen[key] {
			report.Extra = append(report.Extra, key)
		}
	}
	return report
}
