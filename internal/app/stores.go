// Package app opens the configured storage backends for the commands.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hod-momentum-lab/internal/config"
	"hod-momentum-lab/internal/ingestion"
	"hod-momentum-lab/internal/pipeline"
	"hod-momentum-lab/internal/storage"
	chstore "hod-momentum-lab/internal/storage/clickhouse"
	"hod-momentum-lab/internal/storage/memory"
	"hod-momentum-lab/internal/storage/migrations"
	pgstore "hod-momentum-lab/internal/storage/postgres"
	"hod-momentum-lab/internal/storage/sqlite"
)

// Stores holds every storage implementation a command needs.
type Stores struct {
	Bars        storage.BarStore
	Profiles    storage.SymbolProfileStore
	Trades      storage.TradeStore
	Eligibility storage.EligibilityStore
	Runs        storage.RunStore

	// Backend labels store metrics.
	Backend string

	closers []func()
}

// Close releases every connection in reverse open order.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores connects the result backend and the bar source named in cfg.
// Postgres and ClickHouse schemas are migrated on connect. CSV bars are
// held in memory until LoadCSV fills them.
func OpenStores(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (_ *Stores, err error) {
	s := &Stores{Backend: cfg.Backend}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	var lite *sqlite.DB
	openSQLite := func() (*sqlite.DB, error) {
		if lite != nil {
			return lite, nil
		}
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		s.closers = append(s.closers, func() { db.Close() })
		lite = db
		return db, nil
	}

	switch cfg.Backend {
	case config.BackendMemory:
		s.Profiles = memory.NewSymbolProfileStore()
		s.Trades = memory.NewTradeStore()
		s.Eligibility = memory.NewEligibilityStore()
		s.Runs = memory.NewRunStore()

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		s.Profiles = pgstore.NewSymbolProfileStore(pool)
		s.Trades = pgstore.NewTradeStore(pool)
		s.Eligibility = pgstore.NewEligibilityStore(pool)
		s.Runs = pgstore.NewRunStore(pool)

	case config.BackendSQLite:
		db, err := openSQLite()
		if err != nil {
			return nil, err
		}
		s.Profiles = db.Profiles()
		s.Trades = db.Trades()
		s.Eligibility = db.Eligibility()
		s.Runs = db.Runs()

	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}

	switch cfg.Bars {
	case config.BarsCSV:
		s.Bars = memory.NewBarStore()

	case config.BarsClickHouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.Bars = chstore.NewBarStore(conn)

	case config.BarsSQLite:
		db, err := openSQLite()
		if err != nil {
			return nil, err
		}
		s.Bars = db.Bars()

	default:
		return nil, fmt.Errorf("%w: unknown bar source %q", config.ErrInvalidConfig, cfg.Bars)
	}

	log.Info().Str("backend", cfg.Backend).Str("bars", cfg.Bars).Msg("stores opened")
	return s, nil
}

// LoadCSV ingests a CSV data directory into the bar and profile stores.
// Incremental skips bars that are already stored.
func (s *Stores) LoadCSV(ctx context.Context, dir string, loc *time.Location, incremental bool, log zerolog.Logger) (*ingestion.Result, error) {
	src := ingestion.NewCSVSource(dir, loc)
	return ingestion.NewManager(ingestion.ManagerOptions{
		BarSource:     src,
		ProfileSource: src.ProfileSource(),
		BarStore:      s.Bars,
		ProfileStore:  s.Profiles,
		Incremental:   incremental,
		Logger:        &log,
	}).Run(ctx, nil)
}

// LoadDemo fills the bar and profile stores with the built-in demo universe.
func (s *Stores) LoadDemo(ctx context.Context, loc *time.Location) error {
	return pipeline.LoadFixtures(ctx, s.Bars, s.Profiles, pipeline.DemoInput(loc, pipeline.DefaultFixtures))
}
