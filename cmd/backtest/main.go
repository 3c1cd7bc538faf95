// Command backtest replays minute bars through the HOD momentum strategy.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"hod-momentum-lab/internal/app"
	"hod-momentum-lab/internal/config"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/logger"
	"hod-momentum-lab/internal/orchestrator"
)

// Shared flags
var (
	configPath  string
	backendFlag string
	barsFlag    string
	dataDir     string
	sqlitePath  string
	symbolsFlag []string
	startDate   string
	endDate     string
	useDemo     bool
	outputDir   string
	logLevel    string
	logFormat   string
)

// rootCmd is the base command for the backtest CLI
var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Small-cap high-of-day momentum backtester",
	Long: `backtest screens symbols daily for price, float and relative volume,
then replays minute bars through the EMA9 bounce entry and the staged exit
machine (stop, scale-out, trailing stop, take profit, session cutoff).

Data comes from the configured bar source (csv, clickhouse or sqlite) or,
with --demo, from a built-in five-symbol universe.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML config (default: built-in defaults + HOD_LAB_* env)")
	pf.StringVar(&backendFlag, "backend", "", "Result backend: memory, postgres, sqlite")
	pf.StringVar(&barsFlag, "bars", "", "Bar source: csv, clickhouse, sqlite")
	pf.StringVar(&dataDir, "data-dir", "", "CSV data directory (minute/, daily/, floats.csv)")
	pf.StringVar(&sqlitePath, "sqlite-path", "", "SQLite database file")
	pf.StringSliceVar(&symbolsFlag, "symbols", nil, "Symbols to include (default: every symbol with minute bars)")
	pf.StringVar(&startDate, "start", "", "First session date, YYYY-MM-DD")
	pf.StringVar(&endDate, "end", "", "Last session date, YYYY-MM-DD (inclusive)")
	pf.BoolVar(&useDemo, "demo", false, "Use the built-in demo universe with in-memory storage")
	pf.StringVar(&outputDir, "output-dir", "output", "Directory for generated files")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "Log format: json, text")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is the loaded configuration plus open stores shared by subcommands.
type env struct {
	cfg      *config.Config
	strategy domain.StrategyConfig
	loc      *time.Location
	start    time.Time
	end      time.Time
	stores   *app.Stores
	log      zerolog.Logger
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Storage.Backend = backendFlag
	}
	if flags.Changed("bars") {
		cfg.Storage.Bars = barsFlag
	}
	if flags.Changed("data-dir") {
		cfg.Storage.DataDir = dataDir
	}
	if flags.Changed("sqlite-path") {
		cfg.Storage.SQLitePath = sqlitePath
	}
	if flags.Changed("symbols") {
		cfg.Backtest.Symbols = symbolsFlag
	}
	if flags.Changed("start") {
		cfg.Backtest.StartDate = startDate
	}
	if flags.Changed("end") {
		cfg.Backtest.EndDate = endDate
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if useDemo {
		cfg.Storage.Backend = config.BackendMemory
		cfg.Storage.Bars = config.BarsCSV
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openEnv loads config, opens stores and fills CSV or demo bars.
func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	strategy, err := cfg.Strategy.StrategyConfig()
	if err != nil {
		return nil, err
	}
	loc, err := strategy.Location()
	if err != nil {
		return nil, err
	}
	start, end, err := cfg.Backtest.DateRange(loc)
	if err != nil {
		return nil, err
	}

	stores, err := app.OpenStores(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	switch {
	case useDemo:
		if err := stores.LoadDemo(ctx, loc); err != nil {
			stores.Close()
			return nil, fmt.Errorf("load demo universe: %w", err)
		}
		log.Info().Msg("demo universe loaded")
	case cfg.Storage.Bars == config.BarsCSV:
		res, err := stores.LoadCSV(ctx, cfg.Storage.DataDir, loc, true, log)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("load csv data: %w", err)
		}
		log.Info().
			Int("symbols", len(res.Symbols)).
			Int("minute_bars", res.MinuteBars).
			Int("daily_bars", res.DailyBars).
			Int("profiles", res.Profiles).
			Msg("csv data loaded")
	}

	return &env{
		cfg:      cfg,
		strategy: strategy,
		loc:      loc,
		start:    start,
		end:      end,
		stores:   stores,
		log:      log,
	}, nil
}

// orchestratorOptions returns options over the env stores.
func (e *env) orchestratorOptions(cfg domain.StrategyConfig) orchestrator.Options {
	return orchestrator.Options{
		BarStore:         e.stores.Bars,
		ProfileStore:     e.stores.Profiles,
		TradeStore:       e.stores.Trades,
		EligibilityStore: e.stores.Eligibility,
		RunStore:         e.stores.Runs,
		Config:           cfg,
		Symbols:          e.cfg.Backtest.Symbols,
		Start:            e.start,
		End:              e.end,
		Concurrency:      e.cfg.Backtest.Concurrency,
		Backend:          e.stores.Backend,
		Logger:           &e.log,
	}
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func writeFile(name string, write func(f *os.File) error) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}
