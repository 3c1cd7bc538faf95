// Package config loads application configuration from YAML and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"hod-momentum-lab/internal/domain"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"

	BarsCSV        = "csv"
	BarsClickHouse = "clickhouse"
	BarsSQLite     = "sqlite"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the complete application configuration.
type Config struct {
	Strategy StrategySection `mapstructure:"strategy"`
	Backtest BacktestConfig  `mapstructure:"backtest"`
	Sweep    SweepConfig     `mapstructure:"sweep"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Server   ServerConfig    `mapstructure:"server"`
	Logging  LoggingConfig   `mapstructure:"logging"`
}

// StrategySection mirrors domain.StrategyConfig with clock times as "HH:MM".
type StrategySection struct {
	MinPrice           float64 `mapstructure:"min_price"`
	MaxPrice           float64 `mapstructure:"max_price"`
	MaxFloat           int64   `mapstructure:"max_float"`
	MinRelativeVolume  float64 `mapstructure:"min_relative_volume"`
	EligibilityDays    int     `mapstructure:"eligibility_days"`
	VolumeBaselineDays int     `mapstructure:"volume_baseline_days"`

	MinSessionVolume    int64   `mapstructure:"min_session_volume"`
	VolumeSurgeMultiple float64 `mapstructure:"volume_surge_multiple"`
	AvgVolumeBars       int     `mapstructure:"avg_volume_bars"`
	RSIMax              float64 `mapstructure:"rsi_max"`
	HODProximityPct     float64 `mapstructure:"hod_proximity_pct"`
	BounceConfirmBars   int     `mapstructure:"bounce_confirm_bars"`
	WatchlistEnabled    bool    `mapstructure:"watchlist_enabled"`
	WatchlistMinRatio   float64 `mapstructure:"watchlist_min_volume_ratio"`

	StopLossPct      float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct    float64 `mapstructure:"take_profit_pct"`
	ScaleOutFraction float64 `mapstructure:"scale_out_fraction"`
	ScaleOutTarget   float64 `mapstructure:"scale_out_target"`
	TrailingStopPct  float64 `mapstructure:"trailing_stop_pct"`
	PositionNotional float64 `mapstructure:"position_notional"`

	ScanStart     string `mapstructure:"scan_start_time"`
	ScanEnd       string `mapstructure:"scan_end_time"`
	SessionCutoff string `mapstructure:"session_cutoff_time"`
	Timezone      string `mapstructure:"timezone"`
	BaselineDays  int    `mapstructure:"intraday_baseline_days"`
}

// BacktestConfig selects the universe and execution of a run.
type BacktestConfig struct {
	Symbols     []string `mapstructure:"symbols"` // empty means every stored symbol
	Concurrency int      `mapstructure:"concurrency"`
	StartDate   string   `mapstructure:"start_date"` // YYYY-MM-DD, optional
	EndDate     string   `mapstructure:"end_date"`   // YYYY-MM-DD inclusive, optional
}

// SweepConfig holds the exit-parameter grid.
type SweepConfig struct {
	StopLoss      []float64 `mapstructure:"stop_loss"`
	TakeProfit    []float64 `mapstructure:"take_profit"`
	ScaleFraction []float64 `mapstructure:"scale_fraction"`
	ScaleTarget   []float64 `mapstructure:"scale_target"`
	TrailingStop  []float64 `mapstructure:"trailing_stop"`
	Workers       int       `mapstructure:"workers"`
	TopN          int       `mapstructure:"top_n"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	Backend          string `mapstructure:"backend"` // memory | postgres | sqlite
	Bars             string `mapstructure:"bars"`    // csv | clickhouse | sqlite
	PostgresDSN      string `mapstructure:"postgres_dsn"`
	PostgresMaxConns int32  `mapstructure:"postgres_max_conns"`
	ClickHouseDSN    string `mapstructure:"clickhouse_dsn"` // database taken from the DSN path
	SQLitePath       string `mapstructure:"sqlite_path"`
	DataDir          string `mapstructure:"data_dir"` // CSV input root
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file and environment variables.
// An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HOD_LAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	d := domain.DefaultStrategyConfig()

	v.SetDefault("strategy.min_price", d.MinPrice)
	v.SetDefault("strategy.max_price", d.MaxPrice)
	v.SetDefault("strategy.max_float", d.MaxFloat)
	v.SetDefault("strategy.min_relative_volume", d.MinRelativeVolume)
	v.SetDefault("strategy.eligibility_days", d.EligibilityDays)
	v.SetDefault("strategy.volume_baseline_days", d.VolumeBaselineDays)
	v.SetDefault("strategy.min_session_volume", d.MinSessionVolume)
	v.SetDefault("strategy.volume_surge_multiple", d.VolumeSurgeMultiple)
	v.SetDefault("strategy.avg_volume_bars", d.AvgVolumeBars)
	v.SetDefault("strategy.rsi_max", d.RSIMax)
	v.SetDefault("strategy.hod_proximity_pct", d.HODProximityPct)
	v.SetDefault("strategy.bounce_confirm_bars", d.BounceConfirmBars)
	v.SetDefault("strategy.watchlist_enabled", d.Watchlist.Enabled)
	v.SetDefault("strategy.watchlist_min_volume_ratio", d.Watchlist.MinVolumeRatio)
	v.SetDefault("strategy.stop_loss_pct", d.StopLossPct)
	v.SetDefault("strategy.take_profit_pct", d.TakeProfitPct)
	v.SetDefault("strategy.scale_out_fraction", d.ScaleOutFraction)
	v.SetDefault("strategy.scale_out_target", d.ScaleOutTarget)
	v.SetDefault("strategy.trailing_stop_pct", d.TrailingStopPct)
	v.SetDefault("strategy.position_notional", d.PositionNotional)
	v.SetDefault("strategy.scan_start_time", d.ScanStart.String())
	v.SetDefault("strategy.scan_end_time", d.ScanEnd.String())
	v.SetDefault("strategy.session_cutoff_time", d.SessionCutoff.String())
	v.SetDefault("strategy.timezone", d.Timezone)
	v.SetDefault("strategy.intraday_baseline_days", d.BaselineDays)

	v.SetDefault("backtest.symbols", []string{})
	v.SetDefault("backtest.concurrency", 0)
	v.SetDefault("backtest.start_date", "")
	v.SetDefault("backtest.end_date", "")

	v.SetDefault("sweep.stop_loss", []float64{0.02, 0.025, 0.03, 0.04, 0.05})
	v.SetDefault("sweep.take_profit", []float64{0.05, 0.06, 0.08, 0.10})
	v.SetDefault("sweep.scale_fraction", []float64{0.25, 0.33, 0.50, 0.67})
	v.SetDefault("sweep.scale_target", []float64{0.04, 0.05, 0.06, 0.08})
	v.SetDefault("sweep.trailing_stop", []float64{0.03, 0.04, 0.05, 0.06})
	v.SetDefault("sweep.workers", 0)
	v.SetDefault("sweep.top_n", 10)

	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.bars", BarsCSV)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.postgres_max_conns", 10)
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.sqlite_path", "./data/hod-lab.db")
	v.SetDefault("storage.data_dir", "./data")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// StrategyConfig converts the strategy section into a validated domain value.
func (s StrategySection) StrategyConfig() (domain.StrategyConfig, error) {
	var clocks [3]domain.ClockTime
	for i, raw := range []string{s.ScanStart, s.ScanEnd, s.SessionCutoff} {
		c, err := domain.ParseClock(raw)
		if err != nil {
			return domain.StrategyConfig{}, fmt.Errorf("strategy: %w", err)
		}
		clocks[i] = c
	}

	cfg := domain.StrategyConfig{
		MinPrice:            s.MinPrice,
		MaxPrice:            s.MaxPrice,
		MaxFloat:            s.MaxFloat,
		MinRelativeVolume:   s.MinRelativeVolume,
		EligibilityDays:     s.EligibilityDays,
		VolumeBaselineDays:  s.VolumeBaselineDays,
		MinSessionVolume:    s.MinSessionVolume,
		VolumeSurgeMultiple: s.VolumeSurgeMultiple,
		AvgVolumeBars:       s.AvgVolumeBars,
		RSIMax:              s.RSIMax,
		HODProximityPct:     s.HODProximityPct,
		BounceConfirmBars:   s.BounceConfirmBars,
		Watchlist: domain.WatchlistConfig{
			Enabled:        s.WatchlistEnabled,
			MinVolumeRatio: s.WatchlistMinRatio,
		},
		StopLossPct:      s.StopLossPct,
		TakeProfitPct:    s.TakeProfitPct,
		ScaleOutFraction: s.ScaleOutFraction,
		ScaleOutTarget:   s.ScaleOutTarget,
		TrailingStopPct:  s.TrailingStopPct,
		PositionNotional: s.PositionNotional,
		ScanStart:        clocks[0],
		ScanEnd:          clocks[1],
		SessionCutoff:    clocks[2],
		Timezone:         s.Timezone,
		BaselineDays:     s.BaselineDays,
	}
	if err := cfg.Validate(); err != nil {
		return domain.StrategyConfig{}, fmt.Errorf("strategy: %w", err)
	}
	return cfg, nil
}

// DateRange parses the optional backtest window. Zero times mean unbounded.
// The end is exclusive: the day after EndDate at midnight in loc.
func (b BacktestConfig) DateRange(loc *time.Location) (start, end time.Time, err error) {
	if b.StartDate != "" {
		d, err := domain.ParseDate(b.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("backtest.start_date: %w", err)
		}
		start = d.Time(loc)
	}
	if b.EndDate != "" {
		d, err := domain.ParseDate(b.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("backtest.end_date: %w", err)
		}
		end = d.Time(loc).AddDate(0, 0, 1)
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: backtest.start_date after end_date", ErrInvalidConfig)
	}
	return start, end, nil
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if _, err := c.Strategy.StrategyConfig(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Backtest.Concurrency < 0 {
		return fmt.Errorf("%w: backtest.concurrency must not be negative", ErrInvalidConfig)
	}
	if _, _, err := c.Backtest.DateRange(time.UTC); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for name, grid := range map[string][]float64{
		"sweep.stop_loss":      c.Sweep.StopLoss,
		"sweep.take_profit":    c.Sweep.TakeProfit,
		"sweep.scale_fraction": c.Sweep.ScaleFraction,
		"sweep.scale_target":   c.Sweep.ScaleTarget,
		"sweep.trailing_stop":  c.Sweep.TrailingStop,
	} {
		if len(grid) == 0 {
			return fmt.Errorf("%w: %s must contain at least one value", ErrInvalidConfig, name)
		}
		for _, v := range grid {
			if v <= 0 || v >= 1 {
				return fmt.Errorf("%w: %s values must be between 0 and 1", ErrInvalidConfig, name)
			}
		}
	}
	if c.Sweep.TopN < 1 {
		return fmt.Errorf("%w: sweep.top_n must be at least 1", ErrInvalidConfig)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage.postgres_dsn is required for the postgres backend", ErrInvalidConfig)
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: storage.sqlite_path is required for the sqlite backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: storage.backend must be one of: memory, postgres, sqlite", ErrInvalidConfig)
	}
	switch c.Storage.Bars {
	case BarsCSV:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("%w: storage.data_dir is required for csv bars", ErrInvalidConfig)
		}
	case BarsClickHouse:
		if c.Storage.ClickHouseDSN == "" {
			return fmt.Errorf("%w: storage.clickhouse_dsn is required for clickhouse bars", ErrInvalidConfig)
		}
	case BarsSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: storage.sqlite_path is required for sqlite bars", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: storage.bars must be one of: csv, clickhouse, sqlite", ErrInvalidConfig)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("%w: logging.level must be one of: debug, info, warn, error", ErrInvalidConfig)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("%w: logging.format must be one of: json, text", ErrInvalidConfig)
	}
	return nil
}
