// Command server exposes backtests over HTTP with a live websocket feed
// and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hod-momentum-lab/internal/app"
	"hod-momentum-lab/internal/config"
	"hod-momentum-lab/internal/logger"
	"hod-momentum-lab/internal/observability"
	"hod-momentum-lab/internal/stream"
)

const shutdownTimeout = 30 * time.Second

var (
	configPath string
	addrFlag   string
	useDemo    bool
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve backtests, stored runs and a live event stream over HTTP",
	Long: `server loads bars from the configured source and serves:

  POST /runs                      start a backtest job (body: symbols, start_date, end_date)
  GET  /jobs/{id}                 job status
  GET  /runs                      stored runs, newest first
  GET  /runs/{id}                 run with summary and decision gate
  GET  /runs/{id}/trades          ledger
  GET  /runs/{id}/eligibility     daily screen decisions (?eligible=true)
  GET  /runs/{id}/report          markdown report
  GET  /symbols/{symbol}/summary  cross-run summary of one symbol
  GET  /ws                        websocket feed of positions and trades
  GET  /metrics, /health, /status

Examples:
  server --demo
  server --config lab.yaml --addr :9000`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "Path to YAML config")
	f.StringVar(&addrFlag, "addr", "", "Listen address (default: server.addr)")
	f.BoolVar(&useDemo, "demo", false, "Serve the built-in demo universe from memory")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = addrFlag
	}
	if useDemo {
		cfg.Storage.Backend = config.BackendMemory
		cfg.Storage.Bars = config.BarsCSV
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	strategy, err := cfg.Strategy.StrategyConfig()
	if err != nil {
		return err
	}
	loc, err := strategy.Location()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	switch {
	case useDemo:
		if err := stores.LoadDemo(ctx, loc); err != nil {
			return fmt.Errorf("load demo universe: %w", err)
		}
		log.Info().Msg("demo universe loaded")
	case cfg.Storage.Bars == config.BarsCSV:
		res, err := stores.LoadCSV(ctx, cfg.Storage.DataDir, loc, true, log)
		if err != nil {
			return fmt.Errorf("load csv data: %w", err)
		}
		log.Info().Int("symbols", len(res.Symbols)).Int("minute_bars", res.MinuteBars).Msg("csv data loaded")
	}

	m := observability.NewMetrics("hod_lab")
	hub := stream.NewHub(stream.DefaultHubConfig(), log, m, loc)
	defer hub.Close()

	srv, err := NewServer(ctx, cfg, stores, m, hub, log)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("backend", stores.Backend).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	srv.Wait()
	log.Info().Msg("shutdown complete")
	return nil
}
