// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hod-momentum-lab/internal/backtest"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/position"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Backtest metrics
	PositionsOpened *prometheus.CounterVec
	TradesClosed    *prometheus.CounterVec
	SymbolsExcluded *prometheus.CounterVec
	TradePnLPct     *prometheus.HistogramVec
	TradePnLAbs     prometheus.Counter

	// Run metrics
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	RunTrades     prometheus.Gauge
	SweepCombos   prometheus.Counter
	LastRunFinish prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Stream metrics
	StreamClients  prometheus.Gauge
	StreamMessages prometheus.Counter
	StreamDropped  prometheus.Counter
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "hod_lab"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PositionsOpened: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened by symbol",
		}, []string{"symbol"}),
		TradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_closed_total",
			Help:      "Total number of ledger trades by exit reason and outcome",
		}, []string{"exit_reason", "outcome"}),
		SymbolsExcluded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "symbols_excluded_total",
			Help:      "Total number of symbols dropped before replay by reason",
		}, []string{"reason"}),
		TradePnLPct: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trade_pnl_pct",
			Help:      "Distribution of per-trade percentage returns",
			Buckets:   []float64{-10, -5, -3, -2, -1, 0, 1, 2, 3, 5, 8, 10, 20},
		}, []string{"exit_reason"}),
		TradePnLAbs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "gross_profit_dollars_total",
			Help:      "Sum of positive trade P&L in dollars",
		}),

		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		RunTrades: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_trades",
			Help:      "Ledger size of the most recent run",
		}),
		SweepCombos: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "sweep_combinations_total",
			Help:      "Total number of sweep parameter combinations evaluated",
		}),
		LastRunFinish: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful run",
		}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"backend", "operation"}),

		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected websocket clients",
		}),
		StreamMessages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Total number of messages broadcast",
		}),
		StreamDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped for slow clients",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnPositionOpened implements backtest.Observer.
func (m *Metrics) OnPositionOpened(p position.Position) {
	m.PositionsOpened.WithLabelValues(p.Symbol).Inc()
}

// OnTrade implements backtest.Observer.
func (m *Metrics) OnTrade(t domain.Trade) {
	reason := string(t.ExitReason)
	m.TradesClosed.WithLabelValues(reason, t.OutcomeClass).Inc()
	m.TradePnLPct.WithLabelValues(reason).Observe(t.PnLPct)
	if t.PnLAbs > 0 {
		m.TradePnLAbs.Add(t.PnLAbs)
	}
}

// OnSymbolExcluded implements backtest.Observer.
func (m *Metrics) OnSymbolExcluded(_, reason string) {
	m.SymbolsExcluded.WithLabelValues(reason).Inc()
}

// RecordRun records a finished run. A nil error counts as success.
func (m *Metrics) RecordRun(d time.Duration, trades int, err error) {
	if err != nil {
		m.RunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.RunsTotal.WithLabelValues("ok").Inc()
	m.RunDuration.Observe(d.Seconds())
	m.RunTrades.Set(float64(trades))
	m.LastRunFinish.SetToCurrentTime()
}

// RecordSweepCombo counts one evaluated sweep combination.
func (m *Metrics) RecordSweepCombo() {
	m.SweepCombos.Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(backend, operation string, d time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(backend, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(backend, operation).Inc()
	}
}

// SetStreamClients updates the connected client gauge.
func (m *Metrics) SetStreamClients(n int) {
	m.StreamClients.Set(float64(n))
}

// RecordStreamMessage counts a broadcast and the clients it skipped.
func (m *Metrics) RecordStreamMessage(dropped int) {
	m.StreamMessages.Inc()
	if dropped > 0 {
		m.StreamDropped.Add(float64(dropped))
	}
}

var _ backtest.Observer = (*Metrics)(nil)
