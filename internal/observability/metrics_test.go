package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/position"
)

// sample sums every series of a counter, gauge or histogram count.
func sample(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				total += metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				total += float64(metric.GetHistogram().GetSampleCount())
			}
		}
		return total
	}
	return 0
}

func TestMetrics_Observer(t *testing.T) {
	m := NewMetrics("test")

	m.OnPositionOpened(position.Position{Symbol: "ABCD"})
	m.OnPositionOpened(position.Position{Symbol: "WXYZ"})
	m.OnTrade(domain.Trade{ExitReason: domain.ExitReasonScaleOut, OutcomeClass: domain.OutcomeClassWin, PnLAbs: 53.6, PnLPct: 8})
	m.OnTrade(domain.Trade{ExitReason: domain.ExitReasonStopLoss, OutcomeClass: domain.OutcomeClassLoss, PnLAbs: -50, PnLPct: -5})
	m.OnSymbolExcluded("BAD", "missing timestamp")

	assert.Equal(t, 2.0, sample(t, m, "test_backtest_positions_opened_total"))
	assert.Equal(t, 2.0, sample(t, m, "test_backtest_trades_closed_total"))
	assert.Equal(t, 2.0, sample(t, m, "test_backtest_trade_pnl_pct"))
	assert.InDelta(t, 53.6, sample(t, m, "test_backtest_gross_profit_dollars_total"), 1e-9)
	assert.Equal(t, 1.0, sample(t, m, "test_backtest_symbols_excluded_total"))
}

func TestMetrics_RecordRun(t *testing.T) {
	m := NewMetrics("test")

	m.RecordRun(2*time.Second, 14, nil)
	m.RecordRun(time.Second, 0, errors.New("boom"))

	assert.Equal(t, 2.0, sample(t, m, "test_run_runs_total"))
	assert.Equal(t, 1.0, sample(t, m, "test_run_duration_seconds"))
	assert.Equal(t, 14.0, sample(t, m, "test_run_last_trades"))
	assert.Greater(t, sample(t, m, "test_health_last_successful_run_timestamp"), 0.0)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewMetrics("")
	b := NewMetrics("")
	a.RecordSweepCombo()

	assert.Equal(t, 1.0, sample(t, a, "hod_lab_run_sweep_combinations_total"))
	assert.Equal(t, 0.0, sample(t, b, "hod_lab_run_sweep_combinations_total"))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("test")
	m.RecordDBQuery("sqlite", "insert_trades", 10*time.Millisecond, errors.New("locked"))
	m.RecordStreamMessage(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `test_database_query_errors_total{backend="sqlite",operation="insert_trades"} 1`))
	assert.True(t, strings.Contains(string(body), "test_stream_messages_dropped_total 2"))
}
