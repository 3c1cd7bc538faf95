package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"hod-momentum-lab/internal/domain"
)

// WriteLedgerCSV writes one row per trade in ledger order.
func WriteLedgerCSV(w io.Writer, trades []domain.Trade, loc *time.Location) error {
	cw := csv.NewWriter(w)

	header := []string{
		"trade_id", "position_id", "symbol", "entry_time", "exit_time",
		"entry_price", "exit_price", "shares", "pnl_abs", "pnl_pct",
		"exit_reason", "partial", "outcome_class",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}

	for _, t := range trades {
		row := []string{
			t.TradeID, t.PositionID, t.Symbol,
			t.EntryTime.In(loc).Format(time.RFC3339),
			t.ExitTime.In(loc).Format(time.RFC3339),
			formatF(t.EntryPrice), formatF(t.ExitPrice),
			strconv.FormatInt(t.Shares, 10),
			formatF(t.PnLAbs), formatF(t.PnLPct),
			string(t.ExitReason), strconv.FormatBool(t.Partial), t.OutcomeClass,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write ledger row %s: %w", t.TradeID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteEligibilityCSV writes the daily screen audit trail. Unavailable
// baselines are written as empty cells.
func WriteEligibilityCSV(w io.Writer, days []domain.EligibilityDay) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"symbol", "date", "eligible", "close", "volume", "avg_volume", "relative_volume", "reason"}); err != nil {
		return fmt.Errorf("write eligibility header: %w", err)
	}

	for _, d := range days {
		row := []string{
			d.Symbol, d.Date.String(), strconv.FormatBool(d.Eligible),
			formatF(d.Close), strconv.FormatInt(d.Volume, 10),
			formatOptional(d.AvgVolume), formatOptional(d.RelativeVolume),
			d.Reason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write eligibility row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return formatF(*f)
}
