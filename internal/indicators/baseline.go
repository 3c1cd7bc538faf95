package indicators

import (
	"sort"
	"time"

	"hod-momentum-lab/internal/domain"
)

// DefaultBaselineSessions is the number of prior sessions averaged by IntradayBaseline.
const DefaultBaselineSessions = 20

// sessionProfile is the cumulative volume curve of one session.
type sessionProfile struct {
	date   domain.Date
	clocks []domain.ClockTime // ascending
	cumVol []int64            // cumulative volume through clocks[i]
}

// cumulativeAt returns cumulative volume through the last bar at or before clock.
func (p sessionProfile) cumulativeAt(clock domain.ClockTime) int64 {
	i := sort.Search(len(p.clocks), func(i int) bool { return p.clocks[i] > clock })
	if i == 0 {
		return 0
	}
	return p.cumVol[i-1]
}

// IntradayBaseline is the time-of-day expected cumulative volume of a symbol.
// For a session d it averages the cumulative volume curves of up to N sessions
// strictly before d, so it never looks ahead.
type IntradayBaseline struct {
	sessions []sessionProfile // ascending by date
	lookback int
}

var _ VolumeBaseline = (*IntradayBaseline)(nil)

// BuildIntradayBaseline groups minute bars into sessions and records their
// cumulative volume curves.
func BuildIntradayBaseline(bars []domain.Bar, loc *time.Location, lookback int) *IntradayBaseline {
	if lookback <= 0 {
		lookback = DefaultBaselineSessions
	}
	b := &IntradayBaseline{lookback: lookback}

	var cur *sessionProfile
	for _, bar := range bars {
		date := domain.DateOf(bar.Timestamp, loc)
		if cur == nil || cur.date != date {
			b.sessions = append(b.sessions, sessionProfile{date: date})
			cur = &b.sessions[len(b.sessions)-1]
		}
		var prev int64
		if n := len(cur.cumVol); n > 0 {
			prev = cur.cumVol[n-1]
		}
		cur.clocks = append(cur.clocks, domain.ClockOf(bar.Timestamp, loc))
		cur.cumVol = append(cur.cumVol, prev+bar.Volume)
	}
	return b
}

// ExpectedCumulative returns the mean cumulative volume at clock over the
// prior sessions. It is unavailable when no earlier session exists.
func (b *IntradayBaseline) ExpectedCumulative(session domain.Date, clock domain.ClockTime) (float64, bool) {
	end := sort.Search(len(b.sessions), func(i int) bool { return b.sessions[i].date >= session })
	start := end - b.lookback
	if start < 0 {
		start = 0
	}
	if end == start {
		return 0, false
	}

	var sum float64
	for _, p := range b.sessions[start:end] {
		sum += float64(p.cumulativeAt(clock))
	}
	return sum / float64(end-start), true
}

// Sessions returns the number of sessions seen.
func (b *IntradayBaseline) Sessions() int {
	return len(b.sessions)
}
