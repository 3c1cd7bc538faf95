package indicators

// ema is an incremental exponential moving average with standard smoothing
// 2/(p+1). It is unavailable until p inputs have been seen; the p-th input
// seeds it with the simple mean of the first p values.
type ema struct {
	period int
	k      float64
	n      int
	sum    float64
	value  float64
}

func newEMA(period int) *ema {
	return &ema{period: period, k: 2.0 / float64(period+1)}
}

// next folds x in and returns the current value and whether it is available.
func (e *ema) next(x float64) (float64, bool) {
	e.n++
	switch {
	case e.n < e.period:
		e.sum += x
		return 0, false
	case e.n == e.period:
		e.sum += x
		e.value = e.sum / float64(e.period)
	default:
		e.value = (x-e.value)*e.k + e.value
	}
	return e.value, true
}

// rsi is Wilder's relative strength index. The first averages are simple
// means of the first p price changes; later ones use (avg*(p-1) + x) / p.
type rsi struct {
	period  int
	prev    float64
	hasPrev bool
	n       int // changes seen
	avgGain float64
	avgLoss float64
}

func newRSI(period int) *rsi {
	return &rsi{period: period}
}

func (r *rsi) next(close float64) (float64, bool) {
	if !r.hasPrev {
		r.prev = close
		r.hasPrev = true
		return 0, false
	}
	change := close - r.prev
	r.prev = close

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	r.n++
	p := float64(r.period)
	switch {
	case r.n < r.period:
		r.avgGain += gain
		r.avgLoss += loss
		return 0, false
	case r.n == r.period:
		r.avgGain = (r.avgGain + gain) / p
		r.avgLoss = (r.avgLoss + loss) / p
	default:
		r.avgGain = (r.avgGain*(p-1) + gain) / p
		r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	}

	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs), true
}

// rollingMean is a fixed-window mean including the latest value.
type rollingMean struct {
	window []float64
	pos    int
	filled int
	sum    float64
}

func newRollingMean(size int) *rollingMean {
	return &rollingMean{window: make([]float64, size)}
}

func (m *rollingMean) next(x float64) (float64, bool) {
	m.sum -= m.window[m.pos]
	m.window[m.pos] = x
	m.sum += x
	m.pos = (m.pos + 1) % len(m.window)
	if m.filled < len(m.window) {
		m.filled++
	}
	if m.filled < len(m.window) {
		return 0, false
	}
	return m.sum / float64(len(m.window)), true
}
