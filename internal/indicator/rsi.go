package indicator

// RSI calculates the Relative Strength Index using Wilder's smoothing:
// gains and losses are each smoothed recursively with alpha = 1/period,
// seeded by the first bar-over-bar delta. The value is defined once
// period deltas have been observed.
// Update is O(1) per close and never scans history.
type RSI struct {
	period    int
	alpha     float64
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{period: period, alpha: 1.0 / float64(period)}
}

func (r *RSI) Name() string { return "RSI_" + itoa(r.period) }

func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		// First close: record the price, no delta yet
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price

	gain := 0.0
	loss := 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.count == 2 {
		r.avgGain = gain
		r.avgLoss = loss
	} else {
		r.avgGain = smooth(r.avgGain, gain, r.alpha)
		r.avgLoss = smooth(r.avgLoss, loss, r.alpha)
	}

	if !r.Ready() {
		return
	}
	r.current = rsiValue(r.avgGain, r.avgLoss)
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > r.period }
func (r *RSI) Warmup() int    { return r.period + 1 }

// rsiValue maps smoothed gain/loss onto 0..100.
// avgLoss == 0 is pinned to 100; avgGain == 0 yields 0 from the formula.
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
