package indicator

// EMA calculates a recursive Exponential Moving Average with
// alpha = 2/(span+1). The first close seeds the average, so the value is
// defined from the first bar onward.
// O(1) per update with no window storage.
type EMA struct {
	span    int
	alpha   float64
	current float64
	count   int
}

// NewEMA creates a new EMA indicator with the given span.
func NewEMA(span int) *EMA {
	return &EMA{
		span:  span,
		alpha: 2.0 / float64(span+1),
	}
}

func (e *EMA) Name() string { return "EMA_" + itoa(e.span) }

func (e *EMA) Update(price float64) {
	e.count++
	if e.count == 1 {
		e.current = price
		return
	}
	e.current = smooth(e.current, price, e.alpha)
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= 1 }
func (e *EMA) Warmup() int    { return 1 }

// smooth applies one step of adjust=false exponential smoothing.
func smooth(prev, x, alpha float64) float64 {
	return alpha*x + (1-alpha)*prev
}
