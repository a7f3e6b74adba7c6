package indicator

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer; the window is summed oldest-first
// on every bar so identical windows always produce identical averages.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA_" + itoa(s.period) }

func (s *SMA) Update(price float64) {
	s.buf[s.idx] = price
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count < s.period {
		return
	}

	// idx now points at the oldest value in the window
	sum := 0.0
	for k := 0; k < s.period; k++ {
		sum += s.buf[(s.idx+k)%s.period]
	}
	s.current = sum / float64(s.period)
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }
func (s *SMA) Warmup() int    { return s.period }
