// Package indicator provides technical indicator calculations over daily closes.
//
// All indicators implement the Indicator interface, receiving closes one bar at
// a time and producing float64 values. Series helpers replay a full close
// sequence and return a slice aligned 1:1 with the input, with NaN in every
// slot where the indicator is not yet ready.
package indicator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyInput is returned when a series helper receives no closes.
	ErrEmptyInput = errors.New("indicator: empty close series")

	// ErrInvalidPeriod is returned for a non-positive window or period.
	ErrInvalidPeriod = errors.New("indicator: period must be positive")
)

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "EMA_9").
	Name() string

	// Update feeds the next close and recalculates.
	Update(close float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Warmup returns how many updates are needed before Ready can be true.
	Warmup() int
}

// Series feeds closes through ind and returns its value after each bar.
// Bars before the indicator is ready are NaN, never zero.
func Series(ind Indicator, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i, c := range closes {
		ind.Update(c)
		if ind.Ready() {
			out[i] = ind.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// SMASeries returns the simple moving average of closes over window.
func SMASeries(closes []float64, window int) ([]float64, error) {
	if err := checkInput(closes, window); err != nil {
		return nil, err
	}
	return Series(NewSMA(window), closes), nil
}

// EMASeries returns the recursive exponential moving average of closes.
func EMASeries(closes []float64, span int) ([]float64, error) {
	if err := checkInput(closes, span); err != nil {
		return nil, err
	}
	return Series(NewEMA(span), closes), nil
}

// RSISeries returns Wilder's RSI of closes over period.
func RSISeries(closes []float64, period int) ([]float64, error) {
	if err := checkInput(closes, period); err != nil {
		return nil, err
	}
	return Series(NewRSI(period), closes), nil
}

// Defined returns a mask that is true where every column holds a number.
func Defined(n int, cols ...[]float64) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
		for _, col := range cols {
			if i >= len(col) || math.IsNaN(col[i]) {
				mask[i] = false
				break
			}
		}
	}
	return mask
}

func checkInput(closes []float64, period int) error {
	if len(closes) == 0 {
		return ErrEmptyInput
	}
	if period <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	return nil
}
