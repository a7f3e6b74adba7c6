package indicator

import (
	"math"
	"testing"
)

func TestNew_KnownTypes(t *testing.T) {
	for _, cfg := range []IndicatorConfig{
		{Type: "SMA", Period: 20},
		{Type: "ema", Period: 9},
		{Type: "RSI", Period: 14},
	} {
		ind, err := New(cfg)
		if err != nil {
			t.Fatalf("%v: %v", cfg, err)
		}
		if ind.Name() != cfg.Name() {
			t.Errorf("name=%s, want %s", ind.Name(), cfg.Name())
		}
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New(IndicatorConfig{Type: "WMA", Period: 5}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := New(IndicatorConfig{Type: "SMA", Period: 0}); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestCompute_AlignedColumns(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	cols, err := Compute(closes,
		IndicatorConfig{Type: TypeSMA, Period: 5},
		IndicatorConfig{Type: TypeEMA, Period: 5},
		IndicatorConfig{Type: TypeRSI, Period: 14},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(cols))
	}
	for _, c := range cols {
		if len(c.Values) != len(closes) {
			t.Errorf("%s: len=%d, want %d", c.Name, len(c.Values), len(closes))
		}
	}
	if cols[0].Name != "SMA_5" || cols[2].Name != "RSI_14" {
		t.Errorf("unexpected names %s, %s", cols[0].Name, cols[2].Name)
	}
	// Monotonic rise: RSI fully gain-driven
	if cols[2].Values[29] != 100 {
		t.Errorf("RSI on rising series = %v, want 100", cols[2].Values[29])
	}
	if !math.IsNaN(cols[0].Values[3]) || math.IsNaN(cols[0].Values[4]) {
		t.Error("SMA_5 warm-up boundary wrong")
	}
}

func TestCompute_Idempotent(t *testing.T) {
	closes := []float64{10, 10.5, 9.8, 11.2, 12.1, 11.7, 12.9}
	a, _ := Compute(closes, IndicatorConfig{Type: TypeRSI, Period: 3})
	b, _ := Compute(closes, IndicatorConfig{Type: TypeRSI, Period: 3})
	for i := range a[0].Values {
		x, y := a[0].Values[i], b[0].Values[i]
		if math.IsNaN(x) != math.IsNaN(y) || (!math.IsNaN(x) && x != y) {
			t.Errorf("bar %d differs: %v vs %v", i, x, y)
		}
	}
}

func TestWarmup_LongestConfig(t *testing.T) {
	n, err := Warmup(
		IndicatorConfig{Type: TypeSMA, Period: 10},
		IndicatorConfig{Type: TypeRSI, Period: 14},
		IndicatorConfig{Type: TypeEMA, Period: 50},
	)
	if err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	// RSI needs period+1 closes; EMA is defined from the first.
	if n != 15 {
		t.Errorf("warmup=%d, want 15", n)
	}
	if _, err := Warmup(IndicatorConfig{Type: TypeSMA, Period: 0}); err == nil {
		t.Error("expected error for zero period")
	}
}
