package main

import (
	"reflect"
	"testing"

	"trading-backtestv1/internal/strategy"
)

func TestParseStrategies(t *testing.T) {
	specs, err := parseStrategies("sma:20:50, ema , rsi:10:80:20")
	if err != nil {
		t.Fatal(err)
	}
	want := []strategy.Spec{
		{Type: "sma", Short: strategy.Int(20), Long: strategy.Int(50)},
		{Type: "ema"},
		{Type: "rsi", Period: strategy.Int(10), Overbought: strategy.Float(80), Oversold: strategy.Float(20)},
	}
	if !reflect.DeepEqual(specs, want) {
		t.Errorf("specs = %+v, want %+v", specs, want)
	}
}

func TestParseStrategies_Rejects(t *testing.T) {
	for _, in := range []string{"sma:x", "sma:2.5:3", "rsi:14.5", "rsi:14:70:x", "sma:1:2:3"} {
		if _, err := parseStrategies(in); err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}

func TestParseStrategies_ExplicitZeroKept(t *testing.T) {
	specs, err := parseStrategies("rsi:0")
	if err != nil {
		t.Fatal(err)
	}
	if specs[0].Period == nil || *specs[0].Period != 0 {
		t.Errorf("period = %v, want explicit 0", specs[0].Period)
	}
}

func TestFileStem(t *testing.T) {
	if got := fileStem("^GSPC_SMA(20/50)"); got != "GSPC_SMA_20_50" {
		t.Errorf("fileStem = %q", got)
	}
}
