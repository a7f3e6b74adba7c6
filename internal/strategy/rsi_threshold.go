package strategy

import (
	"fmt"

	"trading-backtestv1/internal/indicator"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/signal"
)

// RSIThreshold is the momentum-oscillator family.
//
// Crossing rule: bullish when RSI crosses up through Oversold
// (prev <= oversold && cur > oversold), bearish when it crosses down
// through Overbought (prev >= overbought && cur < overbought). On the first
// bar prev equals cur, so no crossing is possible there.
// Level rule: bullish while RSI < Oversold, bearish while RSI > Overbought.
type RSIThreshold struct {
	Period     int
	Overbought float64
	Oversold   float64
	Rule       signal.EntryRule
}

func (s *RSIThreshold) Name() string {
	return fmt.Sprintf("RSI(%d %g/%g)", s.Period, s.Oversold, s.Overbought)
}

func (s *RSIThreshold) Validate() error {
	if s.Period <= 0 {
		return model.InvalidParam("period", "must be positive, got %d", s.Period)
	}
	if s.Oversold < 0 || s.Overbought > 100 {
		return model.InvalidParam("overbought", "thresholds must lie in [0,100], got %g/%g", s.Oversold, s.Overbought)
	}
	if s.Overbought <= s.Oversold {
		return model.InvalidParam("overbought", "overbought %g must exceed oversold %g", s.Overbought, s.Oversold)
	}
	if !s.Rule.Valid() {
		return model.InvalidParam("rule", "unknown entry rule %q", s.Rule)
	}
	return nil
}

func (s *RSIThreshold) Indicators() []indicator.IndicatorConfig {
	return []indicator.IndicatorConfig{{Type: indicator.TypeRSI, Period: s.Period}}
}

func (s *RSIThreshold) Conditions(cols []indicator.Column) []signal.Condition {
	rsi := column(cols, s.Indicators()[0].Name())

	conds := make([]signal.Condition, len(rsi))
	for i, r := range rsi {
		if s.Rule == signal.RuleLevel {
			conds[i] = signal.Condition{
				Bullish: r < s.Oversold,
				Bearish: r > s.Overbought,
			}
			continue
		}
		prev := r
		if i > 0 {
			prev = rsi[i-1]
		}
		conds[i] = signal.Condition{
			Bullish: prev <= s.Oversold && r > s.Oversold,
			Bearish: prev >= s.Overbought && r < s.Overbought,
		}
	}
	return conds
}
