package strategy

import (
	"fmt"

	"trading-backtestv1/internal/indicator"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/signal"
)

// MACross is the moving-average family (SMA or EMA pair).
//
// Level rule:    bullish while short > long, bearish while short < long.
// Crossing rule: bullish when short moves from <= long to > long,
// bearish when it moves from >= long to < long.
type MACross struct {
	Kind  string // indicator.TypeSMA or indicator.TypeEMA
	Short int
	Long  int
	Rule  signal.EntryRule
}

func (s *MACross) Name() string {
	return fmt.Sprintf("%s(%d/%d)", s.Kind, s.Short, s.Long)
}

func (s *MACross) Validate() error {
	if s.Kind != indicator.TypeSMA && s.Kind != indicator.TypeEMA {
		return model.InvalidParam("type", "moving average kind %q", s.Kind)
	}
	if s.Short <= 0 {
		return model.InvalidParam("short", "window must be positive, got %d", s.Short)
	}
	if s.Long <= 0 {
		return model.InvalidParam("long", "window must be positive, got %d", s.Long)
	}
	if s.Short >= s.Long {
		return model.InvalidParam("short", "short window %d must be below long window %d", s.Short, s.Long)
	}
	if !s.Rule.Valid() {
		return model.InvalidParam("rule", "unknown entry rule %q", s.Rule)
	}
	return nil
}

func (s *MACross) Indicators() []indicator.IndicatorConfig {
	return []indicator.IndicatorConfig{
		{Type: s.Kind, Period: s.Short},
		{Type: s.Kind, Period: s.Long},
	}
}

func (s *MACross) Conditions(cols []indicator.Column) []signal.Condition {
	cfg := s.Indicators()
	short := column(cols, cfg[0].Name())
	long := column(cols, cfg[1].Name())

	conds := make([]signal.Condition, len(short))
	for i := range short {
		if s.Rule == signal.RuleLevel {
			conds[i] = signal.Condition{
				Bullish: short[i] > long[i],
				Bearish: short[i] < long[i],
			}
			continue
		}
		ps, pl := short[i], long[i]
		if i > 0 {
			ps, pl = short[i-1], long[i-1]
		}
		conds[i] = signal.Condition{
			Bullish: ps <= pl && short[i] > long[i],
			Bearish: ps >= pl && short[i] < long[i],
		}
	}
	return conds
}
