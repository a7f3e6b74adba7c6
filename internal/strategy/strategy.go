// Package strategy provides the indicator-rule strategy families.
//
// A Strategy names the indicators it needs and reduces them, bar by bar, to
// signal.Conditions. It never holds position state: the signal.Machine owns
// that, so one Strategy value may be reused across runs.
package strategy

import (
	"fmt"
	"strings"

	"trading-backtestv1/internal/indicator"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/signal"
)

// Strategy is the interface that all strategy families must implement.
type Strategy interface {
	// Name returns a stable label, e.g. "SMA(20/50)".
	Name() string

	// Validate rejects degenerate parameters with an *InvalidParameterError.
	Validate() error

	// Indicators lists the indicator columns the strategy reads.
	Indicators() []indicator.IndicatorConfig

	// Conditions derives one condition per bar from columns that have
	// already been trimmed to bars where every indicator is defined.
	Conditions(cols []indicator.Column) []signal.Condition
}

// Family names accepted by New.
const (
	FamilySMA = "sma"
	FamilyEMA = "ema"
	FamilyRSI = "rsi"
)

// Spec is the serializable description of one strategy in a request.
// A nil parameter takes the family default; an explicit value, zero
// included, is used as given and validated.
type Spec struct {
	Type       string           `json:"type" yaml:"type" validate:"required,oneof=sma ema rsi"`
	Short      *int             `json:"short,omitempty" yaml:"short,omitempty" validate:"omitempty,gt=0"`
	Long       *int             `json:"long,omitempty" yaml:"long,omitempty" validate:"omitempty,gt=0"`
	Period     *int             `json:"period,omitempty" yaml:"period,omitempty" validate:"omitempty,gt=0"`
	Overbought *float64         `json:"overbought,omitempty" yaml:"overbought,omitempty" validate:"omitempty,gte=0,lte=100"`
	Oversold   *float64         `json:"oversold,omitempty" yaml:"oversold,omitempty" validate:"omitempty,gte=0,lte=100"`
	Rule       signal.EntryRule `json:"rule,omitempty" yaml:"rule,omitempty"`
}

// Int returns a pointer to n, for building a Spec in code.
func Int(n int) *int { return &n }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// New builds a Strategy from spec, filling family defaults for unset
// fields, and validates it.
func New(spec Spec) (Strategy, error) {
	var s Strategy
	switch strings.ToLower(spec.Type) {
	case FamilySMA, FamilyEMA:
		kind := indicator.TypeSMA
		if strings.ToLower(spec.Type) == FamilyEMA {
			kind = indicator.TypeEMA
		}
		s = &MACross{
			Kind:  kind,
			Short: or(spec.Short, 20),
			Long:  or(spec.Long, 50),
			Rule:  orRule(spec.Rule, signal.RuleLevel),
		}
	case FamilyRSI:
		s = &RSIThreshold{
			Period:     or(spec.Period, 14),
			Overbought: or(spec.Overbought, 70),
			Oversold:   or(spec.Oversold, 30),
			Rule:       orRule(spec.Rule, signal.RuleCrossing),
		}
	default:
		return nil, model.InvalidParam("type", "unknown strategy family %q", spec.Type)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// column looks up a column by name; strategies only ask for columns they listed.
func column(cols []indicator.Column, name string) []float64 {
	for _, c := range cols {
		if c.Name == name {
			return c.Values
		}
	}
	panic(fmt.Sprintf("strategy: missing indicator column %s", name))
}

func or[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

func orRule(r, def signal.EntryRule) signal.EntryRule {
	if r == "" {
		return def
	}
	return r
}
