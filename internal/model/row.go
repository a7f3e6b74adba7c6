package model

import (
	"encoding/json"
	"math"
	"time"
)

// Row is one line of the results table handed to the presentation layer.
// Returns are exact ratios; MarketReturn and StrategyReturn are NaN on the
// first row, where no prior close exists.
type Row struct {
	Date               time.Time          `json:"date"`
	Close              float64            `json:"close"`
	Indicators         map[string]float64 `json:"indicators,omitempty"`
	Position           Position           `json:"position"`
	MarketReturn       float64            `json:"market_return"`
	StrategyReturn     float64            `json:"strategy_return"`
	CumulativeMarket   float64            `json:"cumulative_market_return"`
	CumulativeStrategy float64            `json:"cumulative_strategy_return"`
}

// MarshalJSON encodes undefined returns as null.
func (r Row) MarshalJSON() ([]byte, error) {
	type alias Row
	return json.Marshal(struct {
		alias
		MarketReturn   *float64 `json:"market_return"`
		StrategyReturn *float64 `json:"strategy_return"`
	}{
		alias:          alias(r),
		MarketReturn:   nullable(r.MarketReturn),
		StrategyReturn: nullable(r.StrategyReturn),
	})
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
