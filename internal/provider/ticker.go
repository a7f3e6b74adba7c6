// Package provider implements the price sources the backtest runner reads
// daily bars from.
package provider

import "strings"

// aliases maps common index and asset names to a tradable ticker.
var aliases = map[string]string{
	"sp500":       "SPY",
	"s&p500":      "SPY",
	"s&p 500":     "SPY",
	"nasdaq":      "QQQ",
	"dow":         "DIA",
	"gold":        "GLD",
	"totalmarket": "VTI",
	"russell":     "IWM",
	"vix":         "^VIX",
	"gspc":        "^GSPC",
	"ndx":         "^NDX",
}

// ResolveTicker maps a friendly name such as "sp500" to its ticker.
// Anything else is returned trimmed and upper-cased.
func ResolveTicker(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if t, ok := aliases[key]; ok {
		return t
	}
	return strings.ToUpper(strings.TrimSpace(name))
}
