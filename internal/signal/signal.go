// Package signal implements the per-bar position state machine shared by
// every strategy family.
//
// A strategy family reduces its indicators to one Condition per bar. The
// Machine walks those conditions left to right together with the closes and
// emits a position for each bar, honoring the trend exit, take-profit and
// stop-loss rules. All state lives in the Machine value, so a Machine must
// never be shared between runs.
package signal

import (
	"errors"
	"fmt"

	"trading-backtestv1/internal/model"
)

// EntryRule selects how a family turns indicator readings into conditions.
type EntryRule string

const (
	// RuleLevel fires on the current bar's comparison alone.
	RuleLevel EntryRule = "level"
	// RuleCrossing fires only when the comparison changes between bars.
	RuleCrossing EntryRule = "crossing"
)

// Valid reports whether r is a known rule.
func (r EntryRule) Valid() bool { return r == RuleLevel || r == RuleCrossing }

// Direction selects which sides the machine may hold.
type Direction string

const (
	LongOnly  Direction = "long_only"
	LongShort Direction = "long_short"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool { return d == LongOnly || d == LongShort }

// Condition is a family's trend reading for one bar.
type Condition struct {
	Bullish bool // enter long; exit short
	Bearish bool // exit long; enter short
}

// ExitReason says why a trade closed.
type ExitReason string

const (
	ExitTrend      ExitReason = "trend"
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitOpen       ExitReason = "open"   // still held on the last bar
	ExitSignal     ExitReason = "signal" // side change in a derived sequence
)

// Trade is one maximal run of bars on the same side.
type Trade struct {
	Side       model.Position `json:"side"`
	EntryIndex int            `json:"entry_index"`
	ExitIndex  int            `json:"exit_index"`
	EntryPrice float64        `json:"entry_price"`
	ExitPrice  float64        `json:"exit_price"`
	Return     float64        `json:"return"`
	Reason     ExitReason     `json:"reason"`
}

// Params holds the exit thresholds and direction for a Machine.
// A threshold of zero disables that exit.
type Params struct {
	TakeProfit float64   // e.g. 0.20 for +20%
	StopLoss   float64   // e.g. 0.05 for -5%
	Direction  Direction // empty means LongOnly
}

// ErrLengthMismatch is returned when closes and conditions differ in length.
var ErrLengthMismatch = errors.New("signal: closes and conditions differ in length")

// Machine is a FLAT/LONG(/SHORT) state machine driven one bar at a time.
type Machine struct {
	params Params

	state      model.Position
	entryPrice float64
	entryIndex int

	positions []model.Position
	trades    []Trade
	lastIndex int
	lastClose float64
}

// NewMachine creates a Machine in the FLAT state.
func NewMachine(p Params) *Machine {
	if p.Direction == "" {
		p.Direction = LongOnly
	}
	return &Machine{params: p, lastIndex: -1}
}

// State returns the current position.
func (m *Machine) State() model.Position { return m.state }

// EntryPrice returns the entry close of the open trade, or 0 while FLAT.
func (m *Machine) EntryPrice() float64 { return m.entryPrice }

// Step consumes bar i and returns the position decided at its close.
// Bars must be fed in strictly increasing index order.
func (m *Machine) Step(i int, close float64, c Condition) model.Position {
	switch m.state {
	case model.Flat:
		switch {
		case c.Bullish:
			m.open(model.Long, i, close)
		case c.Bearish && m.params.Direction == LongShort:
			m.open(model.Short, i, close)
		}

	case model.Long:
		if reason, ok := m.exitReason(close, c.Bearish); ok {
			m.close(i, close, reason)
			if reason == ExitTrend && m.params.Direction == LongShort {
				m.open(model.Short, i, close)
			}
		}

	case model.Short:
		if reason, ok := m.exitReason(close, c.Bullish); ok {
			m.close(i, close, reason)
			if reason == ExitTrend {
				m.open(model.Long, i, close)
			}
		}
	}

	m.positions = append(m.positions, m.state)
	m.lastIndex = i
	m.lastClose = close
	return m.state
}

// exitReason evaluates the trend, take-profit and stop-loss exits
// independently and reports the first that holds, in that order.
func (m *Machine) exitReason(close float64, trendExit bool) (ExitReason, bool) {
	ret := m.unrealized(close)
	hitTP := m.params.TakeProfit > 0 && ret >= m.params.TakeProfit
	hitSL := m.params.StopLoss > 0 && ret <= -m.params.StopLoss

	switch {
	case trendExit:
		return ExitTrend, true
	case hitTP:
		return ExitTakeProfit, true
	case hitSL:
		return ExitStopLoss, true
	}
	return "", false
}

// unrealized is the simple return of the open trade at close.
// A zero entry price yields 0.
func (m *Machine) unrealized(close float64) float64 {
	return sideReturn(m.state, m.entryPrice, close)
}

func (m *Machine) open(side model.Position, i int, close float64) {
	m.state = side
	m.entryPrice = close
	m.entryIndex = i
}

func (m *Machine) close(i int, close float64, reason ExitReason) {
	m.trades = append(m.trades, Trade{
		Side:       m.state,
		EntryIndex: m.entryIndex,
		ExitIndex:  i,
		EntryPrice: m.entryPrice,
		ExitPrice:  close,
		Return:     m.unrealized(close),
		Reason:     reason,
	})
	m.state = model.Flat
	m.entryPrice = 0
}

// Positions returns the positions emitted so far.
func (m *Machine) Positions() []model.Position {
	out := make([]model.Position, len(m.positions))
	copy(out, m.positions)
	return out
}

// Trades returns closed trades plus the open trade, if any, marked to the
// last close with reason ExitOpen.
func (m *Machine) Trades() []Trade {
	out := make([]Trade, len(m.trades), len(m.trades)+1)
	copy(out, m.trades)
	if m.state != model.Flat && m.lastIndex >= 0 {
		out = append(out, Trade{
			Side:       m.state,
			EntryIndex: m.entryIndex,
			ExitIndex:  m.lastIndex,
			EntryPrice: m.entryPrice,
			ExitPrice:  m.lastClose,
			Return:     m.unrealized(m.lastClose),
			Reason:     ExitOpen,
		})
	}
	return out
}

// Outcome is the result of a full pass.
type Outcome struct {
	Positions []model.Position
	Trades    []Trade
}

// Run drives a fresh Machine over every bar.
func Run(closes []float64, conds []Condition, p Params) (Outcome, error) {
	if len(closes) != len(conds) {
		return Outcome{}, fmt.Errorf("%w: %d closes, %d conditions", ErrLengthMismatch, len(closes), len(conds))
	}
	m := NewMachine(p)
	for i, c := range closes {
		m.Step(i, c, conds[i])
	}
	return Outcome{Positions: m.Positions(), Trades: m.Trades()}, nil
}

// TradesFromPositions rebuilds a trade log from a position sequence that was
// not produced by a Machine, such as a combined sequence. Each maximal run
// of one non-flat side is a trade opened and closed at the run's boundary
// closes; a run still held on the last bar is marked ExitOpen.
func TradesFromPositions(closes []float64, positions []model.Position) ([]Trade, error) {
	if len(closes) != len(positions) {
		return nil, fmt.Errorf("%w: %d closes, %d positions", ErrLengthMismatch, len(closes), len(positions))
	}
	var trades []Trade
	var cur *Trade
	for i, p := range positions {
		if cur != nil && p != cur.Side {
			cur.ExitIndex, cur.ExitPrice, cur.Reason = i, closes[i], ExitSignal
			cur.Return = sideReturn(cur.Side, cur.EntryPrice, closes[i])
			trades = append(trades, *cur)
			cur = nil
		}
		if cur == nil && p != model.Flat {
			cur = &Trade{Side: p, EntryIndex: i, EntryPrice: closes[i]}
		}
	}
	if cur != nil {
		last := len(closes) - 1
		cur.ExitIndex, cur.ExitPrice, cur.Reason = last, closes[last], ExitOpen
		cur.Return = sideReturn(cur.Side, cur.EntryPrice, closes[last])
		trades = append(trades, *cur)
	}
	return trades, nil
}

func sideReturn(side model.Position, entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	ret := (exit - entry) / entry
	if side == model.Short {
		ret = -ret
	}
	return ret
}
