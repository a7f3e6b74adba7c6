package model

// Position is the per-bar trade state emitted by the signal state machine.
type Position int8

const (
	Short Position = -1
	Flat  Position = 0
	Long  Position = 1
)

func (p Position) String() string {
	switch p {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Float returns the position as a return multiplier.
func (p Position) Float() float64 { return float64(p) }
