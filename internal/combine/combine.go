// Package combine merges position sequences from several strategies into
// one sequence: a single input passes through, two inputs are AND-ed and
// three inputs take a majority vote.
package combine

import (
	"errors"
	"fmt"
	"time"

	"trading-backtestv1/internal/model"
)

// MaxInputs is the largest number of sequences Combine accepts.
const MaxInputs = 3

// ErrArity is returned for fewer than one or more than MaxInputs sequences.
var ErrArity = errors.New("combine: need 1 to 3 position sequences")

// Sequence is one strategy's positions keyed by bar date.
type Sequence struct {
	Name      string
	Dates     []time.Time
	Positions []model.Position
}

// Reindex aligns seq onto index by calendar date. Dates missing from seq
// map to FLAT.
func Reindex(seq Sequence, index []time.Time) []model.Position {
	byDate := make(map[time.Time]model.Position, len(seq.Dates))
	for i, d := range seq.Dates {
		if i < len(seq.Positions) {
			byDate[model.Day(d)] = seq.Positions[i]
		}
	}
	out := make([]model.Position, len(index))
	for i, d := range index {
		out[i] = byDate[model.Day(d)]
	}
	return out
}

// Combine reindexes every sequence onto index and merges them bar by bar.
func Combine(index []time.Time, seqs ...Sequence) ([]model.Position, error) {
	if len(seqs) == 0 || len(seqs) > MaxInputs {
		return nil, fmt.Errorf("%w: got %d", ErrArity, len(seqs))
	}
	aligned := make([][]model.Position, len(seqs))
	for i, s := range seqs {
		aligned[i] = Reindex(s, index)
	}

	need := quorum(len(seqs))
	out := make([]model.Position, len(index))
	for i := range index {
		longs, shorts := 0, 0
		for _, a := range aligned {
			switch a[i] {
			case model.Long:
				longs++
			case model.Short:
				shorts++
			}
		}
		switch {
		case longs >= need:
			out[i] = model.Long
		case shorts >= need:
			out[i] = model.Short
		}
	}
	return out, nil
}

// quorum is how many inputs must agree: all of one or two, two of three.
func quorum(n int) int {
	if n == 3 {
		return 2
	}
	return n
}
