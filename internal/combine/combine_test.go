package combine

import (
	"errors"
	"testing"
	"time"

	"trading-backtestv1/internal/model"
)

func days(n int) []time.Time {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.AddDate(0, 0, i)
	}
	return out
}

func seq(name string, dates []time.Time, pos ...model.Position) Sequence {
	return Sequence{Name: name, Dates: dates, Positions: pos}
}

func TestCombine_PassThrough(t *testing.T) {
	idx := days(3)
	got, err := Combine(idx, seq("a", idx, 1, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	want := []model.Position{1, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bar %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCombine_TwoIsAND(t *testing.T) {
	idx := days(4)
	got, _ := Combine(idx,
		seq("a", idx, 1, 1, 0, 0),
		seq("b", idx, 1, 0, 1, 0),
	)
	want := []model.Position{1, 0, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bar %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCombine_ThreeIsMajority(t *testing.T) {
	idx := days(4)
	got, _ := Combine(idx,
		seq("a", idx, 1, 1, 0, 1),
		seq("b", idx, 1, 0, 0, 1),
		seq("c", idx, 0, 0, 1, 1),
	)
	want := []model.Position{1, 0, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bar %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCombine_MissingDatesAreFlat(t *testing.T) {
	idx := days(5)
	// "slow" only starts at bar 3 after a longer warm-up.
	got, _ := Combine(idx,
		seq("fast", idx, 1, 1, 1, 1, 1),
		seq("slow", idx[3:], 1, 1),
	)
	want := []model.Position{0, 0, 0, 1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bar %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCombine_ShortMajority(t *testing.T) {
	idx := days(1)
	got, _ := Combine(idx,
		seq("a", idx, -1),
		seq("b", idx, -1),
		seq("c", idx, 1),
	)
	if got[0] != model.Short {
		t.Errorf("got %v, want SHORT", got[0])
	}
}

func TestCombine_Arity(t *testing.T) {
	idx := days(1)
	if _, err := Combine(idx); !errors.Is(err, ErrArity) {
		t.Errorf("expected ErrArity for 0 inputs, got %v", err)
	}
	s := seq("a", idx, 1)
	if _, err := Combine(idx, s, s, s, s); !errors.Is(err, ErrArity) {
		t.Errorf("expected ErrArity for 4 inputs, got %v", err)
	}
}

func TestReindex_IgnoresTimeOfDay(t *testing.T) {
	idx := days(2)
	shifted := []time.Time{idx[1].Add(20 * time.Hour)}
	got := Reindex(seq("a", shifted, 1), idx)
	if got[0] != 0 || got[1] != 1 {
		t.Errorf("got %v", got)
	}
}
