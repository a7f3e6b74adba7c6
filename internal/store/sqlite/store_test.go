package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"trading-backtestv1/internal/model"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func openTemp(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.db")
	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return w, r
}

func TestWriteReadBars(t *testing.T) {
	w, r := openTemp(t)
	ctx := context.Background()

	bars := []model.Bar{
		{Symbol: "spy", Date: day(2), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Symbol: "SPY", Date: day(0).Add(16 * time.Hour), Open: 1, High: 1, Low: 1, Close: 1},
		{Symbol: "SPY", Date: day(1), Open: 2, High: 2, Low: 2, Close: 2},
		{Symbol: "QQQ", Date: day(1), Open: 9, High: 9, Low: 9, Close: 9},
	}
	if err := w.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := r.ReadBars(ctx, "spy", day(0), day(2))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("bars=%d, want 2 (end exclusive)", len(got))
	}
	if !got[0].Date.Equal(day(0)) || got[1].Close != 2 {
		t.Errorf("unexpected bars %+v", got)
	}
	if got[0].Symbol != "SPY" {
		t.Errorf("symbol=%q, want SPY", got[0].Symbol)
	}
}

func TestWriteBars_Upsert(t *testing.T) {
	w, r := openTemp(t)
	ctx := context.Background()

	w.WriteBars(ctx, []model.Bar{{Symbol: "SPY", Date: day(0), Close: 1}})
	w.WriteBars(ctx, []model.Bar{{Symbol: "SPY", Date: day(0), Close: 3}})

	got, err := r.ReadBars(ctx, "SPY", day(0), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Close != 3 {
		t.Errorf("expected one upserted bar with close 3, got %+v", got)
	}
}

func TestRun_DrainsChannel(t *testing.T) {
	w, r := openTemp(t)
	ch := make(chan model.Bar, 10)
	for i := 0; i < 7; i++ {
		ch <- model.Bar{Symbol: "DIA", Date: day(i), Close: float64(100 + i)}
	}
	close(ch)

	if n := w.Run(context.Background(), ch); n != 7 {
		t.Errorf("committed=%d, want 7", n)
	}

	syms, err := r.Symbols(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 1 || syms[0].Bars != 7 || !syms[0].Last.Equal(day(6)) {
		t.Errorf("symbols=%+v", syms)
	}
}
