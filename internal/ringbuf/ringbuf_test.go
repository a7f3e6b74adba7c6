package ringbuf

import (
	"sync"
	"testing"
)

func TestRing_PushSnapshot(t *testing.T) {
	r := New[string](4)
	r.Push("A")
	r.Push("B")

	if r.Len() != 2 {
		t.Fatalf("expected len=2, got %d", r.Len())
	}
	got := r.Snapshot()
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("snapshot = %v, want [A B]", got)
	}
}

func TestRing_Wraparound(t *testing.T) {
	r := New[int](4)
	for i := 1; i <= 7; i++ {
		r.Push(i)
	}

	if r.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", r.Len())
	}
	got := r.Snapshot()
	for i, want := range []int{4, 5, 6, 7} {
		if got[i] != want {
			t.Errorf("snapshot[%d] = %d, want %d", i, got[i], want)
		}
	}
	if r.Evicted() != 3 {
		t.Errorf("Evicted() = %d, want 3", r.Evicted())
	}
}

func TestRing_FindNewest(t *testing.T) {
	r := New[int](4)
	for _, v := range []int{2, 4, 6, 3} {
		r.Push(v)
	}
	v, ok := r.Find(func(x int) bool { return x%2 == 0 })
	if !ok || v != 6 {
		t.Fatalf("Find = %d, %v; want 6, true", v, ok)
	}
	if _, ok := r.Find(func(x int) bool { return x > 10 }); ok {
		t.Fatal("expected no match")
	}

	empty := New[int](2)
	if _, ok := empty.Find(func(int) bool { return true }); ok {
		t.Fatal("empty ring should find nothing")
	}
}

func TestRing_CapacityRounding(t *testing.T) {
	tests := []struct {
		input, want int
	}{
		{0, 2}, {1, 2}, {2, 2}, {3, 4}, {5, 8}, {100, 128},
	}
	for _, tt := range tests {
		if got := New[int](tt.input).Cap(); got != tt.want {
			t.Errorf("New(%d).Cap() = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestRing_Concurrent(t *testing.T) {
	r := New[int](64)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				r.Push(i)
				r.Snapshot()
			}
		}()
	}
	wg.Wait()

	if r.Len() != 64 {
		t.Fatalf("Len() = %d, want 64", r.Len())
	}
	if r.Evicted() != 4000-64 {
		t.Fatalf("Evicted() = %d, want %d", r.Evicted(), 4000-64)
	}
}
