package event

import (
	"testing"
	"time"
)

func secs(vals ...float64) []time.Time {
	out := make([]time.Time, len(vals))
	for i, v := range vals {
		out[i] = t0.Add(time.Duration(v * float64(time.Second)))
	}
	return out
}

func TestSearchIndex_Nearest(t *testing.T) {
	idx := NewSearchIndex(secs(0, 10, 20, 30))

	cases := []struct {
		at     float64
		margin time.Duration
		want   float64
		ok     bool
	}{
		{at: 9, margin: 5 * time.Second, want: 10, ok: true},
		{at: 14, margin: 5 * time.Second, want: 10, ok: true},
		{at: 15, margin: 5 * time.Second, want: 10, ok: true}, // tie -> earlier
		{at: 16, margin: 5 * time.Second, want: 20, ok: true},
		{at: 35, margin: 5 * time.Second, want: 30, ok: true}, // inclusive upper bound
		{at: -5, margin: 5 * time.Second, want: 0, ok: true},  // inclusive lower bound
		{at: 36, margin: 5 * time.Second, ok: false},
		{at: 25, margin: 4 * time.Second, ok: false},
	}

	for _, c := range cases {
		at := secs(c.at)[0]
		got, ok := idx.Nearest(at, c.margin)
		if ok != c.ok {
			t.Errorf("Nearest(%v): ok=%v, want %v", c.at, ok, c.ok)
			continue
		}
		if ok && !got.Equal(secs(c.want)[0]) {
			t.Errorf("Nearest(%v) = %v, want %vs", c.at, got.Sub(t0), c.want)
		}
	}
}

func TestSearchIndex_Range(t *testing.T) {
	idx := NewSearchIndex(secs(0, 10, 10, 20, 30))

	lo, hi := idx.Range(secs(10)[0], secs(20)[0])
	if lo != 1 || hi != 4 {
		t.Errorf("Expected [1,4), got [%d,%d)", lo, hi)
	}

	lo, hi = idx.Range(secs(21)[0], secs(29)[0])
	if lo != hi {
		t.Errorf("Expected empty range, got [%d,%d)", lo, hi)
	}
}

func TestSearchIndex_Empty(t *testing.T) {
	idx := NewSearchIndex(nil)
	if _, ok := idx.Nearest(t0, time.Hour); ok {
		t.Error("Empty index must not match")
	}
}
