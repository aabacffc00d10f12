package clock

import (
	"testing"
	"time"
)

func TestMonoTime_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	m := FromTime(ts)

	if !m.Time().Equal(ts) {
		t.Errorf("Round trip failed: %v -> %d -> %v", ts, m, m.Time())
	}
	if m.Time().Location() != time.UTC {
		t.Errorf("Expected UTC location, got %v", m.Time().Location())
	}
}

func TestMonoTime_Float(t *testing.T) {
	m := MonoTime(1500 * time.Millisecond)
	if m.Float() != 1.5e9 {
		t.Errorf("Expected 1.5e9 ns, got %f", m.Float())
	}
}

func TestSecondsToDuration_Rounding(t *testing.T) {
	cases := []struct {
		in   float64
		want time.Duration
	}{
		{0.5, 500 * time.Millisecond},
		{1e-9, 1},
		{0.4e-9, 0},
		{0.6e-9, 1},
		{-0.6e-9, -1},
		{-1.25, -1250 * time.Millisecond},
	}
	for _, c := range cases {
		if got := SecondsToDuration(c.in); got != c.want {
			t.Errorf("SecondsToDuration(%g) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSystemClock_Since(t *testing.T) {
	c := NewSystemClock()
	start := c.Now()
	time.Sleep(2 * time.Millisecond)

	elapsed := c.Since(start)
	t.Logf("Elapsed: %v", elapsed)
	if elapsed < 2*time.Millisecond {
		t.Errorf("Expected at least 2ms, got %v", elapsed)
	}
}
