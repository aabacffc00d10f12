package dtd

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return t0.Add(time.Duration(math.Round(sec * 1e9)))
}

func TestMatch_LinearDrift(t *testing.T) {
	var observed, reference []time.Time
	for s := 0.0; s <= 200; s += 10 {
		reference = append(reference, at(s))
		observed = append(observed, at(s+0.01*s))
	}

	samples := Match(observed, reference, 5*time.Second)
	if len(samples) != len(observed) {
		t.Fatalf("Expected %d samples, got %d", len(observed), len(samples))
	}
	if missing := CountMissing(samples); missing != 0 {
		t.Errorf("Expected zero missing matches, got %d", missing)
	}

	for i, s := range samples {
		want := 0.01 * float64(i*10)
		if math.Abs(s.DTD-want) > 1e-6 {
			t.Errorf("Sample %d: dtd=%.9f, want %.9f", i, s.DTD, want)
		}
		if !s.Timestamp.Equal(observed[i]) {
			t.Errorf("Sample %d keeps observed timestamp", i)
		}
	}
}

func TestMatch_NoMatchIsMissing(t *testing.T) {
	reference := []time.Time{at(0), at(100)}
	observed := []time.Time{at(2), at(50), at(97)}

	samples := Match(observed, reference, 5*time.Second)
	if !samples[0].Valid || samples[0].DTD != 2 {
		t.Errorf("Expected dtd 2, got %+v", samples[0])
	}
	if samples[1].Valid {
		t.Errorf("Expected missing sample at 50s, got %+v", samples[1])
	}
	if !samples[2].Valid || math.Abs(samples[2].DTD+3) > 1e-12 {
		t.Errorf("Expected dtd -3, got %+v", samples[2])
	}
}

func TestMatch_TieResolvesEarlier(t *testing.T) {
	samples := Match([]time.Time{at(15)}, []time.Time{at(10), at(20)}, 5*time.Second)
	if !samples[0].Valid || samples[0].DTD != 5 {
		t.Errorf("Expected earlier candidate (dtd=5), got %+v", samples[0])
	}
}

func TestMatch_EmptyInputs(t *testing.T) {
	if got := Match(nil, []time.Time{at(0)}, time.Second); len(got) != 0 {
		t.Errorf("Expected no samples, got %d", len(got))
	}
	got := Match([]time.Time{at(0)}, nil, time.Second)
	if len(got) != 1 || got[0].Valid {
		t.Errorf("Expected one missing sample, got %+v", got)
	}
}

// Compares binary-search matching with a brute-force scan over the window.
func TestMatch_AgreesWithLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	margin := 3 * time.Second

	var reference, observed []time.Time
	cur := 0.0
	for i := 0; i < 400; i++ {
		cur += rng.Float64() * 4
		reference = append(reference, at(math.Round(cur*10)/10))
	}
	cur = 0
	for i := 0; i < 300; i++ {
		cur += rng.Float64() * 5
		observed = append(observed, at(math.Round(cur*10)/10))
	}

	samples := Match(observed, reference, margin)
	for i, o := range observed {
		best := time.Duration(-1)
		var bestRef time.Time
		for _, r := range reference {
			d := o.Sub(r)
			if d < 0 {
				d = -d
			}
			if d > margin {
				continue
			}
			if best < 0 || d < best {
				best = d
				bestRef = r
			}
		}

		if best < 0 {
			if samples[i].Valid {
				t.Errorf("Observed %d: expected missing, got %+v", i, samples[i])
			}
			continue
		}
		want := o.Sub(bestRef).Seconds()
		if !samples[i].Valid || samples[i].DTD != want {
			t.Errorf("Observed %d: dtd=%v valid=%v, want %v", i, samples[i].DTD, samples[i].Valid, want)
		}
	}
}
