package segment

import (
	"math"
	"testing"
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/dtd"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func seriesOf(vals ...float64) dtd.Series {
	out := make(dtd.Series, len(vals))
	for i, v := range vals {
		out[i] = dtd.SmoothedSample{
			Timestamp:   t0.Add(time.Duration(i) * time.Second),
			Smooth:      v,
			SmoothValid: !math.IsNaN(v),
		}
	}
	return out
}

func TestSplit_SingleSegment(t *testing.T) {
	segs := Split(seriesOf(math.NaN(), 0.1, 0.15, 0.2, 0.25, math.NaN()))
	if len(segs) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segs))
	}
	if segs[0].Len() != 4 || segs[0].Index != 0 {
		t.Errorf("Unexpected segment %v", segs[0])
	}
}

func TestSplit_JumpStartsNewSegment(t *testing.T) {
	segs := Split(seriesOf(0, 0.01, 0.02, 0.6, 0.61, 0.62, 0.0, 0.01))
	if len(segs) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segs))
	}

	wantLens := []int{3, 3, 2}
	for i, s := range segs {
		t.Logf("%s", s)
		if s.Index != i {
			t.Errorf("Segment %d has index %d", i, s.Index)
		}
		if s.Len() != wantLens[i] {
			t.Errorf("Segment %d: expected %d points, got %d", i, wantLens[i], s.Len())
		}
	}
	if segs[1].Points[0].Value != 0.6 {
		t.Errorf("Point after jump must open the next segment, got %f", segs[1].Points[0].Value)
	}
}

func TestSplit_MissingValuesDoNotSplit(t *testing.T) {
	// The gap is dropped first; 0.05 -> 0.12 is below the threshold.
	segs := Split(seriesOf(0.0, 0.05, math.NaN(), math.NaN(), 0.12, 0.2))
	if len(segs) != 1 || segs[0].Len() != 4 {
		t.Fatalf("Expected one segment of 4 points, got %v", segs)
	}
}

func TestSplit_ThresholdIsStrict(t *testing.T) {
	segs := Split(seriesOf(0, 0.0625, 0.125))
	if len(segs) != 1 {
		t.Errorf("Steps below threshold must not split, got %d segments", len(segs))
	}
	segs = Split(seriesOf(0, 0.25))
	if len(segs) != 2 {
		t.Errorf("Expected split at 0.25 step, got %d segments", len(segs))
	}
}

func TestSplit_Empty(t *testing.T) {
	if segs := Split(nil); len(segs) != 0 {
		t.Errorf("Expected no segments, got %d", len(segs))
	}
	if segs := Split(seriesOf(math.NaN(), math.NaN())); len(segs) != 0 {
		t.Errorf("Expected no segments for all-missing input, got %d", len(segs))
	}
}

func TestSplit_CoverageAndCount(t *testing.T) {
	vals := []float64{math.NaN(), 1, 1.05, 2, 2.01, math.NaN(), 2.02, 0.5, 0.55, 0.6, 3, math.NaN()}
	series := seriesOf(vals...)
	segs := Split(series)

	if len(segs) != Jumps(series)+1 {
		t.Errorf("Segment count %d != jumps %d + 1", len(segs), Jumps(series))
	}

	var rebuilt []Point
	for _, s := range segs {
		if s.Len() == 0 {
			t.Error("Segments are never empty")
		}
		rebuilt = append(rebuilt, s.Points...)
	}

	var want []Point
	for _, s := range series {
		if s.SmoothValid {
			want = append(want, Point{Timestamp: s.Timestamp, Value: s.Smooth})
		}
	}
	if len(rebuilt) != len(want) {
		t.Fatalf("Coverage mismatch: %d points, want %d", len(rebuilt), len(want))
	}
	for i := range want {
		if rebuilt[i] != want[i] {
			t.Errorf("Point %d: got %v, want %v", i, rebuilt[i], want[i])
		}
	}
}
