package clock

import (
	"math"
	"testing"
	"time"
)

func sec(s float64) MonoTime {
	return FromDuration(SecondsToDuration(s))
}

func TestDriftTruer_Interpolates(t *testing.T) {
	truer := NewDriftTruer([]CurvePoint{
		{At: sec(100), Offset: 1.0},
		{At: sec(0), Offset: 0.0},
	})

	off, ok := truer.Offset(sec(25))
	if !ok {
		t.Fatal("Expected offset inside span")
	}
	if math.Abs(off-0.25) > 1e-9 {
		t.Errorf("Expected 0.25, got %f", off)
	}

	ref, ok := truer.True(sec(50))
	if !ok {
		t.Fatal("Expected mapping inside span")
	}
	if ref != sec(49.5) {
		t.Errorf("Expected %d, got %d", sec(49.5), ref)
	}
}

func TestDriftTruer_NoExtrapolation(t *testing.T) {
	truer := NewDriftTruer([]CurvePoint{
		{At: sec(10), Offset: 0.1},
		{At: sec(20), Offset: 0.2},
	})

	if _, ok := truer.True(sec(9)); ok {
		t.Error("Expected no mapping before span")
	}
	if _, ok := truer.True(sec(21)); ok {
		t.Error("Expected no mapping after span")
	}
	if off, ok := truer.Offset(sec(20)); !ok || off != 0.2 {
		t.Errorf("Expected exact endpoint 0.2, got %f ok=%v", off, ok)
	}

	from, to := truer.Span()
	if from != sec(10) || to != sec(20) {
		t.Errorf("Unexpected span [%d, %d]", from, to)
	}
}

func TestDriftTruer_EmptyCurve(t *testing.T) {
	truer := NewDriftTruer(nil)
	if _, ok := truer.True(0); ok {
		t.Error("Empty curve must not map anything")
	}
}

func TestDriftTruer_DuplicateKeepsFirst(t *testing.T) {
	truer := NewDriftTruer([]CurvePoint{
		{At: sec(30), Offset: 0.3},
		{At: sec(20), Offset: 0.2},
		{At: sec(20), Offset: 0.25},
		{At: sec(10), Offset: 0.1},
	})

	off, _ := truer.Offset(sec(20))
	if off != 0.2 {
		t.Errorf("Expected first offset 0.2, got %f", off)
	}
	off, _ = truer.Offset(sec(15))
	if math.Abs(off-0.15) > 1e-9 {
		t.Errorf("Expected 0.15, got %f", off)
	}
}

func TestIdentityTruer(t *testing.T) {
	truer := NewIdentityTruer()
	ref, ok := truer.True(sec(42))
	if !ok || ref != sec(42) {
		t.Errorf("Identity mapping failed: %d ok=%v", ref, ok)
	}
}

func TestDriftModel_LinearAndStep(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	model := NewDriftModel(start, 0, 0.01).WithStep(100*time.Second, 500*time.Millisecond)

	local := model.Local(start.Add(50 * time.Second))
	if got := local.Sub(start); got != 50500*time.Millisecond {
		t.Errorf("Expected 50.5s, got %v", got)
	}

	local = model.Local(start.Add(100 * time.Second))
	if got := local.Sub(start); got != 101500*time.Millisecond {
		t.Errorf("Expected step applied at 100s: 101.5s, got %v", got)
	}

	if d := model.Drift(start.Add(99 * time.Second)); d != 990*time.Millisecond {
		t.Errorf("Expected 0.99s drift before step, got %v", d)
	}
}
