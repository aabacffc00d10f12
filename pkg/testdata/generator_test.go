package testdata

import (
	"testing"
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/event"
)

func TestScenario_GenerateSortedAndValid(t *testing.T) {
	for _, name := range All() {
		s, err := Get(name)
		if err != nil {
			t.Fatal(err)
		}
		ds := s.Generate()
		t.Logf("%s: base=%d receiver=%d", name, len(ds.Base), len(ds.Receiver))

		if _, err := event.NewLog(s.Base, ds.Base); err != nil {
			t.Errorf("%s: base log invalid: %v", name, err)
		}
		if _, err := event.NewLog(s.Receiver, ds.Receiver); err != nil {
			t.Errorf("%s: receiver log invalid: %v", name, err)
		}
		if len(ds.Truth) == 0 {
			t.Errorf("%s: no ground truth", name)
		}
	}
}

func TestScenario_Deterministic(t *testing.T) {
	a := Noisy().Generate()
	b := Noisy().Generate()
	if len(a.Receiver) != len(b.Receiver) {
		t.Fatalf("Lengths differ: %d vs %d", len(a.Receiver), len(b.Receiver))
	}
	for i := range a.Receiver {
		if !a.Receiver[i].Timestamp.Equal(b.Receiver[i].Timestamp) {
			t.Fatalf("Detection %d differs", i)
		}
	}
}

func TestScenario_DriftApplied(t *testing.T) {
	ds := Linear().Generate()
	for _, d := range ds.Receiver {
		truth := ds.Truth[d.Timestamp.UnixNano()]
		want := ds.Scenario.Drift.Drift(truth)
		if got := d.Timestamp.Sub(truth); got != want {
			t.Fatalf("Local-true difference %v, want %v", got, want)
		}
	}
}

func TestScenario_OutageLeavesGap(t *testing.T) {
	s := Sparse()
	ds := s.Generate()
	for _, d := range ds.Receiver {
		elapsed := ds.Truth[d.Timestamp.UnixNano()].Sub(s.Start)
		if elapsed >= 2*time.Hour && elapsed < 3*time.Hour {
			t.Fatalf("Detection inside outage at %v", elapsed)
		}
	}
}

func TestGet_Unknown(t *testing.T) {
	if _, err := Get("nope"); err == nil {
		t.Error("Expected error for unknown scenario")
	}
}

func TestFormatScenario(t *testing.T) {
	out := FormatScenario(Jump())
	t.Log(out)
	if len(out) == 0 {
		t.Error("Empty summary")
	}
}
