package clock

import (
	"sort"
	"time"
)

// Step is an instantaneous clock jump applied from At (elapsed since the
// model start) onwards, e.g. an internal receiver clock reset.
type Step struct {
	At   time.Duration
	Jump time.Duration
}

// DriftModel describes a simulated receiver clock relative to true time:
//
//	local = true + Offset + Rate*(true-Start) + sum(steps already passed)
//
// It is deterministic and drives the synthetic detection generators.
type DriftModel struct {
	Start  time.Time
	Offset time.Duration
	Rate   float64 // seconds of drift per second of true time
	Steps  []Step
}

// NewDriftModel creates a drift model with a constant rate and no steps.
func NewDriftModel(start time.Time, offset time.Duration, rate float64) *DriftModel {
	return &DriftModel{
		Start:  start,
		Offset: offset,
		Rate:   rate,
	}
}

// WithStep adds a clock jump and keeps steps ordered by time.
func (d *DriftModel) WithStep(at, jump time.Duration) *DriftModel {
	d.Steps = append(d.Steps, Step{At: at, Jump: jump})
	sort.Slice(d.Steps, func(i, j int) bool { return d.Steps[i].At < d.Steps[j].At })
	return d
}

// Drift returns the clock error (local - true) at the given true time.
func (d *DriftModel) Drift(trueT time.Time) time.Duration {
	elapsed := trueT.Sub(d.Start)
	drift := d.Offset + SecondsToDuration(d.Rate*elapsed.Seconds())
	for _, s := range d.Steps {
		if elapsed < s.At {
			break
		}
		drift += s.Jump
	}
	return drift
}

// Local returns the timestamp the simulated receiver records for an arrival
// at the given true time.
func (d *DriftModel) Local(trueT time.Time) time.Time {
	return trueT.Add(d.Drift(trueT))
}
