// Package combine merges two drift estimates onto a receiver's timeline and
// produces synchronized timestamps.
package combine

import (
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/clock"
	"github.com/BYTE-6D65/driftsync/pkg/event"
	"github.com/BYTE-6D65/driftsync/pkg/spline"
)

// SyncedRow is one detection of the target receiver with its drift offsets
// (seconds) and synchronized timestamp.
type SyncedRow struct {
	event.Detection `json:",inline"`

	OffsetA      float64 `json:"offset_a"`
	OffsetAValid bool    `json:"offset_a_valid"`
	OffsetB      float64 `json:"offset_b"`
	OffsetBValid bool    `json:"offset_b_valid"`

	// Offset is the mean of both estimates, or interpolated in time between
	// the nearest rows where both were present.
	Offset       float64 `json:"offset"`
	OffsetValid  bool    `json:"offset_valid"`
	Interpolated bool    `json:"interpolated"`

	Synced      time.Time `json:"synced"`
	SyncedValid bool      `json:"synced_valid"`
}

// Timeline is the synchronized detection table of one receiver.
type Timeline []SyncedRow

// Combine left-joins both estimates onto the timeline by exact timestamp.
// The offset is the mean of both sides and missing unless both are present.
// Gaps strictly between the first and last known offsets are filled by
// time-weighted linear interpolation; rows outside that span stay missing.
// Synced is Timestamp minus the offset for every row with a known offset.
func Combine(a, b spline.Estimate, timeline []event.Detection) Timeline {
	curveA := index(a)
	curveB := index(b)

	rows := make(Timeline, len(timeline))
	known := make([]int, 0, len(timeline))
	for i, d := range timeline {
		row := SyncedRow{Detection: d}
		key := d.Timestamp.UnixNano()
		row.OffsetA, row.OffsetAValid = curveA[key]
		row.OffsetB, row.OffsetBValid = curveB[key]
		if row.OffsetAValid && row.OffsetBValid {
			row.Offset = (row.OffsetA + row.OffsetB) / 2
			row.OffsetValid = true
			known = append(known, i)
		}
		rows[i] = row
	}

	for k := 1; k < len(known); k++ {
		lo, hi := known[k-1], known[k]
		if hi-lo < 2 {
			continue
		}
		t0 := rows[lo].Timestamp
		span := float64(rows[hi].Timestamp.Sub(t0))
		for i := lo + 1; i < hi; i++ {
			frac := 0.0
			if span > 0 {
				frac = float64(rows[i].Timestamp.Sub(t0)) / span
			}
			rows[i].Offset = rows[lo].Offset + frac*(rows[hi].Offset-rows[lo].Offset)
			rows[i].OffsetValid = true
			rows[i].Interpolated = true
		}
	}

	for i := range rows {
		if rows[i].OffsetValid {
			rows[i].Synced = rows[i].Timestamp.Add(-clock.SecondsToDuration(rows[i].Offset))
			rows[i].SyncedValid = true
		}
	}
	return rows
}

// index keys an estimate by Unix nanoseconds. Repeated timestamps keep the
// first value.
func index(est spline.Estimate) map[int64]float64 {
	m := make(map[int64]float64, len(est))
	for _, p := range est {
		key := p.Timestamp.UnixNano()
		if _, ok := m[key]; !ok {
			m[key] = p.Offset
		}
	}
	return m
}

// Missing returns the rows without a synchronized timestamp.
func (t Timeline) Missing() []SyncedRow {
	var out []SyncedRow
	for _, r := range t {
		if !r.SyncedValid {
			out = append(out, r)
		}
	}
	return out
}

// Stats counts rows by how their offset was obtained.
type Stats struct {
	Rows         int `json:"rows"`
	Direct       int `json:"direct"`
	Interpolated int `json:"interpolated"`
	Missing      int `json:"missing"`
}

// Stats summarizes the timeline.
func (t Timeline) Stats() Stats {
	s := Stats{Rows: len(t)}
	for _, r := range t {
		switch {
		case !r.OffsetValid:
			s.Missing++
		case r.Interpolated:
			s.Interpolated++
		default:
			s.Direct++
		}
	}
	return s
}

// Curve returns the known offsets as a drift curve for correcting other
// timestamps of the same receiver.
func (t Timeline) Curve() []clock.CurvePoint {
	var out []clock.CurvePoint
	for _, r := range t {
		if r.OffsetValid {
			out = append(out, clock.CurvePoint{At: clock.FromTime(r.Timestamp), Offset: r.Offset})
		}
	}
	return out
}

// Truer builds a timestamp corrector from the timeline's offsets.
func (t Timeline) Truer() *clock.DriftTruer {
	return clock.NewDriftTruer(t.Curve())
}
