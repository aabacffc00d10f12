// Package dtd computes Detection Time Differences between two receivers that
// heard the same transmitter, and smooths the resulting series.
package dtd

import (
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/event"
)

// Sample is the DTD of one observed detection in seconds. Positive means the
// observed receiver's clock is ahead of the reference. Valid is false when no
// reference detection was found within the search window.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	DTD       float64   `json:"dtd"`
	Valid     bool      `json:"valid"`
}

// Match pairs every observed timestamp with the nearest reference timestamp
// within [t-margin, t+margin] and returns one sample per observed timestamp,
// in input order. Both inputs must be ascending. Ties resolve to the earlier
// reference timestamp. An empty window yields a missing sample, never an error.
func Match(observed, reference []time.Time, margin time.Duration) []Sample {
	idx := event.NewSearchIndex(reference)

	out := make([]Sample, len(observed))
	for i, t := range observed {
		out[i] = Sample{Timestamp: t}
		ref, ok := idx.Nearest(t, margin)
		if !ok {
			continue
		}
		out[i].DTD = t.Sub(ref).Seconds()
		out[i].Valid = true
	}
	return out
}

// MatchLogs matches two single-transmitter logs.
func MatchLogs(observed, reference event.Log, margin time.Duration) []Sample {
	return Match(observed.Timestamps(), reference.Timestamps(), margin)
}

// CountMissing returns the number of samples without a match.
func CountMissing(samples []Sample) int {
	n := 0
	for _, s := range samples {
		if !s.Valid {
			n++
		}
	}
	return n
}
