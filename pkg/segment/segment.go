// Package segment splits a smoothed DTD series at clock discontinuities.
package segment

import (
	"fmt"
	"math"
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/dtd"
)

// JumpThreshold is the absolute step in seconds between consecutive smoothed
// values that marks a clock discontinuity, e.g. a receiver clock reset.
const JumpThreshold = 0.1

// Point is one non-missing smoothed DTD value.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Segment is a maximal run of points without an internal jump.
type Segment struct {
	Index  int     `json:"index"`
	Points []Point `json:"points"`
}

// Len returns the number of points.
func (s Segment) Len() int {
	return len(s.Points)
}

// Span returns the first and last timestamps of the segment.
func (s Segment) Span() (time.Time, time.Time) {
	if len(s.Points) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Points[0].Timestamp, s.Points[len(s.Points)-1].Timestamp
}

func (s Segment) String() string {
	from, to := s.Span()
	return fmt.Sprintf("segment %d: %d points [%s, %s]", s.Index, len(s.Points),
		from.Format(time.RFC3339), to.Format(time.RFC3339))
}

// state of the split loop.
type state int

const (
	accumulating state = iota
	endedByJump
)

// Split drops missing smoothed values and cuts the remainder into segments
// wherever the absolute first difference exceeds JumpThreshold. The point
// after a jump opens the next segment, so the number of segments is the
// number of jumps plus one, or zero for an input without values.
func Split(series dtd.Series) []Segment {
	var segments []Segment
	var current Segment
	st := endedByJump
	prev := 0.0

	for _, s := range series {
		if !s.SmoothValid {
			continue
		}
		p := Point{Timestamp: s.Timestamp, Value: s.Smooth}

		if st == accumulating && math.Abs(p.Value-prev) > JumpThreshold {
			segments = append(segments, current)
			st = endedByJump
		}

		switch st {
		case endedByJump:
			current = Segment{Index: len(segments), Points: []Point{p}}
			st = accumulating
		case accumulating:
			current.Points = append(current.Points, p)
		}
		prev = p.Value
	}

	if st == accumulating {
		segments = append(segments, current)
	}
	return segments
}

// Jumps counts the jump flags of a series, for checking Split coverage.
func Jumps(series dtd.Series) int {
	n := 0
	first := true
	prev := 0.0
	for _, s := range series {
		if !s.SmoothValid {
			continue
		}
		if !first && math.Abs(s.Smooth-prev) > JumpThreshold {
			n++
		}
		first = false
		prev = s.Smooth
	}
	return n
}
