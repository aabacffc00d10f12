// Package spline fits per-segment smoothing splines to DTD segments and
// evaluates them on a target timeline without extrapolation.
package spline

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/clock"
	"github.com/BYTE-6D65/driftsync/pkg/segment"
)

// MinSegmentPoints is the segment size at or below which no fit is attempted.
const MinSegmentPoints = 5

// EstimatePoint is the modelled drift offset in seconds at a target timestamp.
type EstimatePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Offset    float64   `json:"offset"`
}

// Estimate is a drift curve in ascending timestamp order.
type Estimate []EstimatePoint

// FitAndEvaluate fits one segment and evaluates the spline at the target
// timestamps strictly inside the segment's span. Segments with
// MinSegmentPoints or fewer points yield ErrInsufficientData; numerical
// failures yield ErrDegenerateFit. Degree and s are used as given.
func FitAndEvaluate(seg segment.Segment, target []time.Time, degree int, s float64) (Estimate, error) {
	est, _, err := fitSegment(seg, target, degree, s)
	return est, err
}

func fitSegment(seg segment.Segment, target []time.Time, degree int, s float64) (Estimate, *Spline, error) {
	if degree < 1 || degree > MaxDegree || !(s > 0) {
		return nil, nil, fmt.Errorf("%w: degree=%d s=%g", ErrInvalidParams, degree, s)
	}
	if seg.Len() <= MinSegmentPoints {
		return nil, nil, fmt.Errorf("%w: segment %d has %d points", ErrInsufficientData, seg.Index, seg.Len())
	}

	origin := clock.FromTime(seg.Points[0].Timestamp)
	x := make([]float64, seg.Len())
	y := make([]float64, seg.Len())
	for i, p := range seg.Points {
		x[i] = (clock.FromTime(p.Timestamp) - origin).Float()
		y[i] = p.Value
	}

	sp, err := Fit(x, y, degree, s)
	if err != nil {
		if errors.Is(err, ErrInsufficientData) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("segment %d: %w", seg.Index, err)
	}

	from, to := seg.Span()
	var est Estimate
	for _, ts := range target {
		if !ts.After(from) || !ts.Before(to) {
			continue
		}
		est = append(est, EstimatePoint{
			Timestamp: ts,
			Offset:    sp.Eval((clock.FromTime(ts) - origin).Float()),
		})
	}
	sort.SliceStable(est, func(i, j int) bool { return est[i].Timestamp.Before(est[j].Timestamp) })
	return est, sp, nil
}

// Status is the fit outcome of one segment.
type Status string

const (
	StatusFitted       Status = "fitted"
	StatusInsufficient Status = "insufficient"
	StatusDegenerate   Status = "degenerate"
	StatusInvalid      Status = "invalid"
)

// Outcome describes what happened to one segment.
type Outcome struct {
	Segment   int       `json:"segment"`
	Points    int       `json:"points"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Status    Status    `json:"status"`
	Evaluated int       `json:"evaluated"`
	Knots     int       `json:"knots"`
	Residual  float64   `json:"residual"`
	Err       string    `json:"error,omitempty"`
}

// Model fits every segment with at most workers concurrent fits, and
// returns the concatenated estimate sorted by timestamp plus one outcome per
// segment in segment order. A failing segment contributes nothing and never
// blocks the others.
func Model(segments []segment.Segment, target []time.Time, degree int, s float64, workers int) (Estimate, []Outcome) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(segments) {
		workers = len(segments)
	}

	type result struct {
		est     Estimate
		outcome Outcome
	}
	results := make([]result, len(segments))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				seg := segments[i]
				from, to := seg.Span()
				out := Outcome{Segment: seg.Index, Points: seg.Len(), From: from, To: to}

				est, sp, err := fitSegment(seg, target, degree, s)
				switch {
				case err == nil:
					out.Status = StatusFitted
					out.Evaluated = len(est)
					out.Knots = len(sp.Interior())
					out.Residual = sp.Residual()
				case errors.Is(err, ErrInvalidParams):
					out.Status = StatusInvalid
				case errors.Is(err, ErrInsufficientData):
					out.Status = StatusInsufficient
				default:
					out.Status = StatusDegenerate
				}
				if err != nil {
					out.Err = err.Error()
				}
				results[i] = result{est: est, outcome: out}
			}
		}()
	}
	for i := range segments {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var all Estimate
	outcomes := make([]Outcome, len(segments))
	for i, r := range results {
		all = append(all, r.est...)
		outcomes[i] = r.outcome
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
	return all, outcomes
}
