package framework

import (
	"fmt"
	"math"
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/clock"
	"github.com/BYTE-6D65/driftsync/pkg/combine"
	"github.com/BYTE-6D65/driftsync/pkg/segment"
)

// AssertSegmentsPerChannel checks every channel split into the expected
// number of segments, one more than the jumps in its smoothed series.
func AssertSegmentsPerChannel(tc *BaseTestCase, expected int) {
	for _, ch := range tc.run.Channels {
		AssertCountEquals(tc, fmt.Sprintf("Segments in %s", ch.Config.Name), expected, len(ch.Segments))
		AssertCountEquals(tc, fmt.Sprintf("Jumps in %s", ch.Config.Name), len(ch.Segments)-1, segment.Jumps(ch.Series))
	}
}

// AssertMissingFraction checks the share of unmatched DTD samples per channel.
func AssertMissingFraction(tc *BaseTestCase, max float64) {
	for _, ch := range tc.run.Channels {
		frac := 0.0
		if len(ch.Samples) > 0 {
			frac = float64(ch.Missing()) / float64(len(ch.Samples))
		}
		passed := frac <= max
		message := ""
		if !passed {
			message = fmt.Sprintf("Expected at most %.1f%% missing, got %.1f%%", max*100, frac*100)
		}
		tc.Assert(fmt.Sprintf("Missing matches in %s", ch.Config.Name), fmt.Sprintf("<= %.1f%%", max*100), fmt.Sprintf("%.1f%%", frac*100), passed, message)
	}
}

// AssertNoExtrapolation checks that the first and last rows carrying an
// offset got it directly from both estimates.
func AssertNoExtrapolation(tc *BaseTestCase) {
	first, last := -1, -1
	for i, row := range tc.run.Timeline {
		if row.OffsetValid {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		tc.Assert("Offsets present", "> 0 rows", 0, false, "No row received an offset")
		return
	}
	edge := func(row combine.SyncedRow) bool {
		return !row.Interpolated && row.OffsetAValid && row.OffsetBValid
	}
	AssertTrue(tc, "First offset is direct", edge(tc.run.Timeline[first]), "First row with an offset was interpolated")
	AssertTrue(tc, "Last offset is direct", edge(tc.run.Timeline[last]), "Last row with an offset was interpolated")
}

// AssertSyncError checks the worst deviation of synced timestamps from
// ground truth over rows with a direct offset, and returns it.
func AssertSyncError(tc *BaseTestCase, max time.Duration) time.Duration {
	var worst time.Duration
	checked := 0
	for _, row := range tc.run.Timeline {
		if !row.SyncedValid || row.Interpolated {
			continue
		}
		truth, ok := tc.dataset.Truth[row.Timestamp.UnixNano()]
		if !ok {
			continue
		}
		checked++
		if d := row.Synced.Sub(truth).Abs(); d > worst {
			worst = d
		}
	}
	AssertCountGreaterThan(tc, "Rows checked against truth", 0, checked)
	AssertDurationLessThan(tc, "Worst sync error", max, worst)
	return worst
}

// AssertTruerAccuracy corrects instants between detections through the
// receiver's drift curve and compares them with the simulated clock. Only
// midpoints of adjacent direct rows on the same side of a jump are checked.
// The base receiver must map onto itself.
func AssertTruerAccuracy(tc *BaseTestCase, max time.Duration) time.Duration {
	baseTruer, err := tc.run.Truer(tc.run.Base)
	if err != nil {
		AssertTrue(tc, "Base truer available", false, err.Error())
		return 0
	}
	if len(tc.run.Timeline) > 0 {
		at := clock.FromTime(tc.run.Timeline[0].Timestamp)
		ref, ok := baseTruer.True(at)
		AssertTrue(tc, "Base truer is identity", ok && ref == at, fmt.Sprintf("Base truer moved %v", ref.Time().Sub(at.Time())))
	}

	truer, err := tc.run.Truer(tc.run.Receiver)
	if err != nil {
		AssertTrue(tc, "Receiver truer available", false, err.Error())
		return 0
	}
	var (
		worst   time.Duration
		checked int
		prev    *combine.SyncedRow
	)
	for i := range tc.run.Timeline {
		row := &tc.run.Timeline[i]
		if !row.OffsetValid || row.Interpolated {
			prev = nil
			continue
		}
		if prev != nil && math.Abs(row.Offset-prev.Offset) < segment.JumpThreshold {
			mid := prev.Timestamp.Add(row.Timestamp.Sub(prev.Timestamp) / 2)
			if ref, ok := truer.True(clock.FromTime(mid)); ok {
				truth := mid.Add(-tc.scenario.Drift.Drift(mid))
				checked++
				if d := ref.Time().Sub(truth).Abs(); d > worst {
					worst = d
				}
			}
		}
		prev = row
	}
	AssertCountGreaterThan(tc, "Instants corrected between rows", 0, checked)
	AssertDurationLessThan(tc, "Worst corrected instant error", max, worst)
	return worst
}

// AssertVerificationCentred checks that the verification residuals of the
// two channels average to zero within tolerance. Each channel alone is
// biased by the propagation delay, with opposite signs.
func AssertVerificationCentred(tc *BaseTestCase, tolerance time.Duration) {
	v := tc.run.Verification
	if len(v) != 2 {
		tc.Assert("Verification reports", 2, len(v), false, "Verification did not run")
		return
	}
	centre := (v[0].Mean + v[1].Mean) / 2
	passed := math.Abs(centre) <= tolerance.Seconds()
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected |centre| <= %gs, got %gs (means %g, %g)", tolerance.Seconds(), centre, v[0].Mean, v[1].Mean)
	}
	tc.Assert("Verification centred", fmt.Sprintf("|x| <= %gs", tolerance.Seconds()), fmt.Sprintf("%gs", centre), passed, message)
}

// AssertDurationLessThan checks if duration is less than max.
func AssertDurationLessThan(tc *BaseTestCase, name string, max, actual time.Duration) {
	passed := actual < max
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected duration < %s, got %s", max, actual)
	}
	tc.Assert(name, fmt.Sprintf("< %s", max), actual.String(), passed, message)
}

// AssertTrue checks if condition is true.
func AssertTrue(tc *BaseTestCase, name string, condition bool, message string) {
	tc.Assert(name, true, condition, condition, message)
}

// AssertEquals checks if two values are equal.
func AssertEquals(tc *BaseTestCase, name string, expected, actual any) {
	passed := expected == actual
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected %v, got %v", expected, actual)
	}
	tc.Assert(name, expected, actual, passed, message)
}

// AssertCountEquals checks if count matches expected.
func AssertCountEquals(tc *BaseTestCase, name string, expected, actual int) {
	passed := expected == actual
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected %d, got %d", expected, actual)
	}
	tc.Assert(name, expected, actual, passed, message)
}

// AssertCountGreaterThan checks if count is greater than minimum.
func AssertCountGreaterThan(tc *BaseTestCase, name string, min, actual int) {
	passed := actual > min
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected count > %d, got %d", min, actual)
	}
	tc.Assert(name, fmt.Sprintf("> %d", min), actual, passed, message)
}

// AssertCountInRange checks if count is within range.
func AssertCountInRange(tc *BaseTestCase, name string, min, max, actual int) {
	passed := actual >= min && actual <= max
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected count in [%d, %d], got %d", min, max, actual)
	}
	tc.Assert(name, fmt.Sprintf("[%d, %d]", min, max), actual, passed, message)
}
