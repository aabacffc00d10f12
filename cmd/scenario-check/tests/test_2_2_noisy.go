package tests

import (
	"time"

	"github.com/BYTE-6D65/driftsync/cmd/scenario-check/framework"
	"github.com/BYTE-6D65/driftsync/pkg/testdata"
)

// NewTest22NoisyTimestamps validates smoothing of timestamp jitter.
//
// Test: 2.2 - Noisy Timestamps
// Category: Degraded Input
//
// Pass Criteria:
//   - Jitter below the outlier limit removes no samples
//   - Verification spread stays within twice the jitter amplitude
//   - Synced timestamps within 5 ms of truth
func NewTest22NoisyTimestamps() framework.TestCase {
	return &scenarioCase{
		BaseTestCase: framework.NewBaseTestCase(),
		name:         "2.2: Noisy Timestamps",
		category:     "Degraded Input",
		description:  "±2 ms reception jitter on every detection",
		scenario:     testdata.Noisy,
		extra: func(tc *framework.BaseTestCase) {
			jitter := tc.Scenario().Jitter
			for _, v := range tc.RunResult().Verification {
				framework.AssertDurationLessThan(tc, "Verification std in "+v.Channel, 2*jitter,
					time.Duration(v.Std*float64(time.Second)))
			}
		},
	}
}
