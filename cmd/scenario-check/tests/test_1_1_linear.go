package tests

import (
	"github.com/BYTE-6D65/driftsync/cmd/scenario-check/framework"
	"github.com/BYTE-6D65/driftsync/pkg/testdata"
)

// NewTest11LinearDrift validates recovery of a constant-rate drift.
//
// Test: 1.1 - Linear Drift
// Category: Drift Recovery
//
// Pass Criteria:
//   - One segment per channel, no missing matches
//   - Every row between the first and last estimate gets a direct offset
//   - Synced timestamps within 5 ms of truth
func NewTest11LinearDrift() framework.TestCase {
	return &scenarioCase{
		BaseTestCase: framework.NewBaseTestCase(),
		name:         "1.1: Linear Drift",
		category:     "Drift Recovery",
		description:  "Recover a 20 ppm drift from clean sync detections",
		scenario:     testdata.Linear,
		extra: func(tc *framework.BaseTestCase) {
			for _, ch := range tc.RunResult().Channels {
				framework.AssertCountEquals(tc, "Missing matches in "+ch.Config.Name, 0, ch.Missing())
			}
		},
	}
}
