package tests

import (
	"github.com/BYTE-6D65/driftsync/cmd/scenario-check/framework"
	"github.com/BYTE-6D65/driftsync/pkg/testdata"
)

// NewTest12ClockJump validates segmentation at a receiver clock reset.
//
// Test: 1.2 - Clock Jump
// Category: Drift Recovery
//
// Pass Criteria:
//   - Two segments per channel
//   - Rows between the segments are interpolated, never fitted
//   - Direct rows within 5 ms of truth on both sides of the jump
func NewTest12ClockJump() framework.TestCase {
	return &scenarioCase{
		BaseTestCase: framework.NewBaseTestCase(),
		name:         "1.2: Clock Jump",
		category:     "Drift Recovery",
		description:  "Split at a +0.5 s clock reset and fit each side separately",
		scenario:     testdata.Jump,
		extra: func(tc *framework.BaseTestCase) {
			run := tc.RunResult()
			framework.AssertCountGreaterThan(tc, "Interpolated rows across the jump", 0, run.Stats().Interpolated)
			for _, ch := range run.Channels {
				framework.AssertCountEquals(tc, "Fitted segments in "+ch.Config.Name, 2, fitted(ch.Outcomes))
			}
		},
	}
}
