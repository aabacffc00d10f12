package tests

import (
	"github.com/BYTE-6D65/driftsync/cmd/scenario-check/framework"
	"github.com/BYTE-6D65/driftsync/pkg/event"
	"github.com/BYTE-6D65/driftsync/pkg/spline"
	"github.com/BYTE-6D65/driftsync/pkg/testdata"
)

// NewTest21SparseDetections validates robustness to lost detections.
//
// Test: 2.1 - Sparse Detections
// Category: Degraded Input
//
// Pass Criteria:
//   - Lost base detections become NO_MATCH_IN_WINDOW diagnostics, not errors
//   - A one hour receiver outage does not split the drift
//   - Synced timestamps within 5 ms of truth
func NewTest21SparseDetections() framework.TestCase {
	return &scenarioCase{
		BaseTestCase: framework.NewBaseTestCase(),
		name:         "2.1: Sparse Detections",
		category:     "Degraded Input",
		description:  "15% reception loss and a receiver outage",
		scenario:     testdata.Sparse,
		extra: func(tc *framework.BaseTestCase) {
			framework.AssertCountGreaterThan(tc, "NO_MATCH_IN_WINDOW diagnostics", 0,
				tc.Engine().Diagnostics().Count(event.CodeNoMatchInWindow))
		},
	}
}

func fitted(outcomes []spline.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == spline.StatusFitted {
			n++
		}
	}
	return n
}
