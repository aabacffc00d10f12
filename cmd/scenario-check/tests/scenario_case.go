package tests

import (
	"context"

	"github.com/BYTE-6D65/driftsync/cmd/scenario-check/framework"
	"github.com/BYTE-6D65/driftsync/pkg/event"
	"github.com/BYTE-6D65/driftsync/pkg/logging"
	"github.com/BYTE-6D65/driftsync/pkg/testdata"
)

// Logger is passed to every scenario engine; nil discards engine logs.
var Logger *logging.Logger

// scenarioCase runs one synthetic scenario end to end and applies the
// checks every scenario shares. Tests embed it and add their own.
type scenarioCase struct {
	*framework.BaseTestCase

	name, category, description string
	scenario                    func() *testdata.Scenario
	extra                       func(tc *framework.BaseTestCase)
}

func (t *scenarioCase) Name() string        { return t.name }
func (t *scenarioCase) Category() string    { return t.category }
func (t *scenarioCase) Description() string { return t.description }

func (t *scenarioCase) Setup(ctx context.Context) error {
	return t.SetupScenario(ctx, t.scenario(), Logger)
}

func (t *scenarioCase) Run(ctx context.Context) error {
	return t.RunScenario(ctx)
}

func (t *scenarioCase) Teardown() error {
	return t.TeardownEngine()
}

func (t *scenarioCase) Validate() *framework.TestResult {
	result := t.Result()
	result.TestName = t.Name()
	result.Category = t.Category()

	s := t.Scenario()
	run := t.RunResult()
	tc := t.BaseTestCase

	t.Metric("base_detections", len(t.Dataset().Base))
	t.Metric("receiver_detections", len(t.Dataset().Receiver))
	stats := run.Stats()
	t.Metric("rows_direct", stats.Direct)
	t.Metric("rows_interpolated", stats.Interpolated)
	t.Metric("rows_missing", stats.Missing)
	for _, c := range run.Summary {
		t.Metric("diag_"+c.Code, c.Count)
	}

	framework.AssertSegmentsPerChannel(tc, s.Expect.Segments)
	framework.AssertMissingFraction(tc, s.Expect.MaxMissingFraction)
	framework.AssertNoExtrapolation(tc)
	worst := framework.AssertSyncError(tc, s.Expect.MaxSyncError)
	t.Metric("worst_sync_error", worst.String())
	t.Metric("worst_corrected_error", framework.AssertTruerAccuracy(tc, s.Expect.MaxSyncError).String())
	framework.AssertVerificationCentred(tc, s.Expect.MaxSyncError)
	framework.AssertEquals(tc, "Diagnostics without malformed input", 0,
		t.Engine().Diagnostics().Count(event.CodeMalformedInput))

	if t.extra != nil {
		t.extra(tc)
	}

	result.Finish()
	return result
}
