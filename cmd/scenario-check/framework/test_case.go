package framework

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BYTE-6D65/driftsync/pkg/engine"
	"github.com/BYTE-6D65/driftsync/pkg/event"
	"github.com/BYTE-6D65/driftsync/pkg/logging"
	"github.com/BYTE-6D65/driftsync/pkg/telemetry"
	"github.com/BYTE-6D65/driftsync/pkg/testdata"
)

// TestCase defines the interface for all scenario checks.
type TestCase interface {
	// Name returns the test name (e.g., "1.1: Linear Drift")
	Name() string

	// Category returns the test category (e.g., "Drift Recovery")
	Category() string

	// Description returns a brief description of what the test validates
	Description() string

	// Setup generates the scenario and creates the engine
	Setup(ctx context.Context) error

	// Run executes the synchronization
	Run(ctx context.Context) error

	// Teardown releases resources
	Teardown() error

	// Validate checks pass/fail criteria and returns result
	Validate() *TestResult
}

// TestResult contains the outcome of a test execution.
type TestResult struct {
	TestName   string         `json:"test_name"`
	Category   string         `json:"category"`
	Passed     bool           `json:"passed"`
	Duration   time.Duration  `json:"duration,format:nano"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	Assertions []*Assertion   `json:"assertions"`
	Metrics    map[string]any `json:"metrics"`
	Errors     []string       `json:"errors"`
	Warnings   []string       `json:"warnings"`
}

// Assertion represents a single pass/fail check.
type Assertion struct {
	Name     string `json:"name"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
	Critical bool   `json:"critical"`
}

// NewTestResult creates a new test result.
func NewTestResult(testName, category string) *TestResult {
	return &TestResult{
		TestName:   testName,
		Category:   category,
		Passed:     true, // Assume pass until assertion fails
		Assertions: make([]*Assertion, 0),
		Metrics:    make(map[string]any),
		Errors:     make([]string, 0),
		Warnings:   make([]string, 0),
		StartTime:  time.Now(),
	}
}

// AddAssertion adds an assertion to the result.
func (r *TestResult) AddAssertion(a *Assertion) {
	r.Assertions = append(r.Assertions, a)
	if !a.Passed {
		r.Passed = false
	}
}

// AddMetric adds a metric to track.
func (r *TestResult) AddMetric(name string, value any) {
	r.Metrics[name] = value
}

// AddError adds an error. Any error fails the test.
func (r *TestResult) AddError(err error) {
	r.Errors = append(r.Errors, err.Error())
	r.Passed = false
}

// AddWarning adds a warning (doesn't fail the test).
func (r *TestResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Finish marks the test as complete and calculates duration.
func (r *TestResult) Finish() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// PassedAssertions returns the number of passed assertions.
func (r *TestResult) PassedAssertions() int {
	count := 0
	for _, a := range r.Assertions {
		if a.Passed {
			count++
		}
	}
	return count
}

// FailedAssertions returns the number of failed assertions.
func (r *TestResult) FailedAssertions() int {
	return len(r.Assertions) - r.PassedAssertions()
}

// String returns a human-readable summary.
func (r *TestResult) String() string {
	status := "PASS"
	if !r.Passed {
		status = "FAIL"
	}
	return fmt.Sprintf("[%s] %s (%s)", status, r.TestName, r.Duration)
}

// BaseTestCase provides common functionality for tests.
// Embed this in your test implementations.
type BaseTestCase struct {
	engine   *engine.Engine
	config   engine.Config
	registry *prometheus.Registry
	scenario *testdata.Scenario
	dataset  *testdata.Dataset
	run      *engine.Result
	result   *TestResult
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewBaseTestCase creates a new base test case.
func NewBaseTestCase() *BaseTestCase {
	return &BaseTestCase{
		result: NewTestResult("", ""),
	}
}

// Engine returns the test engine.
func (b *BaseTestCase) Engine() *engine.Engine {
	return b.engine
}

// Config returns the run configuration.
func (b *BaseTestCase) Config() engine.Config {
	return b.config
}

// Registry returns the private metrics registry of the test engine.
func (b *BaseTestCase) Registry() *prometheus.Registry {
	return b.registry
}

// Scenario returns the generated scenario.
func (b *BaseTestCase) Scenario() *testdata.Scenario {
	return b.scenario
}

// Dataset returns the generated detections and ground truth.
func (b *BaseTestCase) Dataset() *testdata.Dataset {
	return b.dataset
}

// RunResult returns the engine result, nil before Run.
func (b *BaseTestCase) RunResult() *engine.Result {
	return b.run
}

// Result returns the test result.
func (b *BaseTestCase) Result() *TestResult {
	return b.result
}

// Context returns the test context.
func (b *BaseTestCase) Context() context.Context {
	return b.ctx
}

// ScenarioConfig maps a scenario's suggested parameters onto a run configuration.
func ScenarioConfig(s *testdata.Scenario) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.BaseReceiver = s.Base
	cfg.Receiver = s.Receiver
	cfg.Match.TimeMargin = s.Params.TimeMargin
	for i, tx := range []string{s.BaseTag, s.ReceiverTag} {
		cfg.Channels[i].Transmitter = tx
		cfg.Channels[i].OutlierLim = s.Params.OutlierLim
		cfg.Channels[i].WindowSize = s.Params.Window
		cfg.Channels[i].Degree = s.Params.Degree
		cfg.Channels[i].SmoothingFactor = s.Params.Smoothing
	}
	return cfg
}

// SetupScenario generates the scenario data and creates an engine with a
// private metrics registry.
func (b *BaseTestCase) SetupScenario(ctx context.Context, s *testdata.Scenario, logger *logging.Logger) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.scenario = s
	b.dataset = s.Generate()
	b.config = ScenarioConfig(s)
	if err := b.config.Validate(); err != nil {
		return fmt.Errorf("scenario config: %w", err)
	}

	if logger == nil {
		logger = logging.Discard()
	}
	b.registry = prometheus.NewRegistry()
	b.engine = engine.New(b.config,
		engine.WithLogger(logger),
		engine.WithMetrics(telemetry.InitMetrics(b.registry)),
	)
	return nil
}

// RunScenario synchronizes the generated receiver log onto the base log.
func (b *BaseTestCase) RunScenario(ctx context.Context) error {
	base, err := event.NewLog(b.scenario.Base, b.dataset.Base)
	if err != nil {
		return err
	}
	rec, err := event.NewLog(b.scenario.Receiver, b.dataset.Receiver)
	if err != nil {
		return err
	}
	b.run, err = b.engine.Run(ctx, base, rec)
	return err
}

// TeardownEngine cancels the test context.
func (b *BaseTestCase) TeardownEngine() error {
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}

// Assert adds an assertion to the result.
func (b *BaseTestCase) Assert(name string, expected, actual any, passed bool, message string) {
	b.result.AddAssertion(&Assertion{
		Name:     name,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  message,
		Critical: false,
	})
}

// AssertCritical adds a critical assertion.
func (b *BaseTestCase) AssertCritical(name string, expected, actual any, passed bool, message string) {
	b.result.AddAssertion(&Assertion{
		Name:     name,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  message,
		Critical: true,
	})
}

// Metric adds a metric to track.
func (b *BaseTestCase) Metric(name string, value any) {
	b.result.AddMetric(name, value)
}

// Error adds an error to the result.
func (b *BaseTestCase) Error(err error) {
	b.result.AddError(err)
}

// Warning adds a warning to the result.
func (b *BaseTestCase) Warning(msg string) {
	b.result.AddWarning(msg)
}
