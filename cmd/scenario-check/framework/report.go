package framework

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// TestReport collects the results of a suite run.
type TestReport struct {
	SuiteName string        `json:"suite_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration,format:nano"`
	Results   []*TestResult `json:"results"`
}

// NewTestReport creates a new test report.
func NewTestReport(suiteName string) *TestReport {
	return &TestReport{
		SuiteName: suiteName,
		StartTime: time.Now(),
		Results:   make([]*TestResult, 0),
	}
}

// AddResult adds a test result to the report.
func (r *TestReport) AddResult(result *TestResult) {
	r.Results = append(r.Results, result)
}

// Finish marks the report as complete.
func (r *TestReport) Finish() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// TotalTests returns the total number of tests.
func (r *TestReport) TotalTests() int {
	return len(r.Results)
}

// PassedTests returns the number of passed tests.
func (r *TestReport) PassedTests() int {
	count := 0
	for _, result := range r.Results {
		if result.Passed {
			count++
		}
	}
	return count
}

// FailedTests returns the number of failed tests.
func (r *TestReport) FailedTests() int {
	return r.TotalTests() - r.PassedTests()
}

// PassRate returns the percentage of passed tests.
func (r *TestReport) PassRate() float64 {
	if r.TotalTests() == 0 {
		return 0
	}
	return float64(r.PassedTests()) / float64(r.TotalTests()) * 100
}

// PrintSummary prints one line per test, grouped by category, and totals.
func (r *TestReport) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "=== %s ===\n\n", r.SuiteName)

	byCategory := make(map[string][]*TestResult)
	for _, result := range r.Results {
		byCategory[result.Category] = append(byCategory[result.Category], result)
	}

	for _, category := range sortedKeys(byCategory) {
		fmt.Fprintf(w, "Category: %s\n", category)
		for _, result := range byCategory[category] {
			fmt.Fprintf(w, "  %s %s (%d/%d assertions, %s)", statusLabel(result.Passed), result.TestName,
				result.PassedAssertions(), len(result.Assertions), result.Duration.Round(time.Millisecond))
			if worst, ok := result.Metrics["worst_sync_error"]; ok {
				fmt.Fprintf(w, " worst sync error %v", worst)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "=== Summary ===\n")
	fmt.Fprintf(w, "Total:     %d\n", r.TotalTests())
	fmt.Fprintf(w, "Passed:    %d\n", r.PassedTests())
	fmt.Fprintf(w, "Failed:    %d\n", r.FailedTests())
	fmt.Fprintf(w, "Pass Rate: %.1f%%\n", r.PassRate())
	fmt.Fprintf(w, "Duration:  %s\n\n", r.Duration.Round(time.Millisecond))

	if r.FailedTests() == 0 {
		fmt.Fprintf(w, "All scenarios PASSED ✅\n")
	} else {
		fmt.Fprintf(w, "%d scenario(s) FAILED ❌\n", r.FailedTests())
	}
}

// PrintDetailed prints every assertion, metric, error and warning, then
// the summary.
func (r *TestReport) PrintDetailed(w io.Writer) {
	fmt.Fprintf(w, "=== %s - Detailed Results ===\n\n", r.SuiteName)

	for _, result := range r.Results {
		printTestResult(w, result)
	}

	r.PrintSummary(w)
}

func printTestResult(w io.Writer, result *TestResult) {
	fmt.Fprintf(w, "%s %s\n", statusLabel(result.Passed), result.TestName)
	fmt.Fprintf(w, "Category: %s | Duration: %s\n\n", result.Category, result.Duration.Round(time.Millisecond))

	if len(result.Assertions) > 0 {
		fmt.Fprintf(w, "Assertions:\n")
		for i, a := range result.Assertions {
			mark := "✓"
			if !a.Passed {
				mark = "✗"
			}
			fmt.Fprintf(w, "  %2d. %s %s (expected %v, actual %v)\n", i+1, mark, a.Name, a.Expected, a.Actual)
			if !a.Passed && a.Message != "" {
				fmt.Fprintf(w, "      %s\n", a.Message)
			}
		}
		fmt.Fprintln(w)
	}

	if len(result.Metrics) > 0 {
		fmt.Fprintf(w, "Metrics:\n")
		for _, k := range sortedKeys(result.Metrics) {
			fmt.Fprintf(w, "  %s: %v\n", k, result.Metrics[k])
		}
		fmt.Fprintln(w)
	}

	for _, list := range []struct {
		title string
		items []string
	}{{"Errors", result.Errors}, {"Warnings", result.Warnings}} {
		if len(list.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", list.title)
		for i, item := range list.items {
			fmt.Fprintf(w, "  %d. %s\n", i+1, item)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%s\n\n", strings.Repeat("-", 80))
}

// PrintJSON prints results as JSON to the writer.
func (r *TestReport) PrintJSON(w io.Writer) error {
	return json.MarshalWrite(w, r, jsontext.WithIndent("  "))
}

func statusLabel(passed bool) string {
	if passed {
		return "[PASS] ✅"
	}
	return "[FAIL] ❌"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
