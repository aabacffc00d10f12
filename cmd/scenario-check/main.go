package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BYTE-6D65/driftsync/cmd/scenario-check/framework"
	"github.com/BYTE-6D65/driftsync/cmd/scenario-check/tests"
	"github.com/BYTE-6D65/driftsync/pkg/logging"
)

const suiteName = "Drift Sync Scenario Suite"

func main() {
	var (
		runAll     = flag.Bool("all", false, "Run all scenarios")
		category   = flag.String("category", "", "Run scenarios in a category")
		testName   = flag.String("test", "", "Run a specific scenario (e.g., 1.1)")
		verbose    = flag.Bool("verbose", false, "Verbose output with engine logs")
		reportType = flag.String("report", "summary", "Report type: summary, detailed, json")
		timeout    = flag.Duration("timeout", 2*time.Minute, "Timeout per scenario")
	)
	flag.Parse()

	if !*runAll && *category == "" && *testName == "" {
		fmt.Println("Error: Must specify --all, --category, or --test")
		flag.Usage()
		os.Exit(1)
	}

	if *verbose {
		tests.Logger = logging.New(logging.Options{Level: logging.DEBUG})
	}

	testsToRun := filterTests(buildTestRegistry(), *runAll, *category, *testName)
	if len(testsToRun) == 0 {
		fmt.Println("No scenarios match the specified criteria")
		fmt.Printf("Available: %s\n", strings.Join(names(buildTestRegistry()), ", "))
		os.Exit(1)
	}

	report := framework.NewTestReport(suiteName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("=== %s ===\n\n", suiteName)
	fmt.Printf("Running %d scenario(s)...\n\n", len(testsToRun))

	for i, test := range testsToRun {
		if ctx.Err() != nil {
			fmt.Println("Scenarios interrupted")
			break
		}

		fmt.Printf("[%d/%d] Running: %s...\n", i+1, len(testsToRun), test.Name())
		result := runTest(ctx, test, *timeout)
		report.AddResult(result)

		if result.Passed {
			fmt.Printf("  PASS (%s)\n", result.Duration)
		} else {
			fmt.Printf("  FAIL (%s)\n", result.Duration)
			if !*verbose {
				for _, a := range result.Assertions {
					if !a.Passed {
						fmt.Printf("    x %s\n", a.Name)
						if a.Message != "" {
							fmt.Printf("      %s\n", a.Message)
						}
					}
				}
				for _, e := range result.Errors {
					fmt.Printf("    error: %s\n", e)
				}
			}
		}
		fmt.Println()
	}

	report.Finish()

	fmt.Println()
	switch *reportType {
	case "summary":
		report.PrintSummary(os.Stdout)
	case "detailed":
		report.PrintDetailed(os.Stdout)
	case "json":
		if err := report.PrintJSON(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error printing JSON report: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown report type: %s\n", *reportType)
		os.Exit(1)
	}

	if report.FailedTests() > 0 {
		os.Exit(1)
	}
}

// runTest executes a single scenario with a timeout.
func runTest(ctx context.Context, test framework.TestCase, timeout time.Duration) *framework.TestResult {
	testCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := test.Setup(testCtx); err != nil {
		result := framework.NewTestResult(test.Name(), test.Category())
		result.AddError(fmt.Errorf("setup failed: %w", err))
		result.Finish()
		return result
	}

	defer func() {
		if err := test.Teardown(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Teardown failed for %s: %v\n", test.Name(), err)
		}
	}()

	if err := test.Run(testCtx); err != nil {
		result := framework.NewTestResult(test.Name(), test.Category())
		result.AddError(fmt.Errorf("run failed: %w", err))
		result.Finish()
		return result
	}

	return test.Validate()
}

func buildTestRegistry() []framework.TestCase {
	return []framework.TestCase{
		// Category: Drift Recovery
		tests.NewTest11LinearDrift(),
		tests.NewTest12ClockJump(),

		// Category: Degraded Input
		tests.NewTest21SparseDetections(),
		tests.NewTest22NoisyTimestamps(),
	}
}

// filterTests selects scenarios by name prefix or category prefix.
func filterTests(registry []framework.TestCase, all bool, category, testName string) []framework.TestCase {
	if all {
		return registry
	}

	var filtered []framework.TestCase
	for _, test := range registry {
		switch {
		case testName != "":
			if strings.HasPrefix(test.Name(), testName) {
				filtered = append(filtered, test)
			}
		case category != "":
			if strings.HasPrefix(test.Category(), category) {
				filtered = append(filtered, test)
			}
		}
	}
	return filtered
}

// names returns the scenario names in registry order.
func names(tests []framework.TestCase) []string {
	out := make([]string, len(tests))
	for i, test := range tests {
		out[i] = test.Name()
	}
	return out
}
