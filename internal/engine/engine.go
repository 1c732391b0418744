// Package engine generates a test results report from a batch of
// execution records: it loads the plan, resolves every record to its
// test case, folds the records into per-test-case aggregates, and
// persists the rendered report.
//
// Generation never panics and never fails the caller's test run. Every
// problem is logged; the ones that prevent a report from being written
// are also returned.
package engine

import (
	"errors"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/verdict/internal/aggregate"
	"github.com/unbound-force/verdict/internal/execution"
	"github.com/unbound-force/verdict/internal/plan"
	"github.com/unbound-force/verdict/internal/report"
)

// Options configures report generation.
type Options struct {
	// PlanPath is the plan document to load. Default:
	// plan.DefaultFileName in the working directory.
	PlanPath string

	// Plan, when set, is used instead of loading PlanPath.
	Plan *plan.Suite

	// OutputPath is where the report is written. Default:
	// report.DefaultPath.
	OutputPath string

	// DryRun renders the report without writing it.
	DryRun bool

	// Logger receives lifecycle and diagnostic messages. Default:
	// log.Default().
	Logger *log.Logger
}

// Summary describes one report generation.
type Summary struct {
	// Path is the file the report was written to, or would have been.
	Path string

	// Document is the rendered report.
	Document report.Document

	// Counts holds the number of test cases per aggregate outcome.
	Counts map[execution.Outcome]int

	// Records is the number of records received.
	Records int

	// Skipped is the number of malformed records left out.
	Skipped int

	// Persisted reports whether the report file was written.
	Persisted bool

	// PlanFallback reports whether the fallback plan was used.
	PlanFallback bool
}

// Generate builds the report for records and writes it. The returned
// Summary is never nil. The error is non-nil only when the report
// could not be rendered or written; the summary then still carries the
// aggregated document.
func Generate(records []execution.Record, opts Options) (*Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	out := opts.OutputPath
	if out == "" {
		out = report.DefaultPath
	}

	suite, fallback := loadPlan(opts, logger)
	sum := &Summary{
		Path:         out,
		Records:      len(records),
		PlanFallback: fallback,
	}

	resolver := plan.NewResolver(suite)
	agg := aggregate.New()
	for _, rec := range execution.Chronological(records) {
		logRecord(logger, rec)
		id := resolver.Resolve(rec.Method)
		if _, err := agg.Fold(id, rec); err != nil {
			sum.Skipped++
			logger.Warn("skipping record", "method", rec.Method, "status", rec.Status, "err", err)
			continue
		}
	}

	sum.Document = report.NewDocument(suite.TestPlanName, suite.TestSuiteName, agg.Results())
	sum.Counts = agg.Counts()

	data, err := report.Marshal(sum.Document)
	if err != nil {
		logger.Error("rendering report", "err", err)
		return sum, err
	}
	if opts.DryRun {
		logger.Debug("dry run, report not written", "path", out)
		return sum, nil
	}
	if err := report.Persist(data, out); err != nil {
		logger.Error("report not written", "path", out, "err", err)
		return sum, err
	}
	sum.Persisted = true
	logger.Info("report written", "path", out, "testCases", len(sum.Document.TestResults))
	return sum, nil
}

// loadPlan returns the plan to resolve against and whether it is the
// fallback plan.
func loadPlan(opts Options, logger *log.Logger) (*plan.Suite, bool) {
	if opts.Plan != nil {
		return opts.Plan, false
	}
	path := opts.PlanPath
	if path == "" {
		path = plan.DefaultFileName
	}

	suite, err := plan.Load(path)
	switch {
	case err == nil:
		logger.Debug("loaded plan", "path", path, "testCases", len(suite.TestCases))
		return suite, false
	case errors.Is(err, plan.ErrNotFound):
		logger.Warn("plan document not found, test cases resolve to "+plan.UnknownTestCase, "path", path)
	default:
		logger.Error("plan document unusable, test cases resolve to "+plan.UnknownTestCase, "path", path, "err", err)
	}
	return plan.Default(), true
}

// logRecord writes the lifecycle line of one test execution.
func logRecord(logger *log.Logger, rec execution.Record) {
	kv := []any{"method", rec.Method}
	if p := rec.ParameterString(); p != "" {
		kv = append(kv, "params", p)
	}
	switch rec.Status {
	case execution.StatusSuccess:
		logger.Debug("test passed", kv...)
	case execution.StatusFailure:
		logger.Debug("test failed", append(kv, "cause", rec.Failure.Describe())...)
	case execution.StatusSkip:
		logger.Debug("test skipped", kv...)
	default:
		logger.Debug("test finished", append(kv, "status", rec.Status)...)
	}
}
