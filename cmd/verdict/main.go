package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/unbound-force/verdict/internal/engine"
	"github.com/unbound-force/verdict/internal/execution"
	"github.com/unbound-force/verdict/internal/gotest"
	"github.com/unbound-force/verdict/internal/plan"
	"github.com/unbound-force/verdict/internal/report"
	"github.com/unbound-force/verdict/internal/scaffold"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

// errTestsFailed signals a failing test run. It maps to exit code 1
// without being reported as a tool error.
var errTestsFailed = errors.New("tests failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "verdict",
		Short: "Verdict: test execution results, aggregated per test case",
		Long: `Verdict folds test execution records (including retries and
data-driven iterations) into one verdict per logical test case and
writes a JSON report keyed by test-case identifier.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(charmlog.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"log every test execution and plan lookup")

	root.AddCommand(newReportCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newViewCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newSchemaCmd())
	return root
}

// reportParams holds the parsed flags for the report command.
type reportParams struct {
	input      string
	goTestJSON string
	planPath   string
	output     string
	format     string
	strict     bool
	dryRun     bool
	stdout     io.Writer
}

// runReport is the extracted, testable body of the report command.
func runReport(p reportParams) error {
	if err := checkFormat(p.format); err != nil {
		return err
	}
	if (p.input == "") == (p.goTestJSON == "") {
		return fmt.Errorf("exactly one of --input or --go-test-json is required")
	}

	records, err := loadRecords(p.input, p.goTestJSON)
	if err != nil {
		return err
	}
	logger.Info("generating report", "records", len(records))

	sum, genErr := engine.Generate(records, engine.Options{
		PlanPath:   p.planPath,
		OutputPath: p.output,
		DryRun:     p.dryRun,
		Logger:     logger,
	})
	if err := writeSummary(p.stdout, p.format, sum); err != nil {
		return err
	}
	if genErr != nil && p.strict {
		return genErr
	}
	return nil
}

// loadRecords reads either a JSON-lines record stream or a go test
// -json event stream.
func loadRecords(input, goTestJSON string) ([]execution.Record, error) {
	if goTestJSON != "" {
		return gotest.ParseFile(goTestJSON)
	}
	records, bad, err := execution.ReadRecordsFile(input)
	if err != nil {
		return nil, err
	}
	for _, le := range bad {
		logger.Warn("skipping undecodable record", "input", input, "line", le.Line, "err", le.Err)
	}
	return records, nil
}

func checkFormat(format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", format)
	}
	return nil
}

// writeSummary outputs the generated report in the requested format.
func writeSummary(w io.Writer, format string, sum *engine.Summary) error {
	if format == "json" {
		return report.WriteJSON(w, sum.Document)
	}
	if err := report.WriteText(w, sum.Document); err != nil {
		return err
	}
	report.WriteErrors(w, sum.Document)
	if sum.Skipped > 0 {
		fmt.Fprintf(w, "    %d malformed record(s) skipped\n", sum.Skipped)
	}
	if sum.Persisted {
		fmt.Fprintf(w, "    Report: %s\n", sum.Path)
	}
	return nil
}

func newReportCmd() *cobra.Command {
	var p reportParams

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate execution records into a test results report",
		Long: `Read execution records and write the aggregated test results
report. Records come either as JSON lines (--input) or as the
output of "go test -json" (--go-test-json). Use "-" to read stdin.

A missing plan document is not an error: test cases are then
reported under "Unknown". A report that cannot be written is
logged; use --strict to turn that into a non-zero exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.stdout = cmd.OutOrStdout()
			return runReport(p)
		},
	}

	cmd.Flags().StringVarP(&p.input, "input", "i", "",
		"JSON-lines execution records")
	cmd.Flags().StringVar(&p.goTestJSON, "go-test-json", "",
		"go test -json output")
	cmd.Flags().StringVar(&p.planPath, "plan", plan.DefaultFileName,
		"plan document mapping test methods to test-case IDs")
	cmd.Flags().StringVarP(&p.output, "output", "o", report.DefaultPath,
		"report file to write")
	cmd.Flags().StringVar(&p.format, "format", "text",
		"summary format on stdout: text or json")
	cmd.Flags().BoolVar(&p.strict, "strict", false,
		"exit non-zero when the report cannot be written")
	cmd.Flags().BoolVar(&p.dryRun, "dry-run", false,
		"aggregate and print without writing the report file")

	return cmd
}

// runParams holds the parsed flags for the run command.
type runParams struct {
	patterns []string
	args     string
	parallel int
	dir      string
	planPath string
	output   string
	format   string
	goBinary string
	stdout   io.Writer
}

// runRun is the extracted, testable body of the run command. Its
// error reflects the test run only: a report that cannot be written
// is logged and does not change the outcome.
func runRun(ctx context.Context, p runParams) error {
	if err := checkFormat(p.format); err != nil {
		return err
	}

	logger.Info("running tests", "patterns", p.patterns)
	res, err := gotest.Run(ctx, gotest.Options{
		Dir:      p.dir,
		Packages: p.patterns,
		Args:     p.args,
		Parallel: p.parallel,
		GoBinary: p.goBinary,
	})
	if err != nil {
		return err
	}
	if res.Pending > 0 {
		logger.Warn("tests did not complete", "count", res.Pending)
	}

	sum, _ := engine.Generate(res.Records, engine.Options{
		PlanPath:   p.planPath,
		OutputPath: p.output,
		Logger:     logger,
	})
	if err := writeSummary(p.stdout, p.format, sum); err != nil {
		logger.Error("writing summary", "err", err)
	}

	if res.Failed {
		return errTestsFailed
	}
	return nil
}

func newRunCmd() *cobra.Command {
	var p runParams

	cmd := &cobra.Command{
		Use:   "run [packages...]",
		Short: "Run go test and report the results",
		Long: `Run "go test -json" on the given package patterns (default ./...)
and write the aggregated report. Subtests are reported as
data-driven iterations of their top-level test.

The exit code follows the tests: it is non-zero when go test
fails, and unaffected by problems writing the report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.patterns = args
			p.stdout = cmd.OutOrStdout()
			return runRun(cmd.Context(), p)
		},
	}

	cmd.Flags().StringVar(&p.args, "args", "",
		`extra go test flags, shell-quoted (e.g. "-run 'TestA|TestB' -count=2")`)
	cmd.Flags().IntVarP(&p.parallel, "parallel", "p", 1,
		"number of package patterns tested concurrently")
	cmd.Flags().StringVarP(&p.dir, "dir", "C", "",
		"directory to run go test in")
	cmd.Flags().StringVar(&p.planPath, "plan", plan.DefaultFileName,
		"plan document mapping test methods to test-case IDs")
	cmd.Flags().StringVarP(&p.output, "output", "o", report.DefaultPath,
		"report file to write")
	cmd.Flags().StringVar(&p.format, "format", "text",
		"summary format on stdout: text or json")
	cmd.Flags().StringVar(&p.goBinary, "go", "go",
		"go command to run")

	return cmd
}

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <report>",
		Short: "Browse a test results report interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := report.Read(args[0])
			if err != nil {
				return err
			}
			return runInteractiveView(doc)
		},
	}
}

// runValidate is the extracted, testable body of the validate command.
func runValidate(path string, stdout io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading report %q: %w", path, err)
	}
	if err := report.Validate(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(stdout, "%s: valid\n", path)
	return nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <report>...",
		Short: "Check reports against the report JSON Schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed []string
			for _, path := range args {
				if err := runValidate(path, cmd.OutOrStdout()); err != nil {
					logger.Error("invalid report", "err", err)
					failed = append(failed, path)
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("invalid report(s): %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	var opts scaffold.Options

	cmd := &cobra.Command{
		Use:   "init [packages...]",
		Short: "Write a starter plan document for the project's tests",
		Long: `Discover the test functions of the given package patterns
(default ./...) and write a plan document assigning each one a
test-case ID (TC-001, TC-002, ...). An existing plan is kept
unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Packages = args
			opts.Stdout = cmd.OutOrStdout()
			_, err := scaffold.Run(opts)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Path, "plan", plan.DefaultFileName,
		"plan document to write (.json for JSON, otherwise YAML)")
	cmd.Flags().BoolVar(&opts.Force, "force", false,
		"overwrite an existing plan document")
	cmd.Flags().StringVar(&opts.PlanName, "plan-name", "",
		"testPlanName of the generated document")
	cmd.Flags().StringVar(&opts.SuiteName, "suite-name", "",
		"testSuiteName of the generated document")
	cmd.Flags().StringVarP(&opts.TargetDir, "dir", "C", "",
		"project root (default: current directory)")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	var planSchema bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for test results reports",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the
structure of the test results report. With --plan, print the
schema of plan documents instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := report.Schema
			if planSchema {
				s = plan.Schema
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		},
	}
	cmd.Flags().BoolVar(&planSchema, "plan", false, "print the plan document schema")
	return cmd
}
