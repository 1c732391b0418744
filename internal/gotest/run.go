package gotest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/sourcegraph/conc/pool"

	"github.com/unbound-force/verdict/internal/execution"
)

// Options configures a go test invocation.
type Options struct {
	// Dir is the working directory go test runs in. Empty means the
	// current directory.
	Dir string

	// Packages are the package patterns to test. Default: ./...
	Packages []string

	// Args holds extra go test flags as a single shell-quoted string,
	// e.g. `-run 'TestA|TestB' -count=2`.
	Args string

	// Parallel is the number of package patterns tested concurrently,
	// each by its own go test process. Values below 2 run all patterns
	// in one process.
	Parallel int

	// GoBinary is the go command to run. Default: go
	GoBinary string
}

// RunResult is the outcome of running go test.
type RunResult struct {
	// Records holds one record per completed test run, ordered by
	// pattern and then by completion.
	Records []execution.Record

	// Failed reports whether any go test process exited non-zero.
	Failed bool

	// Pending counts tests that never completed.
	Pending int
}

// Run executes "go test -json" and parses its output into records.
// A non-zero exit caused by failing tests is reported through
// RunResult.Failed rather than as an error; an error is returned only
// when go test could not run or produced no events at all.
func Run(ctx context.Context, opts Options) (*RunResult, error) {
	extra, err := shellquote.Split(opts.Args)
	if err != nil {
		return nil, fmt.Errorf("parsing go test arguments %q: %w", opts.Args, err)
	}
	patterns := opts.Packages
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	if opts.Parallel < 2 || len(patterns) == 1 {
		out, err := runOnce(ctx, opts, extra, patterns)
		if err != nil {
			return nil, err
		}
		return &RunResult{Records: out.records, Failed: out.failed, Pending: out.pending}, nil
	}

	p := pool.NewWithResults[patternRun]().
		WithErrors().
		WithFirstError().
		WithMaxGoroutines(opts.Parallel).
		WithContext(ctx).
		WithCancelOnError()
	for i, pattern := range patterns {
		p.Go(func(ctx context.Context) (patternRun, error) {
			out, err := runOnce(ctx, opts, extra, []string{pattern})
			if err != nil {
				return patternRun{}, err
			}
			out.index = i
			return out, nil
		})
	}
	runs, err := p.Wait()
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].index < runs[j].index })
	res := &RunResult{}
	partitions := make([][]execution.Record, 0, len(runs))
	for _, r := range runs {
		partitions = append(partitions, r.records)
		res.Failed = res.Failed || r.failed
		res.Pending += r.pending
	}
	res.Records = execution.Merge(partitions...)
	return res, nil
}

// patternRun is the parsed output of one go test process.
type patternRun struct {
	index   int
	records []execution.Record
	failed  bool
	pending int
}

// Args builds the go test argument list. Patterns go last; go test
// does not accept a "--" separator before them.
func Args(extra, patterns []string) []string {
	args := []string{"test", "-json"}
	args = append(args, extra...)
	return append(args, patterns...)
}

func runOnce(ctx context.Context, opts Options, extra, patterns []string) (patternRun, error) {
	bin := opts.GoBinary
	if bin == "" {
		bin = "go"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, Args(extra, patterns)...)
	cmd.Dir = opts.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return patternRun{}, fmt.Errorf("running %s test %s: %w", bin, strings.Join(patterns, " "), runErr)
	}

	parser := NewParser()
	if err := parser.ReadFrom(&stdout); err != nil {
		return patternRun{}, err
	}
	records := parser.Records()
	if exitErr != nil && len(records) == 0 && parser.Pending() == 0 {
		return patternRun{}, fmt.Errorf("go test %s failed without running tests: %s\n%s",
			strings.Join(patterns, " "), exitErr, strings.TrimSpace(stderr.String()))
	}

	return patternRun{
		records: records,
		failed:  exitErr != nil,
		pending: parser.Pending(),
	}, nil
}
