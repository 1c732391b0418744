// Package scaffold writes a starter plan document that maps every
// test function of a project to a generated test-case identifier.
package scaffold

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/unbound-force/verdict/internal/loader"
	"github.com/unbound-force/verdict/internal/plan"
)

// Options configures the scaffold operation.
type Options struct {
	// TargetDir is the project root. Packages are resolved and the
	// plan is written relative to it. Defaults to the current working
	// directory.
	TargetDir string

	// Packages are the package patterns to discover tests in.
	// Default: ./...
	Packages []string

	// Path is the plan document to write, relative to TargetDir.
	// Default: plan.DefaultFileName. A ".json" extension writes JSON,
	// anything else YAML.
	Path string

	// Force overwrites an existing plan when true.
	// When false, an existing plan is left untouched.
	Force bool

	// PlanName and SuiteName fill the document header.
	PlanName  string
	SuiteName string

	// Stdout is the writer for summary output.
	// Defaults to os.Stdout.
	Stdout io.Writer

	// discover replaces loader.Tests in tests.
	discover func(dir string, patterns ...string) ([]loader.TestFunc, error)
}

// Result reports what the scaffold operation did.
type Result struct {
	// Path is the plan document location.
	Path string

	// Created, Skipped and Overwritten report what happened to Path.
	// Exactly one is true.
	Created     bool
	Skipped     bool
	Overwritten bool

	// Suite is the generated plan. It is set even when the file was
	// skipped.
	Suite *plan.Suite

	// Duplicates lists test function names declared in more than one
	// package. Only the first declaration is mapped.
	Duplicates []string
}

// Run discovers the test functions under opts.Packages and writes a
// plan document assigning them TC-001, TC-002, ... in discovery order.
//
// If the plan already exists and opts.Force is false, the file is
// skipped. If opts.Force is true, the file is overwritten.
func Run(opts Options) (*Result, error) {
	if opts.TargetDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		opts.TargetDir = cwd
	}
	if opts.Path == "" {
		opts.Path = plan.DefaultFileName
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.discover == nil {
		opts.discover = loader.Tests
	}

	// Check for go.mod and warn if absent.
	goModPath := filepath.Join(opts.TargetDir, "go.mod")
	if _, err := os.Stat(goModPath); os.IsNotExist(err) {
		fmt.Fprintln(opts.Stdout, "Warning: no go.mod found in target directory.")
		fmt.Fprintln(opts.Stdout, "Test discovery works best in a Go module root.")
		fmt.Fprintln(opts.Stdout)
	}

	funcs, err := opts.discover(opts.TargetDir, opts.Packages...)
	if err != nil {
		return nil, fmt.Errorf("discovering tests: %w", err)
	}

	result := &Result{Path: opts.Path}
	result.Suite, result.Duplicates = Build(funcs, opts.PlanName, opts.SuiteName)

	outPath := opts.Path
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(opts.TargetDir, outPath)
	}
	_, statErr := os.Stat(outPath)
	exists := statErr == nil

	if exists && !opts.Force {
		result.Skipped = true
		printSummary(opts.Stdout, result)
		return result, nil
	}

	data, err := plan.Encode(result.Suite, outPath)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("creating %s: %w", opts.Path, err)
	}

	if exists {
		result.Overwritten = true
	} else {
		result.Created = true
	}
	printSummary(opts.Stdout, result)
	return result, nil
}

// Build assigns sequential test-case IDs to funcs. It returns the
// suite and the names that were declared more than once.
func Build(funcs []loader.TestFunc, planName, suiteName string) (*plan.Suite, []string) {
	s := plan.Default()
	if planName != "" {
		s.TestPlanName = planName
	}
	if suiteName != "" {
		s.TestSuiteName = suiteName
	}

	var dups []string
	for _, f := range funcs {
		if _, ok := s.TestCases[f.Name]; ok {
			dups = append(dups, f.Name)
			continue
		}
		s.TestCases[f.Name] = plan.TestCase{
			TestCaseID: fmt.Sprintf("TC-%03d", len(s.TestCases)+1),
		}
	}
	return s, dups
}

// printSummary writes a human-readable summary of the scaffold
// operation to w.
func printSummary(w io.Writer, r *Result) {
	fmt.Fprintln(w, "Test plan initialized:")

	switch {
	case r.Created:
		fmt.Fprintf(w, "  created: %s\n", r.Path)
	case r.Skipped:
		fmt.Fprintf(w, "  skipped: %s (already exists)\n", r.Path)
	case r.Overwritten:
		fmt.Fprintf(w, "  overwritten: %s\n", r.Path)
	}
	fmt.Fprintf(w, "  %d test case(s) mapped\n", len(r.Suite.TestCases))
	for _, name := range r.Duplicates {
		fmt.Fprintf(w, "  duplicate: %s (declared in more than one package, first kept)\n", name)
	}

	fmt.Fprintln(w)
	if r.Skipped {
		fmt.Fprintln(w, "1 file skipped (use --force to overwrite).")
		return
	}
	fmt.Fprintln(w, "Edit the testCaseId values to match your test management system.")
}
