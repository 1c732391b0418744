// Package aggregate folds execution records into one aggregate result
// per logical test case.
//
// Every record folded for a test case becomes an Iteration with a
// 1-based sequence number. The aggregate Result for the test case is
// rebuilt from the previous Result plus the new Iteration on every
// fold: its duration is the running sum of iteration durations, its
// error text accumulates iteration errors oldest first, and its
// outcome is recomputed by Resolve over all iterations.
package aggregate

import (
	"fmt"

	"github.com/unbound-force/verdict/internal/execution"
)

// Iteration is one folded execution within a test case.
type Iteration struct {
	// ID is the 1-based sequence number within the test case.
	ID int `json:"id"`

	// Outcome is the outcome of this execution alone.
	Outcome execution.Outcome `json:"outcome"`

	// Comment describes what produced the iteration: the first
	// attempt, a retry, or a data-driven parameter set.
	Comment string `json:"comment"`

	// DurationInMs is the execution time in milliseconds.
	DurationInMs int64 `json:"durationInMs"`

	// ErrorMessage is the formatted failure cause, or "".
	ErrorMessage string `json:"errorMessage"`
}

// Result is the aggregate verdict for one test case.
type Result struct {
	Outcome          execution.Outcome `json:"outcome"`
	Comment          string            `json:"comment"`
	DurationInMs     int64             `json:"durationInMs"`
	ErrorMessage     string            `json:"errorMessage"`
	IterationDetails []Iteration       `json:"iterationDetails"`
}

// newResult seeds a Result from the first iteration of a test case.
func newResult(comment string, it Iteration) Result {
	return Result{
		Outcome:          it.Outcome,
		Comment:          comment,
		DurationInMs:     it.DurationInMs,
		ErrorMessage:     errorLine(it),
		IterationDetails: []Iteration{it},
	}
}

// withIteration returns a new Result with it appended. The receiver
// is left untouched.
func (r Result) withIteration(it Iteration) Result {
	iterations := make([]Iteration, len(r.IterationDetails), len(r.IterationDetails)+1)
	copy(iterations, r.IterationDetails)
	iterations = append(iterations, it)

	return Result{
		Outcome:          Resolve(iterations),
		Comment:          r.Comment,
		DurationInMs:     r.DurationInMs + it.DurationInMs,
		ErrorMessage:     r.ErrorMessage + errorLine(it),
		IterationDetails: iterations,
	}
}

// errorLine renders an iteration's error for the accumulated error
// text, or "" when the iteration has no error.
func errorLine(it Iteration) string {
	if it.ErrorMessage == "" {
		return ""
	}
	return fmt.Sprintf("Iteration %d: %s\n", it.ID, it.ErrorMessage)
}

// Resolve computes the aggregate outcome of a sequence of iterations.
//
// When every iteration agrees on Passed, Failed or Error, that outcome
// is the aggregate. Any disagreement, and any unanimous outcome other
// than those three, is Inconclusive. An empty sequence is Unspecified.
func Resolve(iterations []Iteration) execution.Outcome {
	if len(iterations) == 0 {
		return execution.OutcomeUnspecified
	}

	distinct := make(map[execution.Outcome]struct{}, 2)
	for _, it := range iterations {
		distinct[it.Outcome] = struct{}{}
	}
	if len(distinct) != 1 {
		return execution.OutcomeInconclusive
	}

	only := iterations[0].Outcome
	switch only {
	case execution.OutcomePassed, execution.OutcomeFailed, execution.OutcomeError:
		return only
	default:
		return execution.OutcomeInconclusive
	}
}
