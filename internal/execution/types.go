// Package execution defines the execution record produced by a test
// runner, the runner status and outcome enumerations, and the
// canonical rendering of invocation parameters.
package execution

import (
	"fmt"
	"strings"
	"time"
)

// Status is the runner status code reported for one execution.
// The numeric values follow the TestNG result codes so that record
// streams exported from JVM runners decode without translation.
type Status int

// Status codes.
const (
	StatusCreated                  Status = -1
	StatusSuccess                  Status = 1
	StatusFailure                  Status = 2
	StatusSkip                     Status = 3
	StatusSuccessPercentageFailure Status = 4
	StatusStarted                  Status = 16
)

// String returns a lowercase name for the status, used in logs.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusSuccess:
		return "passed"
	case StatusFailure:
		return "failed"
	case StatusSkip:
		return "skipped"
	case StatusSuccessPercentageFailure:
		return "success-percentage-failure"
	case StatusStarted:
		return "started"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the reported verdict of an iteration or an aggregate.
type Outcome string

// Outcome constants.
const (
	OutcomePassed       Outcome = "Passed"
	OutcomeFailed       Outcome = "Failed"
	OutcomeError        Outcome = "Error"
	OutcomeInconclusive Outcome = "Inconclusive"
	OutcomeUnspecified  Outcome = "Unspecified"
)

// Outcome maps the runner status to a reported outcome. A skipped
// execution is reported as Error; every code other than success,
// failure and skip is Unspecified.
func (s Status) Outcome() Outcome {
	switch s {
	case StatusSuccess:
		return OutcomePassed
	case StatusFailure:
		return OutcomeFailed
	case StatusSkip:
		return OutcomeError
	default:
		return OutcomeUnspecified
	}
}

// Failure describes the cause of a failed or aborted execution.
type Failure struct {
	// Kind is the short type name of the failure (e.g. "Panic",
	// "AssertionError").
	Kind string `json:"kind"`

	// Message is the failure detail.
	Message string `json:"message"`
}

// Describe renders the failure as
// "Exception : <kind> => Message : <detail>". A nil failure renders
// as the empty string.
func (f *Failure) Describe() string {
	if f == nil {
		return ""
	}
	return "Exception : " + f.Kind + " => Message : " + f.Message
}

// Record is one reported invocation of a test method. Retries of the
// same method produce additional records.
type Record struct {
	// Method is the test method (function) name. Required.
	Method string `json:"method"`

	// Package is the package or class that declares Method. Optional,
	// informational only.
	Package string `json:"package,omitempty"`

	// Status is the runner status code.
	Status Status `json:"status"`

	// StartedAt and EndedAt bound the execution.
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`

	// Parameters are the invocation parameters of a data-driven
	// execution, in declaration order. Nil entries are ignored when
	// rendering.
	Parameters []any `json:"parameters,omitempty"`

	// Failure is the failure cause, nil when the execution did not fail.
	Failure *Failure `json:"failure,omitempty"`
}

// Valid reports whether the record carries the fields required for
// aggregation.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.Method) != ""
}

// DurationMS returns the execution time in milliseconds. Records whose
// end precedes their start report zero.
func (r Record) DurationMS() int64 {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	d := r.EndedAt.Sub(r.StartedAt).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

// ParameterString returns the canonical rendering of the record's
// parameters. See FormatParameters.
func (r Record) ParameterString() string {
	return FormatParameters(r.Parameters)
}

// FormatParameters renders parameters as "[a, b, c]" using the default
// fmt formatting of each value. Nil values are dropped; an empty or
// all-nil list renders as "".
//
// The rendering is used as an identity key when matching retried
// data-driven iterations, so values whose default formatting is not
// stable across runs (pointers, maps with unordered keys in older
// toolchains) will not match.
func FormatParameters(params []any) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p == nil {
			continue
		}
		parts = append(parts, fmt.Sprint(p))
	}
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
