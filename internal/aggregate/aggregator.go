package aggregate

import (
	"errors"
	"sort"
	"strconv"

	"github.com/unbound-force/verdict/internal/execution"
)

// ErrMalformedRecord is returned by Fold for records that lack the
// fields required for aggregation. The aggregator state is unchanged.
var ErrMalformedRecord = errors.New("malformed execution record")

// Comments attached to iterations of tests without parameters.
const (
	CommentInitialAttempt = "Initial Attempt"
	CommentRetryAttempt   = "Retry Attempt"
)

// paramKey identifies a data-driven parameter set within a test case.
type paramKey struct {
	testCaseID string
	params     string
}

// Aggregator holds the running results of one report generation. It
// is not safe for concurrent use; records produced in parallel must
// be collected into a single ordered sequence before folding.
type Aggregator struct {
	results map[string]Result

	// lastSeq maps a parameter set to the sequence number of its most
	// recent iteration, so a repeated parameter set can name the
	// iteration it retries.
	lastSeq map[paramKey]int

	// order lists test-case IDs in first-fold order.
	order []string
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		results: make(map[string]Result),
		lastSeq: make(map[paramKey]int),
	}
}

// Fold adds one execution record to the aggregate of testCaseID and
// returns the iteration it produced. Records must be folded in
// execution order for each test case.
func (a *Aggregator) Fold(testCaseID string, rec execution.Record) (Iteration, error) {
	if !rec.Valid() || testCaseID == "" {
		return Iteration{}, ErrMalformedRecord
	}

	existing, seen := a.results[testCaseID]
	seq := len(existing.IterationDetails) + 1
	params := rec.ParameterString()

	it := Iteration{
		ID:           seq,
		Outcome:      rec.Status.Outcome(),
		Comment:      a.iterationComment(testCaseID, params, seen),
		DurationInMs: rec.DurationMS(),
		ErrorMessage: rec.Failure.Describe(),
	}

	if params != "" {
		a.lastSeq[paramKey{testCaseID: testCaseID, params: params}] = seq
	}

	if seen {
		a.results[testCaseID] = existing.withIteration(it)
	} else {
		a.results[testCaseID] = newResult("Automated Test Name: "+rec.Method, it)
		a.order = append(a.order, testCaseID)
	}
	return it, nil
}

// iterationComment describes the iteration about to be folded.
func (a *Aggregator) iterationComment(testCaseID, params string, seen bool) string {
	if params == "" {
		if seen {
			return CommentRetryAttempt
		}
		return CommentInitialAttempt
	}

	comment := "DataDriven: Test Parameters: " + params
	if prev, ok := a.lastSeq[paramKey{testCaseID: testCaseID, params: params}]; ok {
		comment = "Retried Iteration " + strconv.Itoa(prev) + " -> " + comment
	}
	return comment
}

// Result returns the aggregate for testCaseID.
func (a *Aggregator) Result(testCaseID string) (Result, bool) {
	r, ok := a.results[testCaseID]
	return r, ok
}

// Results returns a snapshot of all aggregates keyed by test-case ID.
// Later folds do not affect the returned map.
func (a *Aggregator) Results() map[string]Result {
	out := make(map[string]Result, len(a.results))
	for id, r := range a.results {
		out[id] = r
	}
	return out
}

// TestCaseIDs returns the folded test-case IDs in first-fold order.
func (a *Aggregator) TestCaseIDs() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Len returns the number of test cases folded so far.
func (a *Aggregator) Len() int {
	return len(a.results)
}

// Counts returns the number of test cases per aggregate outcome.
func (a *Aggregator) Counts() map[execution.Outcome]int {
	return CountOutcomes(a.results)
}

// CountOutcomes tallies aggregate outcomes.
func CountOutcomes(results map[string]Result) map[execution.Outcome]int {
	counts := make(map[execution.Outcome]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	return counts
}

// SortedIDs returns the keys of results in lexical order.
func SortedIDs(results map[string]Result) []string {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
