// Package gotest turns the event stream of "go test -json" into
// execution records, and runs go test to produce that stream.
//
// Each completed run of a leaf test becomes one record. A subtest
// path "TestX/a/b" is reported as method "TestX" with parameters
// [a, b], so table-driven subtests aggregate as data-driven
// iterations of their parent test. A parent that fails while none of
// its subtests failed (cleanup, or an error after t.Run) gets a
// failed record of its own. Tests run several times (-count, reruns)
// produce one record per run.
package gotest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/unbound-force/verdict/internal/execution"
)

// test2json actions.
const (
	ActionStart  = "start"
	ActionRun    = "run"
	ActionPause  = "pause"
	ActionCont   = "cont"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionSkip   = "skip"
	ActionOutput = "output"
	ActionBench  = "bench"
)

// Failure kinds derived from test output.
const (
	KindTestFailure = "TestFailure"
	KindPanic       = "Panic"
	KindTimeout     = "Timeout"
	KindSkipped     = "Skipped"
)

// maxEventSize bounds one line of test2json output.
const maxEventSize = 8 * 1024 * 1024

// Event is one line of "go test -json" output.
type Event struct {
	Time    time.Time
	Action  string
	Package string
	Test    string
	Output  string
	Elapsed float64
}

// runKey identifies a test within a package.
type runKey struct {
	pkg  string
	test string
}

// activeRun is a test run that has started but not finished.
type activeRun struct {
	start       time.Time
	output      []string
	hasChild    bool
	childFailed bool
}

// Parser accumulates test2json events into records. The zero value
// is not usable; call NewParser.
type Parser struct {
	active    map[runKey]*activeRun
	pkgOutput map[string][]string
	records   []execution.Record
	badLines  int
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{
		active:    make(map[runKey]*activeRun),
		pkgOutput: make(map[string][]string),
	}
}

// Parse reads a complete test2json stream and returns its records in
// completion order. Lines that are not JSON events (build output
// interleaved by some tools) are ignored.
func Parse(r io.Reader) ([]execution.Record, error) {
	p := NewParser()
	if err := p.ReadFrom(r); err != nil {
		return nil, err
	}
	return p.Records(), nil
}

// ParseFile parses the test2json stream stored at path. The path "-"
// reads standard input.
func ParseFile(path string) ([]execution.Record, error) {
	if path == "-" {
		return Parse(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening go test output %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// ReadFrom consumes events from r until EOF.
func (p *Parser) ReadFrom(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			p.badLines++
			continue
		}
		p.Add(ev)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading go test output: %w", err)
	}
	return nil
}

// Add processes a single event.
func (p *Parser) Add(ev Event) {
	if ev.Test == "" {
		p.addPackageEvent(ev)
		return
	}

	key := runKey{pkg: ev.Package, test: ev.Test}
	switch ev.Action {
	case ActionRun:
		p.active[key] = &activeRun{start: ev.Time}
		if parent, ok := parentName(ev.Test); ok {
			if run, ok := p.active[runKey{pkg: ev.Package, test: parent}]; ok {
				run.hasChild = true
			}
		}
	case ActionOutput:
		if run, ok := p.active[key]; ok {
			run.output = append(run.output, ev.Output)
		}
	case ActionPass, ActionFail, ActionSkip:
		run, ok := p.active[key]
		if !ok {
			// Completion without a run event: reconstruct the start
			// from the elapsed time.
			run = &activeRun{start: ev.Time.Add(-elapsed(ev))}
		}
		delete(p.active, key)
		p.complete(key, run, ev.Action, ev.Time, nil)
	}
}

// addPackageEvent handles events not tied to a test. When a package
// ends, tests still running (a panic or timeout killed the binary)
// are completed as failures.
func (p *Parser) addPackageEvent(ev Event) {
	switch ev.Action {
	case ActionOutput:
		p.pkgOutput[ev.Package] = append(p.pkgOutput[ev.Package], ev.Output)
	case ActionPass, ActionFail, ActionSkip:
		var dangling []runKey
		for key := range p.active {
			if key.pkg == ev.Package {
				dangling = append(dangling, key)
			}
		}
		// Subtests first, so their parents know a child failed.
		sort.Slice(dangling, func(i, j int) bool {
			di, dj := strings.Count(dangling[i].test, "/"), strings.Count(dangling[j].test, "/")
			if di != dj {
				return di > dj
			}
			return dangling[i].test < dangling[j].test
		})
		for _, key := range dangling {
			run := p.active[key]
			delete(p.active, key)
			p.complete(key, run, ActionFail, ev.Time, p.pkgOutput[ev.Package])
		}
		delete(p.pkgOutput, ev.Package)
	}
}

// complete emits the record for a finished run. Runs that spawned
// subtests are represented by their subtests, unless the run failed
// and no subtest did.
func (p *Parser) complete(key runKey, run *activeRun, action string, end time.Time, extra []string) {
	if action == ActionFail {
		if parent, ok := parentName(key.test); ok {
			if prun, ok := p.active[runKey{pkg: key.pkg, test: parent}]; ok {
				prun.childFailed = true
			}
		}
	}
	if run.hasChild && (action != ActionFail || run.childFailed) {
		return
	}

	method, params := splitName(key.test)
	rec := execution.Record{
		Method:     method,
		Package:    key.pkg,
		Status:     statusOf(action),
		StartedAt:  run.start,
		EndedAt:    end,
		Parameters: params,
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = rec.StartedAt
	}

	output := append(append([]string(nil), run.output...), extra...)
	switch action {
	case ActionFail:
		rec.Failure = &execution.Failure{
			Kind:    failureKind(output),
			Message: cleanOutput(output),
		}
	case ActionSkip:
		if msg := cleanOutput(output); msg != "" {
			rec.Failure = &execution.Failure{Kind: KindSkipped, Message: msg}
		}
	}
	p.records = append(p.records, rec)
}

// Records returns the records completed so far.
func (p *Parser) Records() []execution.Record {
	out := make([]execution.Record, len(p.records))
	copy(out, p.records)
	return out
}

// Pending returns the number of tests that started but have not
// completed.
func (p *Parser) Pending() int {
	return len(p.active)
}

// BadLines returns the number of lines that looked like events but
// failed to decode.
func (p *Parser) BadLines() int {
	return p.badLines
}

func statusOf(action string) execution.Status {
	switch action {
	case ActionPass:
		return execution.StatusSuccess
	case ActionFail:
		return execution.StatusFailure
	case ActionSkip:
		return execution.StatusSkip
	default:
		return execution.StatusStarted
	}
}

func elapsed(ev Event) time.Duration {
	return time.Duration(ev.Elapsed * float64(time.Second))
}

// splitName splits "TestX/a/b" into "TestX" and [a b].
func splitName(test string) (string, []any) {
	parts := strings.Split(test, "/")
	if len(parts) == 1 {
		return test, nil
	}
	params := make([]any, 0, len(parts)-1)
	for _, p := range parts[1:] {
		params = append(params, p)
	}
	return parts[0], params
}

func parentName(test string) (string, bool) {
	i := strings.LastIndex(test, "/")
	if i < 0 {
		return "", false
	}
	return test[:i], true
}

func failureKind(output []string) string {
	for _, line := range output {
		switch {
		case strings.Contains(line, "panic: test timed out"):
			return KindTimeout
		case strings.Contains(line, "panic:"):
			return KindPanic
		}
	}
	return KindTestFailure
}

// framingPrefixes mark lines written by the test framework itself.
var framingPrefixes = []string{
	"=== RUN", "=== PAUSE", "=== CONT", "=== NAME",
	"--- FAIL:", "--- PASS:", "--- SKIP:",
}

// cleanOutput joins a test's own output lines, dropping framing lines
// and terminal escape sequences.
func cleanOutput(output []string) string {
	var lines []string
	for _, raw := range output {
		for _, line := range strings.Split(stripansi.Strip(raw), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || isFraming(line) {
				continue
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "; ")
}

func isFraming(line string) bool {
	for _, prefix := range framingPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return line == "PASS" || line == "FAIL"
}
