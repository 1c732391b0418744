package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/unbound-force/verdict/internal/execution"
	"github.com/unbound-force/verdict/internal/plan"
	"github.com/unbound-force/verdict/internal/report"
)

const recordsJSONL = `{"method":"addNewBook","status":2,"startedAt":"2024-05-01T09:00:00Z","endedAt":"2024-05-01T09:00:00.100Z","failure":{"kind":"AssertionError","message":"expected 201 but was 429"}}
{"method":"addNewBook","status":1,"startedAt":"2024-05-01T09:00:01Z","endedAt":"2024-05-01T09:00:01.020Z"}

{"method":"getBook","status":1,"startedAt":"2024-05-01T09:00:02Z","endedAt":"2024-05-01T09:00:02.030Z","parameters":["isbn-1"]}
not a record
`

const planJSON = `{
  "testPlanName": "Automation Test Plan",
  "testSuiteName": "API Test Suite",
  "testCases": {
    "addNewBook": {"testCaseId": "TC-001"},
    "getBook": {"testCaseId": "TC-002"}
  }
}`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// runReport tests
// ---------------------------------------------------------------------------

func TestRunReport_InvalidFormat(t *testing.T) {
	err := runReport(reportParams{
		input:  "records.jsonl",
		format: "yaml",
		stdout: &bytes.Buffer{},
	})
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
	if !strings.Contains(err.Error(), `invalid format "yaml"`) {
		t.Errorf("unexpected error message: %s", err)
	}
}

func TestRunReport_RequiresOneInput(t *testing.T) {
	for name, p := range map[string]reportParams{
		"none": {format: "text"},
		"both": {format: "text", input: "a", goTestJSON: "b"},
	} {
		t.Run(name, func(t *testing.T) {
			p.stdout = &bytes.Buffer{}
			if err := runReport(p); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunReport_TextFormat(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "test-results", "test-results-report.json")
	var stdout bytes.Buffer
	err := runReport(reportParams{
		input:    writeFile(t, filepath.Join(dir, "records.jsonl"), recordsJSONL),
		planPath: writeFile(t, filepath.Join(dir, "plan.json"), planJSON),
		output:   out,
		format:   "text",
		stdout:   &stdout,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := stdout.String()
	for _, want := range []string{"Automation Test Plan", "TC-001", "TC-002", "Report: " + out} {
		if !strings.Contains(text, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, text)
		}
	}

	doc, err := report.Read(out)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	tc := doc.TestResults["TC-001"]
	if tc.Outcome != execution.OutcomeInconclusive || tc.DurationInMs != 120 {
		t.Errorf("unexpected TC-001: %+v", tc)
	}
	if got := doc.TestResults["TC-002"].IterationDetails[0].Comment; got != "DataDriven: Test Parameters: [isbn-1]" {
		t.Errorf("unexpected TC-002 comment %q", got)
	}
}

func TestRunReport_JSONFormat(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer
	err := runReport(reportParams{
		input:    writeFile(t, filepath.Join(dir, "records.jsonl"), recordsJSONL),
		planPath: filepath.Join(dir, "absent.json"),
		output:   filepath.Join(dir, "r.json"),
		format:   "json",
		stdout:   &stdout,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput:\n%s", err, stdout.String())
	}
	if parsed["testPlanName"] != plan.UnknownPlanName {
		t.Errorf("expected fallback plan name, got %v", parsed["testPlanName"])
	}
	if err := report.Validate(stdout.Bytes()); err != nil {
		t.Errorf("stdout JSON does not validate: %v", err)
	}
}

func TestRunReport_GoTestJSON(t *testing.T) {
	dir := t.TempDir()
	stream := `{"Time":"2024-05-01T10:00:00Z","Action":"run","Package":"p","Test":"TestGetBook"}
{"Time":"2024-05-01T10:00:00Z","Action":"run","Package":"p","Test":"TestGetBook/isbn-1"}
{"Time":"2024-05-01T10:00:00.010Z","Action":"pass","Package":"p","Test":"TestGetBook/isbn-1","Elapsed":0.01}
{"Time":"2024-05-01T10:00:00.010Z","Action":"pass","Package":"p","Test":"TestGetBook","Elapsed":0.01}
`
	planDoc := "testCases:\n  TestGetBook:\n    testCaseId: TC-002\n"
	out := filepath.Join(dir, "r.json")
	err := runReport(reportParams{
		goTestJSON: writeFile(t, filepath.Join(dir, "test.json"), stream),
		planPath:   writeFile(t, filepath.Join(dir, "plan.yaml"), planDoc),
		output:     out,
		format:     "text",
		stdout:     &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, err := report.Read(out)
	if err != nil {
		t.Fatal(err)
	}
	r, ok := doc.TestResults["TC-002"]
	if !ok || len(r.IterationDetails) != 1 {
		t.Fatalf("expected one TC-002 iteration, got %+v", doc.TestResults)
	}
	if r.IterationDetails[0].Comment != "DataDriven: Test Parameters: [isbn-1]" {
		t.Errorf("unexpected comment %q", r.IterationDetails[0].Comment)
	}
}

func TestRunReport_PersistFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := writeFile(t, filepath.Join(dir, "test-results"), "file in the way")
	p := reportParams{
		input:  writeFile(t, filepath.Join(dir, "records.jsonl"), recordsJSONL),
		output: filepath.Join(blocker, "report.json"),
		format: "text",
		stdout: &bytes.Buffer{},
	}

	if err := runReport(p); err != nil {
		t.Errorf("persistence failure should not fail without --strict: %v", err)
	}

	p.strict = true
	err := runReport(p)
	if !errors.Is(err, report.ErrPersist) {
		t.Errorf("expected ErrPersist with --strict, got %v", err)
	}
}

func TestRunReport_MissingInput(t *testing.T) {
	err := runReport(reportParams{
		input:  filepath.Join(t.TempDir(), "absent.jsonl"),
		format: "text",
		stdout: &bytes.Buffer{},
	})
	if err == nil {
		t.Error("expected error for missing input")
	}
}

// ---------------------------------------------------------------------------
// runRun tests
// ---------------------------------------------------------------------------

func fakeGo(t *testing.T, stream string, code string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake go binary is a shell script")
	}
	path := filepath.Join(t.TempDir(), "go")
	script := "#!/bin/sh\ncat <<'EOF'\n" + stream + "EOF\nexit " + code + "\n"
	return writeExecutable(t, path, script)
}

func writeExecutable(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

const goTestStream = `{"Time":"2024-05-01T10:00:00Z","Action":"run","Package":"p","Test":"TestAddBook"}
{"Time":"2024-05-01T10:00:00.100Z","Action":"output","Package":"p","Test":"TestAddBook","Output":"    add_test.go:9: status 429\n"}
{"Time":"2024-05-01T10:00:00.100Z","Action":"fail","Package":"p","Test":"TestAddBook","Elapsed":0.1}
{"Time":"2024-05-01T10:00:00.200Z","Action":"fail","Package":"p","Elapsed":0.2}
`

func TestRunRun_FailingTestsSetExitSignal(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "r.json")
	err := runRun(context.Background(), runParams{
		goBinary: fakeGo(t, goTestStream, "1"),
		planPath: filepath.Join(dir, "absent.json"),
		output:   out,
		format:   "text",
		stdout:   &bytes.Buffer{},
	})
	if !errors.Is(err, errTestsFailed) {
		t.Fatalf("expected errTestsFailed, got %v", err)
	}
	doc, err := report.Read(out)
	if err != nil {
		t.Fatalf("report should be written for a failing run: %v", err)
	}
	r := doc.TestResults[plan.UnknownTestCase]
	if r.Outcome != execution.OutcomeFailed {
		t.Errorf("expected Failed, got %q", r.Outcome)
	}
	if !strings.Contains(r.ErrorMessage, "Iteration 1: Exception : TestFailure => Message : add_test.go:9: status 429") {
		t.Errorf("unexpected error message %q", r.ErrorMessage)
	}
}

func TestRunRun_ReportFailureDoesNotChangeSignal(t *testing.T) {
	dir := t.TempDir()
	blocker := writeFile(t, filepath.Join(dir, "blocker"), "x")
	err := runRun(context.Background(), runParams{
		goBinary: fakeGo(t, strings.ReplaceAll(goTestStream, `"fail"`, `"pass"`), "0"),
		output:   filepath.Join(blocker, "r.json"),
		format:   "json",
		stdout:   &bytes.Buffer{},
	})
	if err != nil {
		t.Errorf("passing tests should exit cleanly even when the report is not written: %v", err)
	}
}

// ---------------------------------------------------------------------------
// validate / schema / init
// ---------------------------------------------------------------------------

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	data, err := report.Render("p", "s", nil)
	if err != nil {
		t.Fatal(err)
	}
	good := writeFile(t, filepath.Join(dir, "good.json"), string(data))
	bad := writeFile(t, filepath.Join(dir, "bad.json"), `{"testPlanName": "p"}`)

	var stdout bytes.Buffer
	if err := runValidate(good, &stdout); err != nil {
		t.Errorf("valid report rejected: %v", err)
	}
	if !strings.Contains(stdout.String(), "valid") {
		t.Errorf("expected confirmation, got %q", stdout.String())
	}
	if err := runValidate(bad, &stdout); err == nil {
		t.Error("expected error for invalid report")
	}
	if err := runValidate(filepath.Join(dir, "absent.json"), &stdout); err == nil {
		t.Error("expected error for missing report")
	}
}

func TestSchemaCmd(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want string
	}{
		{[]string{"schema"}, report.Schema},
		{[]string{"schema", "--plan"}, plan.Schema},
	} {
		root := newRootCmd()
		var buf bytes.Buffer
		root.SetOut(&buf)
		root.SetArgs(tc.args)
		if err := root.Execute(); err != nil {
			t.Fatalf("%v: %v", tc.args, err)
		}
		if strings.TrimSpace(buf.String()) != strings.TrimSpace(tc.want) {
			t.Errorf("%v: unexpected schema output", tc.args)
		}
	}
}

func TestInitCmd(t *testing.T) {
	sample, err := filepath.Abs(filepath.Join("..", "..", "internal", "loader", "testdata", "sample"))
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "plan.yaml")

	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"init", "--dir", sample, "--plan", out, "--plan-name", "Sample Plan"})
	if err := root.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	s, err := plan.Load(out)
	if err != nil {
		t.Fatalf("generated plan does not load: %v", err)
	}
	if s.TestPlanName != "Sample Plan" || len(s.TestCases) != 3 {
		t.Errorf("unexpected plan: %+v", s)
	}
	if !strings.Contains(buf.String(), "created:") {
		t.Errorf("expected summary, got:\n%s", buf.String())
	}
}
