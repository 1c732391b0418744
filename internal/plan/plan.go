// Package plan loads the test plan document that maps test methods to
// logical test-case identifiers, and resolves methods against it.
//
// A plan document looks like:
//
//	testPlanName: Automation Test Plan
//	testSuiteName: API Test Suite
//	testCases:
//	  addBook:
//	    testCaseId: TC-001
//
// JSON documents of the same shape are accepted as well.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fallback names used when no plan document is available.
const (
	UnknownPlanName  = "Unknown Test Plan"
	UnknownSuiteName = "Unknown Test Suite"
	UnknownTestCase  = "Unknown"
)

// DefaultFileName is the plan document looked up when no path is
// given.
const DefaultFileName = "test-plan-suite.json"

// ErrNotFound is returned by Load when the plan document does not
// exist.
var ErrNotFound = errors.New("plan document not found")

// TestCase holds the mapping target for one test method.
type TestCase struct {
	TestCaseID string `yaml:"testCaseId" json:"testCaseId"`
}

// Suite is a parsed plan document.
type Suite struct {
	TestPlanName  string              `yaml:"testPlanName" json:"testPlanName"`
	TestSuiteName string              `yaml:"testSuiteName" json:"testSuiteName"`
	TestCases     map[string]TestCase `yaml:"testCases" json:"testCases"`
}

// Default returns the plan used when no document could be loaded:
// fallback names and an empty mapping.
func Default() *Suite {
	return &Suite{
		TestPlanName:  UnknownPlanName,
		TestSuiteName: UnknownSuiteName,
		TestCases:     map[string]TestCase{},
	}
}

// Load reads and validates the plan document at path. A missing file
// yields an error wrapping ErrNotFound; a document that does not
// conform to Schema yields a validation error.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading plan %q: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a plan document. YAML is a superset of
// JSON so one decoder serves both formats.
func Parse(data []byte) (*Suite, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parsing plan: empty document")
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if s.TestPlanName == "" {
		s.TestPlanName = UnknownPlanName
	}
	if s.TestSuiteName == "" {
		s.TestSuiteName = UnknownSuiteName
	}
	if s.TestCases == nil {
		s.TestCases = map[string]TestCase{}
	}
	return &s, nil
}

// Encode renders the suite in the format implied by path's extension:
// JSON for ".json", YAML otherwise.
func Encode(s *Suite, path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return nil, fmt.Errorf("encoding plan: %w", err)
		}
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	return buf.Bytes(), nil
}

// Resolver maps test method names to test-case identifiers.
type Resolver struct {
	cases map[string]TestCase
}

// NewResolver returns a resolver over the suite's mapping. A nil
// suite resolves every method to UnknownTestCase.
func NewResolver(s *Suite) *Resolver {
	if s == nil {
		return &Resolver{}
	}
	return &Resolver{cases: s.TestCases}
}

// Resolve returns the test-case ID mapped to method, or
// UnknownTestCase when the method is not mapped. It never fails.
func (r *Resolver) Resolve(method string) string {
	tc, ok := r.cases[method]
	if !ok || tc.TestCaseID == "" {
		return UnknownTestCase
	}
	return tc.TestCaseID
}
