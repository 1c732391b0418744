// Package report renders aggregated test results as a JSON report
// document, persists it, and provides human-readable text output.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/unbound-force/verdict/internal/aggregate"
)

// DefaultPath is where the report is written when no output path is
// configured.
const DefaultPath = "test-results/test-results-report.json"

// ErrPersist wraps every failure to create the output directory or
// write the report file.
var ErrPersist = errors.New("persisting report")

// Document is the top-level report structure.
type Document struct {
	TestPlanName  string                      `json:"testPlanName"`
	TestSuiteName string                      `json:"testSuiteName"`
	TestResults   map[string]aggregate.Result `json:"testResults"`
}

// NewDocument builds a report document. The results map is copied so
// the document does not change if the caller keeps folding.
func NewDocument(planName, suiteName string, results map[string]aggregate.Result) Document {
	copied := make(map[string]aggregate.Result, len(results))
	for id, r := range results {
		if r.IterationDetails == nil {
			r.IterationDetails = []aggregate.Iteration{}
		}
		copied[id] = r
	}
	return Document{
		TestPlanName:  planName,
		TestSuiteName: suiteName,
		TestResults:   copied,
	}
}

// Render serializes the plan name, suite name and results as an
// indented JSON document.
func Render(planName, suiteName string, results map[string]aggregate.Result) ([]byte, error) {
	return Marshal(NewDocument(planName, suiteName, results))
}

// Marshal serializes a document as indented JSON with a trailing
// newline.
func Marshal(doc Document) ([]byte, error) {
	if doc.TestResults == nil {
		doc.TestResults = map[string]aggregate.Result{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON writes the document as indented JSON to w.
func WriteJSON(w io.Writer, doc Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Persist writes data to path, creating missing parent directories.
// An existing file is overwritten. Any failure is returned wrapped in
// ErrPersist together with the path; a partially written file may
// remain on disk.
func Persist(data []byte, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating output directory %s: %w", ErrPersist, dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrPersist, path, err)
	}
	return nil
}

// Parse decodes a report document.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parsing report: %w", err)
	}
	if doc.TestResults == nil {
		doc.TestResults = map[string]aggregate.Result{}
	}
	return doc, nil
}

// Read loads and decodes the report at path.
func Read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading report %q: %w", path, err)
	}
	return Parse(data)
}
