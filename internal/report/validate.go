package report

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaResource = "test-results-report.schema.json"

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

// CompiledSchema returns Schema compiled for validation.
func CompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(Schema))
		if err != nil {
			schemaErr = fmt.Errorf("parsing report schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaResource, doc); err != nil {
			schemaErr = fmt.Errorf("adding report schema: %w", err)
			return
		}
		schemaCompiled, schemaErr = c.Compile(schemaResource)
	})
	return schemaCompiled, schemaErr
}

// Validate checks that data is a JSON document conforming to Schema.
func Validate(data []byte) error {
	sch, err := CompiledSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("report is not valid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("report does not conform to schema: %w", err)
	}
	return nil
}
