package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is the JSON Schema (Draft 2020-12) for plan documents.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/verdict/test-plan-suite.schema.json",
  "title": "Verdict Test Plan",
  "description": "Maps test methods to logical test-case identifiers",
  "type": "object",
  "properties": {
    "testPlanName": { "type": "string" },
    "testSuiteName": { "type": "string" },
    "testCases": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["testCaseId"],
        "properties": {
          "testCaseId": { "type": "string", "minLength": 1 }
        }
      }
    }
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(Schema))
		if err != nil {
			compileErr = fmt.Errorf("parsing plan schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("test-plan-suite.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("adding plan schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile("test-plan-suite.schema.json")
	})
	return compiled, compileErr
}

// validate checks a decoded YAML/JSON value against Schema. The value
// is round-tripped through encoding/json so the validator sees the
// same types it would for a JSON document.
func validate(raw any) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("plan is not representable as JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("plan is not representable as JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("invalid plan document: %w", err)
	}
	return nil
}
