package report

// Schema is the JSON Schema (Draft 2020-12) for the report document.
// It documents the structure produced by Render.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/verdict/test-results-report.schema.json",
  "title": "Verdict Test Results Report",
  "description": "Aggregated test-case results of one test run",
  "type": "object",
  "required": ["testPlanName", "testSuiteName", "testResults"],
  "properties": {
    "testPlanName": { "type": "string" },
    "testSuiteName": { "type": "string" },
    "testResults": {
      "type": "object",
      "description": "Aggregate results keyed by test-case ID",
      "additionalProperties": { "$ref": "#/$defs/TestResult" }
    }
  },
  "$defs": {
    "TestResult": {
      "type": "object",
      "required": ["outcome", "comment", "durationInMs", "errorMessage", "iterationDetails"],
      "properties": {
        "outcome": {
          "type": "string",
          "enum": ["Passed", "Failed", "Error", "Inconclusive", "Unspecified"]
        },
        "comment": { "type": "string" },
        "durationInMs": {
          "type": "integer",
          "minimum": 0,
          "description": "Sum of iteration durations in milliseconds"
        },
        "errorMessage": {
          "type": "string",
          "description": "Iteration errors prefixed with their sequence number, oldest first"
        },
        "iterationDetails": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/Iteration" }
        }
      }
    },
    "Iteration": {
      "type": "object",
      "required": ["id", "outcome", "comment", "durationInMs", "errorMessage"],
      "properties": {
        "id": { "type": "integer", "minimum": 1 },
        "outcome": { "type": "string" },
        "comment": { "type": "string" },
        "durationInMs": { "type": "integer", "minimum": 0 },
        "errorMessage": { "type": "string" }
      }
    }
  }
}`
