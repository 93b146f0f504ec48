package agentflow

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema is the wire-format contract for workflow definition
// documents: any producer must emit this shape.
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "steps"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string"},
    "timeoutMs": {"type": "integer", "minimum": 0},
    "retryPolicy": {"$ref": "#/definitions/retryPolicy"},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "agent"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "agent": {"type": "string", "minLength": 1},
          "action": {"type": "string"},
          "inputs": {"type": "array", "items": {"type": "string"}},
          "outputs": {"type": "array", "items": {"type": "string"}},
          "dependsOn": {"type": "array", "items": {"type": "string"}},
          "parallel": {"type": "boolean"},
          "condition": {"type": "string"},
          "timeoutMs": {"type": "integer", "minimum": 0},
          "retryPolicy": {"$ref": "#/definitions/retryPolicy"}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false,
  "definitions": {
    "retryPolicy": {
      "type": "object",
      "properties": {
        "maxRetries": {"type": "integer", "minimum": 0},
        "delayMs": {"type": "integer", "minimum": 0},
        "backoff": {"type": "string", "enum": ["NONE", "LINEAR", "EXPONENTIAL"]}
      },
      "additionalProperties": false
    }
  }
}`

// validateDefinitionDocument checks a raw JSON document against the
// definition schema before it is decoded.
func validateDefinitionDocument(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(definitionSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &DefinitionError{Reason: fmt.Sprintf("schema validation: %v", err)}
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return &DefinitionError{Reason: "schema validation failed: " + strings.Join(details, "; ")}
	}

	return nil
}
