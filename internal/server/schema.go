package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// submitSchema rejects structurally broken submit bodies before any decoding
// into domain types. Semantic checks (mutation target exists, language
// supported) happen later against the decoded request.
const submitSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["userId", "questionId", "language", "code", "metadata", "testCases"],
  "properties": {
    "submissionId": {"type": "string", "maxLength": 36},
    "userId": {"type": "string", "minLength": 1},
    "questionId": {"type": "string", "minLength": 1},
    "language": {"type": "string", "minLength": 1},
    "code": {"type": "string", "minLength": 1},
    "metadata": {
      "type": "object",
      "required": ["returnType", "parameters"],
      "properties": {
        "packageOrNamespace": {"type": "string"},
        "functionName": {"type": "string"},
        "returnType": {"type": "string"},
        "parameters": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name", "type"],
            "properties": {
              "name": {"type": "string", "minLength": 1},
              "type": {"type": "string", "minLength": 1}
            }
          }
        },
        "customDataStructures": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        },
        "questionType": {"enum": ["ALGORITHM", "DESIGN_CLASS"]},
        "mutationTarget": {"type": "string"},
        "serializationStrategy": {"type": "string"}
      }
    },
    "testCases": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["input"],
        "properties": {
          "input": {"type": "object"}
        }
      }
    },
    "clientIp": {"type": "string"},
    "userAgent": {"type": "string"}
  }
}`

var compiledSubmitSchema = jsonschema.MustCompileString("submit.json", submitSchema)

// validateSubmitBody runs the schema over the raw JSON body.
func validateSubmitBody(body []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiledSubmitSchema.Validate(doc); err != nil {
		return err
	}
	return nil
}
