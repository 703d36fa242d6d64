package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/avendra/flowcanvas/pkg/schema"
)

// documentSchemaJSON is the JSON Schema for persisted workflow documents.
// Embedded as a constant to avoid filesystem dependencies.
const documentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowcanvas.dev/schemas/workflow.json",
  "type": "object",
  "required": ["nodes", "connections"],
  "properties": {
    "id": { "type": "string" },
    "name": { "type": "string" },
    "nodes": {
      "type": "array",
      "items": { "$ref": "#/$defs/node" }
    },
    "connections": {
      "type": "array",
      "items": { "$ref": "#/$defs/connection" }
    },
    "variables": {
      "type": "array",
      "items": { "$ref": "#/$defs/variable" }
    },
    "triggers": {
      "type": "array",
      "items": { "$ref": "#/$defs/trigger" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id", "kind", "position"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "kind": {
          "type": "string",
          "enum": ["start", "end", "task", "decision", "parallel", "merge", "delay", "webhook", "email", "approval", "custom"]
        },
        "label": { "type": "string" },
        "position": {
          "type": "object",
          "required": ["x", "y"],
          "properties": {
            "x": { "type": "number" },
            "y": { "type": "number" }
          },
          "additionalProperties": false
        },
        "width": { "type": "number" },
        "height": { "type": "number" },
        "config": {
          "type": "object",
          "properties": {
            "timeout": { "type": "string", "pattern": "^[0-9]+(ns|us|µs|ms|s|m|h)$" },
            "retries": { "type": "integer", "minimum": 0 },
            "rules": { "type": "array", "items": { "type": "string" } },
            "assignees": { "type": "array", "items": { "type": "string" } },
            "request_template": { "type": "object" },
            "expression": { "type": "string" },
            "extract": { "type": "string" },
            "delay": { "type": "string", "pattern": "^[0-9]+(ns|us|µs|ms|s|m|h)$" }
          },
          "additionalProperties": false
        }
      },
      "additionalProperties": false
    },
    "connection": {
      "type": "object",
      "required": ["id", "source", "target"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "source": { "type": "string", "minLength": 1 },
        "target": { "type": "string", "minLength": 1 },
        "sourceHandle": { "type": "string", "enum": ["top", "bottom", "left", "right"] },
        "targetHandle": { "type": "string", "enum": ["top", "bottom", "left", "right"] },
        "label": { "type": "string" },
        "animated": { "type": "boolean" }
      },
      "additionalProperties": false
    },
    "variable": {
      "type": "object",
      "required": ["name", "type"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "type": {
          "type": "string",
          "enum": ["string", "number", "boolean", "object", "array"]
        },
        "scope": { "type": "string" },
        "value": {}
      },
      "additionalProperties": false
    },
    "trigger": {
      "type": "object",
      "required": ["id", "kind", "enabled"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "kind": {
          "type": "string",
          "enum": ["manual", "schedule", "webhook", "event", "file", "email"]
        },
        "config": { "type": "object" },
        "enabled": { "type": "boolean" }
      },
      "additionalProperties": false
    }
  }
}`

// DocumentValidator validates raw workflow documents against the
// embedded JSON Schema before they are decoded. Safe for concurrent use.
type DocumentValidator struct {
	compiled *jsonschema.Schema
}

// NewDocumentValidator creates a DocumentValidator with the document
// schema pre-compiled.
func NewDocumentValidator() (*DocumentValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal document schema: %w", err)
	}
	if err := c.AddResource("https://flowcanvas.dev/schemas/workflow.json", doc); err != nil {
		return nil, fmt.Errorf("add document schema resource: %w", err)
	}

	compiled, err := c.Compile("https://flowcanvas.dev/schemas/workflow.json")
	if err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}

	return &DocumentValidator{compiled: compiled}, nil
}

// ValidateDocument validates raw JSON against the document schema plus
// the structural checks JSON Schema cannot express (duplicate IDs).
func (v *DocumentValidator) ValidateDocument(raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "document is not valid JSON").WithCause(err)
	}

	if err := v.compiled.Validate(doc); err != nil {
		return toFlowError(err)
	}

	var wf schema.Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to decode document").WithCause(err)
	}

	seen := make(map[string]struct{}, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if _, exists := seen[n.ID]; exists {
			return schema.NewErrorf(schema.ErrCodeValidation, "duplicate node id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	seenConn := make(map[string]struct{}, len(wf.Connections))
	for _, c := range wf.Connections {
		if _, exists := seenConn[c.ID]; exists {
			return schema.NewErrorf(schema.ErrCodeValidation, "duplicate connection id %q", c.ID)
		}
		seenConn[c.ID] = struct{}{}
	}

	return nil
}

// toFlowError converts a jsonschema.ValidationError into a FlowError
// with clear messages for UI consumption.
func toFlowError(err error) *schema.FlowError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("document validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
