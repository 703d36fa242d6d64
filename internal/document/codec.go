// Package document serializes workflows to and from JSON and drives
// debounced autosave.
package document

import (
	"encoding/json"

	"github.com/avendra/flowcanvas/internal/validation"
	"github.com/avendra/flowcanvas/pkg/schema"
)

// Codec marshals workflows to JSON and back. Load validates the raw
// document against the embedded JSON Schema before decoding, so a
// malformed document never reaches the graph model.
type Codec struct {
	validator *validation.DocumentValidator
}

// NewCodec creates a Codec with schema validation on load.
func NewCodec() (*Codec, error) {
	v, err := validation.NewDocumentValidator()
	if err != nil {
		return nil, err
	}
	return &Codec{validator: v}, nil
}

// Save serializes the workflow to indented JSON.
func (c *Codec) Save(wf *schema.Workflow) ([]byte, error) {
	if wf == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}
	body, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"marshal workflow: %s", err.Error()).WithCause(err)
	}
	return body, nil
}

// Load validates and deserializes a workflow document.
func (c *Codec) Load(raw []byte) (*schema.Workflow, error) {
	if err := c.validator.ValidateDocument(raw); err != nil {
		return nil, err
	}
	var wf schema.Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"unmarshal workflow: %s", err.Error()).WithCause(err)
	}
	return &wf, nil
}
