package store

import (
	"encoding/json"
	"time"

	"github.com/avendra/flowcanvas/pkg/schema"
)

// Document is a persisted workflow document. The core itself never
// touches the store; it emits save-requested events and this layer is
// the collaborator that honors them.
type Document struct {
	ID         string          `json:"id"`
	Name       string          `json:"name,omitempty"`
	Definition schema.Workflow `json:"definition"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// DocumentUpdate is a partial document update; nil fields are unchanged.
type DocumentUpdate struct {
	Name       *string
	Definition *schema.Workflow
}

// RunEvent is an immutable entry in the append-only run audit log.
type RunEvent struct {
	ID         int64           `json:"id"`
	DocumentID string          `json:"document_id,omitempty"`
	RunID      string          `json:"run_id"`
	NodeID     string          `json:"node_id,omitempty"`
	Type       string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Sequence   int64           `json:"sequence"`
}
