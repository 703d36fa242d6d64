// Package engine executes workflow graphs: a sequential depth-first walk
// from the start node, with per-node status tracking, injectable node
// workers and failure policies, and cancellation.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/avendra/flowcanvas/internal/store"
	"github.com/avendra/flowcanvas/internal/streaming"
	"github.com/avendra/flowcanvas/pkg/schema"
)

// TransitionHook is called after a node status transition.
type TransitionHook func(nodeID string, from, to schema.RunStatus)

// EventAppender is satisfied by *store.EventLog and *store.LibSQLStore;
// used to persist status transitions to the run audit log.
type EventAppender interface {
	AppendRunEvent(ctx context.Context, event *store.RunEvent) error
}

// NodeFSM manages per-node run status transitions. Every successful
// transition is published to the event hub and, when an appender is
// configured, recorded in the run audit log. Audit writes are
// best-effort: a failed append is logged, not fatal to the run.
type NodeFSM struct {
	mu       sync.Mutex
	hub      streaming.EventHub
	appender EventAppender
	logger   *slog.Logger
	after    []TransitionHook
}

// NewNodeFSM creates a NodeFSM. The appender may be nil, in which case
// transitions are only published to the hub.
func NewNodeFSM(hub streaming.EventHub, appender EventAppender, logger *slog.Logger) *NodeFSM {
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeFSM{hub: hub, appender: appender, logger: logger}
}

// OnAfter registers a hook called after every successful transition.
func (f *NodeFSM) OnAfter(hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.after = append(f.after, hook)
}

// Transition validates and records a node status transition.
func (f *NodeFSM) Transition(ctx context.Context, documentID, runID, nodeID string, from, to schema.RunStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !isValidRunTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid node status transition: %s -> %s", from, to).
			WithNode(nodeID).
			WithDetails(map[string]any{"run_id": runID, "from": string(from), "to": string(to)})
	}

	if f.hub != nil {
		_ = f.hub.Publish(ctx, streaming.StreamEvent{
			DocumentID: documentID,
			RunID:      runID,
			NodeID:     nodeID,
			EventType:  schema.EventNodeStatusChanged,
			Payload:    map[string]any{"status": to},
		})
	}

	if f.appender != nil {
		payload, _ := json.Marshal(map[string]any{"status": to})
		if err := f.appender.AppendRunEvent(ctx, &store.RunEvent{
			DocumentID: documentID,
			RunID:      runID,
			NodeID:     nodeID,
			Type:       schema.EventNodeStatusChanged,
			Payload:    payload,
		}); err != nil {
			f.logger.Warn("append run event failed",
				"run_id", runID, "node_id", nodeID, "error", err)
		}
	}

	for _, hook := range f.after {
		hook(nodeID, from, to)
	}
	return nil
}

func isValidRunTransition(from, to schema.RunStatus) bool {
	allowed, ok := schema.ValidRunTransitions[from]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == to {
			return true
		}
	}
	return false
}
