package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/avendra/flowcanvas/internal/store"
	"github.com/avendra/flowcanvas/pkg/schema"
)

// handleSave persists a workflow document.
func (s *CanvasServer) handleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	definition := mcp.ParseStringMap(req, "definition", nil)
	if definition == nil {
		return mcp.NewToolResultError("definition is required"), nil
	}

	wf, parseErr := s.parseDefinition(definition)
	if parseErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", parseErr)), nil
	}

	documentID := req.GetString("document_id", "")
	name := req.GetString("name", wf.Name)

	if documentID != "" {
		update := store.DocumentUpdate{Definition: wf}
		if name != "" {
			update.Name = &name
		}
		if err := s.store.UpdateDocument(ctx, documentID, update); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to update document: %v", err)), nil
		}
		return marshalResult(map[string]any{"ok": true, "document_id": documentID})
	}

	doc := &store.Document{
		ID:         uuid.New().String(),
		Name:       name,
		Definition: *wf,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create document: %v", err)), nil
	}
	return marshalResult(map[string]any{"ok": true, "document_id": doc.ID})
}

// handleLoad fetches one document or lists all of them.
func (s *CanvasServer) handleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID := req.GetString("document_id", "")

	if documentID == "" {
		docs, err := s.store.ListDocuments(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list documents: %v", err)), nil
		}
		summaries := make([]map[string]any, 0, len(docs))
		for _, d := range docs {
			summaries = append(summaries, map[string]any{
				"document_id": d.ID,
				"name":        d.Name,
				"nodes":       len(d.Definition.Nodes),
				"updated_at":  d.UpdatedAt,
			})
		}
		return marshalResult(map[string]any{"documents": summaries})
	}

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load document: %v", err)), nil
	}
	return marshalResult(doc)
}

// handleValidate runs the workflow validator on a stored or inline graph.
func (s *CanvasServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wf, err := s.resolveWorkflow(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.validator.Validate(wf)
	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Messages(),
		"warnings": len(result.Warnings),
	})
}

// handleExecute runs a stored workflow and returns the run result.
func (s *CanvasServer) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id is required"), nil
	}

	doc, loadErr := s.store.GetDocument(ctx, documentID)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load document: %v", loadErr)), nil
	}

	// Run events are keyed by the store document ID, not whatever ID
	// the embedded definition happens to carry.
	wf := &doc.Definition
	wf.ID = doc.ID
	result, runErr := s.executor.Run(ctx, wf)
	if runErr != nil {
		// Failed and cancelled runs still carry a partial status map.
		if result != nil {
			return marshalResult(result)
		}
		return mcp.NewToolResultError(fmt.Sprintf("execution refused: %v", runErr)), nil
	}
	return marshalResult(result)
}

// handleStatus reports the in-flight or most recent run.
func (s *CanvasServer) handleStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.executor.Status()
	if status == nil {
		return marshalResult(map[string]any{"running": false})
	}
	return marshalResult(status)
}

// resolveWorkflow picks the graph from document_id or inline definition.
func (s *CanvasServer) resolveWorkflow(ctx context.Context, req mcp.CallToolRequest) (*schema.Workflow, error) {
	if documentID := req.GetString("document_id", ""); documentID != "" {
		doc, err := s.store.GetDocument(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load document: %v", err)
		}
		return &doc.Definition, nil
	}
	definition := mcp.ParseStringMap(req, "definition", nil)
	if definition == nil {
		return nil, fmt.Errorf("either document_id or definition is required")
	}
	wf, err := s.parseDefinition(definition)
	if err != nil {
		return nil, fmt.Errorf("invalid definition: %v", err)
	}
	return wf, nil
}

// parseDefinition round-trips an argument map through the codec so the
// JSON Schema runs on everything that enters the system.
func (s *CanvasServer) parseDefinition(definition map[string]any) (*schema.Workflow, error) {
	raw, err := json.Marshal(definition)
	if err != nil {
		return nil, err
	}
	return s.codec.Load(raw)
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
