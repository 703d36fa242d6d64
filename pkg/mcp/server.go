// Package mcp exposes the canvas over the Model Context Protocol so
// agents can save, load, validate, and execute workflow documents.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/avendra/flowcanvas/internal/document"
	"github.com/avendra/flowcanvas/internal/engine"
	"github.com/avendra/flowcanvas/internal/store"
	"github.com/avendra/flowcanvas/internal/validation"
)

// CanvasServerDeps holds the dependencies for creating a CanvasServer.
type CanvasServerDeps struct {
	Executor  engine.Executor
	Store     store.Store
	Codec     *document.Codec
	Validator *validation.WorkflowValidator
	Logger    *slog.Logger
}

// CanvasServer wraps an MCP server with canvas-specific tool handlers.
type CanvasServer struct {
	executor  engine.Executor
	store     store.Store
	codec     *document.Codec
	validator *validation.WorkflowValidator
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewCanvasServer creates a new CanvasServer with all 5 tools registered.
func NewCanvasServer(deps CanvasServerDeps) *CanvasServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &CanvasServer{
		executor:  deps.Executor,
		store:     deps.Store,
		codec:     deps.Codec,
		validator: deps.Validator,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"flowcanvas",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Flowcanvas is a workflow graph editor core. Use canvas.save to persist documents, canvas.load to fetch them, canvas.validate to check structure, canvas.execute to run a workflow, and canvas.status to inspect the current or most recent run."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *CanvasServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *CanvasServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *CanvasServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: saveTool(), Handler: s.handleSave},
		{Tool: loadTool(), Handler: s.handleLoad},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: statusTool(), Handler: s.handleStatus},
	}
}

// --- Tool definitions ---

func saveTool() mcp.Tool {
	return mcp.NewTool("canvas.save",
		mcp.WithDescription("Save a workflow document (creates it when document_id is omitted)"),
		mcp.WithString("document_id", mcp.Description("ID of an existing document to overwrite")),
		mcp.WithString("name", mcp.Description("Document display name")),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("The workflow graph: nodes, connections, variables, triggers")),
	)
}

func loadTool() mcp.Tool {
	return mcp.NewTool("canvas.load",
		mcp.WithDescription("Load a workflow document, or list all documents when document_id is omitted"),
		mcp.WithString("document_id", mcp.Description("ID of the document to load")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("canvas.validate",
		mcp.WithDescription("Validate a workflow graph: start/end cardinality, orphans, dangling connections, cycles"),
		mcp.WithString("document_id", mcp.Description("ID of a stored document to validate")),
		mcp.WithObject("definition", mcp.Description("An inline workflow graph to validate instead")),
	)
}

func executeTool() mcp.Tool {
	return mcp.NewTool("canvas.execute",
		mcp.WithDescription("Execute a stored workflow from its start node; blocks until the run finishes"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("ID of the document to execute")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("canvas.status",
		mcp.WithDescription("Get the per-node status map of the in-flight or most recent run"),
	)
}
