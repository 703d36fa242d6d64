package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avendra/flowcanvas/internal/expressions"
	"github.com/avendra/flowcanvas/internal/store"
	"github.com/avendra/flowcanvas/internal/streaming"
	"github.com/avendra/flowcanvas/internal/validation"
	"github.com/avendra/flowcanvas/pkg/schema"
)

// Executor runs workflow graphs. At most one run is in flight at a
// time: a second Run while one is active is rejected with a conflict
// error rather than cancelling the active run.
type Executor interface {
	// Run executes the workflow from its start node. Blocks until the
	// run completes, fails, or is cancelled. The workflow must pass
	// validation or the call is refused before any node executes.
	Run(ctx context.Context, wf *schema.Workflow) (*RunResult, error)

	// Cancel stops the in-flight run. Returns NOT_FOUND when idle.
	Cancel(ctx context.Context) error

	// Status returns a snapshot of the in-flight run, or the result of
	// the most recent run when idle. Nil if nothing has run yet.
	Status() *RunResult
}

// Options configures run semantics.
type Options struct {
	// VisitOnce makes each node execute at most once per run. The
	// default is once per incoming path, so diamond-shaped graphs
	// execute shared downstream nodes more than once.
	VisitOnce bool
}

// RunResult is the outcome of a run. Statuses holds the per-node run
// status map; nodes never reached have no entry.
type RunResult struct {
	RunID       string                      `json:"run_id"`
	DocumentID  string                      `json:"document_id,omitempty"`
	Status      schema.RunStatus            `json:"status"`
	Statuses    map[string]schema.RunStatus `json:"statuses"`
	Error       *schema.FlowError           `json:"error,omitempty"`
	StartedAt   time.Time                   `json:"started_at"`
	CompletedAt *time.Time                  `json:"completed_at,omitempty"`
}

// executorImpl is the concrete Executor implementation.
type executorImpl struct {
	validator *validation.WorkflowValidator
	worker    NodeWorker
	policy    FailurePolicy
	fsm       *NodeFSM
	hub       streaming.EventHub
	appender  EventAppender
	celEngine *expressions.CELEngine
	logger    *slog.Logger
	opts      Options

	// mu guards current and last.
	mu      sync.Mutex
	current *executionRun
	last    *RunResult
}

// executionRun tracks the single in-flight run.
type executionRun struct {
	runID      string
	documentID string
	wf         *schema.Workflow
	statuses   map[string]schema.RunStatus
	visited    map[string]bool
	vars       map[string]any
	outputs    map[string]any
	cancel     context.CancelFunc
	startedAt  time.Time
	mu         sync.Mutex // guards statuses and outputs
}

// NewExecutor creates an Executor. worker and policy fall back to the
// simulated worker and NeverFail when nil; hub and appender may be nil.
func NewExecutor(validator *validation.WorkflowValidator, worker NodeWorker, policy FailurePolicy,
	hub streaming.EventHub, appender EventAppender, logger *slog.Logger, opts Options) Executor {
	if worker == nil {
		worker = NewSimulatedWorker()
	}
	if policy == nil {
		policy = NeverFail
	}
	if logger == nil {
		logger = slog.Default()
	}
	celEngine, _ := expressions.NewCELEngine()
	return &executorImpl{
		validator: validator,
		worker:    worker,
		policy:    policy,
		fsm:       NewNodeFSM(hub, appender, logger),
		hub:       hub,
		appender:  appender,
		celEngine: celEngine,
		logger:    logger,
		opts:      opts,
	}
}

// Run executes the workflow from its start node.
func (e *executorImpl) Run(ctx context.Context, wf *schema.Workflow) (*RunResult, error) {
	if wf == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}

	// The run is refused, not started, when validation fails.
	if result := e.validator.Validate(wf); !result.Valid() {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow failed validation").
			WithDetails(map[string]any{"errors": result.Messages()})
	}

	start := wf.StartNode()
	if start == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow has no start node")
	}

	// Snapshot: the engine never mutates the caller's graph, and edits
	// made during the run do not affect it.
	snapshot := wf.Clone()

	execCtx, execCancel := context.WithCancel(ctx)
	run := &executionRun{
		runID:      uuid.New().String(),
		documentID: snapshot.ID,
		wf:         snapshot,
		statuses:   make(map[string]schema.RunStatus),
		visited:    make(map[string]bool),
		vars:       snapshot.GlobalVariables(),
		outputs:    make(map[string]any),
		cancel:     execCancel,
		startedAt:  time.Now().UTC(),
	}

	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		execCancel()
		return nil, schema.NewError(schema.ErrCodeConflict, "a run is already in flight")
	}
	e.current = run
	e.mu.Unlock()

	e.emitRunEvent(ctx, run, schema.EventRunStarted, nil)

	runErr := e.execNode(execCtx, run, start)

	execCancel()
	result := e.finishRun(ctx, run, runErr)

	e.mu.Lock()
	e.current = nil
	e.last = result
	e.mu.Unlock()

	if result.Error != nil {
		return result, result.Error
	}
	return result, nil
}

// Cancel stops the in-flight run.
func (e *executorImpl) Cancel(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return schema.NewError(schema.ErrCodeNotFound, "no run in flight")
	}
	e.current.cancel()
	return nil
}

// Status returns a snapshot of the in-flight or most recent run.
func (e *executorImpl) Status() *RunResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		return &RunResult{
			RunID:      e.current.runID,
			DocumentID: e.current.documentID,
			Status:     schema.StatusRunning,
			Statuses:   e.current.snapshotStatuses(),
			StartedAt:  e.current.startedAt,
		}
	}
	return e.last
}

// execNode executes one node, then walks its outgoing connections
// depth-first, awaiting each branch before starting the next.
func (e *executorImpl) execNode(ctx context.Context, run *executionRun, node *schema.Node) error {
	if err := ctx.Err(); err != nil {
		return e.cancelError(run, node, err)
	}

	if e.opts.VisitOnce {
		if run.visited[node.ID] {
			return nil
		}
		run.visited[node.ID] = true
	}

	if err := e.setStatus(ctx, run, node.ID, schema.StatusRunning); err != nil {
		return err
	}

	if err := e.performWork(ctx, run, node); err != nil {
		return err
	}

	if err := e.setStatus(ctx, run, node.ID, schema.StatusCompleted); err != nil {
		return err
	}

	for _, conn := range run.wf.Outgoing(node.ID) {
		follow, err := e.shouldFollow(ctx, run, node, &conn)
		if err != nil {
			return err
		}
		if !follow {
			continue
		}
		target := run.wf.NodeByID(conn.Target)
		if target == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidReference,
				"connection %s targets missing node %s", conn.ID, conn.Target)
		}
		if err := e.execNode(ctx, run, target); err != nil {
			return err
		}
	}
	return nil
}

// performWork applies the failure policy and runs the worker under the
// node's configured timeout.
func (e *executorImpl) performWork(ctx context.Context, run *executionRun, node *schema.Node) error {
	workCtx := ctx
	var workCancel context.CancelFunc
	if node.Config != nil && node.Config.Timeout != "" {
		dur, parseErr := time.ParseDuration(node.Config.Timeout)
		if parseErr != nil {
			e.markFailed(ctx, run, node.ID)
			return schema.NewErrorf(schema.ErrCodeValidation,
				"invalid timeout %q: %s", node.Config.Timeout, parseErr.Error()).WithNode(node.ID)
		}
		workCtx, workCancel = context.WithTimeout(ctx, dur)
		defer workCancel()
	}

	err := e.policy(node)
	var output any
	if err == nil {
		output, err = e.worker.Execute(workCtx, node, run.vars)
	}
	if err == nil {
		run.mu.Lock()
		run.outputs[node.ID] = output
		run.mu.Unlock()
		return nil
	}

	// Distinguish the node's own deadline from run-level cancellation.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		e.markFailed(ctx, run, node.ID)
		timeout := ""
		if node.Config != nil {
			timeout = node.Config.Timeout
		}
		return schema.NewErrorf(schema.ErrCodeTimeout,
			"node %q exceeded its %s timeout", node.Label, timeout).WithNode(node.ID)
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return e.cancelError(run, node, err)
	}

	e.markFailed(ctx, run, node.ID)
	var flowErr *schema.FlowError
	if errors.As(err, &flowErr) {
		return flowErr
	}
	return schema.NewErrorf(schema.ErrCodeExecution,
		"node %q failed: %s", node.Label, err.Error()).WithNode(node.ID).WithCause(err)
}

// shouldFollow decides whether a connection fires. Decision nodes
// evaluate the connection label as a CEL condition against the workflow
// variables; unlabeled connections always fire.
func (e *executorImpl) shouldFollow(ctx context.Context, run *executionRun, node *schema.Node, conn *schema.Connection) (bool, error) {
	if node.Kind != schema.NodeDecision || conn.Label == "" || e.celEngine == nil {
		return true, nil
	}
	ok, err := e.celEngine.EvaluateBool(conn.Label, map[string]any{
		"vars": run.vars,
		"node": map[string]any{"id": node.ID, "kind": string(node.Kind), "label": node.Label},
	})
	if err != nil {
		e.markFailed(ctx, run, node.ID)
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"decision condition %q: %s", conn.Label, err.Error()).WithNode(node.ID).WithCause(err)
	}
	return ok, nil
}

// setStatus transitions a node's status through the FSM.
func (e *executorImpl) setStatus(ctx context.Context, run *executionRun, nodeID string, to schema.RunStatus) error {
	run.mu.Lock()
	from := run.statuses[nodeID]
	run.mu.Unlock()

	if err := e.fsm.Transition(ctx, run.documentID, run.runID, nodeID, from, to); err != nil {
		return err
	}

	run.mu.Lock()
	run.statuses[nodeID] = to
	run.mu.Unlock()
	return nil
}

// markFailed best-effort transitions a node to failed.
func (e *executorImpl) markFailed(ctx context.Context, run *executionRun, nodeID string) {
	if err := e.setStatus(ctx, run, nodeID, schema.StatusFailed); err != nil {
		e.logger.Warn("mark node failed", "node_id", nodeID, "error", err)
	}
}

// cancelError marks the interrupted node cancelled and returns the
// run-level cancellation error.
func (e *executorImpl) cancelError(run *executionRun, node *schema.Node, cause error) error {
	// A fresh context: the run's own is already done.
	if err := e.setStatus(context.Background(), run, node.ID, schema.StatusCancelled); err != nil {
		e.logger.Warn("mark node cancelled", "node_id", node.ID, "error", err)
	}
	return schema.NewErrorf(schema.ErrCodeCancelled, "run cancelled at node %q", node.Label).
		WithNode(node.ID).WithCause(cause)
}

// finishRun builds the result and emits the terminal run event.
func (e *executorImpl) finishRun(ctx context.Context, run *executionRun, runErr error) *RunResult {
	now := time.Now().UTC()
	result := &RunResult{
		RunID:       run.runID,
		DocumentID:  run.documentID,
		Status:      schema.StatusCompleted,
		Statuses:    run.snapshotStatuses(),
		StartedAt:   run.startedAt,
		CompletedAt: &now,
	}

	eventType := schema.EventRunCompleted
	if runErr != nil {
		var flowErr *schema.FlowError
		if !errors.As(runErr, &flowErr) {
			flowErr = schema.NewError(schema.ErrCodeExecution, runErr.Error()).WithCause(runErr)
		}
		result.Error = flowErr
		if flowErr.Code == schema.ErrCodeCancelled {
			result.Status = schema.StatusCancelled
			eventType = schema.EventRunCancelled
		} else {
			result.Status = schema.StatusFailed
			eventType = schema.EventRunFailed
		}
	}

	e.emitRunEvent(ctx, run, eventType, result.Error)
	return result
}

// emitRunEvent publishes a run lifecycle event to the hub and audit log.
func (e *executorImpl) emitRunEvent(ctx context.Context, run *executionRun, eventType string, flowErr *schema.FlowError) {
	var payload map[string]any
	if flowErr != nil {
		payload = map[string]any{"code": flowErr.Code, "message": flowErr.Message}
	}
	if e.hub != nil {
		_ = e.hub.Publish(ctx, streaming.StreamEvent{
			DocumentID: run.documentID,
			RunID:      run.runID,
			EventType:  eventType,
			Payload:    payload,
		})
	}
	if e.appender != nil {
		if err := appendRunEvent(ctx, e.appender, run, eventType, payload); err != nil {
			e.logger.Warn("append run event failed", "run_id", run.runID, "error", err)
		}
	}
}

func appendRunEvent(ctx context.Context, appender EventAppender, run *executionRun, eventType string, payload map[string]any) error {
	event := &store.RunEvent{
		DocumentID: run.documentID,
		RunID:      run.runID,
		Type:       eventType,
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		event.Payload = body
	}
	return appender.AppendRunEvent(ctx, event)
}

func (r *executionRun) snapshotStatuses() map[string]schema.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]schema.RunStatus, len(r.statuses))
	for k, v := range r.statuses {
		out[k] = v
	}
	return out
}
