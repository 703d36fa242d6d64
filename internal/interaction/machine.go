// Package interaction resolves pointer and keyboard events into graph
// mutations. Gesture state is an explicit state machine with a
// transition table so invalid-state handling is testable independently
// of rendering.
package interaction

import (
	"context"
	"log/slog"

	"github.com/avendra/flowcanvas/internal/geometry"
	"github.com/avendra/flowcanvas/internal/graph"
	"github.com/avendra/flowcanvas/internal/streaming"
	"github.com/avendra/flowcanvas/pkg/schema"
)

// State is the current gesture state.
type State string

const (
	StateIdle         State = "idle"
	StateDraggingNode State = "dragging_node"
	StateConnecting   State = "connecting"
	StatePanning      State = "panning"
	StateSelecting    State = "selecting"
)

// validTransitions defines the allowed gesture transitions. Escape is
// special-cased: it forces Idle from any state.
var validTransitions = map[State][]State{
	StateIdle:         {StateDraggingNode, StateConnecting, StatePanning, StateSelecting},
	StateDraggingNode: {StateIdle},
	StateConnecting:   {StateIdle},
	StatePanning:      {StateIdle},
	StateSelecting:    {StateIdle},
}

// Target describes what is under the pointer when an event fires. The
// zero value means empty canvas.
type Target struct {
	NodeID       string
	Handle       schema.Handle // set when the pointer is on a connection handle
	ConnectionID string
}

// Modifiers carries the active keyboard modifiers for a pointer event.
type Modifiers struct {
	Shift bool
}

// Checker re-checks a snapshot after a structural mutation.
type Checker interface {
	Validate(wf *schema.Workflow) *schema.ValidationResult
}

// Machine consumes pointer/keyboard events and applies the resulting
// mutations to the workflow snapshot through the graph model. It is the
// sole mutator and processes one event at a time; no locking.
type Machine struct {
	model    *graph.Model
	viewport *geometry.Viewport
	logger   *slog.Logger

	wf    *schema.Workflow
	state State

	// DraggingNode
	dragNodeID string
	dragOrigin schema.Position // graph-space pointer position at drag start
	dragStart  schema.Position // node position at drag start

	// Connecting
	connectSource string
	connectHandle schema.Handle

	// Panning
	panLast schema.Position // screen-space

	// Selecting (rubber band, screen-space corners)
	selectAnchor schema.Position

	// Selection is tracked independently of the gesture state. A node
	// selection and a connection selection are mutually exclusive.
	selectedNodes      map[string]bool
	selectedConnection string

	// Validity watching, optional.
	documentID string
	checker    Checker
	hub        streaming.EventHub
	lastResult *schema.ValidationResult
}

// NewMachine creates a Machine operating on the given snapshot.
func NewMachine(model *graph.Model, viewport *geometry.Viewport, wf *schema.Workflow, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		model:         model,
		viewport:      viewport,
		logger:        logger,
		wf:            wf,
		state:         StateIdle,
		selectedNodes: make(map[string]bool),
	}
}

// State returns the current gesture state.
func (m *Machine) State() State { return m.state }

// Workflow returns the current snapshot.
func (m *Machine) Workflow() *schema.Workflow { return m.wf }

// SetWorkflow replaces the snapshot (e.g. after loading a document) and
// resets gesture and selection state.
func (m *Machine) SetWorkflow(wf *schema.Workflow) {
	m.wf = wf
	m.reset()
	m.clearSelection()
	m.revalidate()
}

// WatchValidity re-checks the snapshot after every structural mutation
// and publishes the result to the hub. The hub may be nil when only the
// Valid/ValidationResult accessors are needed.
func (m *Machine) WatchValidity(documentID string, checker Checker, hub streaming.EventHub) {
	m.documentID = documentID
	m.checker = checker
	m.hub = hub
	m.revalidate()
}

// Valid reports whether the last check found no errors. True before the
// first check.
func (m *Machine) Valid() bool {
	return m.lastResult == nil || m.lastResult.Valid()
}

// ValidationResult returns the result of the last check, or nil.
func (m *Machine) ValidationResult() *schema.ValidationResult { return m.lastResult }

// PointerDown starts a gesture based on what is under the pointer:
// a handle starts a connect gesture, a node body starts a drag, empty
// canvas pans (or rubber-band selects with shift held).
func (m *Machine) PointerDown(screen schema.Position, target Target, mods Modifiers) {
	if m.state != StateIdle {
		return
	}

	switch {
	case target.NodeID != "" && target.Handle != "":
		m.transition(StateConnecting)
		m.connectSource = target.NodeID
		m.connectHandle = target.Handle

	case target.NodeID != "":
		node := m.wf.NodeByID(target.NodeID)
		if node == nil {
			return
		}
		m.transition(StateDraggingNode)
		m.dragNodeID = target.NodeID
		m.dragOrigin = m.viewport.ToGraph(screen)
		m.dragStart = node.Position
		m.selectNode(target.NodeID, mods.Shift)

	case target.ConnectionID != "":
		m.selectConnection(target.ConnectionID)

	case mods.Shift:
		m.transition(StateSelecting)
		m.selectAnchor = screen

	default:
		m.transition(StatePanning)
		m.panLast = screen
	}
}

// PointerMove advances the active gesture. Node drags recompute the
// delta in graph space so drag speed is zoom-invariant, then snap.
func (m *Machine) PointerMove(screen schema.Position) {
	switch m.state {
	case StateDraggingNode:
		pointer := m.viewport.ToGraph(screen)
		pos := m.viewport.Snap(schema.Position{
			X: m.dragStart.X + pointer.X - m.dragOrigin.X,
			Y: m.dragStart.Y + pointer.Y - m.dragOrigin.Y,
		})
		next, err := m.model.SetPosition(m.wf, m.dragNodeID, pos.X, pos.Y)
		if err != nil {
			// Node deleted mid-drag by another collaborator callback.
			m.logger.Warn("drag target vanished", slog.String("node_id", m.dragNodeID))
			m.transition(StateIdle)
			m.reset()
			return
		}
		m.wf = next

	case StatePanning:
		m.viewport.PanBy(screen.X-m.panLast.X, screen.Y-m.panLast.Y)
		m.panLast = screen
	}
}

// PointerUp completes the active gesture. A connect gesture released on
// a different node's handle creates the connection; released anywhere
// else it cancels without mutation.
func (m *Machine) PointerUp(screen schema.Position, target Target) {
	switch m.state {
	case StateConnecting:
		if target.NodeID != "" && target.Handle != "" && target.NodeID != m.connectSource {
			next, err := m.model.AddConnection(m.wf, schema.Connection{
				Source:       m.connectSource,
				SourceHandle: m.connectHandle,
				Target:       target.NodeID,
				TargetHandle: target.Handle,
			})
			if err != nil {
				m.logger.Warn("connect gesture rejected", slog.String("error", err.Error()))
			} else {
				m.wf = next
				m.revalidate()
			}
		}

	case StateSelecting:
		m.selectWithin(m.selectAnchor, screen)
	}

	if m.state != StateIdle {
		m.transition(StateIdle)
		m.reset()
	}
}

// Escape forcibly returns to Idle, discarding any in-progress gesture.
func (m *Machine) Escape() {
	m.state = StateIdle
	m.reset()
}

// SelectedNodes returns the IDs of the selected nodes.
func (m *Machine) SelectedNodes() []string {
	ids := make([]string, 0, len(m.selectedNodes))
	for id := range m.selectedNodes {
		ids = append(ids, id)
	}
	return ids
}

// SelectedConnection returns the selected connection ID, or "".
func (m *Machine) SelectedConnection() string { return m.selectedConnection }

// DeleteSelection removes the selected nodes (cascading to incident
// connections) or the selected connection, then clears the selection.
func (m *Machine) DeleteSelection() {
	if m.selectedConnection != "" {
		m.wf = m.model.RemoveConnection(m.wf, m.selectedConnection)
	}
	for id := range m.selectedNodes {
		m.wf = m.model.RemoveNode(m.wf, id)
	}
	m.clearSelection()
	m.revalidate()
}

func (m *Machine) selectNode(id string, additive bool) {
	m.selectedConnection = ""
	if !additive {
		m.selectedNodes = make(map[string]bool)
	}
	m.selectedNodes[id] = true
}

func (m *Machine) selectConnection(id string) {
	m.selectedNodes = make(map[string]bool)
	m.selectedConnection = id
}

// selectWithin selects all nodes whose position falls inside the
// screen-space rubber band rectangle.
func (m *Machine) selectWithin(a, b schema.Position) {
	lo := m.viewport.ToGraph(schema.Position{X: min(a.X, b.X), Y: min(a.Y, b.Y)})
	hi := m.viewport.ToGraph(schema.Position{X: max(a.X, b.X), Y: max(a.Y, b.Y)})

	m.clearSelection()
	for _, n := range m.wf.Nodes {
		if n.Position.X >= lo.X && n.Position.X <= hi.X &&
			n.Position.Y >= lo.Y && n.Position.Y <= hi.Y {
			m.selectedNodes[n.ID] = true
		}
	}
}

func (m *Machine) clearSelection() {
	m.selectedNodes = make(map[string]bool)
	m.selectedConnection = ""
}

func (m *Machine) transition(to State) {
	if !isValidTransition(m.state, to) {
		m.logger.Warn("invalid gesture transition",
			slog.String("from", string(m.state)),
			slog.String("to", string(to)))
		return
	}
	m.state = to
}

// revalidate runs the checker against the current snapshot and publishes
// the result. Position-only updates skip this: they cannot change
// validity.
func (m *Machine) revalidate() {
	if m.checker == nil {
		return
	}
	m.lastResult = m.checker.Validate(m.wf)
	if m.hub == nil {
		return
	}
	err := m.hub.Publish(context.Background(), streaming.StreamEvent{
		DocumentID: m.documentID,
		EventType:  schema.EventValidationResult,
		Payload:    m.lastResult,
	})
	if err != nil {
		m.logger.Warn("validation result publish failed", slog.String("error", err.Error()))
	}
}

func (m *Machine) reset() {
	m.dragNodeID = ""
	m.connectSource = ""
	m.connectHandle = ""
}

func isValidTransition(from, to State) bool {
	for _, a := range validTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}
