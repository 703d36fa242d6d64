// Package graph owns the canonical workflow snapshot and its mutation
// operations. Every operation follows a read-mutate-replace discipline:
// the input snapshot is never modified, a new snapshot is returned, and
// the caller feeds it into the next operation. There is no locking
// because there is no parallel mutation path.
package graph

import (
	"github.com/google/uuid"

	"github.com/avendra/flowcanvas/pkg/schema"
)

// Listener observes successful graph mutations. Implementations must not
// retain the slices they receive beyond the call.
type Listener interface {
	NodesChanged(nodes []schema.Node)
	ConnectionsChanged(connections []schema.Connection)
}

// Model applies mutations to workflow snapshots and notifies listeners.
type Model struct {
	listeners []Listener
}

// NewModel creates a Model with the given listeners.
func NewModel(listeners ...Listener) *Model {
	return &Model{listeners: listeners}
}

// Subscribe registers an additional listener.
func (m *Model) Subscribe(l Listener) {
	m.listeners = append(m.listeners, l)
}

// AddNode returns a new snapshot with the node appended. A missing ID is
// generated; a duplicate ID is rejected with CONFLICT; an unknown kind
// is rejected with VALIDATION_ERROR.
func (m *Model) AddNode(wf *schema.Workflow, node schema.Node) (*schema.Workflow, error) {
	if !schema.ValidNodeKinds[node.Kind] {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown node kind: %s", node.Kind)
	}
	if node.ID == "" {
		node.ID = uuid.New().String()
	} else if wf.NodeByID(node.ID) != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "duplicate node ID: %s", node.ID).WithNode(node.ID)
	}

	next := wf.Clone()
	next.Nodes = append(next.Nodes, node)
	m.notifyNodes(next)
	return next, nil
}

// NodeUpdate is a partial node update; nil fields are left unchanged.
type NodeUpdate struct {
	Label    *string
	Position *schema.Position
	Width    *float64
	Height   *float64
	Config   *schema.NodeConfig
}

// UpdateNode returns a new snapshot with the partial update applied.
// Node kind and ID are immutable. An unknown ID is rejected with NOT_FOUND.
func (m *Model) UpdateNode(wf *schema.Workflow, id string, update NodeUpdate) (*schema.Workflow, error) {
	if wf.NodeByID(id) == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "node not found: %s", id).WithNode(id)
	}

	next := wf.Clone()
	node := next.NodeByID(id)
	if update.Label != nil {
		node.Label = *update.Label
	}
	if update.Position != nil {
		node.Position = *update.Position
	}
	if update.Width != nil {
		node.Width = *update.Width
	}
	if update.Height != nil {
		node.Height = *update.Height
	}
	if update.Config != nil {
		node.Config = update.Config
	}
	m.notifyNodes(next)
	return next, nil
}

// SetPosition returns a new snapshot with the node moved to (x, y).
func (m *Model) SetPosition(wf *schema.Workflow, id string, x, y float64) (*schema.Workflow, error) {
	return m.UpdateNode(wf, id, NodeUpdate{Position: &schema.Position{X: x, Y: y}})
}

// RemoveNode returns a new snapshot without the node and without any
// connection referencing it. Removing an unknown ID is a no-op snapshot
// copy, keeping deletion idempotent for concurrent UI callbacks.
func (m *Model) RemoveNode(wf *schema.Workflow, id string) *schema.Workflow {
	next := wf.Clone()
	if next.NodeByID(id) == nil {
		return next
	}

	nodes := next.Nodes[:0]
	for _, n := range next.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	next.Nodes = nodes

	conns := next.Connections[:0]
	removed := false
	for _, c := range next.Connections {
		if c.Source == id || c.Target == id {
			removed = true
			continue
		}
		conns = append(conns, c)
	}
	next.Connections = conns

	m.notifyNodes(next)
	if removed {
		m.notifyConnections(next)
	}
	return next
}

// AddConnection returns a new snapshot with the connection appended.
// Both endpoints must reference existing nodes; otherwise the mutation
// is rejected with INVALID_REFERENCE and no snapshot is produced.
func (m *Model) AddConnection(wf *schema.Workflow, conn schema.Connection) (*schema.Workflow, error) {
	if wf.NodeByID(conn.Source) == nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidReference, "connection source not found: %s", conn.Source)
	}
	if wf.NodeByID(conn.Target) == nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidReference, "connection target not found: %s", conn.Target)
	}
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	} else if wf.ConnectionByID(conn.ID) != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "duplicate connection ID: %s", conn.ID)
	}

	next := wf.Clone()
	next.Connections = append(next.Connections, conn)
	m.notifyConnections(next)
	return next, nil
}

// RemoveConnection returns a new snapshot without the connection.
// Unknown IDs are a no-op, mirroring RemoveNode.
func (m *Model) RemoveConnection(wf *schema.Workflow, id string) *schema.Workflow {
	next := wf.Clone()
	if next.ConnectionByID(id) == nil {
		return next
	}

	conns := next.Connections[:0]
	for _, c := range next.Connections {
		if c.ID != id {
			conns = append(conns, c)
		}
	}
	next.Connections = conns
	m.notifyConnections(next)
	return next
}

// SetVariable returns a new snapshot with the variable added or, when a
// variable with the same name and scope exists, replaced.
func (m *Model) SetVariable(wf *schema.Workflow, v schema.Variable) *schema.Workflow {
	next := wf.Clone()
	for i := range next.Variables {
		if next.Variables[i].Name == v.Name && next.Variables[i].Scope == v.Scope {
			next.Variables[i] = v
			return next
		}
	}
	next.Variables = append(next.Variables, v)
	return next
}

// AddTrigger returns a new snapshot with the trigger appended, generating
// an ID when absent.
func (m *Model) AddTrigger(wf *schema.Workflow, t schema.Trigger) *schema.Workflow {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	next := wf.Clone()
	next.Triggers = append(next.Triggers, t)
	return next
}

func (m *Model) notifyNodes(wf *schema.Workflow) {
	for _, l := range m.listeners {
		l.NodesChanged(wf.Nodes)
	}
}

func (m *Model) notifyConnections(wf *schema.Workflow) {
	for _, l := range m.listeners {
		l.ConnectionsChanged(wf.Connections)
	}
}
