package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendra/flowcanvas/pkg/schema"
)

type recordingListener struct {
	nodeEvents int
	connEvents int
	lastNodes  []string
	lastConns  []string
}

func (r *recordingListener) NodesChanged(nodes []schema.Node) {
	r.nodeEvents++
	r.lastNodes = r.lastNodes[:0]
	for _, n := range nodes {
		r.lastNodes = append(r.lastNodes, n.ID)
	}
}

func (r *recordingListener) ConnectionsChanged(conns []schema.Connection) {
	r.connEvents++
	r.lastConns = r.lastConns[:0]
	for _, c := range conns {
		r.lastConns = append(r.lastConns, c.ID)
	}
}

func newTestGraph() *schema.Workflow {
	return &schema.Workflow{
		Nodes: []schema.Node{
			{ID: "s", Kind: schema.NodeStart},
			{ID: "a", Kind: schema.NodeTask},
			{ID: "e", Kind: schema.NodeEnd},
		},
		Connections: []schema.Connection{
			{ID: "c1", Source: "s", Target: "a"},
			{ID: "c2", Source: "a", Target: "e"},
		},
	}
}

func TestModel_AddNode(t *testing.T) {
	m := NewModel()
	wf := &schema.Workflow{}

	next, err := m.AddNode(wf, schema.Node{Kind: schema.NodeStart, Label: "begin"})
	require.NoError(t, err)
	require.Len(t, next.Nodes, 1)
	assert.NotEmpty(t, next.Nodes[0].ID, "missing ID should be generated")
	assert.Empty(t, wf.Nodes, "input snapshot must stay untouched")
}

func TestModel_AddNode_DuplicateID(t *testing.T) {
	m := NewModel()
	wf := newTestGraph()

	_, err := m.AddNode(wf, schema.Node{ID: "a", Kind: schema.NodeTask})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, err.(*schema.FlowError).Code)
}

func TestModel_AddNode_UnknownKind(t *testing.T) {
	m := NewModel()
	_, err := m.AddNode(&schema.Workflow{}, schema.Node{Kind: "teleport"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestModel_UpdateNode_Partial(t *testing.T) {
	m := NewModel()
	wf := newTestGraph()

	label := "renamed"
	next, err := m.UpdateNode(wf, "a", NodeUpdate{Label: &label})
	require.NoError(t, err)
	assert.Equal(t, "renamed", next.NodeByID("a").Label)
	assert.Equal(t, wf.NodeByID("a").Position, next.NodeByID("a").Position)

	_, err = m.UpdateNode(wf, "ghost", NodeUpdate{Label: &label})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, err.(*schema.FlowError).Code)
}

func TestModel_SetPosition(t *testing.T) {
	m := NewModel()
	wf := newTestGraph()

	next, err := m.SetPosition(wf, "a", 120, -40)
	require.NoError(t, err)
	assert.Equal(t, schema.Position{X: 120, Y: -40}, next.NodeByID("a").Position)
	assert.Equal(t, schema.Position{}, wf.NodeByID("a").Position)
}

func TestModel_RemoveNode_CascadesConnections(t *testing.T) {
	m := NewModel()
	wf := &schema.Workflow{
		Nodes: []schema.Node{
			{ID: "x", Kind: schema.NodeTask},
			{ID: "a", Kind: schema.NodeTask},
			{ID: "y", Kind: schema.NodeTask},
		},
		Connections: []schema.Connection{
			{ID: "in", Source: "x", Target: "a"},
			{ID: "out", Source: "a", Target: "y"},
		},
	}

	next := m.RemoveNode(wf, "a")
	assert.Nil(t, next.NodeByID("a"))
	assert.NotNil(t, next.NodeByID("x"))
	assert.NotNil(t, next.NodeByID("y"))
	assert.Empty(t, next.Connections, "incident connections must be removed with the node")
}

func TestModel_RemoveNode_UnknownIsNoop(t *testing.T) {
	m := NewModel()
	wf := newTestGraph()

	next := m.RemoveNode(wf, "ghost")
	assert.Equal(t, wf, next)
}

func TestModel_AddConnection_InvalidReference(t *testing.T) {
	m := NewModel()
	wf := newTestGraph()

	_, err := m.AddConnection(wf, schema.Connection{Source: "s", Target: "ghost"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeInvalidReference, err.(*schema.FlowError).Code)

	_, err = m.AddConnection(wf, schema.Connection{Source: "ghost", Target: "s"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeInvalidReference, err.(*schema.FlowError).Code)

	assert.Len(t, wf.Connections, 2, "rejected mutation must not change anything")
}

func TestModel_AddConnection_WithHandles(t *testing.T) {
	m := NewModel()
	wf := newTestGraph()

	next, err := m.AddConnection(wf, schema.Connection{
		Source: "s", Target: "e",
		SourceHandle: schema.HandleRight, TargetHandle: schema.HandleLeft,
	})
	require.NoError(t, err)
	require.Len(t, next.Connections, 3)
	added := next.Connections[2]
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, schema.HandleRight, added.SourceHandle)
}

func TestModel_RemoveConnection(t *testing.T) {
	m := NewModel()
	wf := newTestGraph()

	next := m.RemoveConnection(wf, "c1")
	assert.Nil(t, next.ConnectionByID("c1"))
	assert.NotNil(t, next.ConnectionByID("c2"))

	same := m.RemoveConnection(next, "ghost")
	assert.Equal(t, next, same)
}

func TestModel_ListenerNotifications(t *testing.T) {
	rec := &recordingListener{}
	m := NewModel(rec)
	wf := newTestGraph()

	wf, err := m.AddNode(wf, schema.Node{ID: "b", Kind: schema.NodeTask})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.nodeEvents)
	assert.Contains(t, rec.lastNodes, "b")

	wf, err = m.AddConnection(wf, schema.Connection{ID: "c3", Source: "e", Target: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.connEvents)

	// Cascade fires both node and connection notifications.
	m.RemoveNode(wf, "b")
	assert.Equal(t, 2, rec.nodeEvents)
	assert.Equal(t, 2, rec.connEvents)

	// Rejected mutations stay silent.
	_, err = m.AddConnection(wf, schema.Connection{Source: "ghost", Target: "s"})
	require.Error(t, err)
	assert.Equal(t, 2, rec.connEvents)
}

func TestModel_SetVariable_ReplacesSameNameAndScope(t *testing.T) {
	m := NewModel()
	wf := &schema.Workflow{}

	wf = m.SetVariable(wf, schema.Variable{Name: "env", Type: schema.VarString, Value: "dev"})
	wf = m.SetVariable(wf, schema.Variable{Name: "env", Type: schema.VarString, Value: "prod"})
	wf = m.SetVariable(wf, schema.Variable{Name: "env", Scope: "a", Type: schema.VarString, Value: "local"})

	require.Len(t, wf.Variables, 2)
	assert.Equal(t, "prod", wf.Variables[0].Value)
}
