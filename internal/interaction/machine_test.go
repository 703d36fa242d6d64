package interaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendra/flowcanvas/internal/geometry"
	"github.com/avendra/flowcanvas/internal/graph"
	"github.com/avendra/flowcanvas/internal/streaming"
	"github.com/avendra/flowcanvas/internal/validation"
	"github.com/avendra/flowcanvas/pkg/schema"
)

func newTestMachine() *Machine {
	wf := &schema.Workflow{
		Nodes: []schema.Node{
			{ID: "s", Kind: schema.NodeStart, Position: schema.Position{X: 0, Y: 0}},
			{ID: "a", Kind: schema.NodeTask, Position: schema.Position{X: 200, Y: 100}},
			{ID: "e", Kind: schema.NodeEnd, Position: schema.Position{X: 400, Y: 0}},
		},
		Connections: []schema.Connection{
			{ID: "c1", Source: "s", Target: "a"},
		},
	}
	return NewMachine(graph.NewModel(), geometry.NewViewport(), wf, nil)
}

func TestMachine_StartsIdle(t *testing.T) {
	m := newTestMachine()
	assert.Equal(t, StateIdle, m.State())
}

func TestMachine_DragNode(t *testing.T) {
	m := newTestMachine()

	m.PointerDown(schema.Position{X: 210, Y: 110}, Target{NodeID: "a"}, Modifiers{})
	assert.Equal(t, StateDraggingNode, m.State())

	m.PointerMove(schema.Position{X: 260, Y: 140})
	assert.Equal(t, schema.Position{X: 250, Y: 130}, m.Workflow().NodeByID("a").Position)

	m.PointerUp(schema.Position{X: 260, Y: 140}, Target{})
	assert.Equal(t, StateIdle, m.State())
}

func TestMachine_DragIsZoomInvariant(t *testing.T) {
	m := newTestMachine()
	m.viewport.SetZoom(2)

	m.PointerDown(schema.Position{X: 400, Y: 200}, Target{NodeID: "a"}, Modifiers{})
	// 100 screen pixels at zoom 2 is 50 graph units.
	m.PointerMove(schema.Position{X: 500, Y: 200})
	m.PointerUp(schema.Position{X: 500, Y: 200}, Target{})

	assert.Equal(t, schema.Position{X: 250, Y: 100}, m.Workflow().NodeByID("a").Position)
}

func TestMachine_DragWithSnapping(t *testing.T) {
	m := newTestMachine()
	m.viewport.SetGrid(20, true)

	m.PointerDown(schema.Position{X: 200, Y: 100}, Target{NodeID: "a"}, Modifiers{})
	m.PointerMove(schema.Position{X: 233, Y: 151})
	m.PointerUp(schema.Position{X: 233, Y: 151}, Target{})

	assert.Equal(t, schema.Position{X: 240, Y: 160}, m.Workflow().NodeByID("a").Position)
}

func TestMachine_ConnectGesture(t *testing.T) {
	m := newTestMachine()

	m.PointerDown(schema.Position{X: 210, Y: 100}, Target{NodeID: "a", Handle: schema.HandleRight}, Modifiers{})
	assert.Equal(t, StateConnecting, m.State())

	m.PointerUp(schema.Position{X: 400, Y: 0}, Target{NodeID: "e", Handle: schema.HandleLeft})
	assert.Equal(t, StateIdle, m.State())

	require.Len(t, m.Workflow().Connections, 2)
	added := m.Workflow().Connections[1]
	assert.Equal(t, "a", added.Source)
	assert.Equal(t, "e", added.Target)
	assert.Equal(t, schema.HandleRight, added.SourceHandle)
	assert.Equal(t, schema.HandleLeft, added.TargetHandle)
}

func TestMachine_ConnectToSameNodeCancels(t *testing.T) {
	m := newTestMachine()

	m.PointerDown(schema.Position{}, Target{NodeID: "a", Handle: schema.HandleTop}, Modifiers{})
	m.PointerUp(schema.Position{}, Target{NodeID: "a", Handle: schema.HandleBottom})

	assert.Equal(t, StateIdle, m.State())
	assert.Len(t, m.Workflow().Connections, 1, "no connection on same-node release")
}

func TestMachine_ConnectToCanvasCancels(t *testing.T) {
	m := newTestMachine()

	m.PointerDown(schema.Position{}, Target{NodeID: "a", Handle: schema.HandleTop}, Modifiers{})
	m.PointerUp(schema.Position{X: 999, Y: 999}, Target{})

	assert.Equal(t, StateIdle, m.State())
	assert.Len(t, m.Workflow().Connections, 1)
}

func TestMachine_PanGesture(t *testing.T) {
	m := newTestMachine()

	m.PointerDown(schema.Position{X: 50, Y: 50}, Target{}, Modifiers{})
	assert.Equal(t, StatePanning, m.State())

	m.PointerMove(schema.Position{X: 80, Y: 40})
	assert.Equal(t, schema.Position{X: 30, Y: -10}, m.viewport.Pan)

	m.PointerUp(schema.Position{X: 80, Y: 40}, Target{})
	assert.Equal(t, StateIdle, m.State())
}

func TestMachine_EscapeCancelsAnyGesture(t *testing.T) {
	m := newTestMachine()

	m.PointerDown(schema.Position{}, Target{NodeID: "a", Handle: schema.HandleTop}, Modifiers{})
	require.Equal(t, StateConnecting, m.State())

	m.Escape()
	assert.Equal(t, StateIdle, m.State())

	// The discarded gesture must not leak into a later pointer-up.
	m.PointerUp(schema.Position{}, Target{NodeID: "e", Handle: schema.HandleLeft})
	assert.Len(t, m.Workflow().Connections, 1)
}

func TestMachine_SelectionMutuallyExclusive(t *testing.T) {
	m := newTestMachine()

	m.PointerDown(schema.Position{}, Target{NodeID: "a"}, Modifiers{})
	m.PointerUp(schema.Position{}, Target{})
	assert.Equal(t, []string{"a"}, m.SelectedNodes())
	assert.Empty(t, m.SelectedConnection())

	m.PointerDown(schema.Position{}, Target{ConnectionID: "c1"}, Modifiers{})
	assert.Empty(t, m.SelectedNodes(), "selecting a connection clears node selection")
	assert.Equal(t, "c1", m.SelectedConnection())

	m.PointerDown(schema.Position{}, Target{NodeID: "s"}, Modifiers{})
	m.PointerUp(schema.Position{}, Target{})
	assert.Empty(t, m.SelectedConnection(), "selecting a node clears connection selection")
}

func TestMachine_RubberBandSelection(t *testing.T) {
	m := newTestMachine()

	m.PointerDown(schema.Position{X: -10, Y: -10}, Target{}, Modifiers{Shift: true})
	assert.Equal(t, StateSelecting, m.State())

	m.PointerUp(schema.Position{X: 250, Y: 150}, Target{})
	assert.Equal(t, StateIdle, m.State())
	assert.ElementsMatch(t, []string{"s", "a"}, m.SelectedNodes())
}

func TestMachine_DeleteSelectionCascades(t *testing.T) {
	m := newTestMachine()

	m.PointerDown(schema.Position{}, Target{NodeID: "a"}, Modifiers{})
	m.PointerUp(schema.Position{}, Target{})
	m.DeleteSelection()

	assert.Nil(t, m.Workflow().NodeByID("a"))
	assert.Empty(t, m.Workflow().Connections, "incident connection removed with the node")
	assert.Empty(t, m.SelectedNodes())
}

func TestMachine_PointerDownIgnoredMidGesture(t *testing.T) {
	m := newTestMachine()

	m.PointerDown(schema.Position{}, Target{NodeID: "a"}, Modifiers{})
	require.Equal(t, StateDraggingNode, m.State())

	// A second pointer-down mid-drag must not hijack the gesture.
	m.PointerDown(schema.Position{}, Target{NodeID: "e", Handle: schema.HandleTop}, Modifiers{})
	assert.Equal(t, StateDraggingNode, m.State())
}

func TestMachine_WatchValidityOnMutation(t *testing.T) {
	m := newTestMachine()
	hub := streaming.NewMemoryHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, unsub, err := hub.Subscribe(ctx, streaming.EventFilter{
		EventTypes: []string{schema.EventValidationResult},
	})
	require.NoError(t, err)
	defer unsub()

	m.WatchValidity("doc-1", validation.NewWorkflowValidator(nil), hub)
	assert.False(t, m.Valid(), "end node starts out orphaned")

	first := <-events
	assert.Equal(t, "doc-1", first.DocumentID)

	m.PointerDown(schema.Position{X: 210, Y: 100}, Target{NodeID: "a", Handle: schema.HandleRight}, Modifiers{})
	m.PointerUp(schema.Position{X: 400, Y: 0}, Target{NodeID: "e", Handle: schema.HandleLeft})

	assert.True(t, m.Valid())
	second := <-events
	result, ok := second.Payload.(*schema.ValidationResult)
	require.True(t, ok)
	assert.Empty(t, result.Errors)
}

func TestMachine_WatchValidityOnDelete(t *testing.T) {
	m := newTestMachine()
	m.WatchValidity("doc-1", validation.NewWorkflowValidator(nil), nil)

	m.PointerDown(schema.Position{X: 210, Y: 100}, Target{NodeID: "a", Handle: schema.HandleRight}, Modifiers{})
	m.PointerUp(schema.Position{X: 400, Y: 0}, Target{NodeID: "e", Handle: schema.HandleLeft})
	require.True(t, m.Valid())

	m.PointerDown(schema.Position{X: 200, Y: 100}, Target{NodeID: "a"}, Modifiers{})
	m.PointerUp(schema.Position{X: 200, Y: 100}, Target{})
	m.DeleteSelection()

	assert.False(t, m.Valid())
	require.NotNil(t, m.ValidationResult())
	assert.NotEmpty(t, m.ValidationResult().Errors)
}
