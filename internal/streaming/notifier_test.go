package streaming

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendra/flowcanvas/internal/graph"
	"github.com/avendra/flowcanvas/pkg/schema"
)

var _ graph.Listener = (*GraphNotifier)(nil)

func TestGraphNotifierPublishesMutations(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{DocumentID: "doc-1"})
	require.NoError(t, err)
	defer cancel()

	model := graph.NewModel(NewGraphNotifier("doc-1", hub))
	wf := &schema.Workflow{}

	wf, err = model.AddNode(wf, schema.Node{ID: "s", Kind: schema.NodeStart})
	require.NoError(t, err)
	wf, err = model.AddNode(wf, schema.Node{ID: "e", Kind: schema.NodeEnd})
	require.NoError(t, err)
	_, err = model.AddConnection(wf, schema.Connection{Source: "s", Target: "e"})
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, schema.EventNodesChanged, first.EventType)
	nodes, ok := first.Payload.([]schema.Node)
	require.True(t, ok)
	assert.Len(t, nodes, 1)

	<-ch // second node

	third := <-ch
	assert.Equal(t, schema.EventConnectionsChanged, third.EventType)
	conns, ok := third.Payload.([]schema.Connection)
	require.True(t, ok)
	require.Len(t, conns, 1)
	assert.Equal(t, "s", conns[0].Source)
}
