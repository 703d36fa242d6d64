package streaming

import (
	"context"

	"github.com/avendra/flowcanvas/pkg/schema"
)

// GraphNotifier forwards graph mutations to the hub as nodes_changed
// and connections_changed events. It satisfies the graph model's
// listener interface; the slices are copied because subscribers read
// them after the mutation call returns.
type GraphNotifier struct {
	documentID string
	hub        EventHub
}

// NewGraphNotifier creates a notifier publishing under the given
// document ID.
func NewGraphNotifier(documentID string, hub EventHub) *GraphNotifier {
	return &GraphNotifier{documentID: documentID, hub: hub}
}

func (n *GraphNotifier) NodesChanged(nodes []schema.Node) {
	_ = n.hub.Publish(context.Background(), StreamEvent{
		DocumentID: n.documentID,
		EventType:  schema.EventNodesChanged,
		Payload:    append([]schema.Node(nil), nodes...),
	})
}

func (n *GraphNotifier) ConnectionsChanged(connections []schema.Connection) {
	_ = n.hub.Publish(context.Background(), StreamEvent{
		DocumentID: n.documentID,
		EventType:  schema.EventConnectionsChanged,
		Payload:    append([]schema.Connection(nil), connections...),
	})
}
