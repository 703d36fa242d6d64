package validation

import (
	"fmt"

	"github.com/avendra/flowcanvas/pkg/schema"
)

// validateStructural applies the built-in structural rules in order:
// exactly one start node, at least one end node, no orphan nodes,
// connection endpoint integrity and self-loop flagging. All issues are
// collected; nothing short-circuits.
func validateStructural(wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	starts := 0
	ends := 0
	for _, n := range wf.Nodes {
		switch n.Kind {
		case schema.NodeStart:
			starts++
		case schema.NodeEnd:
			ends++
		}
	}

	switch {
	case starts == 0:
		result.AddError("nodes", schema.ErrCodeValidation, "workflow must have at least one start node")
	case starts > 1:
		result.AddError("nodes", schema.ErrCodeValidation, "workflow cannot have multiple start nodes")
	}
	if ends == 0 {
		result.AddError("nodes", schema.ErrCodeValidation, "workflow must have at least one end node")
	}

	// Orphans: any non-start node with no incident connection.
	connected := make(map[string]bool, len(wf.Nodes))
	for _, c := range wf.Connections {
		connected[c.Source] = true
		connected[c.Target] = true
	}
	for _, n := range wf.Nodes {
		if n.Kind == schema.NodeStart || connected[n.ID] {
			continue
		}
		name := n.Label
		if name == "" {
			name = n.ID
		}
		result.AddError(fmt.Sprintf("nodes[%s]", n.ID), schema.ErrCodeValidation,
			fmt.Sprintf("node %q is not connected to the workflow", name))
	}

	// Endpoint integrity and self-loops. Dangling endpoints normally
	// cannot be created through the graph model; they show up in
	// hand-edited or corrupted documents.
	nodeIDs := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodeIDs[n.ID] = true
	}
	for _, c := range wf.Connections {
		path := fmt.Sprintf("connections[%s]", c.ID)
		if !nodeIDs[c.Source] {
			result.AddError(path, schema.ErrCodeInvalidReference,
				fmt.Sprintf("connection %s references non-existent source node %q", c.ID, c.Source))
		}
		if !nodeIDs[c.Target] {
			result.AddError(path, schema.ErrCodeInvalidReference,
				fmt.Sprintf("connection %s references non-existent target node %q", c.ID, c.Target))
		}
		if c.Source == c.Target {
			result.AddError(path, schema.ErrCodeCycleDetected,
				fmt.Sprintf("connection %s is a self-loop on node %q", c.ID, c.Source))
		}
	}

	return result
}
