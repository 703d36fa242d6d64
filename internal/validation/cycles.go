package validation

import (
	"github.com/avendra/flowcanvas/pkg/schema"
)

// validateCycles reports whether the connection graph contains a directed
// cycle. Depth-first traversal from every node with an on-stack set;
// visited nodes are cached across roots so overall cost stays linear in
// nodes + edges. Only cycle existence is reported, not an enumeration.
func validateCycles(wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	adj := make(map[string][]string, len(wf.Nodes))
	nodeIDs := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodeIDs[n.ID] = true
	}
	for _, c := range wf.Connections {
		// Dangling endpoints are reported by the structural pass.
		if !nodeIDs[c.Source] || !nodeIDs[c.Target] {
			continue
		}
		adj[c.Source] = append(adj[c.Source], c.Target)
	}

	visited := make(map[string]bool, len(wf.Nodes))
	onStack := make(map[string]bool, len(wf.Nodes))

	var walk func(id string) bool
	walk = func(id string) bool {
		visited[id] = true
		onStack[id] = true
		for _, next := range adj[id] {
			if onStack[next] {
				return true
			}
			if !visited[next] && walk(next) {
				return true
			}
		}
		onStack[id] = false
		return false
	}

	for _, n := range wf.Nodes {
		if visited[n.ID] {
			continue
		}
		if walk(n.ID) {
			result.AddError("connections", schema.ErrCodeCycleDetected, "workflow contains a cycle")
			break
		}
	}

	return result
}
