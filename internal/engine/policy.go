package engine

import (
	"math/rand"
	"sync"

	"github.com/avendra/flowcanvas/pkg/schema"
)

// FailurePolicy decides whether a node's simulated work fails before
// the worker is even invoked. A nil return means proceed normally.
type FailurePolicy func(node *schema.Node) error

// NeverFail is the deterministic policy used in tests.
func NeverFail(_ *schema.Node) error { return nil }

// FailNodes fails exactly the named nodes. Deterministic.
func FailNodes(ids ...string) FailurePolicy {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(node *schema.Node) error {
		if set[node.ID] {
			return schema.NewErrorf(schema.ErrCodeExecution,
				"simulated failure at node %q", node.Label).WithNode(node.ID)
		}
		return nil
	}
}

// RandomFailure fails each node with the given probability. Start and
// end nodes never fail; they carry no work.
func RandomFailure(rate float64) FailurePolicy {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(rand.Int63()))
	return func(node *schema.Node) error {
		if node.Kind == schema.NodeStart || node.Kind == schema.NodeEnd {
			return nil
		}
		mu.Lock()
		roll := rng.Float64()
		mu.Unlock()
		if roll < rate {
			return schema.NewErrorf(schema.ErrCodeExecution,
				"simulated failure at node %q", node.Label).WithNode(node.ID)
		}
		return nil
	}
}
