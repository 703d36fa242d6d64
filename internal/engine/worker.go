package engine

import (
	"context"
	"time"

	"github.com/avendra/flowcanvas/internal/expressions"
	"github.com/avendra/flowcanvas/pkg/schema"
)

// NodeWorker performs a node's work during a run. Implementations must
// respect ctx cancellation: per-node timeouts arrive through it.
type NodeWorker interface {
	Execute(ctx context.Context, node *schema.Node, vars map[string]any) (any, error)
}

// DefaultSimulatedLatency is used for node kinds that have no
// configured work of their own.
const DefaultSimulatedLatency = 10 * time.Millisecond

// SimulatedWorker is the default NodeWorker. It interprets the parts of
// the configuration bag that make sense without external systems:
// delay nodes sleep their configured duration, custom nodes evaluate
// their expression, webhook nodes apply their jq extraction to the
// request template. Everything else completes after a short latency.
type SimulatedWorker struct {
	exprEngine *expressions.ExprEngine
	jqEngine   *expressions.GoJQEngine
	latency    time.Duration
}

// NewSimulatedWorker creates a SimulatedWorker with the default latency.
func NewSimulatedWorker() *SimulatedWorker {
	return &SimulatedWorker{
		exprEngine: expressions.NewExprEngine(),
		jqEngine:   expressions.NewGoJQEngine(),
		latency:    DefaultSimulatedLatency,
	}
}

// WithLatency overrides the simulated latency. Zero disables it.
func (w *SimulatedWorker) WithLatency(d time.Duration) *SimulatedWorker {
	w.latency = d
	return w
}

func (w *SimulatedWorker) Execute(ctx context.Context, node *schema.Node, vars map[string]any) (any, error) {
	cfg := node.Config

	switch node.Kind {
	case schema.NodeDelay:
		dur := w.latency
		if cfg != nil && cfg.Delay != "" {
			parsed, err := time.ParseDuration(cfg.Delay)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"invalid delay %q: %s", cfg.Delay, err.Error()).WithNode(node.ID)
			}
			dur = parsed
		}
		return nil, sleep(ctx, dur)

	case schema.NodeCustom:
		if cfg != nil && cfg.Expression != "" {
			return w.exprEngine.Evaluate(ctx, cfg.Expression, vars)
		}

	case schema.NodeWebhook:
		if cfg != nil && cfg.Extract != "" {
			payload := map[string]any{}
			if cfg.RequestTemplate != nil {
				payload = cfg.RequestTemplate
			}
			return w.jqEngine.Evaluate(ctx, cfg.Extract, payload)
		}
	}

	return nil, sleep(ctx, w.latency)
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ NodeWorker = (*SimulatedWorker)(nil)
