// Package expressions evaluates the expression languages embedded in
// node configuration: CEL for decision-branch conditions, Expr for
// custom-node logic, and jq for webhook payload extraction.
package expressions

import "context"

// Engine evaluates expressions against a variable environment.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
