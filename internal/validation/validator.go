// Package validation checks workflow graphs for structural correctness
// before execution: start/end cardinality, orphan nodes, connection
// integrity, cycle detection, and externally supplied rules. Imported
// documents are additionally checked against a JSON Schema.
package validation

import (
	"log/slog"

	"github.com/avendra/flowcanvas/pkg/schema"
)

// WorkflowValidator runs the validation pipeline:
// 1. Structural (start/end cardinality, orphans, endpoint integrity)
// 2. Cycles (DFS with on-stack set)
// 3. Custom rules (pluggable, panic-isolated)
// A pure function of the snapshot: the same workflow always produces the
// same result, in rule order.
type WorkflowValidator struct {
	rules  []Rule
	logger *slog.Logger
}

// NewWorkflowValidator creates a WorkflowValidator with the given custom
// rules. logger may be nil, in which case slog.Default is used for
// reporting panicking rules.
func NewWorkflowValidator(logger *slog.Logger, rules ...Rule) *WorkflowValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowValidator{rules: rules, logger: logger}
}

// AddRule appends a custom rule to the pipeline.
func (v *WorkflowValidator) AddRule(rule Rule) {
	v.rules = append(v.rules, rule)
}

// Validate runs the full pipeline and returns the aggregated result.
// All rules run; nothing short-circuits.
func (v *WorkflowValidator) Validate(wf *schema.Workflow) *schema.ValidationResult {
	if wf == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "workflow is nil")
		return r
	}

	result := validateStructural(wf)
	result.Merge(validateCycles(wf))
	result.Merge(runCustomRules(wf, v.rules, v.logger))
	return result
}

// ValidateWorkflow returns the error list as plain strings; an empty
// list means the workflow is valid.
func (v *WorkflowValidator) ValidateWorkflow(wf *schema.Workflow) []string {
	return v.Validate(wf).Messages()
}
