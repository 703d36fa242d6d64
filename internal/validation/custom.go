package validation

import (
	"fmt"
	"log/slog"

	"github.com/avendra/flowcanvas/pkg/schema"
)

// Rule is an externally supplied validation rule. It receives the full
// workflow snapshot and returns zero or more error messages.
type Rule func(wf *schema.Workflow) []string

// runCustomRules applies each rule in order. A panicking rule is
// recovered and logged so one broken rule cannot block the others.
func runCustomRules(wf *schema.Workflow, rules []Rule, logger *slog.Logger) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	for i, rule := range rules {
		for _, msg := range runRule(wf, rule, i, logger) {
			result.AddError(fmt.Sprintf("rules[%d]", i), schema.ErrCodeValidation, msg)
		}
	}

	return result
}

func runRule(wf *schema.Workflow, rule Rule, idx int, logger *slog.Logger) (msgs []string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("custom validation rule panicked",
				slog.Int("rule", idx),
				slog.Any("panic", r))
			msgs = nil
		}
	}()
	return rule(wf)
}
