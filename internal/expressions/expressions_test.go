package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendra/flowcanvas/pkg/schema"
)

func TestCELEngine_EvaluateBool(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	vars := map[string]any{"vars": map[string]any{"amount": 250, "region": "eu"}}

	ok, err := e.EvaluateBool(`vars.amount > 100 && vars.region == "eu"`, vars)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvaluateBool(`vars.amount > 1000`, vars)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCELEngine_NonBooleanResult(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.EvaluateBool(`vars.amount`, map[string]any{"vars": map[string]any{"amount": 5}})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExecution, err.(*schema.FlowError).Code)
}

func TestCELEngine_CompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.EvaluateBool(`vars.amount >`, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestCELEngine_MissingVarsDefaultToEmpty(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	ok, err := e.EvaluateBool(`"amount" in vars`, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExprEngine_Evaluate(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), `total * 2`, map[string]any{"total": 21})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestExprEngine_UndefinedVariablesAllowed(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), `missing ?? "fallback"`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)
}

func TestExprEngine_EmptyExpression(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
}

func TestGoJQEngine_SingleOutput(t *testing.T) {
	e := NewGoJQEngine()

	data := map[string]any{"response": map[string]any{"status": "ok", "items": []any{1.0, 2.0, 3.0}}}
	out, err := e.Evaluate(context.Background(), `.response.status`, data)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestGoJQEngine_MultipleOutputs(t *testing.T) {
	e := NewGoJQEngine()

	data := map[string]any{"items": []any{1.0, 2.0, 3.0}}
	out, err := e.Evaluate(context.Background(), `.items[]`, data)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, out)
}

func TestGoJQEngine_ParseError(t *testing.T) {
	e := NewGoJQEngine()
	_, err := e.Evaluate(context.Background(), `.[invalid`, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestEngines_ResultsAreCached(t *testing.T) {
	cel, err := NewCELEngine()
	require.NoError(t, err)
	_, err = cel.EvaluateBool(`1 < 2`, nil)
	require.NoError(t, err)
	assert.Len(t, cel.cache, 1)
	_, err = cel.EvaluateBool(`1 < 2`, nil)
	require.NoError(t, err)
	assert.Len(t, cel.cache, 1)
}
