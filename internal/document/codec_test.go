package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendra/flowcanvas/pkg/schema"
)

func sampleWorkflow() *schema.Workflow {
	return &schema.Workflow{
		ID:   "wf-1",
		Name: "expense approval",
		Nodes: []schema.Node{
			{ID: "start", Kind: schema.NodeStart, Label: "Start", Position: schema.Position{X: 40, Y: 80}},
			{
				ID: "approve", Kind: schema.NodeApproval, Label: "Manager Approval",
				Position: schema.Position{X: 240, Y: 80},
				Width:    180, Height: 90,
				Config: &schema.NodeConfig{
					Timeout:   "48h",
					Assignees: []string{"manager@example.com"},
				},
			},
			{ID: "end", Kind: schema.NodeEnd, Label: "End", Position: schema.Position{X: 440, Y: 80}},
		},
		Connections: []schema.Connection{
			{ID: "c1", Source: "start", Target: "approve", SourceHandle: schema.HandleRight, TargetHandle: schema.HandleLeft},
			{ID: "c2", Source: "approve", Target: "end", Label: "approved", Animated: true},
		},
		Variables: []schema.Variable{
			{Name: "amount", Type: schema.VarNumber, Scope: "global", Value: 125.5},
		},
		Triggers: []schema.Trigger{
			{ID: "t1", Kind: schema.TriggerManual, Enabled: true},
		},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	original := sampleWorkflow()
	body, err := codec.Save(original)
	require.NoError(t, err)

	loaded, err := codec.Load(body)
	require.NoError(t, err)

	assert.Equal(t, original.ID, loaded.ID)
	assert.Equal(t, original.Name, loaded.Name)
	assert.Equal(t, original.Nodes, loaded.Nodes)
	assert.Equal(t, original.Connections, loaded.Connections)
	assert.Equal(t, original.Triggers, loaded.Triggers)
	require.Len(t, loaded.Variables, 1)
	assert.Equal(t, "amount", loaded.Variables[0].Name)
	assert.EqualValues(t, 125.5, loaded.Variables[0].Value)
}

func TestCodec_SecondRoundTripIsStable(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	first, err := codec.Save(sampleWorkflow())
	require.NoError(t, err)

	loaded, err := codec.Load(first)
	require.NoError(t, err)

	second, err := codec.Save(loaded)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestCodec_LoadRejectsMalformedJSON(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	_, err = codec.Load([]byte(`{"id": "x", "nodes": [`))
	require.Error(t, err)
}

func TestCodec_LoadRejectsInvalidKind(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	raw := []byte(`{
		"id": "wf-bad",
		"name": "bad",
		"nodes": [{"id": "n1", "kind": "teleport", "position": {"x": 0, "y": 0}}],
		"connections": []
	}`)
	_, err = codec.Load(raw)
	require.Error(t, err)
	flowErr, ok := err.(*schema.FlowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, flowErr.Code)
}

func TestCodec_SaveNil(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	_, err = codec.Save(nil)
	require.Error(t, err)
}
