package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendra/flowcanvas/pkg/schema"
)

func newTestEventLog(t *testing.T) (*EventLog, *LibSQLStore) {
	t.Helper()
	s := newTestStore(t)
	return NewEventLog(s), s
}

func TestEventLog_AppendEvent_MonotonicSequence(t *testing.T) {
	el, _ := newTestEventLog(t)
	ctx := context.Background()
	runID := uuid.New().String()

	for i := 0; i < 5; i++ {
		e := &RunEvent{
			RunID:  runID,
			NodeID: "task1",
			Type:   schema.EventNodeStatusChanged,
		}
		require.NoError(t, el.AppendEvent(ctx, e))
		assert.Equal(t, int64(i+1), e.Sequence, "sequence should be monotonic")
	}
}

func TestEventLog_AppendEvent_NoDocumentID(t *testing.T) {
	el, _ := newTestEventLog(t)
	ctx := context.Background()
	runID := uuid.New().String()

	// Ad-hoc runs are not tied to a stored document.
	e := &RunEvent{RunID: runID, Type: schema.EventRunStarted}
	require.NoError(t, el.AppendEvent(ctx, e))

	events, err := el.GetEvents(ctx, runID, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].DocumentID)
}

func TestEventLog_SequencesIsolatedPerRun(t *testing.T) {
	el, _ := newTestEventLog(t)
	ctx := context.Background()
	runA := uuid.New().String()
	runB := uuid.New().String()

	eA := &RunEvent{RunID: runA, Type: schema.EventRunStarted}
	eB := &RunEvent{RunID: runB, Type: schema.EventRunStarted}
	require.NoError(t, el.AppendEvent(ctx, eA))
	require.NoError(t, el.AppendEvent(ctx, eB))

	assert.Equal(t, int64(1), eA.Sequence)
	assert.Equal(t, int64(1), eB.Sequence)
}

func TestEventLog_GetEvents(t *testing.T) {
	el, _ := newTestEventLog(t)
	ctx := context.Background()
	runID := uuid.New().String()

	for _, et := range []string{schema.EventRunStarted, schema.EventNodeStatusChanged, schema.EventRunCompleted} {
		require.NoError(t, el.AppendEvent(ctx, &RunEvent{RunID: runID, Type: et}))
	}

	events, err := el.GetEvents(ctx, runID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	events, err = el.GetEvents(ctx, runID, 1)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Sequence)
}

func TestEventLog_ConcurrentAppends_NoGaps(t *testing.T) {
	el, _ := newTestEventLog(t)
	ctx := context.Background()
	runID := uuid.New().String()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = el.AppendEvent(ctx, &RunEvent{
				RunID: runID,
				Type:  schema.EventNodeStatusChanged,
			})
		}()
	}
	wg.Wait()

	events, err := el.GetEvents(ctx, runID, 0)
	require.NoError(t, err)
	require.Len(t, events, n)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Sequence)
	}
}

func TestEventLog_ReplayRun(t *testing.T) {
	el, _ := newTestEventLog(t)
	ctx := context.Background()
	runID := uuid.New().String()

	statusEvent := func(node string, status schema.RunStatus) *RunEvent {
		payload, _ := json.Marshal(map[string]any{"status": status})
		return &RunEvent{
			RunID:   runID,
			NodeID:  node,
			Type:    schema.EventNodeStatusChanged,
			Payload: payload,
		}
	}

	require.NoError(t, el.AppendEvent(ctx, &RunEvent{RunID: runID, Type: schema.EventRunStarted}))
	require.NoError(t, el.AppendEvent(ctx, statusEvent("a", schema.StatusRunning)))
	require.NoError(t, el.AppendEvent(ctx, statusEvent("a", schema.StatusCompleted)))
	require.NoError(t, el.AppendEvent(ctx, statusEvent("b", schema.StatusFailed)))
	require.NoError(t, el.AppendEvent(ctx, &RunEvent{RunID: runID, Type: schema.EventRunFailed}))

	statuses, err := el.ReplayRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, schema.StatusCompleted, statuses["a"])
	assert.Equal(t, schema.StatusFailed, statuses["b"])
}

func TestEventLog_ReplayRun_Empty(t *testing.T) {
	el, _ := newTestEventLog(t)
	statuses, err := el.ReplayRun(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, statuses)
}
