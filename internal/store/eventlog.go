package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avendra/flowcanvas/pkg/schema"
)

// EventLog provides run-audit operations on top of a LibSQLStore.
type EventLog struct {
	store *LibSQLStore
}

// NewEventLog wraps a LibSQLStore to provide run-audit operations.
func NewEventLog(s *LibSQLStore) *EventLog {
	return &EventLog{store: s}
}

// AppendEvent appends an event with a monotonically increasing per-run sequence.
// A write-intent statement forces lock acquisition up front so concurrent
// writers cannot interleave sequence reads and writes in WAL mode.
func (el *EventLog) AppendEvent(ctx context.Context, event *RunEvent) error {
	db := el.store.DB()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin immediate tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return fmt.Errorf("cleanup write lock: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM run_events WHERE run_id = ?`, event.RunID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload := nullRaw(event.Payload)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_events (document_id, run_id, node_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullStr(event.DocumentID), event.RunID, nullStr(event.NodeID), event.Type, payload, event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert run event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run event: %w", err)
	}
	return nil
}

// GetEvents returns events for a run with sequence > since, ordered by sequence ASC.
func (el *EventLog) GetEvents(ctx context.Context, runID string, since int64) ([]*RunEvent, error) {
	return el.store.GetRunEvents(ctx, runID, since)
}

// statusPayload is the payload shape of node_status_changed events.
type statusPayload struct {
	Status schema.RunStatus `json:"status"`
}

// ReplayRun replays a run's events and returns the reconstructed
// per-node status map. Returns an error if sequence gaps are detected.
func (el *EventLog) ReplayRun(ctx context.Context, runID string) (map[string]schema.RunStatus, error) {
	events, err := el.store.GetRunEvents(ctx, runID, 0)
	if err != nil {
		return nil, fmt.Errorf("get events for replay: %w", err)
	}

	statuses := make(map[string]schema.RunStatus)

	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in run %s: expected %d, got %d", runID, expected, e.Sequence)
		}
		if e.Type != schema.EventNodeStatusChanged || e.NodeID == "" {
			continue
		}
		var p statusPayload
		if err := decodePayload(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode status payload (run %s, seq %d): %w", runID, e.Sequence, err)
		}
		statuses[e.NodeID] = p.Status
	}

	return statuses, nil
}
