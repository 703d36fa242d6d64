package schema

// Event type constants for the editor event stream and the run audit log.
const (
	EventNodesChanged       = "nodes_changed"
	EventConnectionsChanged = "connections_changed"
	EventValidationResult   = "validation_result"
	EventSaveRequested      = "save_requested"

	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
	EventRunCancelled = "run_cancelled"

	EventNodeStatusChanged = "node_status_changed"

	EventTriggerFired = "trigger_fired"
)

// RunStatus is the per-node execution status within a single run.
// A node that was never reached has no entry in the run's status map.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// ValidRunTransitions defines the allowed per-node status transitions
// during a run. The empty status (never visited) may enter at pending
// or running.
var ValidRunTransitions = map[RunStatus][]RunStatus{
	"":              {StatusPending, StatusRunning, StatusCancelled},
	StatusPending:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {StatusRunning}, // diamond graphs revisit shared nodes once per path
	StatusFailed:    {},
	StatusCancelled: {},
}
