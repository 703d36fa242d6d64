package document

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avendra/flowcanvas/internal/streaming"
	"github.com/avendra/flowcanvas/pkg/schema"
)

// DefaultDebounce is the autosave quiet period.
const DefaultDebounce = 2 * time.Second

// SaveFunc persists the current workflow snapshot.
type SaveFunc func(ctx context.Context) error

// Autosaver debounces graph-mutation notifications into save requests.
// Each notification resets the pending timer: a new timer replaces, not
// stacks with, the old one, so a burst of edits produces a single save
// after the quiet period. Saves never run concurrently with themselves.
type Autosaver struct {
	save     SaveFunc
	hub      streaming.EventHub
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	saving  sync.Mutex
	stopped bool
}

// NewAutosaver creates an Autosaver. The hub may be nil.
func NewAutosaver(save SaveFunc, hub streaming.EventHub, debounce time.Duration, logger *slog.Logger) *Autosaver {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Autosaver{save: save, hub: hub, debounce: debounce, logger: logger}
}

// Notify records a graph mutation and (re)starts the debounce timer.
func (a *Autosaver) Notify(documentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, func() { a.fire(documentID) })
}

// Flush performs any pending save immediately.
func (a *Autosaver) Flush(documentID string) {
	a.mu.Lock()
	pending := a.timer != nil && a.timer.Stop()
	a.timer = nil
	a.mu.Unlock()
	if pending {
		a.fire(documentID)
	}
}

// Stop cancels any pending save.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autosaver) fire(documentID string) {
	// Serialize saves: a timer firing while a save is in progress waits
	// for it instead of overlapping.
	a.saving.Lock()
	defer a.saving.Unlock()

	ctx := context.Background()
	if a.hub != nil {
		_ = a.hub.Publish(ctx, streaming.StreamEvent{
			DocumentID: documentID,
			EventType:  schema.EventSaveRequested,
		})
	}
	if a.save == nil {
		return
	}
	if err := a.save(ctx); err != nil {
		a.logger.Warn("autosave failed", "document_id", documentID, "error", err)
	}
}
