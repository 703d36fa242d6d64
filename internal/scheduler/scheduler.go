// Package scheduler fires enabled schedule triggers on stored workflow
// documents.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/avendra/flowcanvas/internal/store"
	"github.com/avendra/flowcanvas/internal/streaming"
	"github.com/avendra/flowcanvas/pkg/schema"
)

// DefaultPollInterval is the scheduler tick period.
const DefaultPollInterval = 60 * time.Second

// DocumentRunner is the interface the scheduler uses to start runs.
// Satisfied by the executor wiring in cmd (avoids import cycle).
type DocumentRunner interface {
	RunDocument(ctx context.Context, documentID string) error
}

// Scheduler polls stored documents for enabled schedule triggers and
// starts a run when a trigger's cron expression comes due. Last-fired
// times are kept in memory; a restart treats every trigger as not yet
// fired.
type Scheduler struct {
	store    store.Store
	runner   DocumentRunner
	hub      streaming.EventHub
	parser   cron.Parser
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	wg       sync.WaitGroup

	firedMu   sync.Mutex
	lastFired map[string]time.Time // documentID/triggerID -> last fire time
	inflight  map[string]struct{}  // document IDs currently executing (dedup)
}

// NewScheduler creates a Scheduler. The hub may be nil.
func NewScheduler(s store.Store, runner DocumentRunner, hub streaming.EventHub, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:     s,
		runner:    runner,
		hub:       hub,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		interval:  DefaultPollInterval,
		logger:    logger,
		lastFired: make(map[string]time.Time),
		inflight:  make(map[string]struct{}),
	}
}

// WithPollInterval overrides the tick period. For tests.
func (s *Scheduler) WithPollInterval(d time.Duration) *Scheduler {
	s.interval = d
	return s
}

// Start launches the background polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	defer s.wg.Wait()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick scans all documents and fires any due schedule triggers.
func (s *Scheduler) tick(ctx context.Context) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		s.logger.Error("failed to list documents", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, doc := range docs {
		for _, trigger := range doc.Definition.Triggers {
			if !trigger.Enabled || trigger.Kind != schema.TriggerSchedule {
				continue
			}
			due, err := s.isDue(doc.ID, trigger, now)
			if err != nil {
				s.logger.Warn("bad schedule trigger",
					slog.String("document_id", doc.ID),
					slog.String("trigger_id", trigger.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !due {
				continue
			}
			if !s.tryAcquire(doc.ID) {
				continue // a run for this document is already in flight
			}
			// Record the fire time before the run starts so the next
			// tick does not refire while it is still going.
			key := doc.ID + "/" + trigger.ID
			s.firedMu.Lock()
			s.lastFired[key] = now
			s.firedMu.Unlock()

			s.wg.Add(1)
			go func(docID string, trig schema.Trigger) {
				defer s.wg.Done()
				defer s.release(docID)
				s.fire(ctx, docID, trig)
			}(doc.ID, trigger)
		}
	}
}

// isDue reports whether the trigger's cron schedule has a fire time
// between its last fire (or scheduler start) and now.
func (s *Scheduler) isDue(documentID string, trigger schema.Trigger, now time.Time) (bool, error) {
	expr, _ := trigger.Config["cron"].(string)
	if expr == "" {
		return false, fmt.Errorf("schedule trigger %s has no cron expression", trigger.ID)
	}
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return false, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}

	key := documentID + "/" + trigger.ID
	s.firedMu.Lock()
	last, seen := s.lastFired[key]
	if !seen {
		// First sighting: anchor to now so historical fire times are
		// not replayed.
		s.lastFired[key] = now
		s.firedMu.Unlock()
		return false, nil
	}
	s.firedMu.Unlock()

	next := schedule.Next(last)
	return !next.After(now), nil
}

// fire publishes trigger_fired and starts a run. It blocks for the
// length of the run, which is why tick launches it on its own
// goroutine with the in-flight slot held.
func (s *Scheduler) fire(ctx context.Context, documentID string, trigger schema.Trigger) {
	s.logger.Info("schedule trigger fired",
		slog.String("document_id", documentID),
		slog.String("trigger_id", trigger.ID),
	)

	if s.hub != nil {
		_ = s.hub.Publish(ctx, streaming.StreamEvent{
			DocumentID: documentID,
			EventType:  schema.EventTriggerFired,
			Payload:    map[string]any{"trigger_id": trigger.ID},
		})
	}

	if err := s.runner.RunDocument(ctx, documentID); err != nil {
		s.logger.Error("scheduled run failed",
			slog.String("document_id", documentID),
			slog.String("trigger_id", trigger.ID),
			slog.String("error", err.Error()),
		)
	}
}

// NextFire computes the next fire time for a cron expression.
func (s *Scheduler) NextFire(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

func (s *Scheduler) tryAcquire(documentID string) bool {
	s.firedMu.Lock()
	defer s.firedMu.Unlock()
	if _, ok := s.inflight[documentID]; ok {
		return false
	}
	s.inflight[documentID] = struct{}{}
	return true
}

func (s *Scheduler) release(documentID string) {
	s.firedMu.Lock()
	defer s.firedMu.Unlock()
	delete(s.inflight, documentID)
}
