// Command flowcanvas serves the workflow canvas over MCP stdio:
// persistent documents in libSQL, structural validation, and a
// simulated execution engine with live status events.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/avendra/flowcanvas/internal/document"
	"github.com/avendra/flowcanvas/internal/engine"
	"github.com/avendra/flowcanvas/internal/logging"
	"github.com/avendra/flowcanvas/internal/scheduler"
	"github.com/avendra/flowcanvas/internal/store"
	"github.com/avendra/flowcanvas/internal/streaming"
	"github.com/avendra/flowcanvas/internal/validation"
	"github.com/avendra/flowcanvas/pkg/mcp"
)

func main() {
	cfg := loadConfig()

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("flowcanvas exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(flowcanvasDir(), 0o755); err != nil {
		return err
	}

	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	hub := streaming.NewMemoryHub()
	validator := validation.NewWorkflowValidator(logger)
	codec, err := document.NewCodec()
	if err != nil {
		return err
	}

	policy := engine.NeverFail
	if cfg.FailureRate > 0 {
		policy = engine.RandomFailure(cfg.FailureRate)
	}
	executor := engine.NewExecutor(validator, engine.NewSimulatedWorker(), policy,
		hub, st, logger, engine.Options{VisitOnce: cfg.VisitOnce})

	if cfg.SchedulerEnabled {
		sched := scheduler.NewScheduler(st, &documentRunner{store: st, executor: executor}, hub, logger).
			WithPollInterval(duration(cfg.SchedulerInterval, scheduler.DefaultPollInterval))
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := mcp.NewCanvasServer(mcp.CanvasServerDeps{
		Executor:  executor,
		Store:     st,
		Codec:     codec,
		Validator: validator,
		Logger:    logger,
	})

	logger.Info("flowcanvas started",
		"db_path", cfg.DBPath,
		"visit_once", cfg.VisitOnce,
	)
	return srv.Serve(ctx)
}

// documentRunner lets the scheduler start runs without importing the
// engine package.
type documentRunner struct {
	store    store.Store
	executor engine.Executor
}

func (r *documentRunner) RunDocument(ctx context.Context, documentID string) error {
	doc, err := r.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	ctx = logging.WithDocumentID(ctx, documentID)
	wf := &doc.Definition
	wf.ID = doc.ID
	_, err = r.executor.Run(ctx, wf)
	return err
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
