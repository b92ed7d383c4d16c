// Package worker implements the polling loop that drives an
// orchestrator.Service: claim one scheduled execution and run it, submit
// newly-pending calls to their executor, and resume any waiting execution
// whose batch has gone fully terminal. It follows the teacher's
// pkg/worker/worker.go shape (ticker-driven loop, context cancellation,
// graceful shutdown via sync.WaitGroup) generalized from "dequeue one job
// queue" to "advance one execution state machine", and supplements it with
// an explicit call-submission phase the original Python worker
// (durable_monty/worker.py's _process_pending_calls) has but spec.md's
// three-step description leaves implicit.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/executor"
	"github.com/jdziat/durableflow/internal/metrics"
	"github.com/jdziat/durableflow/internal/orchestrator"
	"github.com/jdziat/durableflow/internal/security"
)

// Config controls loop timing and concurrency.
type Config struct {
	PollInterval      time.Duration
	SubmitConcurrency int
	ResumeConcurrency int
	StorageRetry      RetryConfig
	// OverdueAfter, if non-zero, makes the loop periodically fail
	// running, waiting or resuming executions whose last update (UpdatedAt)
	// is older than this. Zero disables the sweep.
	OverdueAfter time.Duration
}

func defaultConfig() Config {
	return Config{
		PollInterval:      200 * time.Millisecond,
		SubmitConcurrency: 8,
		ResumeConcurrency: 8,
		StorageRetry:      DefaultRetryConfig(),
	}
}

// Worker repeatedly advances the orchestrator's state machine.
type Worker struct {
	svc        *orchestrator.Service
	storage    core.Storage
	dispatcher executor.Dispatcher
	cfg        Config
	logger     *slog.Logger

	wg sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

func WithConfig(cfg Config) Option { return func(w *Worker) { w.cfg = cfg } }
func WithLogger(l *slog.Logger) Option { return func(w *Worker) { w.logger = l } }

// New builds a Worker. dispatcher is how newly-suspended calls get handed
// to whichever Executor backs them (see internal/executor.Dispatcher).
func New(svc *orchestrator.Service, storage core.Storage, dispatcher executor.Dispatcher, opts ...Option) *Worker {
	w := &Worker{
		svc:        svc,
		storage:    storage,
		dispatcher: dispatcher,
		cfg:        defaultConfig(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.cfg.SubmitConcurrency = security.ClampConcurrency(w.cfg.SubmitConcurrency)
	w.cfg.ResumeConcurrency = security.ClampConcurrency(w.cfg.ResumeConcurrency)
	return w
}

// Run loops until ctx is cancelled, then returns once any in-flight tick
// has finished.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return
		case <-ticker.C:
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.tick(ctx)
			}()
		}
	}
}

// tick runs the three phases once. Phases don't block each other's next
// tick; Run only guarantees the previous tick's goroutine has exited
// before ctx.Done() returns, not before the next ticker fire.
func (w *Worker) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.WorkerLoopDuration.Observe(time.Since(start).Seconds())
	}()

	if err := w.advanceOneScheduled(ctx); err != nil {
		w.logger.Error("advance scheduled execution", "error", err)
	}
	if err := w.submitPendingCalls(ctx); err != nil {
		w.logger.Error("submit pending calls", "error", err)
	}
	if err := w.resumeReadyExecutions(ctx); err != nil {
		w.logger.Error("resume ready executions", "error", err)
	}
	if w.cfg.OverdueAfter > 0 {
		if n, err := w.storage.ReleaseOverdue(ctx, int64(w.cfg.OverdueAfter.Seconds())); err != nil {
			w.logger.Error("release overdue executions", "error", err)
		} else if n > 0 {
			w.logger.Warn("released overdue executions", "count", n)
		}
	}
}

// advanceOneScheduled claims and runs a single scheduled execution, the
// same "one row per tick" cadence the teacher's dequeue loop uses.
func (w *Worker) advanceOneScheduled(ctx context.Context) error {
	var exec *core.Execution
	err := retryWithBackoff(ctx, w.cfg.StorageRetry, func() error {
		var err error
		exec, err = w.svc.Advance(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if exec != nil {
		metrics.ExecutionsClaimed.Inc()
		w.logger.Info("advanced execution", "execution_id", exec.ID, "status", exec.Status)
		if exec.Status.Terminal() {
			metrics.ExecutionsCompleted.WithLabelValues(string(exec.Status)).Inc()
		}
	}
	return nil
}

// submitPendingCalls hands every still-pending call from executions
// currently waiting to the dispatcher. It scans executions in the waiting
// status rather than a dedicated "pending calls" queue, since that's the
// only place pending Call rows live.
func (w *Worker) submitPendingCalls(ctx context.Context) error {
	waiting, err := w.svc.ListExecutions(ctx, core.StatusWaiting, 0)
	if err != nil {
		return err
	}
	if len(waiting) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.SubmitConcurrency)

	for _, exec := range waiting {
		exec := exec
		calls, err := w.svc.GetPendingCalls(ctx, exec.ID)
		if err != nil {
			w.logger.Error("get pending calls", "execution_id", exec.ID, "error", err)
			continue
		}
		for _, call := range calls {
			if call.Status != core.CallPending {
				continue // already submitted, waiting on completion
			}
			call := call
			g.Go(func() error {
				metrics.CallsSubmitted.WithLabelValues("dispatch").Inc()
				if err := w.dispatcher.Dispatch(gctx, exec.ID, call.ResumeGroupID, call.CallID, call.FunctionName, call.Args); err != nil {
					w.logger.Error("dispatch call", "call_id", call.CallID, "error", err)
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// resumeReadyExecutions resumes every waiting execution whose current
// batch has gone fully terminal.
func (w *Worker) resumeReadyExecutions(ctx context.Context) error {
	waiting, err := w.svc.ListExecutions(ctx, core.StatusWaiting, 0)
	if err != nil {
		return err
	}
	if len(waiting) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.ResumeConcurrency)

	for _, exec := range waiting {
		exec := exec
		if exec.CurrentResumeGroupID == nil {
			continue
		}
		resumeGroupID := *exec.CurrentResumeGroupID
		g.Go(func() error {
			ready, err := w.svc.BatchReady(gctx, exec.ID, resumeGroupID)
			if err != nil {
				w.logger.Error("check batch status", "execution_id", exec.ID, "error", err)
				return nil
			}
			if !ready {
				return nil
			}
			resumed, claimed, err := w.svc.Resume(gctx, exec.ID, resumeGroupID)
			if err != nil {
				w.logger.Error("resume execution", "execution_id", exec.ID, "error", err)
				return nil
			}
			if claimed {
				metrics.ExecutionsResumed.Inc()
				if resumed != nil && resumed.Status.Terminal() {
					metrics.ExecutionsCompleted.WithLabelValues(string(resumed.Status)).Inc()
				}
			}
			return nil
		})
	}
	return g.Wait()
}
