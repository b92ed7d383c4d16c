// Package orchestrator implements the durable-execution state machine:
// scheduled -> running -> {completed, failed, waiting} -> resuming ->
// {completed, failed, waiting}. It drives an Interpreter to completion one
// suspension at a time, persisting every transition through a core.Storage
// so a crash between any two steps loses no progress.
//
// This generalizes the teacher's pkg/fanout.FanOut/CollectResults pattern
// (checkpoint progress, suspend the caller, resume once sub-results land)
// from "parallel sub-jobs of one job" to "the batch of pending external
// calls one interpreter suspension produced".
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/metrics"
	"github.com/jdziat/durableflow/internal/security"
)

// Service is the orchestrator. It owns no goroutines of its own; the worker
// loop (internal/worker) is what repeatedly calls Advance/BatchReady/Resume.
type Service struct {
	storage     core.Storage
	interpreter core.Interpreter
	events      core.EventSink
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithEventSink(sink core.EventSink) Option {
	return func(s *Service) { s.events = sink }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(storage core.Storage, interpreter core.Interpreter, opts ...Option) *Service {
	s := &Service{
		storage:     storage,
		interpreter: interpreter,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(e core.Event) {
	if s.events != nil {
		s.events.Emit(e)
	}
}

// StartExecution persists a new Execution in the scheduled state. The
// worker loop's claim_scheduled phase is what actually runs it.
func (s *Service) StartExecution(ctx context.Context, code, externalFunctions, inputs []byte) (*core.Execution, error) {
	if err := security.ValidateCodeSize(code); err != nil {
		return nil, err
	}

	exec := &core.Execution{
		ID:                uuid.New().String(),
		Code:              code,
		ExternalFunctions: externalFunctions,
		Inputs:            inputs,
		Status:            core.StatusScheduled,
	}
	if err := s.storage.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}
	s.emit(core.ExecutionScheduled{ExecutionID: exec.ID, Timestamp: time.Now()})
	return exec, nil
}

// Advance claims one scheduled Execution and runs it to its first
// suspension or completion. It returns (nil, nil) if there was nothing
// scheduled.
func (s *Service) Advance(ctx context.Context) (*core.Execution, error) {
	exec, err := s.storage.ClaimScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim scheduled: %w", err)
	}
	if exec == nil {
		return nil, nil
	}

	outcome, err := s.interpreter.Start(ctx, exec.Code, exec.ExternalFunctions, exec.Inputs)
	if err != nil {
		if ferr := s.storage.Finish(ctx, exec.ID, core.StatusFailed, nil, err.Error()); ferr != nil {
			s.logger.Error("finish after interpreter start error", "execution_id", exec.ID, "error", ferr)
		}
		s.emit(core.ExecutionFailed{ExecutionID: exec.ID, Error: err.Error(), Timestamp: time.Now()})
		return nil, fmt.Errorf("interpreter start: %w", err)
	}

	if err := s.settle(ctx, exec, outcome, core.StatusRunning); err != nil {
		return nil, err
	}
	return exec, nil
}

// Resume claims a waiting Execution whose current batch is fully terminal
// and drives the interpreter through its next step. It returns
// (nil, false, nil) if resumeGroupID is not yet ready or was already
// claimed by another caller.
func (s *Service) Resume(ctx context.Context, executionID, resumeGroupID string) (*core.Execution, bool, error) {
	ready, _, err := s.storage.BatchStatus(ctx, executionID, resumeGroupID)
	if err != nil {
		return nil, false, fmt.Errorf("batch status: %w", err)
	}
	if !ready {
		return nil, false, nil
	}

	claimed, err := s.storage.ClaimResume(ctx, executionID, resumeGroupID)
	if err != nil {
		return nil, false, fmt.Errorf("claim resume: %w", err)
	}
	if !claimed {
		return nil, false, nil
	}

	exec, results, err := s.storage.LoadForResume(ctx, executionID)
	if err != nil {
		return nil, false, fmt.Errorf("load for resume: %w", err)
	}

	outcome, err := s.interpreter.Resume(ctx, exec.State, results)
	if err != nil {
		if ferr := s.storage.Finish(ctx, exec.ID, core.StatusFailed, nil, err.Error()); ferr != nil {
			s.logger.Error("finish after interpreter resume error", "execution_id", exec.ID, "error", ferr)
		}
		s.emit(core.ExecutionFailed{ExecutionID: exec.ID, Error: err.Error(), Timestamp: time.Now()})
		return nil, true, fmt.Errorf("interpreter resume: %w", err)
	}

	if err := s.settle(ctx, exec, outcome, core.StatusResuming); err != nil {
		return nil, true, err
	}
	return exec, true, nil
}

// settle applies one interpreter Outcome: either finishing the execution
// or recording its next batch of pending calls.
func (s *Service) settle(ctx context.Context, exec *core.Execution, outcome core.Outcome, fromStatus core.Status) error {
	if outcome.Complete {
		if err := s.storage.Finish(ctx, exec.ID, core.StatusCompleted, outcome.Value, ""); err != nil {
			return fmt.Errorf("finish completed: %w", err)
		}
		exec.Status = core.StatusCompleted
		exec.Output = outcome.Value
		s.emit(core.ExecutionCompleted{ExecutionID: exec.ID, Timestamp: time.Now()})
		return nil
	}

	resumeGroupID := uuid.New().String()
	calls := make([]core.Call, len(outcome.PendingCalls))
	for i, pc := range outcome.PendingCalls {
		if err := security.ValidateArgsSize(pc.Args); err != nil {
			return fmt.Errorf("pending call %s: %w", pc.CallID, err)
		}
		calls[i] = core.Call{
			ID:            uuid.New().String(),
			ExecutionID:   exec.ID,
			ResumeGroupID: resumeGroupID,
			CallID:        pc.CallID,
			FunctionName:  pc.FunctionName,
			Args:          pc.Args,
			Status:        core.CallPending,
		}
	}

	exec.CurrentResumeGroupID = &resumeGroupID
	exec.State = outcome.State

	if err := s.storage.SaveSuspension(ctx, exec, calls, fromStatus); err != nil {
		return fmt.Errorf("save suspension: %w", err)
	}
	exec.Status = core.StatusWaiting
	s.emit(core.ExecutionSuspended{
		ExecutionID:   exec.ID,
		ResumeGroupID: resumeGroupID,
		PendingCalls:  len(calls),
		Timestamp:     time.Now(),
	})
	return nil
}

// CompleteCall idempotently records the outcome of one external call.
// Executors report finished calls through it (Local and TaskQueue via their
// CompletionFunc, RemoteDispatcher when Submit itself fails); it is also the
// entry point the embedding API and webhook handler both use.
func (s *Service) CompleteCall(ctx context.Context, executionID, resumeGroupID, callID string, result []byte, callErr string) error {
	if err := s.storage.CompleteCall(ctx, executionID, resumeGroupID, callID, result, callErr); err != nil {
		return err
	}
	outcome := "completed"
	if callErr != "" {
		outcome = "failed"
	}
	metrics.CallsCompleted.WithLabelValues(outcome).Inc()
	s.emit(core.CallFinished{ExecutionID: executionID, CallID: callID, Failed: callErr != "", Timestamp: time.Now()})
	return nil
}

// Poll reports the current state of one Execution without driving any
// transition. It is deliberately read-only: resuming a ready batch is the
// worker loop's job, not a side effect of an observer asking for status.
func (s *Service) Poll(ctx context.Context, executionID string) (*core.Execution, error) {
	exec, err := s.storage.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, &core.NotFoundError{Kind: "execution", ID: executionID}
	}
	return exec, nil
}

// ListExecutions reports the current state of every Execution (optionally
// filtered by status), the "poll with no id" shape from the original
// reference implementation's service.poll(execution_id=None).
func (s *Service) ListExecutions(ctx context.Context, status core.Status, limit int) ([]*core.Execution, error) {
	return s.storage.ListExecutions(ctx, status, limit)
}

// GetPendingCalls returns the not-yet-terminal calls in executionID's
// current batch, for an operator inspecting why an execution is waiting.
func (s *Service) GetPendingCalls(ctx context.Context, executionID string) ([]core.Call, error) {
	return s.storage.GetPendingCalls(ctx, executionID)
}

// GetResult returns the terminal output of a completed Execution, or an
// error if it hasn't reached a terminal status yet.
func (s *Service) GetResult(ctx context.Context, executionID string) ([]byte, error) {
	exec, err := s.storage.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, &core.NotFoundError{Kind: "execution", ID: executionID}
	}
	if !exec.Status.Terminal() {
		return nil, fmt.Errorf("execution %s has not finished (status=%s)", executionID, exec.Status)
	}
	if exec.Status == core.StatusFailed {
		return nil, fmt.Errorf("execution %s failed: %s", executionID, exec.Error)
	}
	return exec.Output, nil
}

// BatchReady reports whether executionID's current resume group has every
// call in a terminal state, for the worker loop's resume-scan phase.
func (s *Service) BatchReady(ctx context.Context, executionID, resumeGroupID string) (bool, error) {
	done, _, err := s.storage.BatchStatus(ctx, executionID, resumeGroupID)
	return done, err
}
