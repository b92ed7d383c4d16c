// Package executor provides the three Executor shapes named in the design:
// Local (synchronous in-process), a NATS-backed task queue, and a signed
// webhook push variant. All three share the same core.Executor contract so
// the worker loop never needs to know which one a given call was submitted
// through.
package executor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/registry"
)

// CompletionFunc is how an executor reports a finished call back into the
// orchestrator. It is always orchestrator.Service.CompleteCall in production; tests
// supply a stub.
type CompletionFunc func(ctx context.Context, executionID, resumeGroupID, callID string, result []byte, callErr string) error

// Local runs calls synchronously on the calling goroutine, following the
// original reference implementation's LocalExecutor (durable_monty/executor.py):
// submit_call executes immediately rather than handing off to a remote
// worker. Because completion is synchronous, Local calls complete directly
// rather than going through a Poll cycle.
type Local struct {
	registry   *registry.Registry
	complete   CompletionFunc
	executed   int64
	failed     int64
}

// NewLocal builds a Local executor. complete is invoked synchronously
// inside SubmitFor once the function has run.
func NewLocal(reg *registry.Registry, complete CompletionFunc) *Local {
	return &Local{registry: reg, complete: complete}
}

// SubmitFor runs functionName immediately and reports its result against
// (executionID, resumeGroupID, callID). Local doesn't fit the plain
// Executor.Submit shape (it needs to know which execution/call it's
// completing, since it never hands back a pollable job handle) — the
// worker loop reaches it through LocalDispatcher, which calls SubmitFor for
// each pending call.
func (l *Local) SubmitFor(ctx context.Context, executionID, resumeGroupID, callID, functionName string, args []byte) error {
	result, err := l.registry.Call(ctx, functionName, args)
	if err != nil {
		atomic.AddInt64(&l.failed, 1)
		return l.complete(ctx, executionID, resumeGroupID, callID, nil, err.Error())
	}
	atomic.AddInt64(&l.executed, 1)
	return l.complete(ctx, executionID, resumeGroupID, callID, result, "")
}

// Submit satisfies core.Executor for callers that only have a job handle to
// work with; Local has no notion of one, so this always errors. Prefer
// SubmitFor.
func (l *Local) Submit(ctx context.Context, functionName string, args []byte) (string, error) {
	return "", fmt.Errorf("local executor: use SubmitFor, it has no pollable job handle")
}

func (l *Local) Stats() core.ExecutorStats {
	return core.ExecutorStats{
		Submitted: atomic.LoadInt64(&l.executed) + atomic.LoadInt64(&l.failed),
		Finished:  atomic.LoadInt64(&l.executed),
		Failed:    atomic.LoadInt64(&l.failed),
	}
}

// newJobHandle mints an opaque id for executors that do need one.
func newJobHandle() string { return uuid.New().String() }
