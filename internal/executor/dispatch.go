package executor

import (
	"context"
	"fmt"

	"github.com/jdziat/durableflow/internal/core"
)

// Dispatcher hands one pending Call to whichever executor backs it. It
// exists because Local completes synchronously (it has no job handle to
// poll) while TaskQueue and Webhook complete asynchronously and need the
// call's job handle recorded in Storage first — the worker loop shouldn't
// need to know which shape it's talking to.
type Dispatcher interface {
	Dispatch(ctx context.Context, executionID, resumeGroupID, callID, functionName string, args []byte) error
}

// LocalDispatcher routes every call straight through a Local executor.
type LocalDispatcher struct {
	Local *Local
}

func (d LocalDispatcher) Dispatch(ctx context.Context, executionID, resumeGroupID, callID, functionName string, args []byte) error {
	return d.Local.SubmitFor(ctx, executionID, resumeGroupID, callID, functionName, args)
}

// RemoteDispatcher submits through any core.Executor that completes
// asynchronously (TaskQueue, Webhook, or a test double), recording the
// returned job handle so a later Poll or push callback can be matched back
// to this call. A submission error fails the call immediately — per the
// original reference implementation's worker.py, a failure to even hand
// the job off is not retried at this layer.
type RemoteDispatcher struct {
	Executor core.Executor
	Storage  core.Storage
	Complete CompletionFunc
}

func (d RemoteDispatcher) Dispatch(ctx context.Context, executionID, resumeGroupID, callID, functionName string, args []byte) error {
	jobHandle, err := d.Executor.Submit(ctx, functionName, args)
	if err != nil {
		return d.Complete(ctx, executionID, resumeGroupID, callID, nil, fmt.Sprintf("executor submission failed: %v", err))
	}
	return d.Storage.MarkCallSubmitted(ctx, executionID, callID, jobHandle)
}
