package core

import "context"

// Storage is the durable store every orchestrator operation is built on. A
// conforming implementation must make claim_scheduled, claim_resume, and
// complete_call race-safe under concurrent callers: at most one caller's
// claim attempt observes success for a given Execution/Call.
type Storage interface {
	Starter

	Migrate(ctx context.Context) error

	// CreateExecution persists a freshly started Execution in the
	// scheduled state.
	CreateExecution(ctx context.Context, exec *Execution) error

	// ClaimScheduled atomically transitions one scheduled Execution to
	// running and returns it, or returns (nil, nil) if none are due.
	ClaimScheduled(ctx context.Context) (*Execution, error)

	// SaveSuspension records a new batch of pending Calls for exec and
	// transitions it from running (or resuming) to waiting, all within one
	// transaction. callerStatus is the status the caller observed the
	// Execution in when it decided to suspend; the transition is rejected
	// if the row has moved on since.
	SaveSuspension(ctx context.Context, exec *Execution, calls []Call, callerStatus Status) error

	// CompleteCall idempotently marks a Call completed or failed. It matches
	// on (executionID, resumeGroupID, callID) rather than trusting the
	// execution's current batch, since a late completion can arrive after
	// the execution has already moved on to a new resume group whose
	// call_id happens to collide. A second call for the same triple with a
	// different payload is a ConflictError; with an identical payload it is
	// a no-op success.
	CompleteCall(ctx context.Context, executionID, resumeGroupID, callID string, result []byte, callErr string) error

	// BatchStatus reports whether every Call in resumeGroupID has reached
	// a terminal status, plus the calls themselves.
	BatchStatus(ctx context.Context, executionID, resumeGroupID string) (done bool, calls []Call, err error)

	// ClaimResume atomically transitions exec from waiting to resuming,
	// guarded by resumeGroupID still being its current batch. Returns
	// false if another caller already claimed it.
	ClaimResume(ctx context.Context, executionID, resumeGroupID string) (bool, error)

	// LoadForResume returns the Execution together with the terminal
	// results of the resume group it was claimed for.
	LoadForResume(ctx context.Context, executionID string) (*Execution, []CallResult, error)

	// Finish transitions exec to a terminal status (completed or failed),
	// recording the output or error.
	Finish(ctx context.Context, executionID string, status Status, output []byte, errMsg string) error

	// GetExecution returns nil, nil if id is unknown.
	GetExecution(ctx context.Context, id string) (*Execution, error)

	// ListExecutions returns up to limit Executions, optionally filtered
	// by status. limit <= 0 means no limit.
	ListExecutions(ctx context.Context, status Status, limit int) ([]*Execution, error)

	// GetPendingCalls returns the not-yet-terminal Calls for executionID's
	// current resume group.
	GetPendingCalls(ctx context.Context, executionID string) ([]Call, error)

	// GetCallByJobHandle resolves an Executor-assigned job handle back to
	// the Call it was submitted for.
	GetCallByJobHandle(ctx context.Context, jobHandle string) (*Call, error)

	// MarkCallSubmitted records the job handle an Executor returned for the
	// pending Call identified by (executionID, callID) and moves it to
	// running. callID is the logical Call.CallID a PendingCall carries, not
	// the row's primary key — the only identifier a Dispatcher has on hand.
	MarkCallSubmitted(ctx context.Context, executionID, callID, jobHandle string) error

	// ReleaseOverdue fails every running/waiting/resuming Execution whose
	// UpdatedAt is older than olderThanSeconds, for deployments that opt
	// into a wall-clock deadline. Returns the number of executions failed.
	ReleaseOverdue(ctx context.Context, olderThanSeconds int64) (int, error)
}

// Starter is implemented by components with a one-time startup step
// (opening a DB pool, running migrations) distinct from per-call work.
type Starter interface {
	Start(ctx context.Context) error
}
