package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/registry"
)

// jobEnvelope is what gets published to the dispatch subject.
type jobEnvelope struct {
	JobID        string          `json:"job_id"`
	FunctionName string          `json:"function_name"`
	Args         json.RawMessage `json:"args"`
}

// completionEnvelope is what the executing side publishes back.
type completionEnvelope struct {
	JobID  string          `json:"job_id"`
	Status string          `json:"status"` // "finished" | "failed"
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// TaskQueue is a core.Executor that serializes calls onto a NATS subject
// for a remote worker to pick up, following oriys-function's use of
// nats.go for cross-process task dispatch. Submit returns immediately with
// the NATS job id as the opaque job handle; completions arrive
// asynchronously on a reply subject and are matched back to their
// (execution, call) pair via the Storage's job-handle index, the same
// mechanism the push/webhook executor uses.
type TaskQueue struct {
	nc                *nats.Conn
	dispatchSubject   string
	completionSubject string
	storage           core.Storage
	complete          CompletionFunc
	logger            *slog.Logger
	sub               *nats.Subscription

	mu     sync.Mutex
	status map[string]core.JobUpdate
}

// NewTaskQueue builds a TaskQueue and starts listening for completions.
func NewTaskQueue(nc *nats.Conn, storage core.Storage, complete CompletionFunc, subjectPrefix string) (*TaskQueue, error) {
	if subjectPrefix == "" {
		subjectPrefix = "durableflow.calls"
	}
	tq := &TaskQueue{
		nc:                nc,
		dispatchSubject:   subjectPrefix + ".dispatch",
		completionSubject: subjectPrefix + ".completions",
		storage:           storage,
		complete:          complete,
		logger:            slog.Default(),
		status:            make(map[string]core.JobUpdate),
	}

	sub, err := nc.Subscribe(tq.completionSubject, tq.handleCompletion)
	if err != nil {
		return nil, fmt.Errorf("subscribe completions: %w", err)
	}
	tq.sub = sub
	return tq, nil
}

func (tq *TaskQueue) Submit(ctx context.Context, functionName string, args []byte) (string, error) {
	id := uuid.New().String()
	env := jobEnvelope{JobID: id, FunctionName: functionName, Args: args}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal job envelope: %w", err)
	}
	if err := tq.nc.Publish(tq.dispatchSubject, data); err != nil {
		return "", fmt.Errorf("publish job: %w", err)
	}
	return id, nil
}

func (tq *TaskQueue) handleCompletion(msg *nats.Msg) {
	var env completionEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		tq.logger.Error("malformed completion envelope", "error", err)
		return
	}

	ctx := context.Background()
	call, err := tq.storage.GetCallByJobHandle(ctx, env.JobID)
	if err != nil {
		tq.logger.Error("lookup call by job handle", "job_id", env.JobID, "error", err)
		return
	}
	if call == nil {
		tq.logger.Warn("completion for unknown job handle", "job_id", env.JobID)
		return
	}

	errMsg := env.Error
	if env.Status == "failed" && errMsg == "" {
		errMsg = "task queue reported failure with no message"
	}

	update := core.JobUpdate{Status: core.JobFinished, Result: env.Result}
	if errMsg != "" {
		update.Status = core.JobFailed
		update.Error = errMsg
	}
	tq.mu.Lock()
	tq.status[env.JobID] = update
	tq.mu.Unlock()

	if err := tq.complete(ctx, call.ExecutionID, call.ResumeGroupID, call.CallID, env.Result, errMsg); err != nil {
		tq.logger.Error("complete call from task queue", "call_id", call.CallID, "error", err)
	}
}

// Poll reports the last known status for jobHandle. It exists alongside
// the push-on-completion path above so a caller that prefers to pull for
// status (rather than rely on TaskQueue driving CompleteCall itself) can —
// the orchestrator's own worker loop doesn't need it, since completions
// already flow through handleCompletion.
func (tq *TaskQueue) Poll(ctx context.Context, jobHandle string) (core.JobUpdate, error) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	if u, ok := tq.status[jobHandle]; ok {
		return u, nil
	}
	return core.JobUpdate{Status: core.JobRunning}, nil
}

// Close unsubscribes from the completion subject.
func (tq *TaskQueue) Close() error {
	if tq.sub != nil {
		return tq.sub.Unsubscribe()
	}
	return nil
}

// RunSubscriber is the executing side of the queue: it subscribes to the
// dispatch subject, runs each call against reg, and publishes the result.
// It can run in the same process as the orchestrator (a single-binary
// deployment) or in a separate worker pool listening on the same NATS
// subject prefix.
func RunSubscriber(ctx context.Context, nc *nats.Conn, reg *registry.Registry, subjectPrefix string) (*nats.Subscription, error) {
	if subjectPrefix == "" {
		subjectPrefix = "durableflow.calls"
	}
	dispatch := subjectPrefix + ".dispatch"
	completions := subjectPrefix + ".completions"

	return nc.Subscribe(dispatch, func(msg *nats.Msg) {
		var env jobEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			slog.Default().Error("malformed job envelope", "error", err)
			return
		}

		result, err := reg.Call(ctx, env.FunctionName, env.Args)
		out := completionEnvelope{JobID: env.JobID, Status: "finished", Result: result}
		if err != nil {
			out.Status = "failed"
			out.Error = err.Error()
		}
		data, merr := json.Marshal(out)
		if merr != nil {
			slog.Default().Error("marshal completion envelope", "error", merr)
			return
		}
		if perr := nc.Publish(completions, data); perr != nil {
			slog.Default().Error("publish completion", "error", perr)
		}
	})
}
