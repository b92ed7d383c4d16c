package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/registry"
)

type fakeExecutor struct {
	handle string
	err    error
}

func (f *fakeExecutor) Submit(ctx context.Context, functionName string, args []byte) (string, error) {
	return f.handle, f.err
}

type fakeStorage struct {
	core.Storage
	marked map[string]string
}

func (f *fakeStorage) MarkCallSubmitted(ctx context.Context, executionID, callID, jobHandle string) error {
	if f.marked == nil {
		f.marked = make(map[string]string)
	}
	f.marked[callID] = jobHandle
	return nil
}

func TestLocalDispatcherDelegatesToLocal(t *testing.T) {
	reg := registry.New()
	reg.Register("noop", func(ctx context.Context, args struct{}) error { return nil })
	complete, calls := completionRecorder()
	d := LocalDispatcher{Local: NewLocal(reg, complete)}

	err := d.Dispatch(context.Background(), "exec-1", "group-1", "call-1", "noop", []byte(`{}`))
	require.NoError(t, err)
	require.Len(t, *calls, 1)
}

func TestRemoteDispatcherRecordsJobHandleOnSuccess(t *testing.T) {
	fs := &fakeStorage{}
	complete, calls := completionRecorder()
	d := RemoteDispatcher{Executor: &fakeExecutor{handle: "job-123"}, Storage: fs, Complete: complete}

	err := d.Dispatch(context.Background(), "exec-1", "group-1", "call-1", "fn", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, "job-123", fs.marked["call-1"])
	require.Empty(t, *calls)
}

func TestRemoteDispatcherFailsCallImmediatelyOnSubmitError(t *testing.T) {
	fs := &fakeStorage{}
	complete, calls := completionRecorder()
	d := RemoteDispatcher{Executor: &fakeExecutor{err: fmt.Errorf("connection refused")}, Storage: fs, Complete: complete}

	err := d.Dispatch(context.Background(), "exec-1", "group-1", "call-1", "fn", []byte(`{}`))
	require.NoError(t, err) // the dispatch call itself succeeds; the call is failed via Complete
	require.Len(t, *calls, 1)
	require.Contains(t, (*calls)[0].callErr, "connection refused")
	require.Empty(t, fs.marked)
}
