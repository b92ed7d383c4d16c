package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/executor"
	"github.com/jdziat/durableflow/internal/interpreter/interpretertest"
	"github.com/jdziat/durableflow/internal/orchestrator"
	"github.com/jdziat/durableflow/internal/registry"
	"github.com/jdziat/durableflow/internal/storage"
)

func newTestRig(t *testing.T) (*orchestrator.Service, core.Storage, *interpretertest.Fake, *registry.Registry) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := storage.NewGormStorage(db)
	ctx := context.Background()
	require.NoError(t, store.Start(ctx))
	require.NoError(t, store.Migrate(ctx))

	fake := interpretertest.New()
	svc := orchestrator.New(store, fake)
	reg := registry.New()
	return svc, store, fake, reg
}

func TestTickDrivesExecutionThroughSuspendAndResume(t *testing.T) {
	svc, store, fake, reg := newTestRig(t)
	ctx := context.Background()

	reg.Register("double", func(ctx context.Context, args struct{ N int }) (struct{ N int }, error) {
		return struct{ N int }{N: args.N * 2}, nil
	})

	fake.Program(`{"n":5}`,
		interpretertest.Step{Outcome: core.Outcome{
			State:        []byte(`{"step":1}`),
			PendingCalls: []core.PendingCall{{CallID: "a", FunctionName: "double", Args: []byte(`{"N":5}`)}},
		}},
		interpretertest.Step{Outcome: core.Outcome{Complete: true, Value: []byte(`"finished"`)}},
	)

	exec, err := svc.StartExecution(ctx, []byte("[]"), nil, []byte(`{"n":5}`))
	require.NoError(t, err)

	local := executor.NewLocal(reg, svc.CompleteCall)
	dispatcher := executor.LocalDispatcher{Local: local}
	w := New(svc, store, dispatcher, WithConfig(Config{
		PollInterval:      time.Hour, // tick is driven manually in this test
		SubmitConcurrency: 4,
		ResumeConcurrency: 4,
		StorageRetry:      RetryConfig{MaxAttempts: 1},
	}))

	// Tick 1: claims and advances the scheduled execution to waiting.
	w.tick(ctx)
	got, err := svc.Poll(ctx, exec.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusWaiting, got.Status)

	// Tick 2: submits the pending call to the Local executor, which
	// completes it synchronously, and resumes the execution to completion.
	w.tick(ctx)
	got, err = svc.Poll(ctx, exec.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, got.Status)

	result, err := svc.GetResult(ctx, exec.ID)
	require.NoError(t, err)
	require.JSONEq(t, `"finished"`, string(result))
}

func TestNewClampsConfiguredConcurrency(t *testing.T) {
	svc, store, _, reg := newTestRig(t)
	local := executor.NewLocal(reg, svc.CompleteCall)
	w := New(svc, store, executor.LocalDispatcher{Local: local}, WithConfig(Config{
		SubmitConcurrency: 100000,
		ResumeConcurrency: 0,
	}))
	require.Equal(t, 1000, w.cfg.SubmitConcurrency)
	require.Equal(t, 1, w.cfg.ResumeConcurrency)
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	svc, store, _, reg := newTestRig(t)
	local := executor.NewLocal(reg, svc.CompleteCall)
	w := New(svc, store, executor.LocalDispatcher{Local: local}, WithConfig(Config{
		PollInterval:      time.Millisecond,
		SubmitConcurrency: 1,
		ResumeConcurrency: 1,
		StorageRetry:      RetryConfig{MaxAttempts: 1},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
