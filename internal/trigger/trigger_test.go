package trigger

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
	"github.com/jdziat/durableflow/internal/interpreter/interpretertest"
	"github.com/jdziat/durableflow/internal/orchestrator"
	"github.com/jdziat/durableflow/internal/storage"
)

func TestRunnerStartsExecutionWhenScheduleIsDue(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := storage.NewGormStorage(db)
	ctx := context.Background()
	require.NoError(t, store.Start(ctx))
	require.NoError(t, store.Migrate(ctx))

	svc := orchestrator.New(store, interpretertest.New())
	runner := New(svc)
	runner.Register(Program{Name: "heartbeat", Code: []byte("[]"), Inputs: []byte(`{}`)}, Every(10*time.Millisecond))

	runCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	runner.Run(runCtx)

	execs, err := svc.ListExecutions(ctx, core.StatusScheduled, 0)
	require.NoError(t, err)
	require.NotEmpty(t, execs, "the runner should have started at least one execution")
}

func TestRunnerDoesNothingBeforeScheduleIsDue(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := storage.NewGormStorage(db)
	ctx := context.Background()
	require.NoError(t, store.Start(ctx))
	require.NoError(t, store.Migrate(ctx))

	svc := orchestrator.New(store, interpretertest.New())
	runner := New(svc)
	runner.Register(Program{Name: "rare", Code: []byte("[]")}, Every(time.Hour))

	runCtx, cancel := context.WithTimeout(ctx, 120*time.Millisecond)
	defer cancel()
	runner.Run(runCtx)

	execs, err := svc.ListExecutions(ctx, "", 0)
	require.NoError(t, err)
	require.Empty(t, execs)
}
