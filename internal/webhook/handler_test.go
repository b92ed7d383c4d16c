package webhook

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/executor"
	"github.com/jdziat/durableflow/internal/interpreter/interpretertest"
	"github.com/jdziat/durableflow/internal/orchestrator"
	"github.com/jdziat/durableflow/internal/storage"
)

func newTestRig(t *testing.T) (*orchestrator.Service, core.Storage, *interpretertest.Fake) {
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
	return orchestrator.New(store, fake), store, fake
}

func suspendOneCall(t *testing.T, svc *orchestrator.Service, store core.Storage, fake *interpretertest.Fake) (*core.Execution, *core.Call) {
	t.Helper()
	fake.Program(`{}`,
		interpretertest.Step{Outcome: core.Outcome{
			State:        []byte(`{"s":1}`),
			PendingCalls: []core.PendingCall{{CallID: "a", FunctionName: "f"}},
		}},
		interpretertest.Step{Outcome: core.Outcome{Complete: true, Value: []byte(`"done"`)}},
	)
	exec, err := svc.StartExecution(context.Background(), []byte("[]"), nil, []byte(`{}`))
	require.NoError(t, err)
	_, err = svc.Advance(context.Background())
	require.NoError(t, err)

	pending, err := svc.GetPendingCalls(context.Background(), exec.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, store.MarkCallSubmitted(context.Background(), exec.ID, pending[0].CallID, "job-handle-1"))

	call, err := store.GetCallByJobHandle(context.Background(), "job-handle-1")
	require.NoError(t, err)
	return exec, call
}

func TestWebhookCompleteWithoutSigningKey(t *testing.T) {
	svc, store, fake := newTestRig(t)
	_, call := suspendOneCall(t, svc, store, fake)

	srv := httptest.NewServer(Handler(svc, store, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook/complete", "application/json",
		strings.NewReader(`{"job_id":"`+call.JobHandle+`","status":"finished","result":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookCompleteRequiresValidToken(t *testing.T) {
	svc, store, fake := newTestRig(t)
	_, call := suspendOneCall(t, svc, store, fake)
	signingKey := []byte("secret")

	srv := httptest.NewServer(Handler(svc, store, signingKey))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhook/complete",
		strings.NewReader(`{"job_id":"`+call.JobHandle+`","status":"finished","result":1}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookCompleteWithValidToken(t *testing.T) {
	svc, store, fake := newTestRig(t)
	_, call := suspendOneCall(t, svc, store, fake)
	signingKey := []byte("secret")

	token, err := executor.SignCompletionToken(call.JobHandle, signingKey)
	require.NoError(t, err)

	srv := httptest.NewServer(Handler(svc, store, signingKey))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhook/complete",
		strings.NewReader(`{"job_id":"`+call.JobHandle+`","status":"finished","result":1}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookCompleteUnknownJobID(t *testing.T) {
	svc, store, _ := newTestRig(t)
	srv := httptest.NewServer(Handler(svc, store, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook/complete", "application/json",
		strings.NewReader(`{"job_id":"does-not-exist","status":"finished"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
