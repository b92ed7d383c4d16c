package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWebhookSubmitSignsAndPosts(t *testing.T) {
	signingKey := []byte("test-signing-key")
	var gotAuth string
	var gotBody dispatchPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, signingKey)
	handle, err := wh.Submit(context.Background(), "fetch", []byte(`{"id":1}`))
	require.NoError(t, err)
	require.NotEmpty(t, handle)
	require.Equal(t, "fetch", gotBody.FunctionName)
	require.Equal(t, handle, gotBody.JobID)

	require.Contains(t, gotAuth, "Bearer ")
	token := gotAuth[len("Bearer "):]
	jobID, err := VerifyCompletionToken(token, signingKey)
	require.NoError(t, err)
	require.Equal(t, handle, jobID)
}

func TestVerifyCompletionTokenRejectsWrongKey(t *testing.T) {
	wh := NewWebhook("http://example.invalid", []byte("key-a"))
	token, err := wh.sign("job-1")
	require.NoError(t, err)

	_, err = VerifyCompletionToken(token, []byte("key-b"))
	require.Error(t, err)
}

func TestWebhookSubmitErrorsOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, []byte("key"))
	_, err := wh.Submit(context.Background(), "fetch", nil)
	require.Error(t, err)
}
