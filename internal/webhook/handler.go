// Package webhook exposes the POST /webhook/complete endpoint external
// executors push call completions to, following spec.md §6 and the
// original reference implementation's api.py (a JobResult body of
// {job_id, status, result, error} resolved to a Call and completed through
// the same idempotent path the embedding API uses).
package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/executor"
	"github.com/jdziat/durableflow/internal/orchestrator"
)

// JobResult is the body POSTed to /webhook/complete.
type JobResult struct {
	JobID  string          `json:"job_id"`
	Status string          `json:"status"` // "finished" | "failed"
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Handler builds the webhook's HTTP surface. signingKey verifies the
// bearer token the push executor minted when it dispatched the job;
// pass nil to disable verification (e.g. when every call goes through
// Local/TaskQueue instead of the push executor).
func Handler(svc *orchestrator.Service, storage core.Storage, signingKey []byte) http.Handler {
	r := chi.NewRouter()
	r.Post("/webhook/complete", completeHandler(svc, storage, signingKey))
	return r
}

func completeHandler(svc *orchestrator.Service, storage core.Storage, signingKey []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body JobResult
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed body", http.StatusBadRequest)
			return
		}

		if signingKey != nil {
			token := bearerToken(r)
			jobID, err := executor.VerifyCompletionToken(token, signingKey)
			if err != nil || jobID != body.JobID {
				http.Error(w, "invalid or missing bearer token", http.StatusUnauthorized)
				return
			}
		}

		ctx := r.Context()
		call, err := storage.GetCallByJobHandle(ctx, body.JobID)
		if err != nil {
			slog.Default().Error("lookup call by job handle", "job_id", body.JobID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if call == nil {
			http.Error(w, "unknown job_id", http.StatusNotFound)
			return
		}

		errMsg := body.Error
		if body.Status == "failed" && errMsg == "" {
			errMsg = "executor reported failure with no message"
		}

		if err := svc.CompleteCall(ctx, call.ExecutionID, call.ResumeGroupID, call.CallID, body.Result, errMsg); err != nil {
			if core.IsConflict(err) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			if core.IsNotFound(err) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			slog.Default().Error("complete call from webhook", "call_id", call.CallID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
