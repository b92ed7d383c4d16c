// Package api exposes the embedding API (spec.md §6) over HTTP for
// out-of-process callers, following the original reference
// implementation's api.py (GET /executions/{id}, GET /executions,
// GET /health) plus the write operations (start, complete_call) the
// original leaves to direct service calls.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/orchestrator"
)

// Handler builds the embedding API's HTTP surface.
func Handler(svc *orchestrator.Service) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/executions", startExecution(svc))
	r.Get("/executions", listExecutions(svc))
	r.Get("/executions/{id}", getExecution(svc))
	r.Get("/executions/{id}/pending-calls", getPendingCalls(svc))
	r.Get("/executions/{id}/result", getResult(svc))
	r.Post("/executions/{id}/resume-groups/{resume_group_id}/calls/{call_id}/complete", completeCall(svc))

	return r
}

type startRequest struct {
	Code              json.RawMessage `json:"code"`
	ExternalFunctions json.RawMessage `json:"external_functions"`
	Inputs            json.RawMessage `json:"inputs"`
}

func startExecution(svc *orchestrator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed body", http.StatusBadRequest)
			return
		}
		exec, err := svc.StartExecution(r.Context(), req.Code, req.ExternalFunctions, req.Inputs)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, exec)
	}
}

func listExecutions(svc *orchestrator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := core.Status(r.URL.Query().Get("status"))
		execs, err := svc.ListExecutions(r.Context(), status, 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, execs)
	}
}

func getExecution(svc *orchestrator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exec, err := svc.Poll(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, exec)
	}
}

func getPendingCalls(svc *orchestrator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls, err := svc.GetPendingCalls(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, calls)
	}
}

func getResult(svc *orchestrator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.GetResult(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(result)
	}
}

type completeRequest struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func completeCall(svc *orchestrator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req completeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed body", http.StatusBadRequest)
			return
		}
		err := svc.CompleteCall(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "resume_group_id"), chi.URLParam(r, "call_id"), req.Result, req.Error)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case core.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case core.IsConflict(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
