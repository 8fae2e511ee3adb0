package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zjetlab/zjetrun/internal/ledger"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.Runs(r.Context())
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		RunsRecorded:  len(runs),
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleListRuns handles GET /v1/runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.Runs(r.Context())
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, summarizeRun(run))
	}
	respondJSON(w, http.StatusOK, out)
}

// handleGetRun handles GET /v1/runs/{runID} with full invocation detail.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.Run(r.Context(), runID)
	if errors.Is(err, ledger.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load run", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	invs, err := s.store.Invocations(r.Context(), runID)
	if err != nil {
		s.logger.Error("failed to load invocations", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load invocations")
		return
	}

	resp := RunDetailResponse{
		RunSummary:  summarizeRun(run),
		Invocations: make([]InvocationSummary, 0, len(invs)),
	}
	for _, inv := range invs {
		view := InvocationSummary{
			ID:        inv.ID,
			Channel:   inv.Channel,
			Level:     inv.Level,
			InputType: string(inv.InputType),
			Suffix:    inv.Suffix,
			Status:    string(inv.Status),
			ExitCode:  inv.ExitCode,
			Argv:      inv.Argv,
		}
		if inv.LastError != nil {
			view.LastError = *inv.LastError
		}
		resp.Invocations = append(resp.Invocations, view)
	}
	respondJSON(w, http.StatusOK, resp)
}

func summarizeRun(run *ledger.Run) RunSummary {
	return RunSummary{
		RunID:       run.ID,
		Tool:        run.Tool,
		Analysis:    run.Analysis,
		Sample:      run.Sample,
		Status:      string(run.Status),
		SubmittedBy: run.SubmittedBy,
		CreatedAt:   run.CreatedAt,
		CompletedAt: run.CompletedAt,
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
