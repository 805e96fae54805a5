// Package api exposes pipeline runs, integrity checks and reports over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/receipt-normalizer/internal/pipeline"
	"github.com/ignite/receipt-normalizer/internal/pkg/distlock"
	"github.com/ignite/receipt-normalizer/internal/pkg/httputil"
	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
	"github.com/ignite/receipt-normalizer/internal/quality"
	"github.com/ignite/receipt-normalizer/internal/reports"
)

// Handlers serves the API routes.
type Handlers struct {
	runner *pipeline.Runner
	health *HealthChecker
	// runCtx outlives the request that starts a background run.
	runCtx       context.Context
	queryTimeout time.Duration
}

func NewHandlers(runCtx context.Context, runner *pipeline.Runner, health *HealthChecker) *Handlers {
	return &Handlers{runner: runner, health: health, runCtx: runCtx, queryTimeout: 30 * time.Second}
}

type startRunRequest struct {
	// Wait runs synchronously and answers with the summary.
	Wait bool `json:"wait"`
}

// StartRun triggers a pipeline run.
//
//	POST /api/runs
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if r.URL.Query().Get("wait") == "true" {
		req.Wait = true
	}

	if !req.Wait {
		if err := h.runner.Start(h.runCtx); err != nil {
			httputil.Conflict(w, err.Error())
			return
		}
		httputil.Accepted(w, map[string]string{"status": "started"})
		return
	}

	summary, err := h.runner.Run(r.Context())
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress), errors.Is(err, distlock.ErrLocked):
		httputil.Conflict(w, err.Error())
	case summary != nil:
		// A failed stage is reported through the summary status.
		httputil.OK(w, summary)
	default:
		httputil.InternalError(w, err)
	}
}

// LatestRun returns the summary of the last finished run.
//
//	GET /api/runs/latest
func (h *Handlers) LatestRun(w http.ResponseWriter, r *http.Request) {
	latest := h.runner.Latest()
	if latest == nil {
		httputil.NotFound(w, "no run has finished yet")
		return
	}
	httputil.OK(w, map[string]any{"running": h.runner.Running(), "run": latest})
}

// Quality runs the integrity battery against the loaded tables.
//
//	GET /api/quality
func (h *Handlers) Quality(w http.ResponseWriter, r *http.Request) {
	st := h.runner.Store()
	if st == nil {
		httputil.Unavailable(w, "no store configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	results := quality.RunSQL(ctx, st.DB())
	httputil.OK(w, map[string]any{
		"checks": results,
		"issues": quality.Total(results),
		"failed": quality.Failed(results),
	})
}

// Reports answers every analytical question.
//
//	GET /api/reports
func (h *Handlers) Reports(w http.ResponseWriter, r *http.Request) {
	st := h.runner.Store()
	if st == nil {
		httputil.Unavailable(w, "no store configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	httputil.OK(w, map[string]any{"reports": reports.Run(ctx, st.DB(), st.Dialect())})
}

// Report answers one question by key.
//
//	GET /api/reports/{key}
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	st := h.runner.Store()
	if st == nil {
		httputil.Unavailable(w, "no store configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	rep, err := reports.RunOne(ctx, st.DB(), st.Dialect(), chi.URLParam(r, "key"))
	if errors.Is(err, reports.ErrUnknownReport) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, rep)
}

func logRequest(r *http.Request, status, bytes int) {
	logger.Debug("api: request",
		"method", r.Method, "path", r.URL.Path, "status", status, "bytes", bytes,
		"request_id", middleware.GetReqID(r.Context()))
}
