package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	appagent "github.com/pthora/eldwatch/internal/application/agent"
	"github.com/pthora/eldwatch/internal/application/progress"
	"github.com/pthora/eldwatch/internal/domain/agentstate"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
	"github.com/pthora/eldwatch/internal/domain/fixes"
	"github.com/pthora/eldwatch/internal/domain/monitoring"
	"github.com/pthora/eldwatch/internal/middleware"
)

type Router struct {
	agent    *appagent.Service
	errs     detecterrors.Repository
	fixes    fixes.Repository
	platform monitoring.Client
	tracker  *progress.Tracker
}

// Options carries the pieces that are wiring, not behavior.
type Options struct {
	Hub     http.Handler
	Health  http.HandlerFunc
	APIKeys map[string]string
	// RateLimit req/s per caller; RateBurst the burst above it.
	RateLimit float64
	RateBurst int
	Log       zerolog.Logger
}

func NewRouter(agentSvc *appagent.Service, errs detecterrors.Repository, fixRepo fixes.Repository, platform monitoring.Client, tracker *progress.Tracker, opts Options) http.Handler {
	r := &Router{agent: agentSvc, errs: errs, fixes: fixRepo, platform: platform, tracker: tracker}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	mux.Use(middleware.Logging(opts.Log))
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.RateLimit > 0 {
		mux.Use(middleware.RateLimit(opts.RateLimit, opts.RateBurst))
	}

	if opts.Health != nil {
		mux.Get("/health", opts.Health)
	} else {
		mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		})
	}
	if opts.Hub != nil {
		mux.Handle("/ws", opts.Hub)
	}

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/agent/start", r.wrap(r.handleStart))
		rt.Post("/agent/pause", r.wrap(r.handlePause))
		rt.Post("/agent/resume", r.wrap(r.handleResume))
		rt.Post("/agent/stop", r.wrap(r.handleStop))
		rt.Get("/agent/status", r.wrap(r.handleStatus))

		rt.Get("/progress", r.wrap(r.handleProgressList))
		rt.Get("/progress/{runID}", r.wrap(r.handleProgress))

		rt.Get("/errors", r.wrap(r.handleListErrors))
		rt.Get("/errors/{id}", r.wrap(r.handleGetError))
		rt.Post("/errors/{id}/retry", r.wrap(r.handleRetryError))
		rt.Get("/errors/{id}/fixes", r.wrap(r.handleListFixes))

		rt.Post("/fixes/{id}/approve", r.wrap(r.handleApprove))
		rt.Post("/fixes/{id}/reject", r.wrap(r.handleReject))

		rt.Get("/overview", r.wrap(r.handleOverview))
		rt.Post("/analyze", r.wrap(r.handleAnalyze))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, agentstate.ErrInvalidTransition) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/agent/start
func (r *Router) handleStart(w http.ResponseWriter, req *http.Request) error {
	if err := r.agent.Start(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"state": string(r.agent.State())})
}

func (r *Router) handlePause(w http.ResponseWriter, req *http.Request) error {
	if err := r.agent.Pause(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"state": string(r.agent.State())})
}

func (r *Router) handleResume(w http.ResponseWriter, req *http.Request) error {
	if err := r.agent.Resume(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"state": string(r.agent.State())})
}

// POST /v1/agent/stop waits until in-flight fixes have drained.
func (r *Router) handleStop(w http.ResponseWriter, req *http.Request) error {
	if err := r.agent.Stop(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"state": string(r.agent.State())})
}

func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	st, err := r.agent.Status(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, st)
}

func (r *Router) handleProgressList(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, r.tracker.List())
}

func (r *Router) handleProgress(w http.ResponseWriter, req *http.Request) error {
	runID := chi.URLParam(req, "runID")
	run, ok := r.tracker.Get(runID)
	if !ok {
		return sql.ErrNoRows
	}
	return writeJSON(w, run)
}

// GET /v1/errors?status=&severity=&limit=
func (r *Router) handleListErrors(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	list, err := r.errs.List(req.Context(),
		detecterrors.Status(q.Get("status")),
		detecterrors.Severity(q.Get("severity")),
		limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*detecterrors.DetectedError{}
	}
	return writeJSON(w, list)
}

func (r *Router) handleGetError(w http.ResponseWriter, req *http.Request) error {
	e, err := r.errs.Get(req.Context(), detecterrors.ID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, e)
}

// POST /v1/errors/{id}/retry re-queues a failed or ignored error; the
// next poll cycle picks it up with a fresh attempt.
func (r *Router) handleRetryError(w http.ResponseWriter, req *http.Request) error {
	id := detecterrors.ID(chi.URLParam(req, "id"))
	if err := r.agent.RetryError(req.Context(), id); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"status": "pending"})
}

func (r *Router) handleListFixes(w http.ResponseWriter, req *http.Request) error {
	id := detecterrors.ID(chi.URLParam(req, "id"))
	list, err := r.fixes.ListByError(req.Context(), id, 0)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*fixes.FixAttempt{}
	}
	return writeJSON(w, list)
}

// POST /v1/fixes/{id}/approve
// Approver comes from the authenticated caller, with a body override
// for deployments that run without API keys.
func (r *Router) handleApprove(w http.ResponseWriter, req *http.Request) error {
	approver := middleware.GetCallerFromContext(req.Context())
	var body struct {
		Approver string `json:"approver"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err == nil && body.Approver != "" {
		approver = body.Approver
	}
	if approver == "" {
		return fmt.Errorf("approver is required")
	}

	id := fixes.ID(chi.URLParam(req, "id"))
	if err := r.agent.Approve(req.Context(), id, approver); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"status": "approved"})
}

func (r *Router) handleReject(w http.ResponseWriter, req *http.Request) error {
	id := fixes.ID(chi.URLParam(req, "id"))
	if err := r.agent.Reject(req.Context(), id); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"status": "rejected"})
}

func (r *Router) handleOverview(w http.ResponseWriter, req *http.Request) error {
	ov, err := r.platform.Overview(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, ov)
}

// POST /v1/analyze proxies an on-demand smart-analyze for one driver.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		DriverID string `json:"driver_id"`
		DateFrom string `json:"date_from"`
		DateTo   string `json:"date_to"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	if body.DriverID == "" {
		return fmt.Errorf("driver_id is required")
	}

	res, err := r.platform.SubmitAnalysis(req.Context(), body.DriverID, body.DateFrom, body.DateTo)
	if err != nil {
		return err
	}
	return writeJSON(w, res)
}
