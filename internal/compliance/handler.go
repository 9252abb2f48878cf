package compliance

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/clearclaim/clearclaim/internal/observability"
	"github.com/clearclaim/clearclaim/internal/platform/httpx"
)

// Handler wires HTTP endpoints for compliance assessments.
type Handler struct {
	logger    *slog.Logger
	evaluator *Evaluator
	metrics   *observability.Metrics
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs a Handler instance. Metrics may be nil.
func NewHandler(logger *slog.Logger, evaluator *Evaluator, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		evaluator: evaluator,
		metrics:   metrics,
		rateLimit: httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
}

// MountRoutes registers compliance routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/claims/{claimID}/compliance", h.handleLatest)
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post("/claims/{claimID}/compliance/run", h.handleRun)
	})
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	started := time.Now()
	assessment, err := h.evaluator.Run(r.Context(), claimID)
	if err != nil {
		h.logger.Error("compliance run", slog.Int64("claim_id", claimID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveComplianceRun(string(assessment.RiskLevel), time.Since(started))
	}
	httpx.JSON(w, http.StatusOK, assessment)
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	assessment, err := h.evaluator.Latest(r.Context(), claimID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, assessment)
}

func (h *Handler) claimID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "claimID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "claim id must be a positive integer")
		return 0, false
	}
	return id, true
}
