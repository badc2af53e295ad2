// internal/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"scm-project-sync/internal/database"
)

const defaultRunLimit = 20

// Handler is the container for API dependencies.
type Handler struct {
	db     database.Querier
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db database.Querier, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:     db,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/runs", h.listRuns)
		r.Get("/runs/{id}", h.getRun)
		r.Get("/runs/{id}/updates", h.listUpdates)
	})

	return r
}

// Run is the API representation of a sync run.
type Run struct {
	ID           string    `json:"id"`
	OrgID        string    `json:"orgId"`
	DryRun       bool      `json:"dryRun"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	UpdatedCount int32     `json:"updatedCount"`
	FailedCount  int32     `json:"failedCount"`
}

// Update is the API representation of one project mutation.
type Update struct {
	ProjectID    string `json:"projectPublicId"`
	Type         string `json:"type"`
	From         string `json:"from"`
	To           string `json:"to"`
	DryRun       bool   `json:"dryRun"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	TargetID     string `json:"targetId"`
	TargetName   string `json:"targetName"`
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listRuns returns the most recent runs, optionally for one org.
// GET /v1/runs?org_id=X&limit=N
func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = strconv.Itoa(defaultRunLimit)
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
		return
	}

	runs, err := h.db.ListSyncRuns(r.Context(), database.ListSyncRunsParams{
		OrgID:    r.URL.Query().Get("org_id"),
		RowLimit: int32(limit),
	})
	if err != nil {
		h.logger.Error("Failed to list runs", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRun(run))
	}
	respondWithJSON(w, http.StatusOK, out)
}

// getRun returns one run.
// GET /v1/runs/{id}
func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	run, err := h.db.GetSyncRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Run not found")
			return
		}
		h.logger.Error("Failed to get run", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, toRun(run))
}

// listUpdates returns the mutations of a run.
// GET /v1/runs/{id}/updates?status=succeeded|failed
func (h *Handler) listUpdates(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && status != "succeeded" && status != "failed" {
		respondWithError(w, http.StatusBadRequest, "Invalid 'status' parameter. Must be 'succeeded' or 'failed'.")
		return
	}

	if _, err := h.db.GetSyncRun(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Run not found")
			return
		}
		h.logger.Error("Failed to get run", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	updates, err := h.db.ListProjectUpdates(r.Context(), database.ListProjectUpdatesParams{RunID: id, Status: status})
	if err != nil {
		h.logger.Error("Failed to list project updates", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]Update, 0, len(updates))
	for _, u := range updates {
		out = append(out, Update{
			ProjectID:    u.ProjectID,
			Type:         u.UpdateType,
			From:         u.FromValue,
			To:           u.ToValue,
			DryRun:       u.DryRun,
			ErrorMessage: u.ErrorMessage.String,
			TargetID:     u.TargetID,
			TargetName:   u.TargetName,
		})
	}
	respondWithJSON(w, http.StatusOK, out)
}

func runID(w http.ResponseWriter, r *http.Request) (pgtype.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid run id")
		return pgtype.UUID{}, false
	}
	return pgtype.UUID{Bytes: id, Valid: true}, true
}

func toRun(r database.SyncRun) Run {
	return Run{
		ID:           uuid.UUID(r.ID.Bytes).String(),
		OrgID:        r.OrgID,
		DryRun:       r.DryRun,
		StartedAt:    r.StartedAt.Time,
		FinishedAt:   r.FinishedAt.Time,
		UpdatedCount: r.UpdatedCount,
		FailedCount:  r.FailedCount,
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
