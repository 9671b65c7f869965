package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/constants"
	"github.com/kozaktomas/immich-metasync/internal/database"
	"github.com/rs/zerolog"
)

// RunLister lists recorded sync runs.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]database.Run, error)
}

// RunsHandler handles the run history endpoint
type RunsHandler struct {
	store  RunLister
	logger zerolog.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(store RunLister, logger zerolog.Logger) *RunsHandler {
	return &RunsHandler{store: store, logger: logger}
}

// RunResponse is the JSON form of a recorded run
type RunResponse struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	DryRun     bool           `json:"dry_run"`
	Force      bool           `json:"force"`
	OnlyNew    bool           `json:"only_new"`
	Categories []string       `json:"categories"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Duration   string         `json:"duration"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
	Error      string         `json:"error,omitempty"`
}

func newRunResponse(run database.Run, now time.Time) RunResponse {
	resp := RunResponse{
		ID:         run.ID,
		Status:     string(run.Status),
		DryRun:     run.DryRun,
		Force:      run.Force,
		OnlyNew:    run.OnlyNew,
		Categories: run.Categories,
		StartedAt:  run.StartedAt,
		Duration:   run.Duration(now).Round(time.Second).String(),
		Total:      run.Total,
		Counts:     run.Counts,
		Error:      run.Error,
	}
	if run.Finished() {
		finished := run.FinishedAt
		resp.FinishedAt = &finished
	}
	if resp.Categories == nil {
		resp.Categories = []string{}
	}
	if resp.Counts == nil {
		resp.Counts = map[string]int{}
	}
	return resp
}

// List returns recorded runs, newest first
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", constants.DefaultRunsLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, constants.MaxRunsLimit)

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("could not list runs")
		respondError(w, http.StatusInternalServerError, "could not list runs")
		return
	}

	now := time.Now()
	resp := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, newRunResponse(run, now))
	}
	respondJSON(w, http.StatusOK, resp)
}
