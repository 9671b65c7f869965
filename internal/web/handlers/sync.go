package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/immich-metasync/internal/config"
	"github.com/kozaktomas/immich-metasync/internal/metadata"
	"github.com/kozaktomas/immich-metasync/internal/syncer"
	"github.com/rs/zerolog"
)

// SyncRunner executes one sync run.
type SyncRunner interface {
	Run(ctx context.Context, opts syncer.Options) (*syncer.Stats, error)
}

// SyncHandler handles sync job endpoints
type SyncHandler struct {
	config     *config.Config
	runner     SyncRunner
	jobManager *JobManager
	logger     zerolog.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(cfg *config.Config, runner SyncRunner, jm *JobManager, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		config:     cfg,
		runner:     runner,
		jobManager: jm,
		logger:     logger,
	}
}

// StartRequest represents a sync start request
type StartRequest struct {
	Categories  []string `json:"categories"`
	All         bool     `json:"all"`
	DryRun      bool     `json:"dry_run"`
	Force       bool     `json:"force"`
	OnlyNew     bool     `json:"only_new"`
	Resume      bool     `json:"resume"`
	Limit       int      `json:"limit"`
	Concurrency int      `json:"concurrency"`
}

// categorySet resolves the requested categories. "all" enables the default set.
func (req StartRequest) categorySet() (metadata.CategorySet, error) {
	set := metadata.NewCategorySet()
	if req.All {
		for _, c := range metadata.DefaultCategories {
			set[c] = struct{}{}
		}
	}
	for _, name := range req.Categories {
		c, err := metadata.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		set[c] = struct{}{}
	}
	return set, nil
}

// Start starts a new sync job
func (h *SyncHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	categories, err := req.categorySet()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(categories) == 0 {
		respondError(w, http.StatusBadRequest, syncer.ErrNoCategories.Error())
		return
	}
	if req.Limit < 0 || req.Concurrency < 0 {
		respondError(w, http.StatusBadRequest, "limit and concurrency must not be negative")
		return
	}
	if req.Concurrency == 0 {
		req.Concurrency = h.config.Sync.Concurrency
	}

	options := SyncJobOptions{
		Categories:  categories.Strings(),
		DryRun:      req.DryRun,
		Force:       req.Force,
		OnlyNew:     req.OnlyNew,
		Resume:      req.Resume,
		Limit:       req.Limit,
		Concurrency: req.Concurrency,
	}
	job, err := h.jobManager.CreateJob(uuid.New().String(), options)
	if errors.Is(err, ErrJobRunning) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The request context ends with this handler; the job gets its own.
	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)
	go h.runSyncJob(ctx, cancel, job, categories)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(JobStatusPending),
	})
}

// runSyncJob runs the sync job in the background
func (h *SyncHandler) runSyncJob(ctx context.Context, cancel context.CancelFunc, job *SyncJob, categories metadata.CategorySet) {
	defer close(job.done)
	defer cancel()

	job.setRunning()
	job.SendEvent(JobEvent{Type: "started", Message: "Sync job started"})

	stats, err := h.runner.Run(ctx, syncer.Options{
		Categories:         categories,
		DryRun:             job.Options.DryRun,
		Force:              job.Options.Force,
		OnlyNew:            job.Options.OnlyNew,
		Resume:             job.Options.Resume,
		Limit:              job.Options.Limit,
		Concurrency:        job.Options.Concurrency,
		PageSize:           h.config.Immich.PageSize,
		CaptionMaxLen:      h.config.Sync.CaptionMaxLen,
		CheckpointInterval: h.config.Sync.CheckpointInterval,
		RunID:              job.ID,
		OnProgress: func(info syncer.ProgressInfo) {
			job.setProgress(info)
			job.SendEvent(JobEvent{
				Type: "progress",
				Data: map[string]any{
					"phase":    info.Phase,
					"current":  info.Current,
					"total":    info.Total,
					"asset_id": info.AssetID,
					"status":   info.Status,
				},
			})
		},
	})

	switch {
	case err == nil:
		job.finish(JobStatusCompleted, stats, "")
		job.SendEvent(JobEvent{Type: "completed", Message: "Sync job completed", Data: stats})
	case errors.Is(err, context.Canceled):
		job.finish(JobStatusCancelled, stats, "")
		job.SendEvent(JobEvent{Type: "cancelled", Message: "Sync job cancelled", Data: stats})
	default:
		h.logger.Error().Err(err).Str("job_id", job.ID).Msg("sync job failed")
		job.finish(JobStatusFailed, stats, err.Error())
		job.SendEvent(JobEvent{Type: "job_error", Message: err.Error()})
	}
}

// Current returns the most recent sync job
func (h *SyncHandler) Current(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.Current()
	if job == nil {
		respondError(w, http.StatusNotFound, "no sync job")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Status returns the status of a sync job
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams progress events of a sync job via SSE
func (h *SyncHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, func(id string) SSEJob {
		if job := h.jobManager.GetJob(id); job != nil {
			return job
		}
		return nil
	}, func(job SSEJob) any {
		return job.(*SyncJob).Snapshot()
	})
}

// Cancel cancels a running sync job
func (h *SyncHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if isJobTerminal(job.GetStatus()) {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}

	h.logger.Info().Str("job_id", sanitizeForLog(jobID)).Msg("sync job cancel requested")
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": string(JobStatusCancelled),
	})
}
