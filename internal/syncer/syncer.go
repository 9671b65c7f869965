// Package syncer runs the sync loop: it pages assets from the server, builds
// the desired tags of each asset, compares them with the file and writes the
// differences.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/immich-metasync/internal/database"
	"github.com/kozaktomas/immich-metasync/internal/immich"
	"github.com/kozaktomas/immich-metasync/internal/metadata"
	"github.com/rs/zerolog"
)

// AssetSource is the part of the API client the syncer needs.
type AssetSource interface {
	SearchAssets(ctx context.Context, opts immich.SearchOptions, fn func(page []immich.Asset) error) error
	GetAsset(ctx context.Context, id string) (*immich.Asset, error)
	BuildAlbumIndex(ctx context.Context) (*immich.AlbumIndex, error)
}

// Locator maps a server-side original path onto a local file.
type Locator interface {
	Resolve(originalPath string) (string, error)
}

// MetadataIO reads and writes embedded tags.
type MetadataIO interface {
	Read(ctx context.Context, path string, tags []metadata.Tag) metadata.Snapshot
	Write(ctx context.Context, path string, desired *metadata.Desired) error
}

// Phases reported through ProgressInfo.
const (
	PhaseFetching   = "fetching"
	PhaseAlbums     = "albums"
	PhaseProcessing = "processing"
)

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Phase   string
	Current int
	Total   int
	AssetID string
	Status  Status
}

// Options configures one run.
type Options struct {
	Categories         metadata.CategorySet
	DryRun             bool
	Force              bool // write without comparing
	OnlyNew            bool // only assets updated since the last successful run
	Resume             bool // skip assets in the checkpoint
	WithArchived       bool
	Concurrency        int
	Limit              int
	PageSize           int
	CaptionMaxLen      int
	CheckpointInterval int
	Precision          metadata.Precision
	RunID              string             // generated when empty
	OnProgress         func(ProgressInfo) // Optional progress callback for CLI and web UI
}

// Defaults applied to zero option values.
const (
	DefaultConcurrency        = 4
	DefaultCheckpointInterval = 100
)

// ErrNoCategories is returned when a run has nothing to sync.
var ErrNoCategories = errors.New("no metadata category selected")

type Syncer struct {
	source AssetSource
	files  Locator
	io     MetadataIO
	store  database.Store
	logger zerolog.Logger
	now    func() time.Time
}

func New(source AssetSource, files Locator, io MetadataIO, store database.Store, logger zerolog.Logger) *Syncer {
	return &Syncer{
		source: source,
		files:  files,
		io:     io,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (o *Options) normalize() {
	if o.Concurrency < 1 {
		o.Concurrency = DefaultConcurrency
	}
	if o.CheckpointInterval < 1 {
		o.CheckpointInterval = DefaultCheckpointInterval
	}
	if o.CaptionMaxLen < 1 {
		o.CaptionMaxLen = metadata.DefaultCaptionMaxLen
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
}

// run holds the state shared by the workers of one Run.
type run struct {
	opts       Options
	albums     *immich.AlbumIndex
	comparator *metadata.Comparator
	readTags   []metadata.Tag
	rec        *recorder
	checkpoint *checkpointer
}

// Run syncs every selected asset and returns the run statistics. A cancelled
// context stops dispatching new assets; the stats of the assets already
// processed are returned together with the context error.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Stats, error) {
	opts.normalize()
	if len(opts.Categories) == 0 {
		return nil, ErrNoCategories
	}

	stats := &Stats{
		RunID:      opts.RunID,
		StartedAt:  s.now(),
		DryRun:     opts.DryRun,
		Categories: opts.Categories.Strings(),
	}
	record := &database.Run{
		ID:         opts.RunID,
		Status:     database.RunRunning,
		DryRun:     opts.DryRun,
		Force:      opts.Force,
		OnlyNew:    opts.OnlyNew,
		Categories: stats.Categories,
		StartedAt:  stats.StartedAt,
	}
	if err := s.store.CreateRun(ctx, record); err != nil {
		return nil, fmt.Errorf("could not record run: %w", err)
	}

	log := s.logger.With().Str("run_id", opts.RunID).Logger()
	log.Info().
		Strs("categories", stats.Categories).
		Bool("dry_run", opts.DryRun).
		Bool("force", opts.Force).
		Bool("only_new", opts.OnlyNew).
		Bool("resume", opts.Resume).
		Int("concurrency", opts.Concurrency).
		Msg("sync started")

	runErr := s.run(ctx, opts, stats, log)

	stats.FinishedAt = s.now()
	record.FinishedAt = stats.FinishedAt
	record.Total = stats.Total
	record.Counts = stats.Counts()
	switch {
	case runErr == nil:
		record.Status = database.RunCompleted
	case errors.Is(runErr, context.Canceled):
		record.Status = database.RunCancelled
		record.Error = runErr.Error()
	default:
		record.Status = database.RunFailed
		record.Error = runErr.Error()
	}
	// The run context may already be cancelled; the final record must still be stored.
	if err := s.store.FinishRun(context.WithoutCancel(ctx), record); err != nil {
		log.Error().Err(err).Msg("could not record run result")
	}

	log.Info().
		Str("status", string(record.Status)).
		Int("total", stats.Total).
		Int("updated", stats.Updated).
		Int("simulated", stats.Simulated).
		Int("skipped", stats.Skipped).
		Int("file_not_found", stats.FileNotFound).
		Int("path_segment_mismatch", stats.PathMismatch).
		Int("errors", stats.Errors).
		Dur("duration", stats.FinishedAt.Sub(stats.StartedAt)).
		Msg("sync finished")

	return stats, runErr
}

func (s *Syncer) run(ctx context.Context, opts Options, stats *Stats, log zerolog.Logger) error {
	search := immich.SearchOptions{PageSize: opts.PageSize, WithArchived: opts.WithArchived}
	if opts.OnlyNew {
		last, err := s.store.LastSuccessfulRun(ctx)
		if err != nil {
			return fmt.Errorf("could not load last successful run: %w", err)
		}
		if last != nil {
			search.UpdatedAfter = last.StartedAt
			log.Info().Time("updated_after", last.StartedAt).Str("last_run", last.ID).Msg("syncing assets changed since last run")
		} else {
			log.Info().Msg("no previous successful run, syncing all assets")
		}
	}

	var done map[string]struct{}
	if opts.Resume {
		var err error
		if done, err = s.store.LoadCheckpoint(ctx); err != nil {
			return fmt.Errorf("could not load checkpoint: %w", err)
		}
		log.Info().Int("assets", len(done)).Msg("resuming from checkpoint")
	}

	assets, resumed, err := s.collect(ctx, search, opts, done)
	if err != nil {
		return err
	}
	stats.Total = len(assets)
	stats.Resumed = resumed
	log.Info().Int("assets", len(assets)).Int("resumed", resumed).Msg("assets loaded")

	r := &run{
		opts:       opts,
		comparator: metadata.NewComparator(opts.Precision),
		readTags:   metadata.ReadTags(opts.Categories),
		rec:        newRecorder(),
	}
	if !opts.DryRun {
		r.checkpoint = newCheckpointer(s.store, opts.CheckpointInterval, log)
	}

	if opts.Categories.Has(metadata.CategoryAlbums) && len(assets) > 0 {
		s.progress(opts, ProgressInfo{Phase: PhaseAlbums})
		idx, err := s.source.BuildAlbumIndex(ctx)
		if err != nil {
			log.Error().Err(err).Msg("could not load albums, continuing without album data")
		} else {
			r.albums = idx
			log.Info().Int("albums", idx.Albums()).Msg("albums loaded")
		}
	}

	runErr := s.process(ctx, r, assets)
	r.rec.fill(stats)

	if r.checkpoint != nil {
		if err := r.checkpoint.flush(context.WithoutCancel(ctx)); err != nil {
			log.Error().Err(err).Msg("could not save checkpoint")
		}
		if runErr == nil {
			if err := s.store.ClearCheckpoint(ctx); err != nil {
				log.Error().Err(err).Msg("could not clear checkpoint")
			} else {
				log.Debug().Msg("checkpoint cleared after completed run")
			}
		}
	}
	return runErr
}

// collect pages through the search endpoint, dropping checkpointed assets,
// until the limit is reached.
func (s *Syncer) collect(ctx context.Context, search immich.SearchOptions, opts Options, done map[string]struct{}) ([]immich.Asset, int, error) {
	var (
		assets  []immich.Asset
		resumed int
	)
	errLimit := errors.New("limit reached")
	err := s.source.SearchAssets(ctx, search, func(page []immich.Asset) error {
		for _, a := range page {
			if _, ok := done[a.ID]; ok {
				resumed++
				continue
			}
			assets = append(assets, a)
			if opts.Limit > 0 && len(assets) >= opts.Limit {
				return errLimit
			}
		}
		s.progress(opts, ProgressInfo{Phase: PhaseFetching, Current: len(assets)})
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, 0, fmt.Errorf("could not fetch assets: %w", err)
	}
	return assets, resumed, nil
}

// process runs the worker pool over the collected assets.
func (s *Syncer) process(ctx context.Context, r *run, assets []immich.Asset) error {
	sem := make(chan struct{}, r.opts.Concurrency)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
	)

dispatch:
	for i := range assets {
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(asset *immich.Asset) {
			defer wg.Done()
			defer func() { <-sem }()

			o := s.processAsset(ctx, r, asset)
			r.rec.record(o)
			if r.checkpoint != nil && o.Status != StatusError {
				r.checkpoint.add(ctx, asset.ID)
			}

			mu.Lock()
			processed++
			current := processed
			mu.Unlock()
			s.progress(r.opts, ProgressInfo{
				Phase:   PhaseProcessing,
				Current: current,
				Total:   len(assets),
				AssetID: asset.ID,
				Status:  o.Status,
			})
		}(&assets[i])
	}

	wg.Wait()
	return ctx.Err()
}

func (s *Syncer) progress(opts Options, info ProgressInfo) {
	if opts.OnProgress != nil {
		opts.OnProgress(info)
	}
}
