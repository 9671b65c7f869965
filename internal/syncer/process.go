package syncer

import (
	"context"
	"errors"
	"strings"

	"github.com/kozaktomas/immich-metasync/internal/exif"
	"github.com/kozaktomas/immich-metasync/internal/immich"
	"github.com/kozaktomas/immich-metasync/internal/metadata"
	"github.com/kozaktomas/immich-metasync/internal/pathmap"
	"github.com/rs/zerolog"
)

// outcome is the result of processing one asset.
type outcome struct {
	AssetID       string
	Path          string
	Status        Status
	Changed       []metadata.Category
	ReadFailed    bool
	DetailFetched bool
	Err           error
}

// statusForPathError maps a path resolution failure onto an asset status.
func statusForPathError(err error) Status {
	switch {
	case errors.Is(err, pathmap.ErrNotFound):
		return StatusFileNotFound
	case errors.Is(err, pathmap.ErrSegmentMismatch), errors.Is(err, pathmap.ErrOutsideRoot):
		return StatusPathMismatch
	default:
		return StatusError
	}
}

// withDetail returns the asset with its EXIF block, fetching the detail
// record when the search result came without one.
func (s *Syncer) withDetail(ctx context.Context, asset *immich.Asset) (*immich.Asset, bool) {
	if asset.ExifInfo != nil {
		return asset, false
	}
	detail, err := s.source.GetAsset(ctx, asset.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("asset_id", asset.ID).Msg("could not fetch asset detail, using search result")
		return asset, false
	}
	if len(detail.People) == 0 {
		detail.People = asset.People
	}
	return detail, true
}

func (s *Syncer) processAsset(ctx context.Context, r *run, asset *immich.Asset) outcome {
	log := s.logger.With().Str("asset_id", asset.ID).Logger()

	asset, fetched := s.withDetail(ctx, asset)
	o := outcome{AssetID: asset.ID, DetailFetched: fetched}

	rec := asset.Record(r.albums.AlbumsForAsset(asset.ID))
	path, err := s.files.Resolve(rec.OriginalPath)
	if err != nil {
		o.Status = statusForPathError(err)
		if o.Status == StatusError {
			o.Err = err
			log.Warn().Err(err).Str("original_path", rec.OriginalPath).Msg("invalid original path")
		} else {
			log.Debug().Err(err).Str("original_path", rec.OriginalPath).Msg("file not available")
		}
		return o
	}
	o.Path = path
	log = log.With().Str("path", path).Logger()

	desired, err := metadata.Build(rec, metadata.Options{
		Categories:    r.opts.Categories,
		CaptionMaxLen: r.opts.CaptionMaxLen,
		Precision:     r.opts.Precision,
	})
	if err != nil {
		o.Status, o.Err = StatusError, err
		log.Error().Err(err).Msg("could not build desired metadata")
		return o
	}
	for _, note := range desired.Notes {
		log.Debug().Msg(note)
	}
	if desired.TimeChoice != nil && log.GetLevel() <= zerolog.DebugLevel {
		ev := log.Debug().Str("source", desired.TimeChoice.Source).Str("value", desired.TimeChoice.Value)
		if desired.TimeChoice.Overridden() {
			ev = ev.Str("overrides", desired.TimeChoice.Preferred)
		}
		ev.Msg("time source selected")
	}
	if desired.Empty() {
		o.Status = StatusSkipped
		log.Debug().Msg("nothing to sync")
		return o
	}

	if r.opts.Force {
		o.Changed = desired.Categories()
	} else {
		res := r.comparator.Compare(desired, s.io.Read(ctx, path, r.readTags))
		if res.ReadFailed {
			o.ReadFailed = true
			log.Warn().Err(res.ReadErr).Msg("could not read current metadata, writing all categories")
		}
		if !res.NeedsUpdate {
			o.Status = StatusSkipped
			log.Debug().Msg("already up to date")
			return o
		}
		o.Changed = res.Changed
		for _, d := range res.Diffs {
			log.Trace().Str("category", string(d.Category)).Str("tag", d.Tag).
				Str("want", d.Want).Str("got", d.Got).Bool("missing", d.Missing).Msg("tag differs")
		}
	}

	changed := categoryNames(o.Changed)
	if r.opts.DryRun {
		o.Status = StatusSimulated
		log.Info().Str("changes", changed).Msg("would update")
		return o
	}

	if err := s.io.Write(ctx, path, desired); err != nil {
		o.Status, o.Err, o.Changed = StatusError, err, nil
		ev := log.Error().Err(err)
		switch {
		case errors.Is(err, exif.ErrPermission):
			ev = ev.Str("reason", "permission")
		case errors.Is(err, exif.ErrUnsupportedFormat):
			ev = ev.Str("reason", "unsupported_format")
		}
		ev.Msg("could not write metadata")
		return o
	}
	o.Status = StatusUpdated
	log.Info().Str("changes", changed).Msg("updated")
	return o
}

func categoryNames(cs []metadata.Category) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
