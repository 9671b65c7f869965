package syncer

import (
	"context"
	"fmt"

	"github.com/kozaktomas/immich-metasync/internal/metadata"
)

// Inspection is the desired and current state of one asset.
type Inspection struct {
	AssetID    string                       `json:"asset_id"`
	Original   string                       `json:"original_path"`
	Path       string                       `json:"path,omitempty"`
	PathError  string                       `json:"path_error,omitempty"`
	Status     Status                       `json:"status"`
	Desired    map[string]map[string]string `json:"desired"`
	Current    map[string]string            `json:"current,omitempty"`
	Diffs      []metadata.Diff              `json:"diffs,omitempty"`
	Changed    []metadata.Category          `json:"changed,omitempty"`
	TimeChoice *metadata.TimeChoice         `json:"time_choice,omitempty"`
	Notes      []string                     `json:"notes,omitempty"`
	ReadError  string                       `json:"read_error,omitempty"`
}

// Inspect builds and compares one asset without writing. Status is the
// outcome a dry run would report.
func (s *Syncer) Inspect(ctx context.Context, assetID string, categories metadata.CategorySet, captionMaxLen int) (*Inspection, error) {
	asset, err := s.source.GetAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("could not get asset %s: %w", assetID, err)
	}

	var albums []string
	if categories.Has(metadata.CategoryAlbums) {
		idx, err := s.source.BuildAlbumIndex(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not load albums: %w", err)
		}
		albums = idx.AlbumsForAsset(asset.ID)
	}
	rec := asset.Record(albums)

	desired, err := metadata.Build(rec, metadata.Options{Categories: categories, CaptionMaxLen: captionMaxLen})
	if err != nil {
		return nil, fmt.Errorf("could not build desired metadata: %w", err)
	}

	in := &Inspection{
		AssetID:    asset.ID,
		Original:   rec.OriginalPath,
		Desired:    make(map[string]map[string]string),
		TimeChoice: desired.TimeChoice,
		Notes:      desired.Notes,
	}
	for _, c := range desired.Categories() {
		tags := make(map[string]string)
		for _, a := range desired.Assignments(c) {
			tags[a.Tag.Name] = a.Value.String()
		}
		in.Desired[string(c)] = tags
	}

	path, err := s.files.Resolve(rec.OriginalPath)
	if err != nil {
		in.PathError = err.Error()
		in.Status = statusForPathError(err)
		return in, nil
	}
	in.Path = path

	tags := metadata.ReadTags(categories)
	snap := s.io.Read(ctx, path, tags)
	if snap.Err != nil {
		in.ReadError = snap.Err.Error()
	} else {
		in.Current = make(map[string]string)
		for _, t := range tags {
			if v, ok := snap.Get(t.Key); ok {
				in.Current[t.Key] = v.String()
			}
		}
	}

	res := metadata.NewComparator(metadata.DefaultPrecision()).Compare(desired, snap)
	in.Diffs = res.Diffs
	in.Changed = res.Changed
	switch {
	case desired.Empty(), !res.NeedsUpdate:
		in.Status = StatusSkipped
	default:
		in.Status = StatusSimulated
	}
	return in, nil
}
