package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/immich-metasync/internal/immich"
	"github.com/kozaktomas/immich-metasync/internal/metadata"
	"github.com/kozaktomas/immich-metasync/internal/pathmap"
)

type fakeSource struct {
	mu          sync.Mutex
	pages       [][]immich.Asset
	details     map[string]*immich.Asset
	albums      []immich.Album
	albumsErr   error
	searchErr   error
	searches    []immich.SearchOptions
	detailCalls int
}

func (f *fakeSource) SearchAssets(ctx context.Context, opts immich.SearchOptions, fn func(page []immich.Asset) error) error {
	f.mu.Lock()
	f.searches = append(f.searches, opts)
	f.mu.Unlock()
	if f.searchErr != nil {
		return f.searchErr
	}
	for _, p := range f.pages {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSource) GetAsset(ctx context.Context, id string) (*immich.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	if a, ok := f.details[id]; ok {
		c := *a
		return &c, nil
	}
	for _, p := range f.pages {
		for i := range p {
			if p[i].ID == id {
				c := p[i]
				return &c, nil
			}
		}
	}
	return nil, &immich.StatusError{Code: 404, Body: "not found"}
}

func (f *fakeSource) BuildAlbumIndex(ctx context.Context) (*immich.AlbumIndex, error) {
	if f.albumsErr != nil {
		return nil, f.albumsErr
	}
	return immich.NewAlbumIndex(f.albums), nil
}

// fakeFiles resolves original paths from a fixed table; unknown paths are not found.
type fakeFiles map[string]error

func (f fakeFiles) Resolve(originalPath string) (string, error) {
	if err, ok := f[originalPath]; ok && err != nil {
		return "", err
	}
	if _, ok := f[originalPath]; !ok {
		return "", fmt.Errorf("%w: %s", pathmap.ErrNotFound, originalPath)
	}
	return "/library" + originalPath, nil
}

// fakeIO keeps per-file tag values. Writes store the desired values under
// their read keys, so a second run reads back what the first one wrote.
type fakeIO struct {
	mu       sync.Mutex
	files    map[string]map[string]metadata.Value
	readErr  map[string]error
	writeErr map[string]error
	reads    int
	writes   []string
}

func newFakeIO() *fakeIO {
	return &fakeIO{
		files:    make(map[string]map[string]metadata.Value),
		readErr:  make(map[string]error),
		writeErr: make(map[string]error),
	}
}

func (f *fakeIO) set(path string, tag metadata.Tag, v metadata.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files[path] == nil {
		f.files[path] = make(map[string]metadata.Value)
	}
	f.files[path][tag.Key] = v
}

func (f *fakeIO) Read(ctx context.Context, path string, tags []metadata.Tag) metadata.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.readErr[path]; err != nil {
		return metadata.FailedSnapshot(err)
	}
	values := make(map[string]metadata.Value)
	for _, t := range tags {
		if v, ok := f.files[path][t.Key]; ok {
			values[t.Key] = v
		}
	}
	return metadata.NewSnapshot(values)
}

func (f *fakeIO) Write(ctx context.Context, path string, desired *metadata.Desired) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr[path]; err != nil {
		return err
	}
	f.writes = append(f.writes, path)
	if f.files[path] == nil {
		f.files[path] = make(map[string]metadata.Value)
	}
	for _, a := range desired.All() {
		if a.Tag.Comparable() {
			f.files[path][a.Tag.Key] = a.Value
		}
	}
	return nil
}

func (f *fakeIO) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

var errWriteDenied = errors.New("permission denied")

func captionAsset(id, path, caption string) immich.Asset {
	return immich.Asset{
		ID:           id,
		Type:         "IMAGE",
		OriginalPath: path,
		ExifInfo: &immich.ExifInfo{
			Description: immich.String{Optional: metadata.Some(caption)},
		},
	}
}
