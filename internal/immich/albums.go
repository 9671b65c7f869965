package immich

import (
	"context"
	"fmt"
	"strings"
)

// GetAlbums lists all albums without their assets.
func (c *Client) GetAlbums(ctx context.Context) ([]Album, error) {
	result, err := doGetJSON[[]Album](ctx, c, "albums")
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// GetAlbum retrieves one album including its assets.
func (c *Client) GetAlbum(ctx context.Context, id string) (*Album, error) {
	return doGetJSON[Album](ctx, c, "albums/"+id)
}

// AlbumIndex maps asset IDs to the names of the albums containing them.
type AlbumIndex struct {
	byAsset map[string][]string
	albums  int
}

// NewAlbumIndex builds an index from albums that carry their assets.
// Unnamed albums are ignored.
func NewAlbumIndex(albums []Album) *AlbumIndex {
	idx := &AlbumIndex{byAsset: make(map[string][]string)}
	for _, a := range albums {
		idx.add(a)
	}
	return idx
}

func (idx *AlbumIndex) add(a Album) {
	name := strings.TrimSpace(a.AlbumName)
	if name == "" {
		return
	}
	idx.albums++
	for _, asset := range a.Assets {
		if asset.ID == "" {
			continue
		}
		idx.byAsset[asset.ID] = append(idx.byAsset[asset.ID], name)
	}
}

// AlbumsForAsset returns the album names of an asset in album list order.
func (idx *AlbumIndex) AlbumsForAsset(id string) []string {
	if idx == nil {
		return nil
	}
	return idx.byAsset[id]
}

// Albums returns the number of indexed albums.
func (idx *AlbumIndex) Albums() int {
	if idx == nil {
		return 0
	}
	return idx.albums
}

// BuildAlbumIndex fetches every album and its assets. Albums listed without
// assets are fetched individually.
func (c *Client) BuildAlbumIndex(ctx context.Context) (*AlbumIndex, error) {
	albums, err := c.GetAlbums(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list albums: %w", err)
	}
	idx := &AlbumIndex{byAsset: make(map[string][]string)}
	for _, a := range albums {
		if strings.TrimSpace(a.AlbumName) == "" {
			continue
		}
		if len(a.Assets) == 0 && a.ID != "" {
			full, err := c.GetAlbum(ctx, a.ID)
			if err != nil {
				return nil, fmt.Errorf("could not get album %s: %w", a.ID, err)
			}
			a.Assets = full.Assets
		}
		idx.add(a)
	}
	return idx, nil
}
