package immich

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// SearchOptions filters and pages search/metadata.
type SearchOptions struct {
	PageSize     int
	UpdatedAfter time.Time
	WithArchived bool
}

func (o SearchOptions) pageSize() int {
	switch {
	case o.PageSize <= 0:
		return DefaultPageSize
	case o.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return o.PageSize
	}
}

// SearchAssets pages through search/metadata and calls fn for every page
// until the server reports no next page or fn returns an error.
func (c *Client) SearchAssets(ctx context.Context, opts SearchOptions, fn func(page []Asset) error) error {
	req := searchRequest{
		WithArchived: opts.WithArchived,
		WithExif:     true,
		WithPeople:   true,
		Page:         1,
		Size:         opts.pageSize(),
	}
	if !opts.UpdatedAfter.IsZero() {
		req.UpdatedAfter = opts.UpdatedAfter.UTC().Format(time.RFC3339)
	}
	for {
		resp, err := doPostJSON[searchResponse](ctx, c, "search/metadata", req)
		if err != nil {
			return fmt.Errorf("could not search assets (page %d): %w", req.Page, err)
		}
		if len(resp.Assets.Items) > 0 {
			if err := fn(resp.Assets.Items); err != nil {
				return err
			}
		}
		next, ok := nextPage(resp)
		if !ok || next <= req.Page {
			return nil
		}
		req.Page = next
	}
}

// nextPage parses the nextPage marker, which the server sends as a string.
func nextPage(resp *searchResponse) (int, bool) {
	if resp.Assets.NextPage == nil {
		return 0, false
	}
	raw, ok := resp.Assets.NextPage.Get()
	if !ok || raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetAsset retrieves one asset with its EXIF block and people.
func (c *Client) GetAsset(ctx context.Context, id string) (*Asset, error) {
	return doGetJSON[Asset](ctx, c, "assets/"+id)
}
