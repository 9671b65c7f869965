package syncer

import (
	"context"
	"sync"

	"github.com/kozaktomas/immich-metasync/internal/database"
	"github.com/rs/zerolog"
)

// checkpointer buffers processed asset IDs and saves them every interval.
type checkpointer struct {
	store    database.CheckpointStore
	interval int
	logger   zerolog.Logger

	mu      sync.Mutex
	pending []string
	saved   int
}

func newCheckpointer(store database.CheckpointStore, interval int, logger zerolog.Logger) *checkpointer {
	return &checkpointer{store: store, interval: interval, logger: logger}
}

// add records one processed asset and flushes when the buffer is full.
// A failed save keeps the IDs buffered for the next attempt.
func (c *checkpointer) add(ctx context.Context, assetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, assetID)
	if len(c.pending) < c.interval {
		return
	}
	if err := c.flushLocked(ctx); err != nil {
		c.logger.Warn().Err(err).Int("pending", len(c.pending)).Msg("could not save checkpoint")
	}
}

func (c *checkpointer) flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked(ctx)
}

func (c *checkpointer) flushLocked(ctx context.Context) error {
	if len(c.pending) == 0 {
		return nil
	}
	if err := c.store.SaveCheckpoint(ctx, c.pending); err != nil {
		return err
	}
	c.saved += len(c.pending)
	c.logger.Debug().Int("assets", c.saved).Msg("checkpoint saved")
	c.pending = c.pending[:0]
	return nil
}
