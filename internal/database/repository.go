package database

import (
	"context"
)

// CheckpointStore keeps the set of asset IDs a resumable run already processed
type CheckpointStore interface {
	// LoadCheckpoint returns all checkpointed asset IDs
	LoadCheckpoint(ctx context.Context) (map[string]struct{}, error)
	// SaveCheckpoint adds asset IDs to the checkpoint; existing IDs are kept
	SaveCheckpoint(ctx context.Context, assetIDs []string) error
	// ClearCheckpoint removes every checkpointed asset ID
	ClearCheckpoint(ctx context.Context) error
	// CheckpointInfo returns the number of IDs and the last save time
	CheckpointInfo(ctx context.Context) (CheckpointInfo, error)
}

// RunStore records the history of sync runs
type RunStore interface {
	// CreateRun stores a new run in the running state
	CreateRun(ctx context.Context, run *Run) error
	// FinishRun stores the final status, counters and error of a run
	FinishRun(ctx context.Context, run *Run) error
	// GetRun retrieves a run by ID, returns nil if not found
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the most recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	// LastSuccessfulRun returns the latest completed non-dry run, nil if none
	LastSuccessfulRun(ctx context.Context) (*Run, error)
}

// Store is the full state store used by the syncer and the web server
type Store interface {
	CheckpointStore
	RunStore
	Close() error
}
