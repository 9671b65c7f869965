package database

import (
	"time"
)

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run represents one sync run stored in the database
type Run struct {
	ID         string
	Status     RunStatus
	DryRun     bool
	Force      bool
	OnlyNew    bool
	Categories []string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Total      int
	Counts     map[string]int // status and per-category counters
	Error      string
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration(now time.Time) time.Duration {
	if r.FinishedAt.IsZero() {
		return now.Sub(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Finished reports whether the run reached a terminal state.
func (r *Run) Finished() bool {
	return r.Status != RunRunning
}

// CheckpointInfo summarizes the stored checkpoint.
type CheckpointInfo struct {
	Count     int
	UpdatedAt time.Time // zero when the checkpoint is empty
}
