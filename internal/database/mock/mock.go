// Package mock provides an in-memory implementation of database.Store for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/database"
)

// MockStore is a mock implementation of database.Store
type MockStore struct {
	mu         sync.RWMutex
	runs       map[string]*database.Run
	checkpoint map[string]time.Time
	saves      int
	closed     bool

	// Error injection
	CreateRunError      error
	FinishRunError      error
	GetRunError         error
	ListRunsError       error
	LastSuccessError    error
	LoadCheckpointError error
	SaveCheckpointError error
	ClearCheckpointErr  error
}

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{
		runs:       make(map[string]*database.Run),
		checkpoint: make(map[string]time.Time),
	}
}

func copyRun(r *database.Run) *database.Run {
	c := *r
	c.Categories = append([]string(nil), r.Categories...)
	c.Counts = make(map[string]int, len(r.Counts))
	for k, v := range r.Counts {
		c.Counts[k] = v
	}
	return &c
}

// AddRun adds a run to the mock store
func (m *MockStore) AddRun(run database.Run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = copyRun(&run)
}

// CreateRun stores a new run
func (m *MockStore) CreateRun(ctx context.Context, run *database.Run) error {
	if m.CreateRunError != nil {
		return m.CreateRunError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	m.runs[run.ID] = copyRun(run)
	return nil
}

// FinishRun stores the final state of a run
func (m *MockStore) FinishRun(ctx context.Context, run *database.Run) error {
	if m.FinishRunError != nil {
		return m.FinishRunError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.runs[run.ID]
	if !ok {
		return fmt.Errorf("finish run: run %s not found", run.ID)
	}
	updated := copyRun(run)
	updated.StartedAt = existing.StartedAt
	m.runs[run.ID] = updated
	return nil
}

// GetRun retrieves a run by ID
func (m *MockStore) GetRun(ctx context.Context, id string) (*database.Run, error) {
	if m.GetRunError != nil {
		return nil, m.GetRunError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return copyRun(r), nil
}

func (m *MockStore) sortedRuns() []database.Run {
	runs := make([]database.Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, *copyRun(r))
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}

// ListRuns returns the most recent runs, newest first
func (m *MockStore) ListRuns(ctx context.Context, limit int) ([]database.Run, error) {
	if m.ListRunsError != nil {
		return nil, m.ListRunsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := m.sortedRuns()
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// LastSuccessfulRun returns the latest completed non-dry run
func (m *MockStore) LastSuccessfulRun(ctx context.Context) (*database.Run, error) {
	if m.LastSuccessError != nil {
		return nil, m.LastSuccessError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.sortedRuns() {
		if r.Status == database.RunCompleted && !r.DryRun {
			return &r, nil
		}
	}
	return nil, nil
}

// LoadCheckpoint returns all checkpointed asset IDs
func (m *MockStore) LoadCheckpoint(ctx context.Context) (map[string]struct{}, error) {
	if m.LoadCheckpointError != nil {
		return nil, m.LoadCheckpointError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make(map[string]struct{}, len(m.checkpoint))
	for id := range m.checkpoint {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// SaveCheckpoint adds asset IDs to the checkpoint
func (m *MockStore) SaveCheckpoint(ctx context.Context, assetIDs []string) error {
	if m.SaveCheckpointError != nil {
		return m.SaveCheckpointError
	}
	if len(assetIDs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, id := range assetIDs {
		if _, ok := m.checkpoint[id]; !ok {
			m.checkpoint[id] = now
		}
	}
	m.saves++
	return nil
}

// ClearCheckpoint removes all checkpointed asset IDs
func (m *MockStore) ClearCheckpoint(ctx context.Context) error {
	if m.ClearCheckpointErr != nil {
		return m.ClearCheckpointErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoint = make(map[string]time.Time)
	return nil
}

// CheckpointInfo returns the checkpoint size and last save time
func (m *MockStore) CheckpointInfo(ctx context.Context) (database.CheckpointInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info := database.CheckpointInfo{Count: len(m.checkpoint)}
	for _, t := range m.checkpoint {
		if t.After(info.UpdatedAt) {
			info.UpdatedAt = t
		}
	}
	return info, nil
}

// SaveCount returns how many non-empty SaveCheckpoint calls succeeded
func (m *MockStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Closed reports whether Close was called
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Close marks the store closed
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ database.Store = (*MockStore)(nil)
