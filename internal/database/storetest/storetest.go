// Package storetest holds behavior tests shared by every database.Store backend.
package storetest

import (
	"context"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/database"
)

// Opener returns an empty store. It is called once per subtest.
type Opener func(t *testing.T) database.Store

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Run exercises the full database.Store contract.
func Run(t *testing.T, open Opener) {
	t.Run("RunLifecycle", func(t *testing.T) { testRunLifecycle(t, open(t)) })
	t.Run("GetRunMissing", func(t *testing.T) { testGetRunMissing(t, open(t)) })
	t.Run("FinishRunMissing", func(t *testing.T) { testFinishRunMissing(t, open(t)) })
	t.Run("ListRuns", func(t *testing.T) { testListRuns(t, open(t)) })
	t.Run("LastSuccessfulRun", func(t *testing.T) { testLastSuccessfulRun(t, open(t)) })
	t.Run("Checkpoint", func(t *testing.T) { testCheckpoint(t, open(t)) })
}

func testRunLifecycle(t *testing.T, s database.Store) {
	ctx := context.Background()
	run := &database.Run{
		ID:         "run-1",
		Status:     database.RunRunning,
		DryRun:     true,
		OnlyNew:    true,
		Categories: []string{"people", "gps"},
		StartedAt:  base,
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Status != database.RunRunning {
		t.Errorf("expected status running, got %s", got.Status)
	}
	if !got.DryRun || !got.OnlyNew || got.Force {
		t.Errorf("unexpected flags: dry=%v onlyNew=%v force=%v", got.DryRun, got.OnlyNew, got.Force)
	}
	if !reflect.DeepEqual(got.Categories, []string{"people", "gps"}) {
		t.Errorf("unexpected categories %v", got.Categories)
	}
	if !got.StartedAt.Equal(base) {
		t.Errorf("expected started %v, got %v", base, got.StartedAt)
	}
	if !got.FinishedAt.IsZero() {
		t.Errorf("expected zero finished time, got %v", got.FinishedAt)
	}

	run.Status = database.RunFailed
	run.FinishedAt = base.Add(2 * time.Minute)
	run.Total = 12
	run.Counts = map[string]int{"updated": 5, "skipped": 7}
	run.Error = "exiftool crashed"
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err = s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun after finish: %v", err)
	}
	if got.Status != database.RunFailed {
		t.Errorf("expected status failed, got %s", got.Status)
	}
	if !got.FinishedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("unexpected finished time %v", got.FinishedAt)
	}
	if got.Total != 12 || got.Counts["updated"] != 5 || got.Counts["skipped"] != 7 {
		t.Errorf("unexpected totals %d %v", got.Total, got.Counts)
	}
	if got.Error != "exiftool crashed" {
		t.Errorf("unexpected error text %q", got.Error)
	}
}

func testGetRunMissing(t *testing.T, s database.Store) {
	got, err := s.GetRun(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing run, got %+v", got)
	}
}

func testFinishRunMissing(t *testing.T, s database.Store) {
	err := s.FinishRun(context.Background(), &database.Run{ID: "ghost", Status: database.RunCompleted})
	if err == nil {
		t.Error("expected error finishing an unknown run")
	}
}

func testListRuns(t *testing.T, s database.Store) {
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		run := &database.Run{ID: id, Status: database.RunRunning, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"c", "b", "a"}) {
		t.Errorf("expected newest first [c b a], got %v", ids)
	}

	runs, err = s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns limit: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func testLastSuccessfulRun(t *testing.T, s database.Store) {
	ctx := context.Background()

	got, err := s.LastSuccessfulRun(ctx)
	if err != nil {
		t.Fatalf("LastSuccessfulRun on empty store: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil on empty store, got %+v", got)
	}

	runs := []database.Run{
		{ID: "ok-old", Status: database.RunCompleted, StartedAt: base},
		{ID: "ok-new", Status: database.RunCompleted, StartedAt: base.Add(time.Hour)},
		{ID: "dry", Status: database.RunCompleted, DryRun: true, StartedAt: base.Add(2 * time.Hour)},
		{ID: "failed", Status: database.RunFailed, StartedAt: base.Add(3 * time.Hour)},
		{ID: "running", Status: database.RunRunning, StartedAt: base.Add(4 * time.Hour)},
	}
	for i := range runs {
		r := runs[i]
		status := r.Status
		r.Status = database.RunRunning
		if err := s.CreateRun(ctx, &r); err != nil {
			t.Fatalf("CreateRun %s: %v", r.ID, err)
		}
		if status != database.RunRunning {
			r.Status = status
			r.FinishedAt = r.StartedAt.Add(time.Minute)
			if err := s.FinishRun(ctx, &r); err != nil {
				t.Fatalf("FinishRun %s: %v", r.ID, err)
			}
		}
	}

	got, err = s.LastSuccessfulRun(ctx)
	if err != nil {
		t.Fatalf("LastSuccessfulRun: %v", err)
	}
	if got == nil || got.ID != "ok-new" {
		t.Errorf("expected ok-new, got %+v", got)
	}
}

func testCheckpoint(t *testing.T, s database.Store) {
	ctx := context.Background()

	info, err := s.CheckpointInfo(ctx)
	if err != nil {
		t.Fatalf("CheckpointInfo: %v", err)
	}
	if info.Count != 0 || !info.UpdatedAt.IsZero() {
		t.Errorf("expected empty checkpoint, got %+v", info)
	}

	if err := s.SaveCheckpoint(ctx, []string{"a1", "a2"}); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if err := s.SaveCheckpoint(ctx, []string{"a2", "a3", "a3"}); err != nil {
		t.Fatalf("SaveCheckpoint overlap: %v", err)
	}
	if err := s.SaveCheckpoint(ctx, nil); err != nil {
		t.Fatalf("SaveCheckpoint empty: %v", err)
	}

	ids, err := s.LoadCheckpoint(ctx)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	var got []string
	for id := range ids {
		got = append(got, id)
	}
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"a1", "a2", "a3"}) {
		t.Errorf("unexpected checkpoint ids %v", got)
	}

	info, err = s.CheckpointInfo(ctx)
	if err != nil {
		t.Fatalf("CheckpointInfo: %v", err)
	}
	if info.Count != 3 {
		t.Errorf("expected count 3, got %d", info.Count)
	}
	if info.UpdatedAt.IsZero() {
		t.Error("expected non-zero update time")
	}

	if err := s.ClearCheckpoint(ctx); err != nil {
		t.Fatalf("ClearCheckpoint: %v", err)
	}
	ids, err = s.LoadCheckpoint(ctx)
	if err != nil {
		t.Fatalf("LoadCheckpoint after clear: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty checkpoint after clear, got %d", len(ids))
	}
}
