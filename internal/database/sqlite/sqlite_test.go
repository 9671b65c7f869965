package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/config"
	"github.com/kozaktomas/immich-metasync/internal/database"
	"github.com/kozaktomas/immich-metasync/internal/database/storetest"
	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) database.Store {
		return openTestStore(t)
	})
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	store, err := Open(ctx, path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.SaveCheckpoint(ctx, []string{"asset-1"}); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	store.Close()

	store, err = Open(ctx, path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	ids, err := store.LoadCheckpoint(ctx)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if _, ok := ids["asset-1"]; !ok {
		t.Errorf("expected asset-1 after reopen, got %v", ids)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), "", zerolog.Nop()); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestOpenViaRegistry(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "state.db"),
	}
	store, err := database.Open(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*Store); !ok {
		t.Errorf("expected *sqlite.Store, got %T", store)
	}
}

func TestCheckpointInfoUsesClock(t *testing.T) {
	store := openTestStore(t)
	fixed := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	ctx := context.Background()
	if err := store.SaveCheckpoint(ctx, []string{"x"}); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	info, err := store.CheckpointInfo(ctx)
	if err != nil {
		t.Fatalf("CheckpointInfo: %v", err)
	}
	if !info.UpdatedAt.Equal(fixed) {
		t.Errorf("expected %v, got %v", fixed, info.UpdatedAt)
	}
}
