//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/config"
	"github.com/kozaktomas/immich-metasync/internal/database"
	"github.com/kozaktomas/immich-metasync/internal/database/storetest"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*config.DatabaseConfig, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		Driver:       config.DriverPostgres,
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	cleanup := func() {
		container.Terminate(ctx)
	}

	return cfg, cleanup
}

func TestStore(t *testing.T) {
	cfg, cleanup := setupTestContainer(t)
	if cfg == nil {
		return
	}
	defer cleanup()

	storetest.Run(t, func(t *testing.T) database.Store {
		store, err := Open(context.Background(), cfg, zerolog.Nop())
		if err != nil {
			t.Fatalf("Failed to open store: %v", err)
		}
		t.Cleanup(func() { store.Close() })

		if _, err := store.pool.Exec(context.Background(), "TRUNCATE sync_runs, sync_checkpoint"); err != nil {
			t.Fatalf("Failed to truncate tables: %v", err)
		}
		return store
	})
}

func TestMigrationsIdempotent(t *testing.T) {
	cfg, cleanup := setupTestContainer(t)
	if cfg == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	pool, err := NewPool(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer pool.Close()

	for i := 0; i < 2; i++ {
		if err := pool.Migrate(ctx); err != nil {
			t.Fatalf("Migrate pass %d: %v", i+1, err)
		}
	}

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied: %v", err)
	}
	if len(applied) != 1 || applied[0] != "001_initial.sql" {
		t.Errorf("unexpected applied migrations %v", applied)
	}
}

func TestOpenViaRegistry(t *testing.T) {
	cfg, cleanup := setupTestContainer(t)
	if cfg == nil {
		return
	}
	defer cleanup()

	store, err := database.Open(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	defer store.Close()

	if _, err := store.CheckpointInfo(context.Background()); err != nil {
		t.Errorf("CheckpointInfo: %v", err)
	}
}
