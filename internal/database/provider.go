package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/immich-metasync/internal/config"
	"github.com/rs/zerolog"
)

// Opener connects to a backend and applies its migrations.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (Store, error)

var (
	backends   = make(map[string]Opener)
	backendsMu sync.RWMutex
)

// RegisterBackend registers a store constructor for a driver name.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(driver string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if open == nil {
		panic("database: RegisterBackend opener is nil")
	}
	if _, dup := backends[driver]; dup {
		panic("database: RegisterBackend called twice for driver " + driver)
	}
	backends[driver] = open
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns a Store for the configured driver
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	backendsMu.RLock()
	open, ok := backends[cfg.Driver]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown database driver %q (registered: %v)", cfg.Driver, Drivers())
	}
	store, err := open(ctx, cfg, logger.With().Str("driver", cfg.Driver).Logger())
	if err != nil {
		return nil, fmt.Errorf("could not open %s store: %w", cfg.Driver, err)
	}
	return store, nil
}
