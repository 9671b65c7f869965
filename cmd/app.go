package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/immich-metasync/internal/config"
	"github.com/kozaktomas/immich-metasync/internal/database"
	_ "github.com/kozaktomas/immich-metasync/internal/database/postgres"
	_ "github.com/kozaktomas/immich-metasync/internal/database/sqlite"
	"github.com/kozaktomas/immich-metasync/internal/exif"
	"github.com/kozaktomas/immich-metasync/internal/immich"
	"github.com/kozaktomas/immich-metasync/internal/pathmap"
	"github.com/kozaktomas/immich-metasync/internal/syncer"
)

// app holds the components a sync needs. Close releases them.
type app struct {
	cfg    *config.Config
	client *immich.Client
	files  *pathmap.Mapper
	exif   *exif.Pool
	store  database.Store
	syncer *syncer.Syncer
}

// newClient creates the Immich client and detects its API prefix.
func newClient(ctx context.Context, cfg *config.Config) (*immich.Client, error) {
	if err := cfg.ValidateImmich(); err != nil {
		return nil, err
	}
	opts := []immich.Option{
		immich.WithTimeout(cfg.Immich.Timeout),
		immich.WithRetries(cfg.Immich.Retries),
		immich.WithLogger(logger),
	}
	if captureDir != "" {
		opts = append(opts, immich.WithCaptureDir(captureDir))
	}
	client, err := immich.NewClient(cfg.Immich.URL, cfg.Immich.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create Immich client: %w", err)
	}
	if err := client.Detect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// openStore opens the configured state database.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	return database.Open(ctx, &cfg.Database, logger)
}

// newApp connects to Immich, opens the state database and starts exiftool.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:   cfg,
		files: pathmap.New(cfg.Immich.PhotoDir, cfg.Immich.PathSegments),
	}

	var err error
	if a.client, err = newClient(ctx, cfg); err != nil {
		return nil, err
	}
	if a.store, err = openStore(ctx, cfg); err != nil {
		return nil, err
	}
	if a.exif, err = exif.NewPool(cfg.Sync.Concurrency, exif.WithBinary(cfg.Exiftool.Binary)); err != nil {
		a.store.Close()
		return nil, err
	}

	a.syncer = syncer.New(a.client, a.files, a.exif, a.store, logger)
	return a, nil
}

// Close stops exiftool and closes the state database.
func (a *app) Close() error {
	var errs []error
	if a.exif != nil {
		errs = append(errs, a.exif.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
