package postgres

import (
	"context"
	"embed"

	"github.com/kozaktomas/immich-metasync/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func (p *Pool) migrator() *database.Migrator {
	return &database.Migrator{
		DB:          p.db,
		FS:          migrationsFS,
		Dir:         "migrations",
		Placeholder: "$1",
		Logger:      p.logger,
	}
}

// Migrate applies all pending migrations automatically on startup
func (p *Pool) Migrate(ctx context.Context) error {
	_, err := p.migrator().Migrate(ctx)
	return err
}

// MigrationsApplied returns the list of applied migrations
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	return p.migrator().Applied(ctx)
}
