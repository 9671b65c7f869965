// Package sqlite stores run history and checkpoints in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/config"
	"github.com/kozaktomas/immich-metasync/internal/database"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	database.RegisterBackend(config.DriverSQLite, func(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (database.Store, error) {
		return Open(ctx, cfg.Path, logger)
	})
}

// Store is a SQLite-backed database.Store. Times are stored as Unix nanoseconds.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file if needed and applies pending migrations.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	m := &database.Migrator{
		DB:          db,
		FS:          migrationsFS,
		Dir:         "migrations",
		Placeholder: "?",
		Logger:      logger,
	}
	if _, err := m.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

const runColumns = `id, status, dry_run, force_write, only_new, categories,
	started_at, finished_at, total, counts, error_message`

// CreateRun stores a new run
func (s *Store) CreateRun(ctx context.Context, run *database.Run) error {
	counts, err := database.EncodeCounts(run.Counts)
	if err != nil {
		return err
	}
	query := `INSERT INTO sync_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		run.ID, string(run.Status), run.DryRun, run.Force, run.OnlyNew,
		database.EncodeCategories(run.Categories), run.StartedAt.UnixNano(),
		run.Total, counts, run.Error,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun stores the final state of a run
func (s *Store) FinishRun(ctx context.Context, run *database.Run) error {
	counts, err := database.EncodeCounts(run.Counts)
	if err != nil {
		return err
	}
	var finished sql.NullInt64
	if !run.FinishedAt.IsZero() {
		finished = sql.NullInt64{Int64: run.FinishedAt.UnixNano(), Valid: true}
	}
	query := `UPDATE sync_runs SET status = ?, finished_at = ?, total = ?, counts = ?, error_message = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, string(run.Status), finished, run.Total, counts, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: run %s not found", run.ID)
	}
	return nil
}

// GetRun retrieves a run by ID, returns nil if not found
func (s *Store) GetRun(ctx context.Context, id string) (*database.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]database.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []database.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastSuccessfulRun returns the latest completed non-dry run
func (s *Store) LastSuccessfulRun(ctx context.Context) (*database.Run, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs
		WHERE status = ? AND dry_run = 0
		ORDER BY started_at DESC LIMIT 1`
	run, err := scanRun(s.db.QueryRowContext(ctx, query, string(database.RunCompleted)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last successful run: %w", err)
	}
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*database.Run, error) {
	var (
		r          database.Run
		status     string
		categories string
		counts     string
		started    int64
		finished   sql.NullInt64
	)
	err := row.Scan(&r.ID, &status, &r.DryRun, &r.Force, &r.OnlyNew, &categories,
		&started, &finished, &r.Total, &counts, &r.Error)
	if err != nil {
		return nil, err
	}
	r.Status = database.RunStatus(status)
	r.Categories = database.DecodeCategories(categories)
	r.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		r.FinishedAt = time.Unix(0, finished.Int64).UTC()
	}
	if r.Counts, err = database.DecodeCounts(counts); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadCheckpoint returns all checkpointed asset IDs
func (s *Store) LoadCheckpoint(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT asset_id FROM sync_checkpoint")
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoint: %w", err)
	}
	return ids, nil
}

// SaveCheckpoint adds asset IDs to the checkpoint in one transaction
func (s *Store) SaveCheckpoint(ctx context.Context, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO sync_checkpoint (asset_id, processed_at) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare checkpoint insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UnixNano()
	for _, id := range assetIDs {
		if _, err := stmt.ExecContext(ctx, id, now); err != nil {
			return fmt.Errorf("save checkpoint %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// ClearCheckpoint removes all checkpointed asset IDs
func (s *Store) ClearCheckpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sync_checkpoint"); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// CheckpointInfo returns the checkpoint size and last save time
func (s *Store) CheckpointInfo(ctx context.Context) (database.CheckpointInfo, error) {
	var (
		info    database.CheckpointInfo
		updated sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), MAX(processed_at) FROM sync_checkpoint").Scan(&info.Count, &updated)
	if err != nil {
		return info, fmt.Errorf("checkpoint info: %w", err)
	}
	if updated.Valid {
		info.UpdatedAt = time.Unix(0, updated.Int64).UTC()
	}
	return info, nil
}

var _ database.Store = (*Store)(nil)
