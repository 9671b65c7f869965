package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/immich-metasync/internal/database"
	"github.com/lib/pq"
)

// Store provides PostgreSQL-backed run history and checkpoint storage
type Store struct {
	pool *Pool
}

// NewStore creates a new PostgreSQL store
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the underlying pool
func (s *Store) Close() error {
	return s.pool.Close()
}

const runColumns = `id, status, dry_run, force_write, only_new, categories,
	started_at, finished_at, total, counts, error_message`

// CreateRun stores a new run
func (s *Store) CreateRun(ctx context.Context, run *database.Run) error {
	counts, err := database.EncodeCounts(run.Counts)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO sync_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9, $10)
	`
	_, err = s.pool.Exec(ctx, query,
		run.ID, string(run.Status), run.DryRun, run.Force, run.OnlyNew,
		database.EncodeCategories(run.Categories), run.StartedAt.UTC(),
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
	var finished sql.NullTime
	if !run.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: run.FinishedAt.UTC(), Valid: true}
	}
	query := `
		UPDATE sync_runs
		SET status = $2, finished_at = $3, total = $4, counts = $5, error_message = $6
		WHERE id = $1
	`
	res, err := s.pool.Exec(ctx, query, run.ID, string(run.Status), finished, run.Total, counts, run.Error)
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
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE id = $1`
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
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
	query := `SELECT ` + runColumns + ` FROM sync_runs ORDER BY started_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
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
	query := `
		SELECT ` + runColumns + `
		FROM sync_runs
		WHERE status = $1 AND dry_run = FALSE
		ORDER BY started_at DESC
		LIMIT 1
	`
	run, err := scanRun(s.pool.QueryRow(ctx, query, string(database.RunCompleted)))
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
		finished   sql.NullTime
	)
	err := row.Scan(
		&r.ID,
		&status,
		&r.DryRun,
		&r.Force,
		&r.OnlyNew,
		&categories,
		&r.StartedAt,
		&finished,
		&r.Total,
		&counts,
		&r.Error,
	)
	if err != nil {
		return nil, err
	}
	r.Status = database.RunStatus(status)
	r.Categories = database.DecodeCategories(categories)
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	if r.Counts, err = database.DecodeCounts(counts); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadCheckpoint returns all checkpointed asset IDs
func (s *Store) LoadCheckpoint(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, "SELECT asset_id FROM sync_checkpoint")
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

// SaveCheckpoint adds asset IDs to the checkpoint in a single statement
func (s *Store) SaveCheckpoint(ctx context.Context, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO sync_checkpoint (asset_id)
		SELECT DISTINCT unnest($1::text[])
		ON CONFLICT (asset_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, pq.Array(assetIDs)); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// ClearCheckpoint removes all checkpointed asset IDs
func (s *Store) ClearCheckpoint(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM sync_checkpoint"); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// CheckpointInfo returns the checkpoint size and last save time
func (s *Store) CheckpointInfo(ctx context.Context) (database.CheckpointInfo, error) {
	var (
		info    database.CheckpointInfo
		updated sql.NullTime
	)
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*), MAX(processed_at) FROM sync_checkpoint").Scan(&info.Count, &updated)
	if err != nil {
		return info, fmt.Errorf("checkpoint info: %w", err)
	}
	if updated.Valid {
		info.UpdatedAt = updated.Time
	}
	return info, nil
}

var _ database.Store = (*Store)(nil)
