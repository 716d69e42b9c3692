package history

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperboydev/paperboy/internal/edition"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the run-history connection pool.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresStore writes run records into Postgres.
type PostgresStore struct {
	pool  pgPool
	table string
}

// NewPostgres creates a pooled store using the provided config.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// NewPostgresWithPool constructs a store from an existing pool (primarily for
// testing).
func NewPostgresWithPool(pool pgPool, table string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Record inserts a run row. Re-recording a run id replaces the outcome, which
// covers forced re-downloads of the same date.
func (s *PostgresStore) Record(ctx context.Context, rec edition.RunRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("history store is not configured")
	}
	if rec.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	run_date,
	status,
	strategy,
	error_kind,
	artifact_uri,
	thumbnail_uri,
	content_type,
	byte_size,
	content_hash,
	elapsed_ms,
	finished_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
ON CONFLICT (run_id) DO UPDATE SET
	status = EXCLUDED.status,
	strategy = EXCLUDED.strategy,
	error_kind = EXCLUDED.error_kind,
	artifact_uri = EXCLUDED.artifact_uri,
	thumbnail_uri = EXCLUDED.thumbnail_uri,
	content_type = EXCLUDED.content_type,
	byte_size = EXCLUDED.byte_size,
	content_hash = EXCLUDED.content_hash,
	elapsed_ms = EXCLUDED.elapsed_ms,
	finished_at = EXCLUDED.finished_at`, s.table)

	args := []any{
		rec.RunID,
		rec.Date,
		string(rec.Status),
		string(rec.Strategy),
		rec.ErrorKind,
		rec.ArtifactURI,
		rec.ThumbnailURI,
		rec.ContentType,
		rec.ByteSize,
		rec.ContentHash,
		rec.Elapsed.Milliseconds(),
		rec.FinishedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// Recent loads the runs for the last `days` edition dates, newest first.
func (s *PostgresStore) Recent(ctx context.Context, days int, now time.Time) ([]edition.RunRecord, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("history store is not configured")
	}
	cutoff := now.UTC().AddDate(0, 0, -days).Format(edition.DateLayout)
	query := fmt.Sprintf(`
SELECT
	run_id,
	run_date,
	status,
	strategy,
	error_kind,
	artifact_uri,
	thumbnail_uri,
	content_type,
	byte_size,
	content_hash,
	elapsed_ms,
	finished_at
FROM %s
WHERE run_date >= $1
ORDER BY run_date DESC, finished_at DESC`, s.table)

	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var out []edition.RunRecord
	for rows.Next() {
		var (
			rec       edition.RunRecord
			status    string
			strategy  string
			elapsedMs int64
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.Date,
			&status,
			&strategy,
			&rec.ErrorKind,
			&rec.ArtifactURI,
			&rec.ThumbnailURI,
			&rec.ContentType,
			&rec.ByteSize,
			&rec.ContentHash,
			&elapsedMs,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		rec.Status = edition.RunStatus(status)
		rec.Strategy = edition.Strategy(strategy)
		rec.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run records: %w", err)
	}
	return out, nil
}
