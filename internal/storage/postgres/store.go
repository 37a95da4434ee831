package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"acrossScope/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store records extraction runs in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the run ledger table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// RecordRun upserts one ledger row per outcome of the run.
func (s *Store) RecordRun(ctx context.Context, summary model.Summary) error {
	if summary.RunID == "" {
		return fmt.Errorf("run id required")
	}
	if len(summary.Outcomes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, o := range summary.Outcomes {
		var outputPath, errMsg *string
		if o.Path != "" {
			path := o.Path
			outputPath = &path
		}
		if msg := o.ErrorMessage(); msg != "" {
			errMsg = &msg
		}
		batch.Queue(`
			INSERT INTO extraction_runs (
				run_id, event_name, client_name, status, row_count, column_count,
				output_path, error, duration_ms, started_at, finished_at, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
			ON CONFLICT (run_id, event_name, client_name)
			DO UPDATE SET
				status = EXCLUDED.status,
				row_count = EXCLUDED.row_count,
				column_count = EXCLUDED.column_count,
				output_path = EXCLUDED.output_path,
				error = EXCLUDED.error,
				duration_ms = EXCLUDED.duration_ms,
				finished_at = EXCLUDED.finished_at
		`,
			summary.RunID,
			o.Event,
			o.Client,
			string(o.Status),
			int64(o.Rows),
			int32(o.Columns),
			outputPath,
			errMsg,
			o.Duration.Milliseconds(),
			summary.StartedAt,
			summary.FinishedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range summary.Outcomes {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
