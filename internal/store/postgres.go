package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datallboy/gomodpack/internal/domain"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and makes sure the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	schema, err := schemaSQL()
	if err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *domain.Run) error {
	var r runDBO
	r.FromDomain(run)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO runs (`+runColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				error = EXCLUDED.error,
				finished_at = EXCLUDED.finished_at`,
			r.ID, r.PackPath, r.PackName, r.PackVersion, r.Author, r.MCVersion,
			r.OutDir, r.Status, r.Error, r.StartedAt, r.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM run_items WHERE run_id = $1`, r.ID); err != nil {
			return fmt.Errorf("failed to clear run items: %w", err)
		}

		batch := &pgx.Batch{}
		for _, it := range run.Items {
			var i runItemDBO
			i.FromDomain(r.ID, it)
			batch.Queue(`INSERT INTO run_items (`+runItemColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				i.RunID, i.ProjectID, i.FileID, i.Status, i.Path, i.Kind, i.Error, i.Attempts)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save run items: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	var r runDBO
	err := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id).Scan(r.fields()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	run := r.ToDomain()

	rows, err := s.pool.Query(ctx, `SELECT `+runItemColumns+` FROM run_items WHERE run_id = $1 ORDER BY project_id, file_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var i runItemDBO
		if err := rows.Scan(i.fields()...); err != nil {
			return nil, err
		}
		run.Items = append(run.Items, i.ToDomain())
	}
	return run, rows.Err()
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.pool.Query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		var r runDBO
		if err := rows.Scan(r.fields()...); err != nil {
			return nil, err
		}
		runs = append(runs, r.ToDomain())
	}
	return runs, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
