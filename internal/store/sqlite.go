package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datallboy/gomodpack/internal/domain"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path is required")
	}

	// Ensure the database directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	var r runDBO
	r.FromDomain(run)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(id, pack_path, pack_name, pack_version, author, mc_version, out_dir, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PackPath, r.PackName, r.PackVersion, r.Author, r.MCVersion,
		r.OutDir, r.Status, r.Error, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_items WHERE run_id = ?`, r.ID); err != nil {
		return fmt.Errorf("failed to clear run items: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_items
		(run_id, project_id, file_id, status, path, kind, error, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range run.Items {
		var i runItemDBO
		i.FromDomain(r.ID, it)
		if _, err := stmt.ExecContext(ctx, i.RunID, i.ProjectID, i.FileID, i.Status, i.Path, i.Kind, i.Error, i.Attempts); err != nil {
			return fmt.Errorf("failed to save run item %d/%d: %w", it.ProjectID, it.FileID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ? LIMIT 1`, id)

	var r runDBO
	if err := row.Scan(r.fields()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	run := r.ToDomain()

	rows, err := s.db.QueryContext(ctx, `SELECT `+runItemColumns+` FROM run_items WHERE run_id = ? ORDER BY project_id, file_id`, id)
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

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	// KSUIDs sort chronologically
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
