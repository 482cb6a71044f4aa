package store

import (
	"database/sql"
	"time"

	"github.com/datallboy/gomodpack/internal/domain"
)

const DefaultListLimit = 50

const runColumns = `id, pack_path, pack_name, pack_version, author, mc_version, out_dir, status, error, started_at, finished_at`

const runItemColumns = `run_id, project_id, file_id, status, path, kind, error, attempts`

// runDBO maps to the runs table. Times are unix milliseconds.
type runDBO struct {
	ID          string         `db:"id"`
	PackPath    string         `db:"pack_path"`
	PackName    string         `db:"pack_name"`
	PackVersion sql.NullString `db:"pack_version"`
	Author      sql.NullString `db:"author"`
	MCVersion   sql.NullString `db:"mc_version"`
	OutDir      string         `db:"out_dir"`
	Status      string         `db:"status"`
	Error       sql.NullString `db:"error"`
	StartedAt   int64          `db:"started_at"`
	FinishedAt  int64          `db:"finished_at"`
}

func (r *runDBO) fields() []any {
	return []any{
		&r.ID, &r.PackPath, &r.PackName, &r.PackVersion, &r.Author, &r.MCVersion,
		&r.OutDir, &r.Status, &r.Error, &r.StartedAt, &r.FinishedAt,
	}
}

// Mapper: DBO to Domain Run
func (r *runDBO) ToDomain() *domain.Run {
	return &domain.Run{
		ID:          r.ID,
		PackPath:    r.PackPath,
		PackName:    r.PackName,
		PackVersion: r.PackVersion.String,
		Author:      r.Author.String,
		MCVersion:   r.MCVersion.String,
		OutDir:      r.OutDir,
		Status:      domain.RunStatus(r.Status),
		Error:       r.Error.String,
		StartedAt:   fromMillis(r.StartedAt),
		FinishedAt:  fromMillis(r.FinishedAt),
	}
}

// Mapper: Domain Run to DBO
func (r *runDBO) FromDomain(run *domain.Run) {
	r.ID = run.ID
	r.PackPath = run.PackPath
	r.PackName = run.PackName
	r.PackVersion = nullString(run.PackVersion)
	r.Author = nullString(run.Author)
	r.MCVersion = nullString(run.MCVersion)
	r.OutDir = run.OutDir
	r.Status = string(run.Status)
	r.Error = nullString(run.Error)
	r.StartedAt = toMillis(run.StartedAt)
	r.FinishedAt = toMillis(run.FinishedAt)
}

// runItemDBO maps to the run_items table
type runItemDBO struct {
	RunID     string         `db:"run_id"`
	ProjectID int64          `db:"project_id"`
	FileID    int64          `db:"file_id"`
	Status    string         `db:"status"`
	Path      sql.NullString `db:"path"`
	Kind      sql.NullString `db:"kind"`
	Error     sql.NullString `db:"error"`
	Attempts  int64          `db:"attempts"`
}

func (i *runItemDBO) fields() []any {
	return []any{&i.RunID, &i.ProjectID, &i.FileID, &i.Status, &i.Path, &i.Kind, &i.Error, &i.Attempts}
}

// Mapper: DBO to Domain RunItem. The download link is derived, not stored.
func (i *runItemDBO) ToDomain() domain.RunItem {
	id := domain.ItemIdentity{ProjectID: int(i.ProjectID), FileID: int(i.FileID)}
	return domain.RunItem{
		ProjectID: id.ProjectID,
		FileID:    id.FileID,
		Status:    domain.OutcomeStatus(i.Status),
		Path:      i.Path.String,
		Kind:      domain.ErrorKind(i.Kind.String),
		Error:     i.Error.String,
		Attempts:  int(i.Attempts),
		Link:      id.DownloadLink(),
	}
}

// Mapper: Domain RunItem to DBO
func (i *runItemDBO) FromDomain(runID string, it domain.RunItem) {
	i.RunID = runID
	i.ProjectID = int64(it.ProjectID)
	i.FileID = int64(it.FileID)
	i.Status = string(it.Status)
	i.Path = nullString(it.Path)
	i.Kind = nullString(string(it.Kind))
	i.Error = nullString(it.Error)
	i.Attempts = int64(it.Attempts)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
