package domain

import (
	"time"
)

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial" // at least one mod failed
	RunFailed    RunStatus = "failed"  // aborted before or during dispatch
)

// Run is the persisted record of one modpack install.
type Run struct {
	ID          string    `json:"id"`
	PackPath    string    `json:"pack_path"`
	PackName    string    `json:"pack_name"`
	PackVersion string    `json:"pack_version"`
	Author      string    `json:"author"`
	MCVersion   string    `json:"minecraft_version"`
	OutDir      string    `json:"out_dir"`
	Status      RunStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	Items []RunItem `json:"items,omitempty"`
}

// RunItem is the flattened, storable form of an Outcome.
type RunItem struct {
	ProjectID int           `json:"project_id"`
	FileID    int           `json:"file_id"`
	Status    OutcomeStatus `json:"status"`
	Path      string        `json:"path,omitempty"`
	Kind      ErrorKind     `json:"kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
	Link      string        `json:"link"`
}

func NewRunItem(o Outcome) RunItem {
	return RunItem{
		ProjectID: o.Identity.ProjectID,
		FileID:    o.Identity.FileID,
		Status:    o.Status,
		Path:      o.Path,
		Kind:      o.Kind,
		Error:     o.ErrorDetail(),
		Attempts:  o.Attempts,
		Link:      o.Identity.DownloadLink(),
	}
}

// Counts tallies items per status.
func (r *Run) Counts() map[OutcomeStatus]int {
	counts := make(map[OutcomeStatus]int)
	for _, it := range r.Items {
		counts[it.Status]++
	}
	return counts
}
