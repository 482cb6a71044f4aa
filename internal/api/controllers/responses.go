package controllers

import (
	"time"

	"github.com/datallboy/gomodpack/internal/domain"
)

// RunSummary is a run without its items, as listed by GET /api/runs.
type RunSummary struct {
	ID          string           `json:"id"`
	PackName    string           `json:"pack_name"`
	PackVersion string           `json:"pack_version,omitempty"`
	OutDir      string           `json:"out_dir"`
	Status      domain.RunStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	Duration    string           `json:"duration"`
}

type RunList struct {
	Runs  []RunSummary `json:"runs"`
	Count int          `json:"count"`
}

// RunDetail is a full run with per-status counts.
type RunDetail struct {
	*domain.Run
	Counts map[domain.OutcomeStatus]int `json:"counts"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func newRunSummary(r *domain.Run) RunSummary {
	return RunSummary{
		ID:          r.ID,
		PackName:    r.PackName,
		PackVersion: r.PackVersion,
		OutDir:      r.OutDir,
		Status:      r.Status,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		Duration:    r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	}
}
