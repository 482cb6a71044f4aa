package engine

import (
	"time"

	"github.com/datallboy/gomodpack/internal/domain"
)

// Options configures the download engine.
type Options struct {
	// Workers is the number of concurrent downloads.
	// Default: 5
	Workers int

	// MaxRetries is how many times a failed item is re-dispatched.
	// Default: 2 (three attempts in total)
	MaxRetries int

	// RetryBackoff is the fixed pause before each retry wave.
	// Default: 1s
	RetryBackoff time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Workers:      5,
		MaxRetries:   2,
		RetryBackoff: time.Second,
	}
}

type DownloadJob struct {
	Identity domain.ItemIdentity
	Attempt  int
}

type DownloadResult struct {
	Job     DownloadJob
	Outcome domain.Outcome
}
