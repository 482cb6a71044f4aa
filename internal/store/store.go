package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/datallboy/gomodpack/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

var ErrRunNotFound = errors.New("run not found")

// Store persists install runs and their per-item outcomes.
type Store interface {
	SaveRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	// ListRuns returns the newest runs first, without their items.
	ListRuns(ctx context.Context, limit int) ([]*domain.Run, error)
	Close() error
}

type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open returns the store selected by opts.Driver. DriverNone yields a nil
// Store and no error.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return NewSQLiteStore(opts.SQLitePath)
	case DriverPostgres:
		return NewPostgresStore(ctx, opts.PostgresDSN)
	case DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
