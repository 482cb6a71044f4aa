package app

import (
	"context"
	"errors"

	"github.com/datallboy/gomodpack/internal/curseforge"
	"github.com/datallboy/gomodpack/internal/domain"
	"github.com/datallboy/gomodpack/internal/infra/config"
	"github.com/datallboy/gomodpack/internal/infra/logger"
	"github.com/datallboy/gomodpack/internal/metrics"
	"github.com/datallboy/gomodpack/internal/store"
)

// Context hold the core environment and shared resources for gomodpack.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	// Store is nil when run history is disabled.
	Store  store.Store
	Client domain.RemoteFileClient
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(),
		Client: curseforge.New(curseforge.Options{
			APIKey:  cfg.CurseForge.APIKey,
			APIURL:  cfg.CurseForge.APIURL,
			WebURL:  cfg.CurseForge.WebURL,
			Timeout: cfg.CurseForge.Timeout,
		}),
	}
}

// OpenStore connects the configured run history store.
func (c *Context) OpenStore(ctx context.Context) error {
	s, err := store.Open(ctx, store.Options{
		Driver:      c.Config.Store.Driver,
		SQLitePath:  c.Config.Store.SQLitePath,
		PostgresDSN: c.Config.Store.PostgresDSN,
	})
	if err != nil {
		return err
	}
	c.Store = s
	return nil
}

// Observer fans engine events out to the logger and metrics.
func (c *Context) Observer() domain.Observer {
	var obs []domain.Observer
	if c.Logger != nil {
		obs = append(obs, c.Logger)
	}
	if c.Metrics != nil {
		obs = append(obs, c.Metrics)
	}
	return domain.Observers(obs...)
}

func (c *Context) Close() error {
	var errs []error
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
