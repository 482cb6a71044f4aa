package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"

	"github.com/datallboy/gomodpack/internal/app"
	"github.com/datallboy/gomodpack/internal/domain"
	"github.com/datallboy/gomodpack/internal/engine"
	"github.com/datallboy/gomodpack/internal/files"
	"github.com/datallboy/gomodpack/internal/modpack"
)

const lockFile = ".gomodpack.lock"

var ErrLocked = errors.New("another install of this modpack is running")

type Service struct {
	app *app.Context
}

func NewService(app *app.Context) *Service {
	return &Service{app: app}
}

// Install downloads every mod of the pack at packPath into
// <root_dir>/<pack name>/<mods_dir> and merges its overrides folder into
// <root_dir>/<pack name>. Item failures end up in the report; only problems
// with the pack itself or the destination are returned as errors.
func (s *Service) Install(ctx context.Context, packPath string) (*Report, error) {
	log := s.app.Logger
	cfg := s.app.Config

	run := &domain.Run{
		ID:        ksuid.New().String(),
		PackPath:  packPath,
		PackName:  filepath.Base(packPath),
		StartedAt: time.Now().UTC(),
	}

	if _, err := os.Stat(packPath); err != nil {
		err = fmt.Errorf("path %s does not exist: %w", packPath, err)
		s.abort(ctx, run, err)
		return nil, err
	}

	log.Info("Loading manifest")
	pack, err := modpack.Open(packPath)
	if err != nil {
		s.abort(ctx, run, err)
		return nil, err
	}
	defer pack.Close()

	m := pack.Manifest
	run.PackName = m.Name
	run.PackVersion = m.Version
	run.Author = m.Author
	run.MCVersion = m.Minecraft.Version

	log.Info("Modpack info:\n"+
		"  Modpack Name:      %s\n"+
		"  Modpack Version:   %s\n"+
		"  Author:            %s\n"+
		"  Minecraft Version: %s\n"+
		"  Mod Loader:        %s\n"+
		"  Mods:              %d",
		m.Name, m.Version, m.Author, m.Minecraft.Version, m.PrimaryLoader(), len(m.Files))

	dest := filepath.Join(cfg.Download.RootDir, pack.Name())
	modsDir := filepath.Join(dest, cfg.Download.ModsDir)
	run.OutDir = dest

	if err := os.MkdirAll(modsDir, 0755); err != nil {
		err = fmt.Errorf("%w: failed to create mods dir: %w", domain.ErrFilesystem, err)
		s.abort(ctx, run, err)
		return nil, err
	}

	lock := flock.New(filepath.Join(dest, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		err = fmt.Errorf("%w: failed to lock %s: %w", domain.ErrFilesystem, dest, err)
		s.abort(ctx, run, err)
		return nil, err
	}
	if !locked {
		err = fmt.Errorf("%w: %s", ErrLocked, dest)
		s.abort(ctx, run, err)
		return nil, err
	}
	defer lock.Unlock()

	writer := files.NewWriter(cfg.Download.TempDir)
	dl := engine.NewDownloader(s.app.Client, writer, modsDir, engine.Options{
		Workers:      cfg.Download.Workers,
		MaxRetries:   cfg.Download.MaxRetries,
		RetryBackoff: cfg.Download.RetryBackoff,
	}, s.app.Observer())

	report := &Report{Run: run, Dest: dest, ModsDir: modsDir}

	// The overrides merge must not cancel downloads when it fails, so no
	// shared context here.
	var g errgroup.Group

	g.Go(func() error {
		log.Info("Start downloading mods")
		report.Outcomes = dl.DownloadAll(ctx, pack.Items())
		return nil
	})

	g.Go(func() error {
		if !pack.HasOverrides() {
			log.Info("overrides folder not found. Skip")
			return nil
		}

		log.Info("Start extracting overrides folder")
		res, err := pack.ExtractOverrides(ctx, dest, writer)
		report.Overrides = res
		if err != nil {
			return fmt.Errorf("overrides: %w", err)
		}
		for _, name := range res.Skipped {
			log.Warn("Skipping override %s: path escapes the modpack folder", name)
		}
		log.Info("overrides folder successfully extracted (%d files, %s)", res.Extracted, humanize.Bytes(uint64(res.Bytes)))
		return nil
	})

	overridesErr := g.Wait()
	if overridesErr != nil {
		log.Error("%v", overridesErr)
	}

	report.sortOutcomes(pack.Items())
	s.finish(ctx, report, overridesErr)

	return report, nil
}

func (s *Service) finish(ctx context.Context, report *Report, overridesErr error) {
	run := report.Run
	run.FinishedAt = time.Now().UTC()
	report.Duration = run.FinishedAt.Sub(run.StartedAt)

	run.Items = make([]domain.RunItem, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		run.Items = append(run.Items, domain.NewRunItem(o))
	}

	run.Status = domain.RunCompleted
	switch {
	case ctx.Err() != nil:
		run.Status = domain.RunFailed
		run.Error = ctx.Err().Error()
	case overridesErr != nil:
		run.Status = domain.RunPartial
		run.Error = overridesErr.Error()
	case len(report.Failures()) > 0:
		run.Status = domain.RunPartial
	}

	if s.app.Metrics != nil {
		s.app.Metrics.ObserveRun(report.Duration)
	}
	s.save(ctx, run)

	s.app.Logger.Info("%s", report.Summary())
	if stale := report.Stale(); len(stale) > 0 {
		s.app.Logger.Warn("%d cached files do not match their digest and were kept, delete them to download again", len(stale))
	}
	if failures := report.Failures(); len(failures) > 0 {
		s.app.Logger.Info("This mods has errors:\n%s", FormatFailures(failures))
	}
	if run.Status == domain.RunCompleted {
		s.app.Logger.Info("Modpack loaded!")
	}
}

// abort records a run that never reached dispatch.
func (s *Service) abort(ctx context.Context, run *domain.Run, err error) {
	run.Status = domain.RunFailed
	run.Error = err.Error()
	run.FinishedAt = time.Now().UTC()
	s.app.Logger.Error("%v", err)
	s.save(ctx, run)
}

func (s *Service) save(ctx context.Context, run *domain.Run) {
	if s.app.Store == nil {
		return
	}
	// The run must be recorded even when the install was cancelled.
	if err := s.app.Store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		s.app.Logger.Warn("failed to save run %s: %v", run.ID, err)
	}
}
