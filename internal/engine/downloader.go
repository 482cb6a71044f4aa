package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/datallboy/gomodpack/internal/domain"
	"github.com/datallboy/gomodpack/internal/files"
)

// Downloader fetches mod files into a single destination directory.
type Downloader struct {
	client   domain.RemoteFileClient
	writer   *files.Writer
	observer domain.Observer
	outDir   string
	opts     Options
}

func NewDownloader(client domain.RemoteFileClient, writer *files.Writer, outDir string, opts Options, observer domain.Observer) *Downloader {
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	if writer == nil {
		writer = files.NewWriter("")
	}
	if observer == nil {
		observer = domain.Observers()
	}

	return &Downloader{
		client:   client,
		writer:   writer,
		observer: observer,
		outDir:   outDir,
		opts:     opts,
	}
}

// Download runs one attempt for id: resolve, probe the cache, fetch,
// verify and publish, strictly in that order.
func (d *Downloader) Download(ctx context.Context, id domain.ItemIdentity, attempt int) domain.Outcome {
	meta, err := d.client.Resolve(ctx, id)
	if err != nil {
		return d.fail(id, attempt, fmt.Errorf("resolve: %w", err))
	}

	dest, err := d.destination(meta.FileName)
	if err != nil {
		return d.fail(id, attempt, err)
	}

	probe, err := files.Probe(dest, meta.ExpectedDigest)
	if err != nil {
		return d.fail(id, attempt, err)
	}

	switch probe.Verdict {
	case files.Hit:
		d.observer.Observe(domain.Event{
			Kind:     domain.EventCacheHit,
			Identity: id,
			Path:     dest,
			Attempt:  attempt,
			Verified: meta.ExpectedDigest != "",
		})
		return domain.Cached(id, dest)

	case files.HitWithMismatch:
		mismatch := &domain.HashMismatchError{Got: probe.Digest, Want: meta.ExpectedDigest}
		d.observer.Observe(domain.Event{
			Kind:     domain.EventHashMismatch,
			Identity: id,
			Path:     dest,
			Attempt:  attempt,
			Err:      mismatch,
		})
		return domain.Stale(id, dest, mismatch)
	}

	d.observer.Observe(domain.Event{
		Kind:     domain.EventDownloadStart,
		Identity: id,
		Path:     dest,
		URL:      meta.DownloadURL,
		Attempt:  attempt,
	})

	body, err := d.client.Fetch(ctx, meta)
	if err != nil {
		return d.fail(id, attempt, fmt.Errorf("fetch: %w", err))
	}
	defer body.Close()

	n, err := d.writer.Publish(body, dest, files.CheckDigest(meta.ExpectedDigest))
	if err != nil {
		var mismatch *domain.HashMismatchError
		if errors.As(err, &mismatch) {
			d.observer.Observe(domain.Event{
				Kind:     domain.EventHashMismatch,
				Identity: id,
				Path:     dest,
				Attempt:  attempt,
				Fresh:    true,
				Err:      mismatch,
			})
		}
		return d.fail(id, attempt, err)
	}

	d.observer.Observe(domain.Event{
		Kind:     domain.EventDownloaded,
		Identity: id,
		Path:     dest,
		Attempt:  attempt,
		Bytes:    n,
		Verified: meta.ExpectedDigest != "",
	})
	return domain.Downloaded(id, dest, n)
}

func (d *Downloader) fail(id domain.ItemIdentity, attempt int, err error) domain.Outcome {
	d.observer.Observe(domain.Event{
		Kind:     domain.EventDownloadError,
		Identity: id,
		Attempt:  attempt,
		Err:      err,
	})
	return domain.Failed(id, err)
}

// destination joins a remote filename onto the output directory, refusing
// anything that could escape it.
func (d *Downloader) destination(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: unsafe file name %q", domain.ErrFilesystem, name)
	}
	return filepath.Join(d.outDir, name), nil
}
