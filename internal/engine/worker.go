package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/datallboy/gomodpack/internal/domain"
)

// DownloadAll fetches every distinct item and returns exactly one outcome per
// identity, in no particular order.
//
// Items are dispatched in waves. Each wave is fully collected before the
// failures are partitioned; those with retries left wait out the fixed
// backoff and form the next wave. One item failing permanently never stops
// its siblings.
func (d *Downloader) DownloadAll(ctx context.Context, items []domain.ItemIdentity) []domain.Outcome {
	pending := dedupe(items)
	if len(pending) == 0 {
		return nil
	}

	workerCount := d.opts.Workers
	if workerCount > len(pending) {
		workerCount = len(pending)
	}

	// A wave never exceeds the batch, so neither channel can block the collector.
	jobs := make(chan DownloadJob, len(pending))
	results := make(chan DownloadResult, len(pending))

	var wg sync.WaitGroup

	defer func() {
		close(jobs)
		wg.Wait()
	}()

	for w := 1; w <= workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx, jobs, results)
		}()
	}

	// Only this goroutine touches retries, so it needs no lock.
	retries := make(map[domain.ItemIdentity]int, len(pending))
	outcomes := make([]domain.Outcome, 0, len(pending))

	wave := pending
	for len(wave) > 0 {
		for _, id := range wave {
			jobs <- DownloadJob{Identity: id, Attempt: retries[id] + 1}
		}

		var failed []domain.Outcome
		for range wave {
			res := <-results
			out := res.Outcome
			out.Attempts = res.Job.Attempt

			if out.IsTerminal() {
				outcomes = append(outcomes, out)
				continue
			}

			id := res.Job.Identity
			retries[id]++

			if retries[id] > d.opts.MaxRetries || ctx.Err() != nil {
				d.observer.Observe(domain.Event{
					Kind:     domain.EventGaveUp,
					Identity: id,
					Attempt:  out.Attempts,
					Err:      out.Err,
				})
				outcomes = append(outcomes, out)
				continue
			}

			d.observer.Observe(domain.Event{
				Kind:     domain.EventRetry,
				Identity: id,
				Attempt:  retries[id],
				Err:      out.Err,
			})
			failed = append(failed, out)
		}

		if len(failed) == 0 {
			break
		}

		if err := sleep(ctx, d.opts.RetryBackoff); err != nil {
			// Cancelled while backing off: the last failure stands.
			for _, out := range failed {
				out.Err = fmt.Errorf("%w (retry aborted: %v)", out.Err, err)
				d.observer.Observe(domain.Event{
					Kind:     domain.EventGaveUp,
					Identity: out.Identity,
					Attempt:  out.Attempts,
					Err:      out.Err,
				})
				outcomes = append(outcomes, out)
			}
			break
		}

		wave = make([]domain.ItemIdentity, 0, len(failed))
		for _, out := range failed {
			wave = append(wave, out.Identity)
		}
	}

	return outcomes
}

// worker pulls jobs from the channel and executes them until channel is closed.
// Every job produces exactly one result, even when ctx is done, so the
// collector can always count a wave down to zero.
func (d *Downloader) worker(ctx context.Context, jobs <-chan DownloadJob, results chan<- DownloadResult) {
	for job := range jobs {
		out := d.Download(ctx, job.Identity, job.Attempt)
		results <- DownloadResult{Job: job, Outcome: out}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// dedupe keeps the first occurrence of each identity.
func dedupe(items []domain.ItemIdentity) []domain.ItemIdentity {
	seen := make(map[domain.ItemIdentity]struct{}, len(items))
	out := make([]domain.ItemIdentity, 0, len(items))
	for _, id := range items {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
