package installer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/datallboy/gomodpack/internal/domain"
	"github.com/datallboy/gomodpack/internal/modpack"
)

// Report is what one Install produced.
type Report struct {
	Run       *domain.Run
	Dest      string
	ModsDir   string
	Outcomes  []domain.Outcome
	Overrides *modpack.OverridesResult
	Duration  time.Duration
}

// Failure pairs an item's error with the link a user can download it from by hand.
type Failure struct {
	Identity domain.ItemIdentity
	Err      string
	Link     string
}

func (r *Report) Failures() []Failure {
	var out []Failure
	for _, o := range r.Outcomes {
		if o.Status != domain.StatusFailed {
			continue
		}
		out = append(out, Failure{
			Identity: o.Identity,
			Err:      o.ErrorDetail(),
			Link:     o.Identity.DownloadLink(),
		})
	}
	return out
}

// Stale lists cached files kept despite not matching their digest.
func (r *Report) Stale() []domain.Outcome {
	var out []domain.Outcome
	for _, o := range r.Outcomes {
		if o.Status == domain.StatusStale {
			out = append(out, o)
		}
	}
	return out
}

func (r *Report) Summary() string {
	var downloaded, cached, stale, failed int
	var bytes int64
	for _, o := range r.Outcomes {
		switch o.Status {
		case domain.StatusDownloaded:
			downloaded++
			bytes += o.Bytes
		case domain.StatusCached:
			cached++
		case domain.StatusStale:
			stale++
		case domain.StatusFailed:
			failed++
		}
	}

	return fmt.Sprintf("%s mods: %d downloaded (%s), %d cached, %d stale, %d failed in %s",
		humanize.Comma(int64(len(r.Outcomes))), downloaded, humanize.Bytes(uint64(bytes)),
		cached, stale, failed, r.Duration.Round(time.Millisecond))
}

// FormatFailures renders failures the way the CLI prints them.
func FormatFailures(failures []Failure) string {
	lines := make([]string, 0, len(failures))
	for _, f := range failures {
		lines = append(lines, fmt.Sprintf("  Error: %s\n  Download Link: %s", f.Err, f.Link))
	}
	return strings.Join(lines, "\n")
}

// sortOutcomes restores manifest order, outcomes arrive in completion order.
func (r *Report) sortOutcomes(order []domain.ItemIdentity) {
	idx := make(map[domain.ItemIdentity]int, len(order))
	for i, id := range order {
		if _, ok := idx[id]; !ok {
			idx[id] = i
		}
	}
	sort.SliceStable(r.Outcomes, func(i, j int) bool {
		return idx[r.Outcomes[i].Identity] < idx[r.Outcomes[j].Identity]
	})
}
