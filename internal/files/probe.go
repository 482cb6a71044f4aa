package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/datallboy/gomodpack/internal/domain"
)

type CacheVerdict int

const (
	Miss CacheVerdict = iota
	Hit
	HitWithMismatch
)

func (v CacheVerdict) String() string {
	switch v {
	case Hit:
		return "hit"
	case HitWithMismatch:
		return "hit-with-mismatch"
	default:
		return "miss"
	}
}

// ProbeResult is what the destination already holds for a path.
type ProbeResult struct {
	Verdict CacheVerdict
	// Digest is the recomputed MD5, set only when a comparison happened.
	Digest string
}

// Probe checks whether path already holds a usable copy. Without an expected
// digest any existing file is trusted. The file is never modified.
func Probe(path, expected string) (ProbeResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ProbeResult{Verdict: Miss}, nil
	}
	if err != nil {
		return ProbeResult{}, fmt.Errorf("%w: stat %s: %w", domain.ErrFilesystem, path, err)
	}
	if info.IsDir() {
		return ProbeResult{}, fmt.Errorf("%w: %s is a directory", domain.ErrFilesystem, path)
	}

	res, got, err := VerifyFile(path, expected)
	if err != nil {
		return ProbeResult{}, err
	}

	switch res {
	case Mismatch:
		return ProbeResult{Verdict: HitWithMismatch, Digest: got}, nil
	default:
		return ProbeResult{Verdict: Hit, Digest: got}, nil
	}
}
