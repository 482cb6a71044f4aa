package modpack

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/datallboy/gomodpack/internal/domain"
	"github.com/datallboy/gomodpack/internal/files"
)

// OverridesResult summarizes an overrides merge.
type OverridesResult struct {
	Extracted int
	Bytes     int64
	// Skipped holds entries whose path would land outside the destination.
	Skipped []string
}

// HasOverrides reports whether the archive carries anything under the overrides folder.
func (p *Pack) HasOverrides() bool {
	prefix := p.Manifest.Overrides + "/"
	for _, f := range p.zr.File {
		if strings.HasPrefix(f.Name, prefix) && len(f.Name) > len(prefix) {
			return true
		}
	}
	return false
}

// ExtractOverrides merges the overrides folder into dest, keeping relative
// paths. Every file goes through w, so dest never holds a partial file.
// A pack without overrides is not an error.
func (p *Pack) ExtractOverrides(ctx context.Context, dest string, w *files.Writer) (*OverridesResult, error) {
	res := &OverridesResult{}
	prefix := p.Manifest.Overrides + "/"

	for _, f := range p.zr.File {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		rel := strings.TrimPrefix(f.Name, prefix)
		if rel == "" {
			continue
		}

		local := filepath.FromSlash(rel)
		if !filepath.IsLocal(local) {
			res.Skipped = append(res.Skipped, f.Name)
			continue
		}
		target := filepath.Join(dest, local)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return res, fmt.Errorf("%w: %w", domain.ErrFilesystem, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return res, fmt.Errorf("%w: %w", domain.ErrFilesystem, err)
		}

		n, err := extractOne(f, target, w)
		if err != nil {
			return res, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		res.Extracted++
		res.Bytes += n
	}

	return res, nil
}

func extractOne(f *zip.File, target string, w *files.Writer) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrFilesystem, err)
	}
	defer rc.Close()

	return w.Publish(rc, target, nil)
}
