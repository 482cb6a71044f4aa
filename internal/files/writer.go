package files

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/datallboy/gomodpack/internal/domain"
)

// CheckFunc inspects a fully staged file before it is published.
// Returning an error aborts the publish.
type CheckFunc func(stagedPath string) error

// Writer stages incoming bytes in a private scratch directory and only makes
// them visible at the destination once the transfer and check succeeded.
type Writer struct {
	// TempDir is the parent of the scratch directories. Empty means os.TempDir().
	TempDir string
}

func NewWriter(tempDir string) *Writer {
	return &Writer{TempDir: tempDir}
}

// Publish streams r into dest. A file at dest is either the complete new
// content or whatever was there before; the scratch directory is removed on
// every return path. It returns the number of bytes published.
func (w *Writer) Publish(r io.Reader, dest string, check CheckFunc) (int64, error) {
	scratch, err := os.MkdirTemp(w.TempDir, "gomodpack-*")
	if err != nil {
		return 0, fmt.Errorf("%w: create scratch dir: %w", domain.ErrFilesystem, err)
	}
	defer os.RemoveAll(scratch)

	staged := filepath.Join(scratch, filepath.Base(dest))
	n, err := stage(r, staged)
	if err != nil {
		return 0, err
	}

	if check != nil {
		if err := check(staged); err != nil {
			return 0, err
		}
	}

	if err := copyFile(staged, dest); err != nil {
		return 0, fmt.Errorf("%w: publish %s: %w", domain.ErrFilesystem, dest, err)
	}
	return n, nil
}

func stage(r io.Reader, path string) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, fmt.Errorf("%w: create staged file: %w", domain.ErrFilesystem, err)
	}
	defer f.Close()

	src := &trackingReader{r: r}
	n, err := io.Copy(f, src)
	if err != nil {
		// Tell a broken transfer apart from a broken disk, they retry the same
		// but are reported differently.
		if src.err != nil {
			return 0, fmt.Errorf("%w: read body: %w", readErrKind(src.err), err)
		}
		return 0, fmt.Errorf("%w: write staged file: %w", domain.ErrFilesystem, err)
	}

	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("%w: close staged file: %w", domain.ErrFilesystem, err)
	}
	return n, nil
}

// readErrKind tells a stalled transfer apart from other transport failures.
func readErrKind(err error) error {
	var netErr net.Error
	if errors.Is(err, domain.ErrTimeout) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.ErrTimeout
	}
	return domain.ErrNetwork
}

// copyFile copies src next to dest under a hidden .part name, carries over the
// mode and modification time, then renames it into place.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	published := false
	defer func() {
		if !published {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return err
	}
	published = true
	return nil
}

type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
