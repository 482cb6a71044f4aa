package files

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/datallboy/gomodpack/internal/domain"
)

type VerifyResult int

const (
	Skipped VerifyResult = iota
	Match
	Mismatch
)

func (r VerifyResult) String() string {
	switch r {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "skipped"
	}
}

// Digest returns the hex MD5 of everything read from r.
// MD5 is what the CurseForge API publishes, so it is what we can compare against.
func Digest(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify digests r and compares it with expected. An empty expected digest
// skips the read entirely.
func Verify(r io.Reader, expected string) (VerifyResult, string, error) {
	if expected == "" {
		return Skipped, "", nil
	}

	got, err := Digest(r)
	if err != nil {
		return Skipped, "", err
	}

	if !strings.EqualFold(got, expected) {
		return Mismatch, got, nil
	}
	return Match, got, nil
}

func VerifyFile(path, expected string) (VerifyResult, string, error) {
	if expected == "" {
		return Skipped, "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Skipped, "", fmt.Errorf("%w: %w", domain.ErrFilesystem, err)
	}
	defer f.Close()

	res, got, err := Verify(f, expected)
	if err != nil {
		return Skipped, "", fmt.Errorf("%w: read %s: %w", domain.ErrFilesystem, path, err)
	}
	return res, got, nil
}

// CheckDigest builds a CheckFunc that rejects staged files whose MD5 differs
// from expected.
func CheckDigest(expected string) CheckFunc {
	if expected == "" {
		return nil
	}
	return func(staged string) error {
		res, got, err := VerifyFile(staged, expected)
		if err != nil {
			return err
		}
		if res == Mismatch {
			return &domain.HashMismatchError{Got: got, Want: expected}
		}
		return nil
	}
}
