package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNetwork covers connection failures and non-2xx responses.
	ErrNetwork = errors.New("network error")
	// ErrTimeout is a network error raised when a request exceeds its deadline.
	ErrTimeout = fmt.Errorf("%w: request timed out", ErrNetwork)
	// ErrNotFound indicates the remote item does not exist
	ErrNotFound = errors.New("remote item not found")
	// ErrHashMismatch indicates a digest disagreement
	ErrHashMismatch = errors.New("hash mismatch")
	// ErrFilesystem indicates a local write, copy or read failure
	ErrFilesystem = errors.New("filesystem error")
)

// ErrorKind is the coarse category used for reporting and metrics.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindNetwork      ErrorKind = "network"
	KindNotFound     ErrorKind = "not_found"
	KindHashMismatch ErrorKind = "hash_mismatch"
	KindFilesystem   ErrorKind = "filesystem"
	KindCancelled    ErrorKind = "cancelled"
)

// HashMismatchError carries both digests of a failed comparison.
type HashMismatchError struct {
	Got  string
	Want string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("MD5 hash mismatch (loaded: %s, orig: %s)", e.Got, e.Want)
}

func (e *HashMismatchError) Is(target error) bool {
	return target == ErrHashMismatch
}

// KindOf classifies err. Unknown errors are treated as network errors since
// they originate from the transport in practice.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrHashMismatch):
		return KindHashMismatch
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrFilesystem):
		return KindFilesystem
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindNetwork
	}
}
