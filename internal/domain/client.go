package domain

import (
	"context"
	"io"
)

// FileMetadata describes a resolved remote artifact.
type FileMetadata struct {
	FileName    string
	DownloadURL string
	// ExpectedDigest is the hex MD5 published by the API, empty when the
	// client strategy cannot obtain one.
	ExpectedDigest string
}

// RemoteFileClient represents the contract for a mod file host.
type RemoteFileClient interface {
	// Resolve looks up the filename, download location and digest of id.
	Resolve(ctx context.Context, id ItemIdentity) (*FileMetadata, error)
	// Fetch opens the byte stream for a resolved file. Callers must close it.
	Fetch(ctx context.Context, meta *FileMetadata) (io.ReadCloser, error)
}
