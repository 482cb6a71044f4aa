package curseforge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/datallboy/gomodpack/internal/domain"
)

// hashAlgoMD5 is the CurseForge HashAlgo enum value for MD5 (1 is SHA1).
const hashAlgoMD5 = 2

type fileResponse struct {
	Data *fileData `json:"data"`
}

type fileData struct {
	ID          int        `json:"id"`
	ModID       int        `json:"modId"`
	FileName    string     `json:"fileName"`
	DownloadURL *string    `json:"downloadUrl"`
	FileLength  int64      `json:"fileLength"`
	Hashes      []fileHash `json:"hashes"`
}

type fileHash struct {
	Value string `json:"value"`
	Algo  int    `json:"algo"`
}

// md5 picks the digest by its declared algorithm rather than its position
// in the list.
func (d *fileData) md5() string {
	for _, h := range d.Hashes {
		if h.Algo == hashAlgoMD5 {
			return h.Value
		}
	}
	return ""
}

type downloadURLResponse struct {
	Data string `json:"data"`
}

// Authorized resolves files through the metadata API using an API key,
// which also yields the MD5 digest of each file.
type Authorized struct {
	base
}

var _ domain.RemoteFileClient = (*Authorized)(nil)

func NewAuthorized(opts Options) *Authorized {
	return &Authorized{base: newBase(withDefaults(opts))}
}

func (c *Authorized) Resolve(ctx context.Context, id domain.ItemIdentity) (*domain.FileMetadata, error) {
	var res fileResponse
	if err := c.getJSON(ctx, c.modFileURL(c.opts.APIURL, id, ""), &res); err != nil {
		return nil, fmt.Errorf("file info %s: %w", id, err)
	}

	if res.Data == nil || res.Data.FileName == "" {
		return nil, fmt.Errorf("file info %s: %w: empty response", id, domain.ErrNotFound)
	}

	meta := &domain.FileMetadata{
		FileName:       res.Data.FileName,
		ExpectedDigest: res.Data.md5(),
	}
	if res.Data.DownloadURL != nil {
		meta.DownloadURL = *res.Data.DownloadURL
	}

	// Authors can opt out of third-party distribution, in which case the
	// file info carries no URL and the dedicated endpoint has to be asked.
	if meta.DownloadURL == "" {
		url, err := c.downloadURL(ctx, id)
		if err != nil {
			return nil, err
		}
		meta.DownloadURL = url
	}

	return meta, nil
}

func (c *Authorized) downloadURL(ctx context.Context, id domain.ItemIdentity) (string, error) {
	var res downloadURLResponse
	if err := c.getJSON(ctx, c.modFileURL(c.opts.APIURL, id, "/download-url"), &res); err != nil {
		return "", fmt.Errorf("download url %s: %w", id, err)
	}
	if res.Data == "" {
		return "", fmt.Errorf("download url %s: %w: distribution disabled", id, domain.ErrNotFound)
	}
	return res.Data, nil
}

func (c *Authorized) getJSON(ctx context.Context, url string, v any) error {
	header := http.Header{}
	header.Set("x-api-key", c.opts.APIKey)
	header.Set("Accept", "application/json")

	resp, err := c.get(ctx, url, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrNetwork, err)
	}
	return nil
}
