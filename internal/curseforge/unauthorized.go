package curseforge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/datallboy/gomodpack/internal/domain"
)

const maxRedirects = 10

// Unauthorized resolves files through the public download endpoint. It has no
// access to digests, so files resolved this way are never verified.
type Unauthorized struct {
	base

	// resolver stops at the redirect that leaves the download API, so
	// resolving never touches the file itself.
	resolver *http.Client
	api      *url.URL
}

var _ domain.RemoteFileClient = (*Unauthorized)(nil)

func NewUnauthorized(opts Options) *Unauthorized {
	c := &Unauthorized{base: newBase(withDefaults(opts))}
	c.api, _ = url.Parse(c.opts.WebURL)
	c.resolver = &http.Client{
		Transport:     c.client.Transport,
		CheckRedirect: c.checkRedirect,
	}
	return c
}

// Resolve asks the /download endpoint where the file lives. The CDN URL it
// redirects to carries the real filename as its last path segment. The file
// body is only requested by Fetch, once the cache has been checked.
func (c *Unauthorized) Resolve(ctx context.Context, id domain.ItemIdentity) (*domain.FileMetadata, error) {
	resp, err := c.do(ctx, c.resolver, c.modFileURL(c.opts.WebURL, id, "/download"), nil)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}
	resp.Body.Close()

	final := resp.Request.URL
	if isRedirect(resp.StatusCode) {
		loc, err := resp.Location()
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w: bad redirect: %w", id, domain.ErrNetwork, err)
		}
		final = loc
	} else if err := checkStatusCode(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}

	name, err := FileNameFromURL(final)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}

	return &domain.FileMetadata{
		FileName:    name,
		DownloadURL: final.String(),
	}, nil
}

func (c *Unauthorized) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if !c.onAPI(req.URL) {
		return http.ErrUseLastResponse
	}
	return nil
}

// onAPI reports whether u is still inside the mods tree of the web API.
func (c *Unauthorized) onAPI(u *url.URL) bool {
	if c.api == nil || u.Host != c.api.Host {
		return false
	}
	return strings.HasPrefix(u.Path, strings.TrimRight(c.api.Path, "/")+"/mods/")
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// FileNameFromURL returns the percent-decoded last path segment of u.
func FileNameFromURL(u *url.URL) (string, error) {
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("%w: no filename in %s", domain.ErrNotFound, u.Redacted())
	}
	return name, nil
}
