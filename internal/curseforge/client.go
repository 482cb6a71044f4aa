package curseforge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/datallboy/gomodpack/internal/domain"
)

const (
	DefaultAPIURL    = "https://api.curseforge.com/v1/"
	DefaultUserAgent = "gomodpack/1.0"
)

// Options configures the CurseForge clients.
type Options struct {
	// APIKey selects the authenticated strategy when set.
	APIKey string

	// APIURL is the authenticated REST API root.
	// Default: https://api.curseforge.com/v1/
	APIURL string

	// WebURL is the public site API used without a key.
	// Default: https://www.curseforge.com/api/v1/
	WebURL string

	// Timeout bounds connecting, the TLS handshake and waiting for the
	// response headers. While reading a body it is the longest allowed gap
	// between two reads, so a slow but steady transfer never times out.
	// Default: 60s
	Timeout time.Duration

	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		APIURL:    DefaultAPIURL,
		WebURL:    domain.WebAPIURL,
		Timeout:   60 * time.Second,
		UserAgent: DefaultUserAgent,
	}
}

// New picks the client strategy from the credential: the metadata API when an
// API key is configured, the redirecting download endpoint otherwise.
func New(opts Options) domain.RemoteFileClient {
	opts = withDefaults(opts)
	if opts.APIKey != "" {
		return NewAuthorized(opts)
	}
	return NewUnauthorized(opts)
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.APIURL == "" {
		opts.APIURL = def.APIURL
	}
	if opts.WebURL == "" {
		opts.WebURL = def.WebURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	return opts
}

// base holds the plumbing both strategies share.
type base struct {
	client *http.Client
	opts   Options
}

func newBase(opts Options) base {
	return base{
		client: &http.Client{Transport: newTransport(opts.Timeout)},
		opts:   opts,
	}
}

func newTransport(timeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	t.TLSHandshakeTimeout = timeout
	t.ResponseHeaderTimeout = timeout
	return t
}

// do sends a GET through client without looking at the status. The returned
// body enforces the idle timeout and must be closed.
func (b *base) do(ctx context.Context, client *http.Client, url string, header http.Header) (*http.Response, error) {
	reqCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", b.opts.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, classify(ctx, err)
	}

	resp.Body = newIdleBody(resp.Body, b.opts.Timeout, cancel)
	return resp, nil
}

// get performs a GET and returns the response when the status is 2xx.
func (b *base) get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	resp, err := b.do(ctx, b.client, url, header)
	if err != nil {
		return nil, err
	}

	if err := checkStatusCode(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	return resp, nil
}

// Fetch downloads a resolved file. The CDN does not need the API key.
func (b *base) Fetch(ctx context.Context, meta *domain.FileMetadata) (io.ReadCloser, error) {
	if meta == nil || meta.DownloadURL == "" {
		return nil, fmt.Errorf("%w: no download url", domain.ErrNotFound)
	}

	resp, err := b.get(ctx, meta.DownloadURL, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (b *base) modFileURL(root string, id domain.ItemIdentity, suffix string) string {
	return fmt.Sprintf("%s/mods/%d/files/%d%s", strings.TrimRight(root, "/"), id.ProjectID, id.FileID, suffix)
}

// classify maps transport errors onto the domain taxonomy.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return fmt.Errorf("%w: unexpected status code: %d", domain.ErrNetwork, code)
	}
}
