package engine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datallboy/gomodpack/internal/domain"
	"github.com/datallboy/gomodpack/internal/files"
)

type fakeFile struct {
	name    string
	content string
	digest  string // overrides the real digest when set
	noHash  bool

	resolveErr error
	// fetchFailures is how many Fetch calls fail before one succeeds, -1 for always.
	fetchFailures int
	// truncate makes the body error out after the first bytes.
	truncate bool
}

type fakeClient struct {
	mu       sync.Mutex
	files    map[domain.ItemIdentity]*fakeFile
	urls     map[string]domain.ItemIdentity
	resolves map[domain.ItemIdentity]int
	fetches  map[domain.ItemIdentity]int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		files:    make(map[domain.ItemIdentity]*fakeFile),
		urls:     make(map[string]domain.ItemIdentity),
		resolves: make(map[domain.ItemIdentity]int),
		fetches:  make(map[domain.ItemIdentity]int),
	}
}

func (c *fakeClient) add(id domain.ItemIdentity, f *fakeFile) {
	c.files[id] = f
	c.urls[fmt.Sprintf("http://cdn.test/%s/%s", id, f.name)] = id
}

func (c *fakeClient) Resolve(ctx context.Context, id domain.ItemIdentity) (*domain.FileMetadata, error) {
	c.mu.Lock()
	c.resolves[id]++
	f, ok := c.files[id]
	c.mu.Unlock()

	if !ok {
		return nil, domain.ErrNotFound
	}
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}

	meta := &domain.FileMetadata{
		FileName:    f.name,
		DownloadURL: fmt.Sprintf("http://cdn.test/%s/%s", id, f.name),
	}
	switch {
	case f.noHash:
	case f.digest != "":
		meta.ExpectedDigest = f.digest
	default:
		meta.ExpectedDigest = md5Hex(f.content)
	}
	return meta, nil
}

func (c *fakeClient) Fetch(ctx context.Context, meta *domain.FileMetadata) (io.ReadCloser, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.maxInFlight.Load()
		if n <= peak || c.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	c.mu.Lock()
	id := c.urls[meta.DownloadURL]
	c.fetches[id]++
	count := c.fetches[id]
	f := c.files[id]
	c.mu.Unlock()

	if f.fetchFailures < 0 || count <= f.fetchFailures {
		return nil, fmt.Errorf("%w: connection reset", domain.ErrNetwork)
	}
	if f.truncate {
		return io.NopCloser(&truncatedReader{data: f.content}), nil
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func (c *fakeClient) resolveCount(id domain.ItemIdentity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolves[id]
}

func (c *fakeClient) fetchCount(id domain.ItemIdentity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches[id]
}

type truncatedReader struct {
	data string
	sent bool
}

func (r *truncatedReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, r.data[:len(r.data)/2]), nil
	}
	return 0, io.ErrUnexpectedEOF
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) Observe(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) count(kind domain.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func testOptions() Options {
	return Options{Workers: 5, MaxRetries: 2, RetryBackoff: 0}
}

func newTestDownloader(t *testing.T, client domain.RemoteFileClient, obs domain.Observer) (*Downloader, string) {
	t.Helper()
	outDir := t.TempDir()
	return NewDownloader(client, files.NewWriter(t.TempDir()), outDir, testOptions(), obs), outDir
}

func single(t *testing.T, outcomes []domain.Outcome) domain.Outcome {
	t.Helper()
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	return outcomes[0]
}

func TestDownloadPublishesFile(t *testing.T) {
	id := domain.ItemIdentity{ProjectID: 1, FileID: 10}
	client := newFakeClient()
	client.add(id, &fakeFile{name: "jei.jar", content: "jei bytes"})

	d, outDir := newTestDownloader(t, client, nil)
	out := single(t, d.DownloadAll(context.Background(), []domain.ItemIdentity{id}))

	if out.Status != domain.StatusDownloaded {
		t.Fatalf("expected downloaded, got %s (%v)", out.Status, out.Err)
	}
	if out.Path != filepath.Join(outDir, "jei.jar") {
		t.Errorf("unexpected path %s", out.Path)
	}
	if out.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", out.Attempts)
	}

	data, err := os.ReadFile(out.Path)
	if err != nil || string(data) != "jei bytes" {
		t.Errorf("unexpected published content %q (%v)", data, err)
	}
}

func TestCacheHitSkipsFetch(t *testing.T) {
	id := domain.ItemIdentity{ProjectID: 1, FileID: 10}
	client := newFakeClient()
	client.add(id, &fakeFile{name: "jei.jar", content: "jei bytes"})

	rec := &eventRecorder{}
	d, outDir := newTestDownloader(t, client, rec)
	if err := os.WriteFile(filepath.Join(outDir, "jei.jar"), []byte("jei bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	out := single(t, d.DownloadAll(context.Background(), []domain.ItemIdentity{id}))

	if out.Status != domain.StatusCached {
		t.Fatalf("expected cached, got %s", out.Status)
	}
	if out.Path != filepath.Join(outDir, "jei.jar") {
		t.Errorf("unexpected path %s", out.Path)
	}
	if n := client.fetchCount(id); n != 0 {
		t.Errorf("expected no fetch calls, got %d", n)
	}
	if rec.count(domain.EventCacheHit) != 1 {
		t.Error("expected a cache-hit event")
	}
}

func TestCacheHitWithoutDigestTrustsPresence(t *testing.T) {
	id := domain.ItemIdentity{ProjectID: 1, FileID: 10}
	client := newFakeClient()
	client.add(id, &fakeFile{name: "jei.jar", content: "remote bytes", noHash: true})

	d, outDir := newTestDownloader(t, client, nil)
	if err := os.WriteFile(filepath.Join(outDir, "jei.jar"), []byte("anything"), 0644); err != nil {
		t.Fatal(err)
	}

	out := single(t, d.DownloadAll(context.Background(), []domain.ItemIdentity{id}))
	if out.Status != domain.StatusCached {
		t.Errorf("expected cached, got %s", out.Status)
	}
	if client.fetchCount(id) != 0 {
		t.Error("expected no fetch")
	}
}

func TestStaleCacheIsReportedNotRetried(t *testing.T) {
	id := domain.ItemIdentity{ProjectID: 1, FileID: 10}
	client := newFakeClient()
	client.add(id, &fakeFile{name: "jei.jar", content: "remote bytes"})

	rec := &eventRecorder{}
	d, outDir := newTestDownloader(t, client, rec)
	path := filepath.Join(outDir, "jei.jar")
	if err := os.WriteFile(path, []byte("hand placed"), 0644); err != nil {
		t.Fatal(err)
	}

	out := single(t, d.DownloadAll(context.Background(), []domain.ItemIdentity{id}))

	if out.Status != domain.StatusStale {
		t.Fatalf("expected stale, got %s", out.Status)
	}
	if out.Kind != domain.KindHashMismatch {
		t.Errorf("expected hash_mismatch kind, got %s", out.Kind)
	}
	if !errors.Is(out.Err, domain.ErrHashMismatch) {
		t.Errorf("expected hash mismatch error, got %v", out.Err)
	}
	if n := client.resolveCount(id); n != 1 {
		t.Errorf("stale cache must not be retried, got %d attempts", n)
	}
	if client.fetchCount(id) != 0 {
		t.Error("stale cache must not trigger a download")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "hand placed" {
		t.Error("existing file was modified")
	}
	if rec.count(domain.EventHashMismatch) != 1 {
		t.Error("expected a hash-mismatch event")
	}
}

func TestRetryCeiling(t *testing.T) {
	id := domain.ItemIdentity{ProjectID: 1, FileID: 10}
	client := newFakeClient()
	client.add(id, &fakeFile{name: "jei.jar", content: "x", fetchFailures: -1})

	rec := &eventRecorder{}
	d, _ := newTestDownloader(t, client, rec)
	out := single(t, d.DownloadAll(context.Background(), []domain.ItemIdentity{id}))

	if out.Status != domain.StatusFailed {
		t.Fatalf("expected failure, got %s", out.Status)
	}
	if out.Identity != id {
		t.Errorf("failure must carry its identity, got %v", out.Identity)
	}
	if out.Kind != domain.KindNetwork {
		t.Errorf("expected network kind, got %s", out.Kind)
	}
	if n := client.fetchCount(id); n != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", n)
	}
	if out.Attempts != 3 {
		t.Errorf("expected outcome to record 3 attempts, got %d", out.Attempts)
	}
	if rec.count(domain.EventRetry) != 2 {
		t.Errorf("expected 2 retry events, got %d", rec.count(domain.EventRetry))
	}
	if rec.count(domain.EventGaveUp) != 1 {
		t.Error("expected a gave-up event")
	}
}

func TestRetryCeilingConfigurable(t *testing.T) {
	id := domain.ItemIdentity{ProjectID: 1, FileID: 10}
	client := newFakeClient()
	client.add(id, &fakeFile{name: "jei.jar", content: "x", fetchFailures: -1})

	d := NewDownloader(client, files.NewWriter(t.TempDir()), t.TempDir(), Options{Workers: 1, MaxRetries: 0}, nil)
	single(t, d.DownloadAll(context.Background(), []domain.ItemIdentity{id}))

	if n := client.fetchCount(id); n != 1 {
		t.Errorf("expected a single attempt without retries, got %d", n)
	}
}

func TestRetryRecovers(t *testing.T) {
	id := domain.ItemIdentity{ProjectID: 1, FileID: 10}
	client := newFakeClient()
	client.add(id, &fakeFile{name: "jei.jar", content: "jei bytes", fetchFailures: 2})

	d, _ := newTestDownloader(t, client, nil)
	out := single(t, d.DownloadAll(context.Background(), []domain.ItemIdentity{id}))

	if out.Status != domain.StatusDownloaded {
		t.Fatalf("expected downloaded on third attempt, got %s (%v)", out.Status, out.Err)
	}
	if out.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", out.Attempts)
	}
}

func TestFreshHashMismatchIsNotPublished(t *testing.T) {
	id := domain.ItemIdentity{ProjectID: 1, FileID: 10}
	client := newFakeClient()
	client.add(id, &fakeFile{name: "jei.jar", content: "tampered", digest: md5Hex("upstream")})

	rec := &eventRecorder{}
	d, outDir := newTestDownloader(t, client, rec)
	out := single(t, d.DownloadAll(context.Background(), []domain.ItemIdentity{id}))

	if out.Status != domain.StatusFailed {
		t.Fatalf("expected failure, got %s", out.Status)
	}
	if out.Kind != domain.KindHashMismatch {
		t.Errorf("expected hash_mismatch kind, got %s", out.Kind)
	}
	if _, err := os.Stat(filepath.Join(outDir, "jei.jar")); !os.IsNotExist(err) {
		t.Error("mismatching download was published")
	}
	if rec.count(domain.EventHashMismatch) == 0 {
		t.Error("expected hash-mismatch events")
	}
}

func TestInterruptedTransferLeavesNoFile(t *testing.T) {
	id := domain.ItemIdentity{ProjectID: 1, FileID: 10}
	client := newFakeClient()
	client.add(id, &fakeFile{name: "jei.jar", content: "a long enough body", noHash: true, truncate: true})

	d, outDir := newTestDownloader(t, client, nil)
	out := single(t, d.DownloadAll(context.Background(), []domain.ItemIdentity{id}))

	if out.Status != domain.StatusFailed {
		t.Fatalf("expected failure, got %s", out.Status)
	}

	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("expected empty destination, found %d entries", len(entries))
	}
}

func TestBatchCompleteness(t *testing.T) {
	client := newFakeClient()

	var items []domain.ItemIdentity
	for i := 1; i <= 25; i++ {
		id := domain.ItemIdentity{ProjectID: i, FileID: i * 100}
		f := &fakeFile{name: fmt.Sprintf("mod-%d.jar", i), content: fmt.Sprintf("content %d", i)}
		switch i % 5 {
		case 0:
			f.fetchFailures = -1
		case 1:
			f.fetchFailures = 1
		case 2:
			f.resolveErr = fmt.Errorf("%w: gone", domain.ErrNotFound)
		}
		client.add(id, f)
		items = append(items, id)
	}
	// duplicates collapse into a single outcome
	items = append(items, items[0], items[3])

	d, _ := newTestDownloader(t, client, nil)
	outcomes := d.DownloadAll(context.Background(), items)

	if len(outcomes) != 25 {
		t.Fatalf("expected 25 outcomes, got %d", len(outcomes))
	}

	seen := make(map[domain.ItemIdentity]int)
	for _, o := range outcomes {
		seen[o.Identity]++
	}
	for i := 1; i <= 25; i++ {
		id := domain.ItemIdentity{ProjectID: i, FileID: i * 100}
		if seen[id] != 1 {
			t.Errorf("identity %s appears %d times", id, seen[id])
		}
	}
}

func TestWorkerPoolBound(t *testing.T) {
	client := newFakeClient()
	client.delay = 20 * time.Millisecond

	var items []domain.ItemIdentity
	for i := 1; i <= 20; i++ {
		id := domain.ItemIdentity{ProjectID: i, FileID: i}
		client.add(id, &fakeFile{name: fmt.Sprintf("m%d.jar", i), content: "x"})
		items = append(items, id)
	}

	d := NewDownloader(client, files.NewWriter(t.TempDir()), t.TempDir(), Options{Workers: 3}, nil)
	d.DownloadAll(context.Background(), items)

	if peak := client.maxInFlight.Load(); peak > 3 {
		t.Errorf("expected at most 3 concurrent fetches, got %d", peak)
	}
}

func TestCancelDuringBackoff(t *testing.T) {
	id := domain.ItemIdentity{ProjectID: 1, FileID: 10}
	client := newFakeClient()
	client.add(id, &fakeFile{name: "jei.jar", content: "x", fetchFailures: -1})

	d := NewDownloader(client, files.NewWriter(t.TempDir()), t.TempDir(), Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan []domain.Outcome)
	go func() { done <- d.DownloadAll(ctx, []domain.ItemIdentity{id}) }()

	select {
	case outcomes := <-done:
		out := single(t, outcomes)
		if out.Status != domain.StatusFailed {
			t.Errorf("expected failure, got %s", out.Status)
		}
		if client.fetchCount(id) != 1 {
			t.Errorf("expected no retry after cancellation, got %d fetches", client.fetchCount(id))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("DownloadAll did not return after cancellation")
	}
}

func TestUnsafeFileName(t *testing.T) {
	id := domain.ItemIdentity{ProjectID: 1, FileID: 10}
	client := newFakeClient()
	client.add(id, &fakeFile{name: "../escape.jar", content: "x"})

	d, _ := newTestDownloader(t, client, nil)
	out := single(t, d.DownloadAll(context.Background(), []domain.ItemIdentity{id}))

	if out.Kind != domain.KindFilesystem {
		t.Errorf("expected filesystem kind, got %s", out.Kind)
	}
	if client.fetchCount(id) != 0 {
		t.Error("unsafe name must not be fetched")
	}
}

func TestDownloadAllEmpty(t *testing.T) {
	d, _ := newTestDownloader(t, newFakeClient(), nil)
	if out := d.DownloadAll(context.Background(), nil); len(out) != 0 {
		t.Errorf("expected no outcomes, got %d", len(out))
	}
}
