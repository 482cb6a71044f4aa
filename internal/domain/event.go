package domain

type EventKind string

const (
	EventCacheHit      EventKind = "cache-hit"
	EventDownloadStart EventKind = "download-start"
	EventDownloaded    EventKind = "downloaded"
	EventDownloadError EventKind = "download-error"
	EventRetry         EventKind = "retry"
	EventHashMismatch  EventKind = "hash-mismatch"
	EventGaveUp        EventKind = "gave-up"
)

// Event is emitted by the download engine as items move through the pipeline.
type Event struct {
	Kind     EventKind
	Identity ItemIdentity
	Path     string
	URL      string
	Attempt  int
	Bytes    int64
	// Verified is set on cache hits and downloads that were checked against a digest.
	Verified bool
	// Fresh distinguishes a mismatch on a new download from one on a cached file.
	Fresh bool
	Err   error
}

// Observer receives engine events. Implementations must be safe for
// concurrent use, events arrive from every worker.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type multiObserver []Observer

func (m multiObserver) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Observers fans events out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}
