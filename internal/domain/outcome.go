package domain

type OutcomeStatus string

const (
	StatusDownloaded OutcomeStatus = "downloaded"
	StatusCached     OutcomeStatus = "cached"
	StatusStale      OutcomeStatus = "stale" // cached copy kept despite a digest mismatch
	StatusFailed     OutcomeStatus = "failed"
)

// Outcome is the result of one attempt, and after reduction, of one item.
type Outcome struct {
	Identity ItemIdentity  `json:"identity"`
	Status   OutcomeStatus `json:"status"`
	Path     string        `json:"path,omitempty"`
	Kind     ErrorKind     `json:"kind,omitempty"`
	Err      error         `json:"-"`
	Attempts int           `json:"attempts"`
	Bytes    int64         `json:"bytes,omitempty"`
}

func Downloaded(id ItemIdentity, path string, n int64) Outcome {
	return Outcome{Identity: id, Status: StatusDownloaded, Path: path, Bytes: n}
}

func Cached(id ItemIdentity, path string) Outcome {
	return Outcome{Identity: id, Status: StatusCached, Path: path}
}

func Stale(id ItemIdentity, path string, err *HashMismatchError) Outcome {
	return Outcome{Identity: id, Status: StatusStale, Path: path, Kind: KindHashMismatch, Err: err}
}

func Failed(id ItemIdentity, err error) Outcome {
	return Outcome{Identity: id, Status: StatusFailed, Kind: KindOf(err), Err: err}
}

// IsSuccess reports whether the item is usable at Path.
func (o Outcome) IsSuccess() bool {
	return o.Status == StatusDownloaded || o.Status == StatusCached
}

// IsTerminal reports whether the orchestrator should stop retrying this item.
// Stale cache hits are terminal: overwriting a file the user placed is riskier
// than warning about it.
func (o Outcome) IsTerminal() bool {
	return o.Status != StatusFailed
}

// ErrorDetail is the printable error, empty for successes.
func (o Outcome) ErrorDetail() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
