package logger

import (
	"github.com/datallboy/gomodpack/internal/domain"
)

// Observe implements domain.Observer, turning engine events into log lines.
func (l *Logger) Observe(e domain.Event) {
	pid := e.Identity.ProjectID

	switch e.Kind {
	case domain.EventCacheHit:
		if e.Verified {
			l.Info("CACHED %s", e.Path)
		} else {
			l.Info("CACHED %s (without hashsum)", e.Path)
		}
	case domain.EventDownloadStart:
		l.Info("[projectID: %d] Downloading file %s to %s", pid, e.URL, e.Path)
	case domain.EventDownloaded:
		l.Debug("[projectID: %d] Saved %s (%d bytes, verified=%t)", pid, e.Path, e.Bytes, e.Verified)
	case domain.EventHashMismatch:
		if e.Fresh {
			l.Error("[projectID: %d] %v", pid, e.Err)
		} else {
			l.Warn("[projectID: %d] %v", pid, e.Err)
		}
	case domain.EventDownloadError:
		l.Info("[projectID: %d] Error %q", pid, errString(e.Err))
	case domain.EventRetry:
		l.Info("[projectID: %d] Retrying... %d", pid, e.Attempt)
	case domain.EventGaveUp:
		l.Warn("[projectID: %d] Giving up after %d attempts", pid, e.Attempt)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
