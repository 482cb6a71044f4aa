package curseforge

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/datallboy/gomodpack/internal/domain"
)

// idleBody cancels its request when no data arrived for timeout. Every read
// that returns data restarts the clock.
type idleBody struct {
	rc      io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
	expired atomic.Bool
}

func newIdleBody(rc io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *idleBody {
	b := &idleBody{rc: rc, timeout: timeout, cancel: cancel}
	b.timer = time.AfterFunc(timeout, func() {
		b.expired.Store(true)
		cancel()
	})
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil && err != io.EOF && b.expired.Load() {
		return n, fmt.Errorf("%w: no data received for %s", domain.ErrTimeout, b.timeout)
	}
	if n > 0 && err == nil {
		b.timer.Reset(b.timeout)
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	err := b.rc.Close()
	b.cancel()
	return err
}
