package client

import (
	"context"
	"io"
	"sync/atomic"
	"time"
)

// watchdog cancels a request context when it is not kicked within timeout.
type watchdog struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newWatchdog(timeout time.Duration, cancel context.CancelFunc) *watchdog {
	w := &watchdog{timeout: timeout}
	if timeout > 0 {
		w.timer = time.AfterFunc(timeout, func() {
			w.fired.Store(true)
			cancel()
		})
	}
	return w
}

func (w *watchdog) kick() {
	if w.timer != nil && !w.fired.Load() {
		w.timer.Reset(w.timeout)
	}
}

func (w *watchdog) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *watchdog) expired() bool { return w.fired.Load() }

// idleReader resets the watchdog on every read that returns data.
type idleReader struct {
	body   io.ReadCloser
	dog    *watchdog
	cancel context.CancelFunc
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if r.dog.expired() {
		return n, ErrIdleTimeout
	}
	if n > 0 {
		r.dog.kick()
	}
	return n, err
}

func (r *idleReader) Close() error {
	r.dog.stop()
	r.cancel()
	return r.body.Close()
}
