// Package httpwait polls an HTTP endpoint until it answers.
package httpwait

import (
	"context"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/jacobweinstock/wpci/pkg/errs"
	"github.com/pkg/errors"
)

const (
	// DefaultInterval is the wait between two probes.
	DefaultInterval = 500 * time.Millisecond
	// DefaultProbeTimeout bounds a single probe.
	DefaultProbeTimeout = 5 * time.Second
)

// Waiter polls a URL. The zero value uses DefaultInterval and a client
// that does not follow redirects.
type Waiter struct {
	Interval time.Duration
	Client   *http.Client
	Log      logr.Logger
}

func (w *Waiter) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return &http.Client{
		Timeout: DefaultProbeTimeout,
		// any response means the server is up, a redirect included
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Probe sends a single GET and returns the HTTP status code.
func (w *Waiter) Probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create request")
	}
	resp, err := w.client().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Wait probes url every Interval until any HTTP status is returned.
// It fails with an *errs.TimeoutError once timeout has elapsed since the first
// probe; a probe in flight at the deadline is canceled.
func (w *Waiter) Wait(ctx context.Context, url string, timeout time.Duration) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	start := time.Now()
	dctx, cancel := context.WithDeadline(ctx, start.Add(timeout))
	defer cancel()
	next := time.NewTimer(interval)
	defer next.Stop()

	var lastErr error
	for attempt := 1; ; attempt++ {
		status, err := w.Probe(dctx, url)
		if err == nil && status != 0 {
			w.Log.V(0).Info("http server is available", "url", url, "status", status, "attempts", attempt, "elapsed", time.Since(start).String())
			return nil
		}
		lastErr = err
		w.Log.V(1).Info("http server not available yet", "url", url, "attempt", attempt, "err", err)

		if !next.Stop() {
			select {
			case <-next.C:
			default:
			}
		}
		next.Reset(interval)
		select {
		case <-dctx.Done():
			if ctx.Err() != nil {
				return errors.Wrapf(ctx.Err(), "waiting for server at %v", url)
			}
			return errors.Wrapf(&errs.TimeoutError{TimeoutValue: timeout, LastErr: lastErr}, "waiting for server at %v", url)
		case <-next.C:
		}
	}
}
