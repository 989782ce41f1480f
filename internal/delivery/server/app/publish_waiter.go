package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Amit95688/TDS/internal/shared/logging"
)

// ReadyState is the terminal state of a readiness wait. A timeout is a normal
// outcome, not an error.
type ReadyState string

const (
	ReadyStateReady    ReadyState = "ready"
	ReadyStateTimedOut ReadyState = "timed_out"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 10 * time.Second
)

// PublishWaiter polls a published page until it answers without an error status.
type PublishWaiter struct {
	client      *http.Client
	interval    time.Duration
	pollTimeout time.Duration
	metrics     *Metrics
	logger      logging.Logger
}

// PublishWaiterOption configures a PublishWaiter.
type PublishWaiterOption func(*PublishWaiter)

// WithPollInterval sets the fixed delay between polls.
func WithPollInterval(d time.Duration) PublishWaiterOption {
	return func(w *PublishWaiter) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithPollTimeout bounds a single poll request.
func WithPollTimeout(d time.Duration) PublishWaiterOption {
	return func(w *PublishWaiter) {
		if d > 0 {
			w.pollTimeout = d
		}
	}
}

// WithWaiterHTTPClient overrides the HTTP client used for polling.
func WithWaiterHTTPClient(client *http.Client) PublishWaiterOption {
	return func(w *PublishWaiter) {
		if client != nil {
			w.client = client
		}
	}
}

// WithWaiterMetrics records readiness outcomes.
func WithWaiterMetrics(m *Metrics) PublishWaiterOption {
	return func(w *PublishWaiter) { w.metrics = m }
}

// NewPublishWaiter builds a waiter with a 5s poll interval by default.
func NewPublishWaiter(opts ...PublishWaiterOption) *PublishWaiter {
	w := &PublishWaiter{
		client:      &http.Client{},
		interval:    defaultPollInterval,
		pollTimeout: defaultPollTimeout,
		logger:      logging.NewComponentLogger("PublishWaiter"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WaitUntilReady polls pagesURL at a fixed interval until it responds with a
// status below 400 or timeout elapses. Transport failures count as "not yet".
// Cancellation of ctx ends the wait as timed out.
func (w *PublishWaiter) WaitUntilReady(ctx context.Context, pagesURL string, timeout time.Duration) ReadyState {
	logger := logging.FromContext(ctx, w.logger)
	started := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempts := 0
	for {
		attempts++
		status, err := w.poll(waitCtx, pagesURL)
		if err == nil && status < http.StatusBadRequest {
			logger.Info("[PublishWaiter] %s ready after %d attempt(s) in %s", pagesURL, attempts, time.Since(started).Round(time.Millisecond))
			w.metrics.IncReadiness(ReadyStateReady)
			return ReadyStateReady
		}
		if err != nil {
			logger.Debug("[PublishWaiter] poll %d of %s failed: %v", attempts, pagesURL, err)
		} else {
			logger.Debug("[PublishWaiter] poll %d of %s returned %d", attempts, pagesURL, status)
		}

		timer := time.NewTimer(w.interval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			logger.Warn("[PublishWaiter] %s not ready after %d attempt(s) in %s", pagesURL, attempts, time.Since(started).Round(time.Millisecond))
			w.metrics.IncReadiness(ReadyStateTimedOut)
			return ReadyStateTimedOut
		case <-timer.C:
		}
	}
}

func (w *PublishWaiter) poll(ctx context.Context, pagesURL string) (int, error) {
	pollCtx, cancel := context.WithTimeout(ctx, w.pollTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pollCtx, http.MethodGet, pagesURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}
