package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"

	"github.com/Amit95688/TDS/internal/shared/async"
	sharederrors "github.com/Amit95688/TDS/internal/shared/errors"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

const (
	defaultNotifyAttempts       = 3
	defaultNotifyBackoff        = 500 * time.Millisecond
	defaultNotifyAttemptTimeout = 30 * time.Second
	defaultNotifyWorkers        = 16
)

// EvaluationPayload is the body POSTed to an evaluator.
type EvaluationPayload struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// DeliveryReport summarizes one notification. Delivery never returns an error;
// failures are reported here and logged.
type DeliveryReport struct {
	URL        string
	Attempts   int
	Delivered  bool
	StatusCode int
	LastErr    error
}

// EvaluationNotifier delivers evaluation payloads with bounded retry.
type EvaluationNotifier struct {
	client         *http.Client
	maxAttempts    int
	backoff        time.Duration
	attemptTimeout time.Duration
	workers        int
	pool           *ants.Pool
	onDelivered    func(DeliveryReport)
	metrics        *Metrics
	logger         logging.Logger
}

// NotifierOption configures an EvaluationNotifier.
type NotifierOption func(*EvaluationNotifier)

// WithMaxAttempts sets the delivery attempt ceiling.
func WithMaxAttempts(n int) NotifierOption {
	return func(e *EvaluationNotifier) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the constant delay between attempts.
func WithRetryBackoff(d time.Duration) NotifierOption {
	return func(e *EvaluationNotifier) {
		if d >= 0 {
			e.backoff = d
		}
	}
}

// WithAttemptTimeout bounds a single delivery attempt.
func WithAttemptTimeout(d time.Duration) NotifierOption {
	return func(e *EvaluationNotifier) {
		if d > 0 {
			e.attemptTimeout = d
		}
	}
}

// WithNotifierWorkers sizes the background worker pool.
func WithNotifierWorkers(n int) NotifierOption {
	return func(e *EvaluationNotifier) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithNotifierHTTPClient overrides the HTTP client.
func WithNotifierHTTPClient(client *http.Client) NotifierOption {
	return func(e *EvaluationNotifier) {
		if client != nil {
			e.client = client
		}
	}
}

// WithDeliveryHook registers a callback invoked after each dispatched delivery.
func WithDeliveryHook(fn func(DeliveryReport)) NotifierOption {
	return func(e *EvaluationNotifier) { e.onDelivered = fn }
}

// WithNotifierMetrics records delivery outcomes.
func WithNotifierMetrics(m *Metrics) NotifierOption {
	return func(e *EvaluationNotifier) { e.metrics = m }
}

// NewEvaluationNotifier builds a notifier with its worker pool.
func NewEvaluationNotifier(opts ...NotifierOption) (*EvaluationNotifier, error) {
	e := &EvaluationNotifier{
		client:         &http.Client{},
		maxAttempts:    defaultNotifyAttempts,
		backoff:        defaultNotifyBackoff,
		attemptTimeout: defaultNotifyAttemptTimeout,
		workers:        defaultNotifyWorkers,
		logger:         logging.NewComponentLogger("EvaluationNotifier"),
	}
	for _, opt := range opts {
		opt(e)
	}
	pool, err := ants.NewPool(e.workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			e.logger.Error("[EvaluationNotifier] delivery worker panic: %v", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create notifier pool: %w", err)
	}
	e.pool = pool
	return e, nil
}

// Close waits up to timeout for in-flight deliveries, then releases the pool.
func (e *EvaluationNotifier) Close(timeout time.Duration) error {
	if e == nil || e.pool == nil {
		return nil
	}
	return e.pool.ReleaseTimeout(timeout)
}

// CreateEvaluationPayload builds the payload from the task and its published artifact.
func CreateEvaluationPayload(email, task string, round int, nonce, repoURL, commitSHA, pagesURL string) EvaluationPayload {
	return EvaluationPayload{
		Email:     email,
		Task:      task,
		Round:     round,
		Nonce:     nonce,
		RepoURL:   repoURL,
		CommitSHA: commitSHA,
		PagesURL:  pagesURL,
	}
}

// PostToEvaluationURL delivers payload with up to maxAttempts attempts. 5xx,
// 408, 429 and transport errors are retried; other 4xx stop immediately.
func (e *EvaluationNotifier) PostToEvaluationURL(ctx context.Context, url string, payload EvaluationPayload) DeliveryReport {
	logger := logging.FromContext(ctx, e.logger)
	report := DeliveryReport{URL: url}

	body, err := json.Marshal(payload)
	if err != nil {
		report.LastErr = fmt.Errorf("encode payload: %w", err)
		logger.Error("[EvaluationNotifier] %v", report.LastErr)
		e.metrics.IncDelivery("rejected")
		return report
	}

	operation := func() error {
		report.Attempts++
		status, err := e.attempt(ctx, url, body)
		report.StatusCode = status
		if err == nil {
			err = sharederrors.FromStatus(url, status)
		}
		if err == nil {
			return nil
		}
		report.LastErr = err
		if sharederrors.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		logger.Warn("[EvaluationNotifier] attempt %d/%d to %s failed: %v", report.Attempts, e.maxAttempts, url, err)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.backoff), uint64(e.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		if sharederrors.IsPermanent(err) {
			logger.Error("[EvaluationNotifier] %s rejected payload for %s round %d: %v", url, payload.Task, payload.Round, err)
			e.metrics.IncDelivery("rejected")
		} else {
			logger.Error("[EvaluationNotifier] giving up on %s for %s round %d after %d attempt(s): %v", url, payload.Task, payload.Round, report.Attempts, err)
			e.metrics.IncDelivery("abandoned")
		}
		return report
	}

	report.Delivered = true
	report.LastErr = nil
	logger.Info("[EvaluationNotifier] delivered %s round %d to %s in %d attempt(s)", payload.Task, payload.Round, url, report.Attempts)
	e.metrics.IncDelivery("delivered")
	return report
}

func (e *EvaluationNotifier) attempt(ctx context.Context, url string, body []byte) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, sharederrors.NewPermanentError(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, sharederrors.NewTransientError(err, "post evaluation")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

// Dispatch schedules delivery on the worker pool and returns immediately. The
// delivery runs under a context detached from ctx, so request cancellation
// does not stop it.
func (e *EvaluationNotifier) Dispatch(ctx context.Context, url string, payload EvaluationPayload) {
	detached := context.WithoutCancel(ctx)
	job := func() {
		report := e.PostToEvaluationURL(detached, url, payload)
		if e.onDelivered != nil {
			e.onDelivered(report)
		}
	}
	if err := e.pool.Submit(job); err != nil {
		logging.FromContext(ctx, e.logger).Warn("[EvaluationNotifier] pool unavailable (%v), delivering on a dedicated goroutine", err)
		async.Go(e.logger, "evaluation-notifier", job)
	}
}
