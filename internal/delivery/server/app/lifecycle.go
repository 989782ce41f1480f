package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

const tracerName = "github.com/Amit95688/TDS/internal/delivery/server/app"

const (
	defaultBuildWaitTimeout  = 120 * time.Second
	defaultReviseWaitTimeout = 60 * time.Second
	detachedWriteTimeout     = 10 * time.Second
)

// ReadinessWaiter is satisfied by PublishWaiter.
type ReadinessWaiter interface {
	WaitUntilReady(ctx context.Context, pagesURL string, timeout time.Duration) ReadyState
}

// NotificationDispatcher is satisfied by EvaluationNotifier.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, url string, payload EvaluationPayload)
}

// LifecycleDeps are the collaborators shared by the build and revise services.
type LifecycleDeps struct {
	Secret      string
	Store       ports.TaskStore
	Generator   ports.Generator
	Publisher   ports.Publisher
	Waiter      ReadinessWaiter
	Notifier    NotificationDispatcher
	Attachments ports.AttachmentProcessor
	Leases      *LeaseTable
	Metrics     *Metrics
}

func (d LifecycleDeps) validate() error {
	switch {
	case d.Secret == "":
		return UnavailableError("shared secret not configured")
	case d.Store == nil:
		return UnavailableError("task store not configured")
	case d.Generator == nil:
		return UnavailableError("generator not configured")
	case d.Publisher == nil:
		return UnavailableError("publisher not configured")
	case d.Waiter == nil:
		return UnavailableError("publish waiter not configured")
	case d.Notifier == nil:
		return UnavailableError("notifier not configured")
	}
	return nil
}

func (d LifecycleDeps) withDefaults() LifecycleDeps {
	if d.Leases == nil {
		d.Leases = NewLeaseTable()
	}
	return d
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Outcome is returned to build and revise callers.
type Outcome struct {
	Status   string     `json:"status"`
	Message  string     `json:"message"`
	TaskID   string     `json:"task_id"`
	Round    int        `json:"round"`
	RepoURL  string     `json:"repo_url,omitempty"`
	PagesURL string     `json:"pages_url,omitempty"`
	Ready    ReadyState `json:"-"`
}

// round tracks one in-flight orchestration for logging, metrics and status writes.
type round struct {
	deps   *LifecycleDeps
	task   *ports.Task
	logger logging.Logger
	tracer trace.Tracer
	kind   string
}

func newRound(ctx context.Context, deps *LifecycleDeps, kind string, task *ports.Task, base logging.Logger) *round {
	return &round{
		deps:   deps,
		task:   task,
		logger: logging.FromContext(ctx, base),
		tracer: otel.Tracer(tracerName),
		kind:   kind,
	}
}

// stage runs fn inside a span and records its duration.
func (r *round) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, r.kind+"."+name, trace.WithAttributes(
		attribute.String("task.id", r.task.TaskID),
		attribute.Int("task.round", r.task.Round),
	))
	defer span.End()

	started := time.Now()
	err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	r.deps.Metrics.ObserveStageDuration(r.kind+"."+name, status, time.Since(started))
	return err
}

// advance moves the task to status. Store failures are logged and do not
// abort the round.
func (r *round) advance(ctx context.Context, status ports.TaskStatus, reason string) {
	if err := r.deps.Store.SetStatus(ctx, r.task.TaskID, r.task.Round, status, reason); err != nil {
		r.logger.Warn("[%s] %s round %d: failed to record status %s: %v", r.kind, r.task.TaskID, r.task.Round, status, err)
		return
	}
	r.task.Status = status
}

// fail records the failed status on a detached context and returns err unchanged.
func (r *round) fail(ctx context.Context, stage string, err error) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedWriteTimeout)
	defer cancel()

	reason := fmt.Sprintf("%s: %v", stage, err)
	r.advance(writeCtx, ports.TaskStatusFailed, reason)
	r.deps.Metrics.IncStageFailure(r.kind+"."+stage, failureKind(err))
	r.logger.Error("[%s] %s round %d failed at %s: %v", r.kind, r.task.TaskID, r.task.Round, stage, err)
	return err
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrGeneration):
		return "generation"
	case errors.Is(err, ErrPublish):
		return "publish"
	default:
		return "error"
	}
}

// notify dispatches the evaluation payload and marks the task notified once
// the dispatch is accepted.
func (r *round) notify(ctx context.Context, artifact ports.Artifact) {
	payload := CreateEvaluationPayload(r.task.Email, r.task.TaskID, r.task.Round, r.task.Nonce,
		artifact.RepoURL, artifact.CommitSHA, artifact.PagesURL)
	r.deps.Notifier.Dispatch(ctx, r.task.EvaluationURL, payload)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedWriteTimeout)
	defer cancel()
	r.advance(writeCtx, ports.TaskStatusNotified, "dispatched to "+r.task.EvaluationURL)
}

func (r *round) recordArtifact(ctx context.Context, artifact ports.Artifact) {
	if err := r.deps.Store.SetArtifact(ctx, r.task.TaskID, r.task.Round, artifact); err != nil {
		r.logger.Warn("[%s] %s round %d: failed to record artifact: %v", r.kind, r.task.TaskID, r.task.Round, err)
	}
}
