package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
	"github.com/Amit95688/TDS/internal/shared/logging"
	id "github.com/Amit95688/TDS/internal/shared/utils/id"
)

// BuildRequest is a round-1 submission.
type BuildRequest struct {
	Email         string
	Secret        string
	Task          string
	Round         *int
	Nonce         string
	Brief         string
	Checks        []string
	EvaluationURL string
	Attachments   []ports.Attachment
}

// BuildService drives round 1: generate, publish, wait, notify.
type BuildService struct {
	deps        LifecycleDeps
	waitTimeout time.Duration
	logger      logging.Logger
}

// BuildServiceOption configures a BuildService.
type BuildServiceOption func(*BuildService)

// WithBuildWaitTimeout sets the publish readiness ceiling for round 1.
func WithBuildWaitTimeout(d time.Duration) BuildServiceOption {
	return func(s *BuildService) {
		if d > 0 {
			s.waitTimeout = d
		}
	}
}

// NewBuildService validates collaborators and builds the service.
func NewBuildService(deps LifecycleDeps, opts ...BuildServiceOption) (*BuildService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &BuildService{
		deps:        deps.withDefaults(),
		waitTimeout: defaultBuildWaitTimeout,
		logger:      logging.NewComponentLogger("BuildService"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WaitTimeout is the configured readiness ceiling for round 1.
func (s *BuildService) WaitTimeout() time.Duration {
	return s.waitTimeout
}

func (s *BuildService) validate(req *BuildRequest) error {
	roundNo := 1
	if req.Round != nil {
		roundNo = *req.Round
	}
	if roundNo != 1 {
		return ValidationError("Build endpoint is for round 1")
	}
	if err := validateTaskName(req.Task); err != nil {
		return err
	}
	return validateEvaluationURL(req.EvaluationURL)
}

// SubmitBuild runs the round-1 lifecycle. A readiness timeout does not fail
// the build; the evaluator is notified either way.
func (s *BuildService) SubmitBuild(ctx context.Context, req BuildRequest) (*Outcome, error) {
	if err := authenticate(s.deps.Secret, req.Secret); err != nil {
		return nil, err
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	if req.Nonce == "" {
		req.Nonce = id.NewNonce()
	}

	release, err := s.deps.Leases.Acquire(req.Task, 1)
	if err != nil {
		return nil, err
	}
	defer release()
	s.deps.Metrics.IncActiveTasks()
	defer s.deps.Metrics.DecActiveTasks()

	task := &ports.Task{
		TaskID:        req.Task,
		Email:         req.Email,
		Round:         1,
		Brief:         req.Brief,
		Checks:        append([]string{}, req.Checks...),
		Nonce:         req.Nonce,
		EvaluationURL: req.EvaluationURL,
		Status:        ports.TaskStatusPending,
	}
	if err := s.deps.Store.Record(ctx, task); err != nil {
		return nil, fmt.Errorf("record task %s: %w", req.Task, err)
	}
	r := newRound(ctx, &s.deps, "build", task, s.logger)
	r.logger.Info("[BuildService] %s round 1 recorded (nonce=%s)", task.TaskID, task.Nonce)

	var files []ports.File
	var attachmentNames []string
	if len(req.Attachments) > 0 && s.deps.Attachments != nil {
		err := r.stage(ctx, "attachments", func(ctx context.Context) error {
			var err error
			files, err = s.deps.Attachments.Process(ctx, req.Attachments)
			return err
		})
		if err != nil {
			return nil, r.fail(ctx, "attachments", ValidationError(fmt.Sprintf("attachments: %v", err)))
		}
		for _, f := range files {
			attachmentNames = append(attachmentNames, f.Path)
		}
	}

	r.advance(ctx, ports.TaskStatusGenerating, "")
	var source string
	err = r.stage(ctx, "generate", func(ctx context.Context) error {
		var err error
		source, err = s.deps.Generator.Generate(ctx, ports.GenerationRequest{
			TaskID:      task.TaskID,
			Brief:       task.Brief,
			Checks:      task.Checks,
			Attachments: attachmentNames,
		})
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, "generate", GenerationError("Build failed", err))
	}

	if err := ctx.Err(); err != nil {
		return nil, r.fail(ctx, "publish", err)
	}
	r.advance(ctx, ports.TaskStatusPublishing, "")
	var artifact ports.Artifact
	err = r.stage(ctx, "publish", func(ctx context.Context) error {
		var err error
		artifact, err = s.deps.Publisher.CreateAndPublish(ctx, ports.PublishRequest{
			RepoName: task.TaskID,
			Source:   source,
			Readme:   buildReadme(task.TaskID, task.Brief),
			Files:    files,
		})
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, "publish", PublishError("Build failed", err))
	}
	r.recordArtifact(ctx, artifact)

	r.advance(ctx, ports.TaskStatusAwaitingReady, "")
	var ready ReadyState
	_ = r.stage(ctx, "wait", func(ctx context.Context) error {
		ready = s.deps.Waiter.WaitUntilReady(ctx, artifact.PagesURL, s.waitTimeout)
		return nil
	})
	if ready != ReadyStateReady {
		r.logger.Warn("[BuildService] %s pages not live after %s, notifying anyway", task.TaskID, s.waitTimeout)
	}

	r.notify(ctx, artifact)
	return &Outcome{
		Status:   "success",
		Message:  fmt.Sprintf("Task '%s' deployed successfully!", task.TaskID),
		TaskID:   task.TaskID,
		Round:    1,
		RepoURL:  artifact.RepoURL,
		PagesURL: artifact.PagesURL,
		Ready:    ready,
	}, nil
}

func buildReadme(taskID, brief string) string {
	return fmt.Sprintf("# %s\n\n%s\n\n## License\n\nMIT", taskID, brief)
}
