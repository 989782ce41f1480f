package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
	"github.com/Amit95688/TDS/internal/shared/logging"
	id "github.com/Amit95688/TDS/internal/shared/utils/id"
)

const (
	primarySourcePath = "index.html"
	readmePath        = "README.md"
)

// ReviseRequest is a round-2 submission.
type ReviseRequest struct {
	Email         string
	Secret        string
	Task          string
	Round         *int
	Nonce         string
	Brief         string
	Checks        []string
	EvaluationURL string
}

// ReviseService drives round 2 against an existing hosting target.
type ReviseService struct {
	deps        LifecycleDeps
	waitTimeout time.Duration
	waitCeiling time.Duration
	logger      logging.Logger
}

// ReviseServiceOption configures a ReviseService.
type ReviseServiceOption func(*ReviseService)

// WithReviseWaitTimeout sets the readiness wait for round 2.
func WithReviseWaitTimeout(d time.Duration) ReviseServiceOption {
	return func(s *ReviseService) {
		if d > 0 {
			s.waitTimeout = d
		}
	}
}

// WithReviseWaitCeiling caps the round-2 wait, normally at the round-1 timeout.
func WithReviseWaitCeiling(d time.Duration) ReviseServiceOption {
	return func(s *ReviseService) {
		if d > 0 {
			s.waitCeiling = d
		}
	}
}

// NewReviseService validates collaborators and builds the service.
func NewReviseService(deps LifecycleDeps, opts ...ReviseServiceOption) (*ReviseService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &ReviseService{
		deps:        deps.withDefaults(),
		waitTimeout: defaultReviseWaitTimeout,
		waitCeiling: defaultBuildWaitTimeout,
		logger:      logging.NewComponentLogger("ReviseService"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WaitTimeout is the effective round-2 readiness wait.
func (s *ReviseService) WaitTimeout() time.Duration {
	return min(s.waitTimeout, s.waitCeiling)
}

func (s *ReviseService) validate(req *ReviseRequest) error {
	if err := validateTaskName(req.Task); err != nil {
		return err
	}
	return validateEvaluationURL(req.EvaluationURL)
}

// SubmitRevise runs the round-2 lifecycle. Any round other than 2 is rejected
// before the secret is checked. Replaying a request re-runs the revision.
func (s *ReviseService) SubmitRevise(ctx context.Context, req ReviseRequest) (*Outcome, error) {
	roundNo := 2
	if req.Round != nil {
		roundNo = *req.Round
	}
	if roundNo != 2 {
		return nil, ValidationError("Revise endpoint is for round 2")
	}
	if err := authenticate(s.deps.Secret, req.Secret); err != nil {
		return nil, err
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	if req.Nonce == "" {
		req.Nonce = id.NewNonce()
	}

	release, err := s.deps.Leases.Acquire(req.Task, 2)
	if err != nil {
		return nil, err
	}
	defer release()

	previous, err := s.deps.Store.Get(ctx, req.Task, 1)
	if errors.Is(err, ports.ErrTaskNotFound) {
		return nil, NotFoundError(fmt.Sprintf("Task %s has no round 1 submission", req.Task))
	}
	if err != nil {
		return nil, fmt.Errorf("load round 1 of %s: %w", req.Task, err)
	}
	if previous.Status != ports.TaskStatusNotified {
		return nil, NotFoundError(fmt.Sprintf("Task %s round 1 has not completed (status %s)", req.Task, previous.Status))
	}

	s.deps.Metrics.IncActiveTasks()
	defer s.deps.Metrics.DecActiveTasks()

	task := &ports.Task{
		TaskID:        req.Task,
		Email:         req.Email,
		Round:         2,
		Brief:         req.Brief,
		Checks:        append([]string{}, req.Checks...),
		Nonce:         req.Nonce,
		EvaluationURL: req.EvaluationURL,
		Status:        ports.TaskStatusPending,
	}
	if err := s.deps.Store.Record(ctx, task); err != nil {
		return nil, fmt.Errorf("record task %s: %w", req.Task, err)
	}
	r := newRound(ctx, &s.deps, "revise", task, s.logger)
	r.logger.Info("[ReviseService] %s round 2 recorded (nonce=%s)", task.TaskID, task.Nonce)

	var existing string
	err = r.stage(ctx, "fetch", func(ctx context.Context) error {
		if err := s.deps.Publisher.RepoExists(ctx, task.TaskID); err != nil {
			return err
		}
		var err error
		existing, err = s.deps.Publisher.GetFile(ctx, task.TaskID, primarySourcePath)
		if err != nil {
			return fmt.Errorf("%w: %w", ports.ErrFileNotFound, err)
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrRepoNotFound), errors.Is(err, ports.ErrFileNotFound):
		return nil, r.fail(ctx, "fetch", NotFoundError(fmt.Sprintf("Repository %s not found or no %s", task.TaskID, primarySourcePath)))
	default:
		return nil, r.fail(ctx, "fetch", PublishError("Revision failed", err))
	}

	r.advance(ctx, ports.TaskStatusGenerating, "")
	var revised string
	err = r.stage(ctx, "generate", func(ctx context.Context) error {
		var err error
		revised, err = s.deps.Generator.Revise(ctx, ports.RevisionRequest{
			TaskID:         task.TaskID,
			ExistingSource: existing,
			Feedback:       task.Brief,
			Checks:         task.Checks,
		})
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, "generate", GenerationError("Revision failed", err))
	}

	if err := ctx.Err(); err != nil {
		return nil, r.fail(ctx, "publish", err)
	}
	r.advance(ctx, ports.TaskStatusPublishing, summarizeRevision(primarySourcePath, existing, revised))
	var lastSHA string
	err = r.stage(ctx, "publish", func(ctx context.Context) error {
		sha, err := s.deps.Publisher.ReplaceFile(ctx, task.TaskID, primarySourcePath, revised,
			"Round 2: "+truncateRunes(task.Brief, 50))
		if err != nil {
			return err
		}
		lastSHA = sha
		sha, err = s.deps.Publisher.ReplaceFile(ctx, task.TaskID, readmePath, reviseReadme(task.TaskID, task.Brief),
			"Update README for Round 2")
		if err != nil {
			return fmt.Errorf("%w, %s already replaced: %w", ErrPartialUpdate, primarySourcePath, err)
		}
		lastSHA = sha
		return nil
	})
	if err != nil {
		return nil, r.fail(ctx, "publish", PublishError("Revision failed", err))
	}

	r.advance(ctx, ports.TaskStatusAwaitingReady, "")
	pagesURL := s.deps.Publisher.PagesURL(task.TaskID)
	waitTimeout := s.WaitTimeout()
	var ready ReadyState
	_ = r.stage(ctx, "wait", func(ctx context.Context) error {
		ready = s.deps.Waiter.WaitUntilReady(ctx, pagesURL, waitTimeout)
		return nil
	})
	if ready != ReadyStateReady {
		r.logger.Warn("[ReviseService] %s pages not refreshed after %s, notifying anyway", task.TaskID, waitTimeout)
	}

	commitSHA, err := s.deps.Publisher.LatestCommitSHA(ctx, task.TaskID)
	if err != nil || commitSHA == "" {
		r.logger.Warn("[ReviseService] %s latest commit lookup failed (%v), using %s", task.TaskID, err, lastSHA)
		commitSHA = lastSHA
	}

	artifact := ports.Artifact{
		RepoURL:   s.deps.Publisher.RepoURL(task.TaskID),
		CommitSHA: commitSHA,
		PagesURL:  pagesURL,
	}
	r.recordArtifact(ctx, artifact)
	r.notify(ctx, artifact)

	return &Outcome{
		Status:   "success",
		Message:  fmt.Sprintf("Task '%s' revised successfully!", task.TaskID),
		TaskID:   task.TaskID,
		Round:    2,
		RepoURL:  artifact.RepoURL,
		PagesURL: artifact.PagesURL,
		Ready:    ready,
	}, nil
}

func reviseReadme(taskID, brief string) string {
	return fmt.Sprintf("# %s\n\n## Round 2 Updates\n\n%s\n\n## License\n\nMIT", taskID, brief)
}
