package ports

import (
	"context"
	"errors"
	"time"
)

// TaskStatus represents the lifecycle stage of a task round.
type TaskStatus string

const (
	TaskStatusPending       TaskStatus = "pending"
	TaskStatusGenerating    TaskStatus = "generating"
	TaskStatusPublishing    TaskStatus = "publishing"
	TaskStatusAwaitingReady TaskStatus = "awaiting_ready"
	TaskStatusNotified      TaskStatus = "notified"
	TaskStatusFailed        TaskStatus = "failed"
)

var statusOrder = map[TaskStatus]int{
	TaskStatusPending:       0,
	TaskStatusGenerating:    1,
	TaskStatusPublishing:    2,
	TaskStatusAwaitingReady: 3,
	TaskStatusNotified:      4,
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	if s == TaskStatusFailed {
		return true
	}
	_, ok := statusOrder[s]
	return ok
}

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusNotified || s == TaskStatusFailed
}

// CanTransition reports whether a task may move from one status to another.
// Moves are strictly forward along the pipeline; any non-terminal status may
// fail. Stages may be skipped (a round with nothing to wait for goes straight
// to notified).
func CanTransition(from, to TaskStatus) bool {
	if from.Terminal() || !to.Valid() {
		return false
	}
	if to == TaskStatusFailed {
		return true
	}
	fromIdx, ok := statusOrder[from]
	if !ok {
		return false
	}
	return statusOrder[to] > fromIdx
}

var (
	// ErrTaskNotFound is returned by stores when no live row exists for a key.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTransition is returned when a status update would move backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Task is the live row for one (task_id, round).
type Task struct {
	TaskID        string     `json:"task_id"`
	Email         string     `json:"email"`
	Round         int        `json:"round"`
	Brief         string     `json:"brief"`
	Checks        []string   `json:"checks"`
	Nonce         string     `json:"nonce"`
	EvaluationURL string     `json:"evaluation_url,omitempty"`
	Status        TaskStatus `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`

	RepoURL   string `json:"repo_url,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
	PagesURL  string `json:"pages_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand out of a store.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Checks = append([]string(nil), t.Checks...)
	return &c
}

// Artifact describes what was published for a round.
type Artifact struct {
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// TaskTransition is one append-only audit entry.
type TaskTransition struct {
	TaskID string     `json:"task_id"`
	Round  int        `json:"round"`
	Status TaskStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
	At     time.Time  `json:"at"`
}

// EvaluationResult is the evaluator's callback payload as stored. It is
// immutable once written.
type EvaluationResult struct {
	TaskID     string    `json:"task_id"`
	Round      int       `json:"round"`
	Nonce      string    `json:"nonce"`
	Email      string    `json:"email"`
	RepoURL    string    `json:"repo_url"`
	CommitSHA  string    `json:"commit_sha"`
	PagesURL   string    `json:"pages_url"`
	ReceivedAt time.Time `json:"received_at"`
}

// TaskStore persists task rounds, their transition history and evaluation
// results. Implementations hold no lifecycle policy beyond rejecting backwards
// status moves.
type TaskStore interface {
	// Record creates the live row for (task_id, round) at pending, or resets an
	// existing one for a resubmission. History is preserved.
	Record(ctx context.Context, task *Task) error

	// Get returns the live row or ErrTaskNotFound.
	Get(ctx context.Context, taskID string, round int) (*Task, error)

	// SetStatus advances a row and appends a transition.
	SetStatus(ctx context.Context, taskID string, round int, status TaskStatus, reason string) error

	// SetArtifact stores the published repository details on the live row.
	SetArtifact(ctx context.Context, taskID string, round int, artifact Artifact) error

	// ListByEmail returns a requester's rows, newest first.
	ListByEmail(ctx context.Context, email string) ([]*Task, error)

	// History returns transitions for (task_id, round), oldest first.
	History(ctx context.Context, taskID string, round int) ([]TaskTransition, error)

	// SaveResult stores a result unless one exists for (task_id, round, nonce).
	// created is false for duplicates.
	SaveResult(ctx context.Context, result EvaluationResult) (created bool, err error)

	// ListResults returns results for (task_id, round), oldest first.
	ListResults(ctx context.Context, taskID string, round int) ([]EvaluationResult, error)

	// Ping reports whether the backend can serve requests.
	Ping(ctx context.Context) error

	Close()
}
