package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

// pgPool abstracts the subset of pgxpool.Pool used by the store for easier testing.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

const taskColumns = `task_id, round, email, brief, checks, nonce, evaluation_url, status,
    failure_reason, repo_url, commit_sha, pages_url, created_at, updated_at`

// PostgresTaskStore persists tasks, transitions and evaluation results in Postgres.
type PostgresTaskStore struct {
	pool   pgPool
	now    func() time.Time
	logger logging.Logger
}

var _ ports.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore wraps an existing pool.
func NewPostgresTaskStore(pool pgPool) (*PostgresTaskStore, error) {
	if pool == nil {
		return nil, errors.New("postgres task store requires pool")
	}
	return &PostgresTaskStore{
		pool:   pool,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logging.NewComponentLogger("PostgresTaskStore"),
	}, nil
}

// OpenPostgresTaskStore dials the database and returns a ready store.
func OpenPostgresTaskStore(ctx context.Context, databaseURL string) (*PostgresTaskStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresTaskStore(pool)
}

// EnsureSchema creates the tables if needed.
func (s *PostgresTaskStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS deploy_tasks (
    task_id TEXT NOT NULL,
    round INTEGER NOT NULL,
    email TEXT NOT NULL,
    brief TEXT NOT NULL DEFAULT '',
    checks JSONB NOT NULL DEFAULT '[]'::jsonb,
    nonce TEXT NOT NULL DEFAULT '',
    evaluation_url TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    failure_reason TEXT NOT NULL DEFAULT '',
    repo_url TEXT NOT NULL DEFAULT '',
    commit_sha TEXT NOT NULL DEFAULT '',
    pages_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (task_id, round)
);`,
		`CREATE INDEX IF NOT EXISTS idx_deploy_tasks_email ON deploy_tasks (email, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS deploy_task_transitions (
    id BIGSERIAL PRIMARY KEY,
    task_id TEXT NOT NULL,
    round INTEGER NOT NULL,
    status TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    at TIMESTAMPTZ NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_deploy_task_transitions_task ON deploy_task_transitions (task_id, round, id);`,
		`CREATE TABLE IF NOT EXISTS evaluation_results (
    id BIGSERIAL PRIMARY KEY,
    task_id TEXT NOT NULL,
    round INTEGER NOT NULL,
    nonce TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    repo_url TEXT NOT NULL DEFAULT '',
    commit_sha TEXT NOT NULL DEFAULT '',
    pages_url TEXT NOT NULL DEFAULT '',
    received_at TIMESTAMPTZ NOT NULL,
    UNIQUE (task_id, round, nonce)
);`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	s.logger.Info("[PostgresTaskStore] schema ready")
	return nil
}

// Close releases the pool.
func (s *PostgresTaskStore) Close() {
	s.pool.Close()
}

// Ping checks connectivity.
func (s *PostgresTaskStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Record upserts the live row at pending and appends a transition.
func (s *PostgresTaskStore) Record(ctx context.Context, task *ports.Task) error {
	if task == nil || task.TaskID == "" {
		return ValidationError("task_id is required")
	}
	checks := task.Checks
	if checks == nil {
		checks = []string{}
	}
	checksJSON, err := json.Marshal(checks)
	if err != nil {
		return fmt.Errorf("encode checks: %w", err)
	}
	now := s.now()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	_, err = tx.Exec(ctx, `
INSERT INTO deploy_tasks (
    task_id, round, email, brief, checks, nonce, evaluation_url, status, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $9)
ON CONFLICT (task_id, round) DO UPDATE SET
    email = EXCLUDED.email,
    brief = EXCLUDED.brief,
    checks = EXCLUDED.checks,
    nonce = EXCLUDED.nonce,
    evaluation_url = EXCLUDED.evaluation_url,
    status = EXCLUDED.status,
    failure_reason = '',
    repo_url = '',
    commit_sha = '',
    pages_url = '',
    updated_at = EXCLUDED.updated_at
`,
		task.TaskID,
		task.Round,
		task.Email,
		task.Brief,
		string(checksJSON),
		task.Nonce,
		task.EvaluationURL,
		string(ports.TaskStatusPending),
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", task.TaskID, err)
	}
	if err := insertTransition(ctx, tx, task.TaskID, task.Round, ports.TaskStatusPending, "recorded", now); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get returns the live row for (task_id, round).
func (s *PostgresTaskStore) Get(ctx context.Context, taskID string, round int) (*ports.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM deploy_tasks WHERE task_id = $1 AND round = $2`, taskID, round)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("task %s round %d: %w", taskID, round, ports.ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return task, nil
}

// SetStatus locks the row, validates the move and appends a transition.
func (s *PostgresTaskStore) SetStatus(ctx context.Context, taskID string, round int, status ports.TaskStatus, reason string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	var current, failureReason string
	err = tx.QueryRow(ctx, `SELECT status, failure_reason FROM deploy_tasks WHERE task_id = $1 AND round = $2 FOR UPDATE`, taskID, round).
		Scan(&current, &failureReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("task %s round %d: %w", taskID, round, ports.ErrTaskNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock task %s: %w", taskID, err)
	}
	if !ports.CanTransition(ports.TaskStatus(current), status) {
		return fmt.Errorf("%s -> %s: %w", current, status, ports.ErrInvalidTransition)
	}
	if status == ports.TaskStatusFailed {
		failureReason = reason
	}

	now := s.now()
	if _, err := tx.Exec(ctx, `UPDATE deploy_tasks SET status = $3, failure_reason = $4, updated_at = $5 WHERE task_id = $1 AND round = $2`,
		taskID, round, string(status), failureReason, now); err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	if err := insertTransition(ctx, tx, taskID, round, status, reason, now); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetArtifact stores publish results on the live row.
func (s *PostgresTaskStore) SetArtifact(ctx context.Context, taskID string, round int, artifact ports.Artifact) error {
	tag, err := s.pool.Exec(ctx, `UPDATE deploy_tasks SET repo_url = $3, commit_sha = $4, pages_url = $5, updated_at = $6 WHERE task_id = $1 AND round = $2`,
		taskID, round, artifact.RepoURL, artifact.CommitSHA, artifact.PagesURL, s.now())
	if err != nil {
		return fmt.Errorf("update artifact %s: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s round %d: %w", taskID, round, ports.ErrTaskNotFound)
	}
	return nil
}

// ListByEmail returns a requester's rows, newest first.
func (s *PostgresTaskStore) ListByEmail(ctx context.Context, email string) ([]*ports.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM deploy_tasks WHERE email = $1 ORDER BY created_at DESC, task_id, round DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*ports.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// History returns transitions for (task_id, round), oldest first.
func (s *PostgresTaskStore) History(ctx context.Context, taskID string, round int) ([]ports.TaskTransition, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, reason, at FROM deploy_task_transitions WHERE task_id = $1 AND round = $2 ORDER BY id`, taskID, round)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	history := make([]ports.TaskTransition, 0)
	for rows.Next() {
		tr := ports.TaskTransition{TaskID: taskID, Round: round}
		var status string
		if err := rows.Scan(&status, &tr.Reason, &tr.At); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.Status = ports.TaskStatus(status)
		history = append(history, tr)
	}
	return history, rows.Err()
}

// SaveResult inserts a result unless (task_id, round, nonce) already exists.
func (s *PostgresTaskStore) SaveResult(ctx context.Context, result ports.EvaluationResult) (bool, error) {
	if result.ReceivedAt.IsZero() {
		result.ReceivedAt = s.now()
	}
	tag, err := s.pool.Exec(ctx, `
INSERT INTO evaluation_results (
    task_id, round, nonce, email, repo_url, commit_sha, pages_url, received_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (task_id, round, nonce) DO NOTHING
`,
		result.TaskID,
		result.Round,
		result.Nonce,
		result.Email,
		result.RepoURL,
		result.CommitSHA,
		result.PagesURL,
		result.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert result %s: %w", result.TaskID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListResults returns results for (task_id, round), oldest first.
func (s *PostgresTaskStore) ListResults(ctx context.Context, taskID string, round int) ([]ports.EvaluationResult, error) {
	rows, err := s.pool.Query(ctx, `
SELECT task_id, round, nonce, email, repo_url, commit_sha, pages_url, received_at
FROM evaluation_results WHERE task_id = $1 AND round = $2 ORDER BY id`, taskID, round)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results := make([]ports.EvaluationResult, 0)
	for rows.Next() {
		var r ports.EvaluationResult
		if err := rows.Scan(&r.TaskID, &r.Round, &r.Nonce, &r.Email, &r.RepoURL, &r.CommitSHA, &r.PagesURL, &r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func insertTransition(ctx context.Context, tx pgx.Tx, taskID string, round int, status ports.TaskStatus, reason string, at time.Time) error {
	_, err := tx.Exec(ctx, `INSERT INTO deploy_task_transitions (task_id, round, status, reason, at) VALUES ($1, $2, $3, $4, $5)`,
		taskID, round, string(status), reason, at)
	if err != nil {
		return fmt.Errorf("append transition %s: %w", taskID, err)
	}
	return nil
}

func scanTask(row rowScanner) (*ports.Task, error) {
	var (
		task       ports.Task
		status     string
		checksJSON []byte
	)
	err := row.Scan(
		&task.TaskID,
		&task.Round,
		&task.Email,
		&task.Brief,
		&checksJSON,
		&task.Nonce,
		&task.EvaluationURL,
		&status,
		&task.FailureReason,
		&task.RepoURL,
		&task.CommitSHA,
		&task.PagesURL,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Status = ports.TaskStatus(status)
	if len(checksJSON) > 0 {
		if err := json.Unmarshal(checksJSON, &task.Checks); err != nil {
			return nil, fmt.Errorf("decode checks: %w", err)
		}
	}
	if task.Checks == nil {
		task.Checks = []string{}
	}
	return &task, nil
}
