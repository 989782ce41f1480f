package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
)

func newMockTaskStore(t *testing.T) (*PostgresTaskStore, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store, err := NewPostgresTaskStore(pool)
	require.NoError(t, err)
	fixed := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	return store, pool
}

var taskColumnNames = []string{
	"task_id", "round", "email", "brief", "checks", "nonce", "evaluation_url", "status",
	"failure_reason", "repo_url", "commit_sha", "pages_url", "created_at", "updated_at",
}

func TestNewPostgresTaskStoreRequiresPool(t *testing.T) {
	_, err := NewPostgresTaskStore(nil)
	require.Error(t, err)
}

func TestPostgresTaskStoreRecordUpsertsAndAppendsTransition(t *testing.T) {
	store, pool := newMockTaskStore(t)
	task := sampleTask("quiz-app", 1)

	pool.ExpectBegin()
	pool.ExpectExec("INSERT INTO deploy_tasks").
		WithArgs("quiz-app", 1, task.Email, task.Brief, `["has three questions"]`, "n1", task.EvaluationURL, "pending", store.now()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO deploy_task_transitions").
		WithArgs("quiz-app", 1, "pending", "recorded", store.now()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	require.NoError(t, store.Record(context.Background(), task))
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresTaskStoreGetMapsNoRows(t *testing.T) {
	store, pool := newMockTaskStore(t)

	pool.ExpectQuery("SELECT task_id, round, email").
		WithArgs("missing", 2).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), "missing", 2)
	require.ErrorIs(t, err, ports.ErrTaskNotFound)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresTaskStoreGetDecodesRow(t *testing.T) {
	store, pool := newMockTaskStore(t)
	created := time.Date(2025, 9, 30, 8, 0, 0, 0, time.UTC)

	pool.ExpectQuery("SELECT task_id, round, email").
		WithArgs("quiz-app", 1).
		WillReturnRows(pgxmock.NewRows(taskColumnNames).AddRow(
			"quiz-app", 1, "student@example.com", "a quiz", []byte(`["a","b"]`), "n1", "https://eval.example",
			"notified", "", "https://host/u/quiz-app", "abc123", "https://u.host/quiz-app/", created, created,
		))

	task, err := store.Get(context.Background(), "quiz-app", 1)
	require.NoError(t, err)
	assert.Equal(t, ports.TaskStatusNotified, task.Status)
	assert.Equal(t, []string{"a", "b"}, task.Checks)
	assert.Equal(t, "abc123", task.CommitSHA)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresTaskStoreSetStatusLocksAndValidates(t *testing.T) {
	store, pool := newMockTaskStore(t)

	pool.ExpectBegin()
	pool.ExpectQuery("SELECT status, failure_reason FROM deploy_tasks").
		WithArgs("quiz-app", 1).
		WillReturnRows(pgxmock.NewRows([]string{"status", "failure_reason"}).AddRow("publishing", ""))
	pool.ExpectExec("UPDATE deploy_tasks SET status").
		WithArgs("quiz-app", 1, "failed", "hosting down", store.now()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("INSERT INTO deploy_task_transitions").
		WithArgs("quiz-app", 1, "failed", "hosting down", store.now()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	require.NoError(t, store.SetStatus(context.Background(), "quiz-app", 1, ports.TaskStatusFailed, "hosting down"))
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresTaskStoreSetStatusRejectsBackwardsMove(t *testing.T) {
	store, pool := newMockTaskStore(t)

	pool.ExpectBegin()
	pool.ExpectQuery("SELECT status, failure_reason FROM deploy_tasks").
		WithArgs("quiz-app", 1).
		WillReturnRows(pgxmock.NewRows([]string{"status", "failure_reason"}).AddRow("notified", ""))
	pool.ExpectRollback()

	err := store.SetStatus(context.Background(), "quiz-app", 1, ports.TaskStatusGenerating, "")
	require.ErrorIs(t, err, ports.ErrInvalidTransition)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresTaskStoreSaveResultDetectsDuplicate(t *testing.T) {
	store, pool := newMockTaskStore(t)
	result := ports.EvaluationResult{TaskID: "quiz-app", Round: 1, Nonce: "n1", Email: "student@example.com"}

	pool.ExpectExec("INSERT INTO evaluation_results").
		WithArgs("quiz-app", 1, "n1", "student@example.com", "", "", "", store.now()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO evaluation_results").
		WithArgs("quiz-app", 1, "n1", "student@example.com", "", "", "", store.now()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := store.SaveResult(context.Background(), result)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.SaveResult(context.Background(), result)
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresTaskStoreSetArtifactMissingRow(t *testing.T) {
	store, pool := newMockTaskStore(t)

	pool.ExpectExec("UPDATE deploy_tasks SET repo_url").
		WithArgs("quiz-app", 2, "r", "c", "p", store.now()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetArtifact(context.Background(), "quiz-app", 2, ports.Artifact{RepoURL: "r", CommitSHA: "c", PagesURL: "p"})
	require.ErrorIs(t, err, ports.ErrTaskNotFound)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresTaskStoreHistoryAndResults(t *testing.T) {
	store, pool := newMockTaskStore(t)
	at := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	pool.ExpectQuery("SELECT status, reason, at FROM deploy_task_transitions").
		WithArgs("quiz-app", 1).
		WillReturnRows(pgxmock.NewRows([]string{"status", "reason", "at"}).
			AddRow("pending", "recorded", at).
			AddRow("generating", "", at.Add(time.Second)))
	pool.ExpectQuery("FROM evaluation_results").
		WithArgs("quiz-app", 1).
		WillReturnRows(pgxmock.NewRows([]string{"task_id", "round", "nonce", "email", "repo_url", "commit_sha", "pages_url", "received_at"}).
			AddRow("quiz-app", 1, "n1", "student@example.com", "r", "c", "p", at))

	history, err := store.History(context.Background(), "quiz-app", 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ports.TaskStatusGenerating, history[1].Status)

	results, err := store.ListResults(context.Background(), "quiz-app", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "n1", results[0].Nonce)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresTaskStoreEnsureSchemaPropagatesErrors(t *testing.T) {
	store, pool := newMockTaskStore(t)

	pool.ExpectExec("CREATE TABLE IF NOT EXISTS deploy_tasks").
		WillReturnError(errors.New("permission denied"))

	err := store.EnsureSchema(context.Background())
	require.ErrorContains(t, err, "permission denied")
	require.NoError(t, pool.ExpectationsWereMet())
}
