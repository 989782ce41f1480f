package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
)

func quizReviseRequest() ReviseRequest {
	return ReviseRequest{
		Email:         "student@example.com",
		Secret:        testSecret,
		Task:          "quiz-app",
		Round:         intPtr(2),
		Nonce:         "n2",
		Brief:         "add a score counter",
		Checks:        []string{"shows score"},
		EvaluationURL: "https://eval.example/notify",
	}
}

func completeRoundOne(t *testing.T, f *lifecycleFixture) {
	t.Helper()
	build, err := NewBuildService(f.deps)
	require.NoError(t, err)
	_, err = build.SubmitBuild(context.Background(), quizBuildRequest())
	require.NoError(t, err)
}

func TestSubmitReviseScenario(t *testing.T) {
	f := newLifecycleFixture()
	completeRoundOne(t, f)
	svc, err := NewReviseService(f.deps)
	require.NoError(t, err)

	outcome, err := svc.SubmitRevise(context.Background(), quizReviseRequest())
	require.NoError(t, err)
	assert.Equal(t, "success", outcome.Status)
	assert.Equal(t, 2, outcome.Round)
	assert.Equal(t, "https://host/u/quiz-app", outcome.RepoURL)
	assert.Equal(t, "https://u.host/quiz-app/", outcome.PagesURL)

	task, err := f.store.Get(context.Background(), "quiz-app", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, task.Round)
	assert.Equal(t, ports.TaskStatusNotified, task.Status)
	assert.Equal(t, "def456", task.CommitSHA)

	require.Len(t, f.generator.revisions, 1)
	assert.Equal(t, "<html>v1</html>", f.generator.revisions[0].ExistingSource)
	assert.Equal(t, "add a score counter", f.generator.revisions[0].Feedback)

	assert.Equal(t, []string{"index.html", "README.md"}, f.publisher.replaced)
	assert.Equal(t, "Round 2: add a score counter", f.publisher.messages[0])
	assert.Contains(t, f.publisher.files["README.md"], "## Round 2 Updates\n\nadd a score counter")
	assert.Equal(t, "<html>quiz v2</html>", f.publisher.files["index.html"])

	calls := f.notifier.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, 2, calls[1].payload.Round)
	assert.Equal(t, "n2", calls[1].payload.Nonce)
	assert.Equal(t, "def456", calls[1].payload.CommitSHA)
}

func TestSubmitReviseWrongRoundAlwaysValidationError(t *testing.T) {
	f := newLifecycleFixture()
	svc, err := NewReviseService(f.deps)
	require.NoError(t, err)

	for _, roundNo := range []int{0, 1, 3} {
		req := ReviseRequest{Round: intPtr(roundNo), Secret: "wrong"}
		_, err := svc.SubmitRevise(context.Background(), req)
		require.ErrorIs(t, err, ErrValidation, "round %d", roundNo)
	}
}

func TestSubmitReviseAcceptsEmptyBrief(t *testing.T) {
	f := newLifecycleFixture()
	completeRoundOne(t, f)
	svc, err := NewReviseService(f.deps)
	require.NoError(t, err)

	req := quizReviseRequest()
	req.Email = "student"
	req.Brief = ""
	outcome, err := svc.SubmitRevise(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "success", outcome.Status)
	assert.Equal(t, "Round 2: ", f.publisher.messages[0])
}

func TestSubmitReviseWithoutRoundOneIsNotFound(t *testing.T) {
	f := newLifecycleFixture()
	svc, err := NewReviseService(f.deps)
	require.NoError(t, err)

	_, err = svc.SubmitRevise(context.Background(), quizReviseRequest())
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.generator.reviseCalls())

	_, err = f.store.Get(context.Background(), "quiz-app", 2)
	require.ErrorIs(t, err, ports.ErrTaskNotFound)
}

func TestSubmitReviseRequiresNotifiedRoundOne(t *testing.T) {
	f := newLifecycleFixture()
	f.generator.err = errBoom
	build, err := NewBuildService(f.deps)
	require.NoError(t, err)
	_, err = build.SubmitBuild(context.Background(), quizBuildRequest())
	require.Error(t, err)

	f.generator.err = nil
	svc, err := NewReviseService(f.deps)
	require.NoError(t, err)
	_, err = svc.SubmitRevise(context.Background(), quizReviseRequest())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitReviseMissingRepositoryOrFile(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *stubPublisher)
	}{
		{"repository gone", func(p *stubPublisher) { p.repoErr = fmt.Errorf("quiz-app: %w", ports.ErrRepoNotFound) }},
		{"index unreadable", func(p *stubPublisher) { p.fileErr = errBoom }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLifecycleFixture()
			completeRoundOne(t, f)
			tt.setup(f.publisher)
			svc, err := NewReviseService(f.deps)
			require.NoError(t, err)

			_, err = svc.SubmitRevise(context.Background(), quizReviseRequest())
			require.ErrorIs(t, err, ErrNotFound)

			task, err := f.store.Get(context.Background(), "quiz-app", 2)
			require.NoError(t, err)
			assert.Equal(t, ports.TaskStatusFailed, task.Status)
		})
	}
}

func TestSubmitRevisePartialWriteIsPublishError(t *testing.T) {
	f := newLifecycleFixture()
	completeRoundOne(t, f)
	f.publisher.replaceErrs = map[string]error{"README.md": errBoom}
	svc, err := NewReviseService(f.deps)
	require.NoError(t, err)

	_, err = svc.SubmitRevise(context.Background(), quizReviseRequest())
	require.ErrorIs(t, err, ErrPublish)
	assert.ErrorIs(t, err, ErrPartialUpdate)
	assert.Contains(t, err.Error(), "partial update")
	assert.Equal(t, []string{"index.html"}, f.publisher.replaced)
	assert.Len(t, f.notifier.snapshot(), 1)
}

func TestSubmitReviseReplayReinvokesRevision(t *testing.T) {
	f := newLifecycleFixture()
	completeRoundOne(t, f)
	svc, err := NewReviseService(f.deps)
	require.NoError(t, err)

	_, err = svc.SubmitRevise(context.Background(), quizReviseRequest())
	require.NoError(t, err)
	_, err = svc.SubmitRevise(context.Background(), quizReviseRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, f.generator.reviseCalls())
	tasks, err := f.store.ListByEmail(context.Background(), "student@example.com")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestSubmitReviseWaitTimeoutCappedAndCommitFallback(t *testing.T) {
	f := newLifecycleFixture()
	completeRoundOne(t, f)
	f.waiter.state = ReadyStateTimedOut
	f.publisher.latestErr = errBoom
	svc, err := NewReviseService(f.deps, WithReviseWaitTimeout(90*time.Second), WithReviseWaitCeiling(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, svc.WaitTimeout())

	outcome, err := svc.SubmitRevise(context.Background(), quizReviseRequest())
	require.NoError(t, err)
	assert.Equal(t, ReadyStateTimedOut, outcome.Ready)
	assert.Equal(t, 30*time.Second, f.waiter.timeouts[len(f.waiter.timeouts)-1])

	task, err := f.store.Get(context.Background(), "quiz-app", 2)
	require.NoError(t, err)
	assert.Equal(t, "sha-README.md", task.CommitSHA)
}

func TestSubmitReviseTruncatesCommitMessage(t *testing.T) {
	f := newLifecycleFixture()
	completeRoundOne(t, f)
	svc, err := NewReviseService(f.deps)
	require.NoError(t, err)

	req := quizReviseRequest()
	req.Brief = strings.Repeat("é", 80)
	_, err = svc.SubmitRevise(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Round 2: "+strings.Repeat("é", 50), f.publisher.messages[0])
}

func TestSubmitReviseDefaultTimeouts(t *testing.T) {
	f := newLifecycleFixture()
	svc, err := NewReviseService(f.deps)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, svc.WaitTimeout())
}
