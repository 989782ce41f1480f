package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
)

func quizBuildRequest() BuildRequest {
	return BuildRequest{
		Email:         "student@example.com",
		Secret:        testSecret,
		Task:          "quiz-app",
		Round:         intPtr(1),
		Nonce:         "n1",
		Brief:         "a 3-question quiz",
		Checks:        []string{},
		EvaluationURL: "https://eval.example/notify",
	}
}

func TestSubmitBuildScenario(t *testing.T) {
	f := newLifecycleFixture()
	svc, err := NewBuildService(f.deps)
	require.NoError(t, err)

	outcome, err := svc.SubmitBuild(context.Background(), quizBuildRequest())
	require.NoError(t, err)
	assert.Equal(t, "success", outcome.Status)
	assert.Equal(t, "quiz-app", outcome.TaskID)
	assert.Equal(t, 1, outcome.Round)
	assert.Equal(t, "https://host/u/quiz-app", outcome.RepoURL)
	assert.Equal(t, "https://u.host/quiz-app/", outcome.PagesURL)

	tasks, err := f.store.ListByEmail(context.Background(), "student@example.com")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "quiz-app", tasks[0].TaskID)
	assert.Equal(t, 1, tasks[0].Round)
	assert.Equal(t, ports.TaskStatusNotified, tasks[0].Status)
	assert.Equal(t, "abc123", tasks[0].CommitSHA)

	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, "<html>quiz</html>", f.publisher.published[0].Source)
	assert.Equal(t, "# quiz-app\n\na 3-question quiz\n\n## License\n\nMIT", f.publisher.published[0].Readme)

	calls := f.notifier.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "https://eval.example/notify", calls[0].url)
	assert.Equal(t, CreateEvaluationPayload("student@example.com", "quiz-app", 1, "n1",
		"https://host/u/quiz-app", "abc123", "https://u.host/quiz-app/"), calls[0].payload)

	history, err := f.store.History(context.Background(), "quiz-app", 1)
	require.NoError(t, err)
	statuses := make([]ports.TaskStatus, 0, len(history))
	for _, tr := range history {
		statuses = append(statuses, tr.Status)
	}
	assert.Equal(t, []ports.TaskStatus{
		ports.TaskStatusPending, ports.TaskStatusGenerating, ports.TaskStatusPublishing,
		ports.TaskStatusAwaitingReady, ports.TaskStatusNotified,
	}, statuses)
}

func TestSubmitBuildRejectsBadSecretWithoutSideEffects(t *testing.T) {
	f := newLifecycleFixture()
	svc, err := NewBuildService(f.deps)
	require.NoError(t, err)

	req := quizBuildRequest()
	req.Secret = "wrong"
	_, err = svc.SubmitBuild(context.Background(), req)
	require.ErrorIs(t, err, ErrAuth)

	_, err = f.store.Get(context.Background(), "quiz-app", 1)
	require.ErrorIs(t, err, ports.ErrTaskNotFound)
	assert.Empty(t, f.generator.generated)
}

func TestSubmitBuildValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BuildRequest)
	}{
		{"round two", func(r *BuildRequest) { r.Round = intPtr(2) }},
		{"empty task", func(r *BuildRequest) { r.Task = "" }},
		{"unsafe task", func(r *BuildRequest) { r.Task = "quiz app/../x" }},
		{"dot task", func(r *BuildRequest) { r.Task = ".." }},
		{"relative evaluation url", func(r *BuildRequest) { r.EvaluationURL = "/notify" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLifecycleFixture()
			svc, err := NewBuildService(f.deps)
			require.NoError(t, err)

			req := quizBuildRequest()
			tt.mutate(&req)
			_, err = svc.SubmitBuild(context.Background(), req)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestSubmitBuildAcceptsFreeformEmailAndEmptyBrief(t *testing.T) {
	f := newLifecycleFixture()
	svc, err := NewBuildService(f.deps)
	require.NoError(t, err)

	req := quizBuildRequest()
	req.Email = "not-an-email"
	req.Brief = ""
	outcome, err := svc.SubmitBuild(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "success", outcome.Status)

	tasks, err := f.store.ListByEmail(context.Background(), "not-an-email")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Empty(t, tasks[0].Brief)
}

func TestSubmitBuildDefaultsRoundAndNonce(t *testing.T) {
	f := newLifecycleFixture()
	svc, err := NewBuildService(f.deps)
	require.NoError(t, err)

	req := quizBuildRequest()
	req.Round = nil
	req.Nonce = ""
	_, err = svc.SubmitBuild(context.Background(), req)
	require.NoError(t, err)

	task, err := f.store.Get(context.Background(), "quiz-app", 1)
	require.NoError(t, err)
	assert.Len(t, task.Nonce, 36)
}

func TestSubmitBuildGenerationFailureMarksFailed(t *testing.T) {
	f := newLifecycleFixture()
	f.generator.err = errBoom
	svc, err := NewBuildService(f.deps)
	require.NoError(t, err)

	_, err = svc.SubmitBuild(context.Background(), quizBuildRequest())
	require.ErrorIs(t, err, ErrGeneration)
	require.ErrorIs(t, err, errBoom)

	task, err := f.store.Get(context.Background(), "quiz-app", 1)
	require.NoError(t, err)
	assert.Equal(t, ports.TaskStatusFailed, task.Status)
	assert.Contains(t, task.FailureReason, "generate")
	assert.Empty(t, f.publisher.published)
	assert.Empty(t, f.notifier.snapshot())
}

func TestSubmitBuildPublishFailureMarksFailed(t *testing.T) {
	f := newLifecycleFixture()
	f.publisher.publishErr = errBoom
	svc, err := NewBuildService(f.deps)
	require.NoError(t, err)

	_, err = svc.SubmitBuild(context.Background(), quizBuildRequest())
	require.ErrorIs(t, err, ErrPublish)

	task, err := f.store.Get(context.Background(), "quiz-app", 1)
	require.NoError(t, err)
	assert.Equal(t, ports.TaskStatusFailed, task.Status)
	assert.Empty(t, f.notifier.snapshot())

	// A resubmission with the same nonce starts over.
	f.publisher.publishErr = nil
	outcome, err := svc.SubmitBuild(context.Background(), quizBuildRequest())
	require.NoError(t, err)
	assert.Equal(t, "success", outcome.Status)
}

func TestSubmitBuildReadinessTimeoutStillSucceeds(t *testing.T) {
	f := newLifecycleFixture()
	f.waiter.state = ReadyStateTimedOut
	svc, err := NewBuildService(f.deps, WithBuildWaitTimeout(42*time.Second))
	require.NoError(t, err)

	outcome, err := svc.SubmitBuild(context.Background(), quizBuildRequest())
	require.NoError(t, err)
	assert.Equal(t, "success", outcome.Status)
	assert.Equal(t, ReadyStateTimedOut, outcome.Ready)
	assert.Equal(t, []time.Duration{42 * time.Second}, f.waiter.timeouts)
	assert.Len(t, f.notifier.snapshot(), 1)
}

func TestSubmitBuildPassesAttachments(t *testing.T) {
	f := newLifecycleFixture()
	f.deps.Attachments = stubAttachments{files: []ports.File{{Path: "data.csv", Content: []byte("a,b")}}}
	svc, err := NewBuildService(f.deps)
	require.NoError(t, err)

	req := quizBuildRequest()
	req.Attachments = []ports.Attachment{{Name: "data.csv", URL: "data:text/csv;base64,YSxi"}}
	_, err = svc.SubmitBuild(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.generator.generated, 1)
	assert.Equal(t, []string{"data.csv"}, f.generator.generated[0].Attachments)
	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, "data.csv", f.publisher.published[0].Files[0].Path)
}

func TestSubmitBuildRejectsConcurrentDuplicate(t *testing.T) {
	f := newLifecycleFixture()
	f.generator.block = make(chan struct{})
	f.generator.started = make(chan struct{}, 1)
	svc, err := NewBuildService(f.deps)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = svc.SubmitBuild(context.Background(), quizBuildRequest())
	}()

	select {
	case <-f.generator.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first build never reached generation")
	}

	_, err = svc.SubmitBuild(context.Background(), quizBuildRequest())
	require.ErrorIs(t, err, ErrConflict)

	close(f.generator.block)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Len(t, f.publisher.published, 1)
}

func TestNewBuildServiceRequiresCollaborators(t *testing.T) {
	_, err := NewBuildService(LifecycleDeps{Secret: testSecret})
	require.ErrorIs(t, err, ErrUnavailable)
}
