package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
)

const testSecret = "s3cret"

type stubGenerator struct {
	mu        sync.Mutex
	source    string
	revised   string
	err       error
	block     chan struct{}
	started   chan struct{}
	generated []ports.GenerationRequest
	revisions []ports.RevisionRequest
}

func (g *stubGenerator) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	g.mu.Lock()
	g.generated = append(g.generated, req)
	block, started := g.block, g.started
	g.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if g.err != nil {
		return "", g.err
	}
	return g.source, nil
}

func (g *stubGenerator) Revise(ctx context.Context, req ports.RevisionRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revisions = append(g.revisions, req)
	if g.err != nil {
		return "", g.err
	}
	return g.revised, nil
}

func (g *stubGenerator) reviseCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.revisions)
}

type stubPublisher struct {
	mu          sync.Mutex
	artifact    ports.Artifact
	publishErr  error
	repoErr     error
	fileErr     error
	replaceErrs map[string]error
	latestSHA   string
	latestErr   error
	files       map[string]string
	published   []ports.PublishRequest
	replaced    []string
	messages    []string
}

func newStubPublisher() *stubPublisher {
	return &stubPublisher{
		artifact: ports.Artifact{
			RepoURL:   "https://host/u/quiz-app",
			CommitSHA: "abc123",
			PagesURL:  "https://u.host/quiz-app/",
		},
		files:     map[string]string{"index.html": "<html>v1</html>"},
		latestSHA: "def456",
	}
}

func (p *stubPublisher) CreateAndPublish(ctx context.Context, req ports.PublishRequest) (ports.Artifact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, req)
	if p.publishErr != nil {
		return ports.Artifact{}, p.publishErr
	}
	return p.artifact, nil
}

func (p *stubPublisher) RepoExists(ctx context.Context, repo string) error {
	return p.repoErr
}

func (p *stubPublisher) GetFile(ctx context.Context, repo, path string) (string, error) {
	if p.fileErr != nil {
		return "", p.fileErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	content, ok := p.files[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ports.ErrFileNotFound)
	}
	return content, nil
}

func (p *stubPublisher) ReplaceFile(ctx context.Context, repo, path, content, message string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.replaceErrs[path]; err != nil {
		return "", err
	}
	p.files[path] = content
	p.replaced = append(p.replaced, path)
	p.messages = append(p.messages, message)
	return "sha-" + path, nil
}

func (p *stubPublisher) LatestCommitSHA(ctx context.Context, repo string) (string, error) {
	return p.latestSHA, p.latestErr
}

func (p *stubPublisher) RepoURL(repo string) string  { return "https://host/u/" + repo }
func (p *stubPublisher) PagesURL(repo string) string { return "https://u.host/" + repo + "/" }

type stubWaiter struct {
	mu       sync.Mutex
	state    ReadyState
	timeouts []time.Duration
}

func (w *stubWaiter) WaitUntilReady(ctx context.Context, pagesURL string, timeout time.Duration) ReadyState {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeouts = append(w.timeouts, timeout)
	if w.state == "" {
		return ReadyStateReady
	}
	return w.state
}

type dispatched struct {
	url     string
	payload EvaluationPayload
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []dispatched
}

func (n *recordingNotifier) Dispatch(ctx context.Context, url string, payload EvaluationPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, dispatched{url: url, payload: payload})
}

func (n *recordingNotifier) snapshot() []dispatched {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]dispatched(nil), n.calls...)
}

type stubAttachments struct {
	files []ports.File
	err   error
}

func (a stubAttachments) Process(ctx context.Context, attachments []ports.Attachment) ([]ports.File, error) {
	return a.files, a.err
}

type lifecycleFixture struct {
	store     *InMemoryTaskStore
	generator *stubGenerator
	publisher *stubPublisher
	waiter    *stubWaiter
	notifier  *recordingNotifier
	deps      LifecycleDeps
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		store:     NewInMemoryTaskStore(),
		generator: &stubGenerator{source: "<html>quiz</html>", revised: "<html>quiz v2</html>"},
		publisher: newStubPublisher(),
		waiter:    &stubWaiter{},
		notifier:  &recordingNotifier{},
	}
	f.deps = LifecycleDeps{
		Secret:    testSecret,
		Store:     f.store,
		Generator: f.generator,
		Publisher: f.publisher,
		Waiter:    f.waiter,
		Notifier:  f.notifier,
		Leases:    NewLeaseTable(),
	}
	return f
}

func intPtr(v int) *int { return &v }

var errBoom = errors.New("boom")
