package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

type taskKey struct {
	taskID string
	round  int
}

type resultKey struct {
	taskID string
	round  int
	nonce  string
}

// InMemoryTaskStore implements ports.TaskStore with in-memory maps and an
// optional JSON snapshot file. Rows are never evicted.
type InMemoryTaskStore struct {
	mu          sync.RWMutex
	tasks       map[taskKey]*ports.Task
	transitions []ports.TaskTransition
	results     []ports.EvaluationResult
	resultIndex map[resultKey]struct{}

	now    func() time.Time
	logger logging.Logger

	persistencePath string
}

var _ ports.TaskStore = (*InMemoryTaskStore)(nil)

// TaskStoreOption configures an InMemoryTaskStore.
type TaskStoreOption func(*InMemoryTaskStore)

// WithTaskPersistenceFile enables task store persistence in the specified file.
func WithTaskPersistenceFile(path string) TaskStoreOption {
	return func(s *InMemoryTaskStore) { s.persistencePath = strings.TrimSpace(path) }
}

// WithTaskStoreClock overrides the timestamp source.
func WithTaskStoreClock(now func() time.Time) TaskStoreOption {
	return func(s *InMemoryTaskStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewInMemoryTaskStore creates a new in-memory task store, loading a previous
// snapshot when a persistence file is configured.
func NewInMemoryTaskStore(opts ...TaskStoreOption) *InMemoryTaskStore {
	s := &InMemoryTaskStore{
		tasks:       make(map[taskKey]*ports.Task),
		resultIndex: make(map[resultKey]struct{}),
		now:         time.Now,
		logger:      logging.NewComponentLogger("InMemoryTaskStore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loadFromDisk()
	return s
}

// Close is a no-op; every write is already persisted.
func (s *InMemoryTaskStore) Close() {}

// Ping always succeeds.
func (s *InMemoryTaskStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Record creates or resets the live row for (task_id, round).
func (s *InMemoryTaskStore) Record(ctx context.Context, task *ports.Task) error {
	if task == nil || strings.TrimSpace(task.TaskID) == "" {
		return ValidationError("task_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := taskKey{taskID: task.TaskID, round: task.Round}
	row := task.Clone()
	row.Status = ports.TaskStatusPending
	row.FailureReason = ""
	row.RepoURL, row.CommitSHA, row.PagesURL = "", "", ""
	row.UpdatedAt = now
	if existing, ok := s.tasks[key]; ok {
		row.CreatedAt = existing.CreatedAt
	} else if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	s.tasks[key] = row
	s.appendTransitionLocked(key, ports.TaskStatusPending, "recorded", now)

	s.persistLocked()
	return nil
}

// Get retrieves the live row for (task_id, round).
func (s *InMemoryTaskStore) Get(ctx context.Context, taskID string, round int) (*ports.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[taskKey{taskID: taskID, round: round}]
	if !exists {
		return nil, fmt.Errorf("task %s round %d: %w", taskID, round, ports.ErrTaskNotFound)
	}
	return task.Clone(), nil
}

// SetStatus advances the row and appends a transition.
func (s *InMemoryTaskStore) SetStatus(ctx context.Context, taskID string, round int, status ports.TaskStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey{taskID: taskID, round: round}
	task, exists := s.tasks[key]
	if !exists {
		return fmt.Errorf("task %s round %d: %w", taskID, round, ports.ErrTaskNotFound)
	}
	if !ports.CanTransition(task.Status, status) {
		return fmt.Errorf("%s -> %s: %w", task.Status, status, ports.ErrInvalidTransition)
	}

	now := s.now()
	task.Status = status
	task.UpdatedAt = now
	if status == ports.TaskStatusFailed {
		task.FailureReason = reason
	}
	s.appendTransitionLocked(key, status, reason, now)

	s.persistLocked()
	return nil
}

// SetArtifact stores publish results on the live row.
func (s *InMemoryTaskStore) SetArtifact(ctx context.Context, taskID string, round int, artifact ports.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskKey{taskID: taskID, round: round}]
	if !exists {
		return fmt.Errorf("task %s round %d: %w", taskID, round, ports.ErrTaskNotFound)
	}
	task.RepoURL = artifact.RepoURL
	task.CommitSHA = artifact.CommitSHA
	task.PagesURL = artifact.PagesURL
	task.UpdatedAt = s.now()

	s.persistLocked()
	return nil
}

// ListByEmail returns a requester's rows, newest first.
func (s *InMemoryTaskStore) ListByEmail(ctx context.Context, email string) ([]*ports.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*ports.Task, 0)
	for _, task := range s.tasks {
		if task.Email == email {
			tasks = append(tasks, task.Clone())
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			if tasks[i].TaskID == tasks[j].TaskID {
				return tasks[i].Round > tasks[j].Round
			}
			return tasks[i].TaskID < tasks[j].TaskID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	return tasks, nil
}

// History returns transitions for (task_id, round), oldest first.
func (s *InMemoryTaskStore) History(ctx context.Context, taskID string, round int) ([]ports.TaskTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]ports.TaskTransition, 0)
	for _, tr := range s.transitions {
		if tr.TaskID == taskID && tr.Round == round {
			history = append(history, tr)
		}
	}
	return history, nil
}

// SaveResult stores a result once per (task_id, round, nonce).
func (s *InMemoryTaskStore) SaveResult(ctx context.Context, result ports.EvaluationResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := resultKey{taskID: result.TaskID, round: result.Round, nonce: result.Nonce}
	if _, exists := s.resultIndex[key]; exists {
		return false, nil
	}
	if result.ReceivedAt.IsZero() {
		result.ReceivedAt = s.now()
	}
	s.resultIndex[key] = struct{}{}
	s.results = append(s.results, result)

	s.persistLocked()
	return true, nil
}

// ListResults returns results for (task_id, round), oldest first.
func (s *InMemoryTaskStore) ListResults(ctx context.Context, taskID string, round int) ([]ports.EvaluationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]ports.EvaluationResult, 0)
	for _, result := range s.results {
		if result.TaskID == taskID && result.Round == round {
			results = append(results, result)
		}
	}
	return results, nil
}

func (s *InMemoryTaskStore) appendTransitionLocked(key taskKey, status ports.TaskStatus, reason string, at time.Time) {
	s.transitions = append(s.transitions, ports.TaskTransition{
		TaskID: key.taskID,
		Round:  key.round,
		Status: status,
		Reason: reason,
		At:     at,
	})
}

type persistedTaskStore struct {
	Version     int                      `json:"version"`
	Tasks       []*ports.Task            `json:"tasks"`
	Transitions []ports.TaskTransition   `json:"transitions"`
	Results     []ports.EvaluationResult `json:"results"`
}

func (s *InMemoryTaskStore) loadFromDisk() {
	if s.persistencePath == "" {
		return
	}
	data, err := os.ReadFile(s.persistencePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to load task persistence file %s: %v", s.persistencePath, err)
		}
		return
	}

	var persisted persistedTaskStore
	if err := json.Unmarshal(data, &persisted); err != nil {
		s.logger.Warn("failed to parse task persistence file %s: %v", s.persistencePath, err)
		return
	}

	loaded := make(map[taskKey]*ports.Task, len(persisted.Tasks))
	for _, task := range persisted.Tasks {
		if task == nil || strings.TrimSpace(task.TaskID) == "" {
			continue
		}
		loaded[taskKey{taskID: task.TaskID, round: task.Round}] = task.Clone()
	}
	index := make(map[resultKey]struct{}, len(persisted.Results))
	for _, result := range persisted.Results {
		index[resultKey{taskID: result.TaskID, round: result.Round, nonce: result.Nonce}] = struct{}{}
	}

	s.tasks = loaded
	s.transitions = persisted.Transitions
	s.results = persisted.Results
	s.resultIndex = index
}

func (s *InMemoryTaskStore) persistLocked() {
	if s.persistencePath == "" {
		return
	}

	snapshot := make([]*ports.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		snapshot = append(snapshot, task.Clone())
	}

	payload := persistedTaskStore{
		Version:     2,
		Tasks:       snapshot,
		Transitions: s.transitions,
		Results:     s.results,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode task persistence payload: %v", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.persistencePath), 0o755); err != nil {
		s.logger.Warn("failed to create task persistence directory for %s: %v", s.persistencePath, err)
		return
	}

	tmpPath := fmt.Sprintf("%s.tmp-%d", s.persistencePath, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		s.logger.Warn("failed to write task persistence temp file %s: %v", tmpPath, err)
		return
	}
	if err := os.Rename(tmpPath, s.persistencePath); err != nil {
		_ = os.Remove(tmpPath)
		s.logger.Warn("failed to atomically persist task store to %s: %v", s.persistencePath, err)
	}
}
