package app

import (
	"context"
	"fmt"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
)

// QueryService serves read-only views over the task store.
type QueryService struct {
	store ports.TaskStore
}

// NewQueryService builds a query service over store.
func NewQueryService(store ports.TaskStore) *QueryService {
	return &QueryService{store: store}
}

// ListResults returns stored evaluation results, or NotFoundError when none exist.
func (q *QueryService) ListResults(ctx context.Context, taskID string, round int) ([]ports.EvaluationResult, error) {
	results, err := q.store.ListResults(ctx, taskID, round)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, NotFoundError("No results found")
	}
	return results, nil
}

// ListTasks returns every round submitted by email.
func (q *QueryService) ListTasks(ctx context.Context, email string) ([]*ports.Task, error) {
	return q.store.ListByEmail(ctx, email)
}

// History returns the transition log for (task_id, round).
func (q *QueryService) History(ctx context.Context, taskID string, round int) ([]ports.TaskTransition, error) {
	history, err := q.store.History(ctx, taskID, round)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, NotFoundError(fmt.Sprintf("No history for %s round %d", taskID, round))
	}
	return history, nil
}
