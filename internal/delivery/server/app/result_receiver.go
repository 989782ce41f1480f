package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

// Ack is the acknowledgment returned to the evaluator. Duplicates receive the
// same Ack as the first delivery.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

var receivedAck = Ack{Status: "received", Message: "Evaluation results logged successfully"}

// ResultReceiver ingests evaluator callbacks.
type ResultReceiver struct {
	store  ports.TaskStore
	now    func() time.Time
	logger logging.Logger
}

// NewResultReceiver builds a receiver over store.
func NewResultReceiver(store ports.TaskStore) (*ResultReceiver, error) {
	if store == nil {
		return nil, UnavailableError("task store not configured")
	}
	return &ResultReceiver{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logging.NewComponentLogger("ResultReceiver"),
	}, nil
}

// Ingest correlates result with its task and stores it once per
// (task_id, round, nonce).
func (r *ResultReceiver) Ingest(ctx context.Context, result ports.EvaluationResult) (Ack, error) {
	logger := logging.FromContext(ctx, r.logger)
	if strings.TrimSpace(result.TaskID) == "" {
		return Ack{}, ValidationError("task is required")
	}
	if result.Round != 1 && result.Round != 2 {
		return Ack{}, ValidationError("round must be 1 or 2")
	}
	if strings.TrimSpace(result.Nonce) == "" {
		return Ack{}, ValidationError("nonce is required")
	}

	if _, err := r.store.Get(ctx, result.TaskID, result.Round); err != nil {
		if errors.Is(err, ports.ErrTaskNotFound) {
			return Ack{}, NotFoundError("Task not found")
		}
		return Ack{}, fmt.Errorf("load task %s: %w", result.TaskID, err)
	}

	result.ReceivedAt = r.now()
	created, err := r.store.SaveResult(ctx, result)
	if err != nil {
		return Ack{}, fmt.Errorf("store result for %s: %w", result.TaskID, err)
	}
	if created {
		logger.Info("[ResultReceiver] stored result for %s round %d (nonce=%s)", result.TaskID, result.Round, result.Nonce)
	} else {
		logger.Info("[ResultReceiver] duplicate result for %s round %d (nonce=%s) ignored", result.TaskID, result.Round, result.Nonce)
	}
	return receivedAck, nil
}
