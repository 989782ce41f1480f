package app

import (
	"fmt"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// LeaseTable grants at most one in-flight orchestration per (task_id, round).
type LeaseTable struct {
	held cmap.ConcurrentMap[string, time.Time]
}

// NewLeaseTable creates an empty lease table.
func NewLeaseTable() *LeaseTable {
	return &LeaseTable{held: cmap.New[time.Time]()}
}

func leaseKey(taskID string, round int) string {
	return fmt.Sprintf("%s#%d", taskID, round)
}

// Acquire takes the lease for (task_id, round). The returned release func is
// idempotent. A held lease yields ConflictError.
func (l *LeaseTable) Acquire(taskID string, round int) (func(), error) {
	key := leaseKey(taskID, round)
	if !l.held.SetIfAbsent(key, time.Now()) {
		return nil, ConflictError(fmt.Sprintf("task %s round %d is already in progress", taskID, round))
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		l.held.Remove(key)
	}, nil
}

// Held reports whether (task_id, round) is currently leased.
func (l *LeaseTable) Held(taskID string, round int) bool {
	return l.held.Has(leaseKey(taskID, round))
}

// Count returns the number of held leases.
func (l *LeaseTable) Count() int {
	return l.held.Count()
}
