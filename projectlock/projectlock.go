// Package projectlock implements the process-wide, in-memory "at most one
// deploy-shaped operation per project" guard. It is shared by the
// orchestrator and the rollback engine, which hold the same lock while a
// container-affecting pipeline is in flight for a given project — a
// deploy and a rollback for the same project must never run concurrently
// any more than two deploys may.
package projectlock

import "sync"

// Table is the per-project lock map plus the cancellation-request flag set
// read at the deploy pipeline's checkpoints. both sets are protected by the
// same mutex since they are always touched together at acquire/release time.
type Table struct {
	mu             sync.Mutex
	locks          map[string]struct{}
	cancelRequests map[string]struct{}
}

// NewTable constructs an empty lock table. one instance is constructed in
// main.go and shared by the orchestrator and the rollback engine.
func NewTable() *Table {
	return &Table{
		locks:          make(map[string]struct{}),
		cancelRequests: make(map[string]struct{}),
	}
}

// Acquire attempts to take the lock for projectID. returns false if already
// held, in which case the caller must raise ConflictError without starting
// any pipeline work.
func (t *Table) Acquire(projectID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, held := t.locks[projectID]; held {
		return false
	}
	t.locks[projectID] = struct{}{}
	return true
}

// Release drops the lock and any pending cancellation flag for projectID.
// must be called on every exit path from a locked operation, success or failure.
func (t *Table) Release(projectID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.locks, projectID)
	delete(t.cancelRequests, projectID)
}

// IsLocked reports whether an operation is currently in flight for
// projectID, used by Cancel to decide whether inserting a cancellation
// request is meaningful.
func (t *Table) IsLocked(projectID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, held := t.locks[projectID]
	return held
}

// RequestCancel inserts projectID into cancelRequests, read at the deploy
// pipeline's next cancellation checkpoint.
func (t *Table) RequestCancel(projectID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelRequests[projectID] = struct{}{}
}

// CancelRequested reports and does not clear the cancellation flag; the flag
// is cleared only by Release, which runs at the end of the operation and is
// also called by orchestrator.Cancel while the pipeline may still be running.
func (t *Table) CancelRequested(projectID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, requested := t.cancelRequests[projectID]
	return requested
}
