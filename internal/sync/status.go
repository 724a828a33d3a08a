package sync

import (
	gosync "sync"
	"time"

	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// StatusRegistry publishes per-account sync states to external observers.
// The owning job is the only writer for an account's entry; readers (UI,
// notification layer) may poll concurrently, so access is lock-guarded.
type StatusRegistry struct {
	mu       gosync.RWMutex
	statuses map[int64]types.SyncStatus
}

// NewStatusRegistry creates an empty registry
func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{
		statuses: make(map[int64]types.SyncStatus),
	}
}

// Set overwrites the account's status entry
func (r *StatusRegistry) Set(accountID int64, state types.SyncState, errText string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.statuses[accountID]
	entry.AccountID = accountID
	entry.State = state
	entry.Error = errText
	entry.UpdatedAt = time.Now()
	if state == types.SyncCompleted {
		now := entry.UpdatedAt
		entry.LastSync = &now
	}
	r.statuses[accountID] = entry
}

// Get returns the account's current status entry
func (r *StatusRegistry) Get(accountID int64) (types.SyncStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.statuses[accountID]
	return entry, ok
}

// Snapshot returns a copy of all current entries
func (r *StatusRegistry) Snapshot() map[int64]types.SyncStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]types.SyncStatus, len(r.statuses))
	for id, entry := range r.statuses {
		out[id] = entry
	}
	return out
}
