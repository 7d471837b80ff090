package syncer

import (
	"sync"
	"time"

	"github.com/prudhvinik1/homesync/internal/models"
)

// Notifier receives user-facing sync notices. Silent syncs never reach
// it; the observable status is updated either way.
type Notifier interface {
	SyncSucceeded(result models.SyncResult)
	SyncFailed(err error)
}

// StatusSurface is the single process-wide observable of sync state.
// Mutated only by the Engine/Scheduler, read by the UI layer.
type StatusSurface struct {
	mu       sync.Mutex
	status   models.SyncStatus
	onChange func(models.SyncStatus)
}

func NewStatusSurface() *StatusSurface {
	return &StatusSurface{}
}

// OnChange registers a callback invoked after every status mutation,
// outside the lock, with a snapshot. At most one subscriber; the UI
// layer fans out from there.
func (s *StatusSurface) OnChange(fn func(models.SyncStatus)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Snapshot returns a copy of the current status.
func (s *StatusSurface) Snapshot() models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *StatusSurface) update(mutate func(*models.SyncStatus)) {
	s.mu.Lock()
	mutate(&s.status)
	snapshot := s.status
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

func (s *StatusSurface) setSyncing(syncing bool) {
	s.update(func(st *models.SyncStatus) {
		st.IsSyncing = syncing
	})
}

func (s *StatusSurface) setPendingChanges(pending bool) {
	s.update(func(st *models.SyncStatus) {
		st.PendingChanges = pending
	})
}

func (s *StatusSurface) setAuthenticated(authed bool) {
	s.update(func(st *models.SyncStatus) {
		st.IsAuthenticated = authed
	})
}

// SetLastSyncAt seeds the watermark into the observable at startup.
func (s *StatusSurface) SetLastSyncAt(at time.Time) {
	s.update(func(st *models.SyncStatus) {
		if at.IsZero() {
			st.LastSyncAt = nil
			return
		}
		t := at
		st.LastSyncAt = &t
	})
}

func (s *StatusSurface) recordResult(result models.SyncResult) {
	s.update(func(st *models.SyncStatus) {
		st.IsSyncing = false
		if result.Success {
			t := result.SyncedAt
			st.LastSyncAt = &t
			st.PendingChanges = false
			st.Error = ""
			return
		}
		if result.Err != nil {
			st.Error = result.Err.Error()
		}
	})
}
