package models

import "time"

// PushRequest is the body of POST /sync/push. Ownership fields are
// attributed server-side from the session, never from the client.
type PushRequest struct {
	Changes []SyncRecord `json:"changes"`
}

type PushResponse struct {
	Success   bool      `json:"success"`
	Pushed    int       `json:"pushed"`
	Timestamp time.Time `json:"timestamp"`
}

// PullResponse is one page of GET /sync/pull. Changes are ordered
// ascending by (updated_at, record_id); NextCursor is opaque to clients.
type PullResponse struct {
	Success    bool         `json:"success"`
	Changes    []SyncRecord `json:"changes"`
	Count      int          `json:"count"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// SyncResult is the outcome of one complete push-then-pull round.
// Failures are carried in Err rather than returned as a Go error so the
// scheduler can report them without aborting its timers.
type SyncResult struct {
	Success bool
	Pushed  int
	Pulled  int
	// SyncedAt is the round's start time, the value the watermark
	// advanced to on success.
	SyncedAt time.Time
	Err      error
}

// SyncStatus is the process-wide observable consumed by the UI layer.
type SyncStatus struct {
	IsSyncing       bool       `json:"is_syncing"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	PendingChanges  bool       `json:"pending_changes"`
	Error           string     `json:"error,omitempty"`
	IsAuthenticated bool       `json:"is_authenticated"`
}

// MigrationResult reports a one-shot local schema migration.
type MigrationResult struct {
	Success         bool
	RecordsMigrated int
	TablesProcessed int
	Err             error
}
