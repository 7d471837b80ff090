package syncer

import (
	"context"
	"time"

	"github.com/prudhvinik1/homesync/internal/models"
)

// LocalStore is the engine's view of the client-side replica. The
// replica owns the current projection of every record; the engine only
// owns the watermark and in-flight batch state.
type LocalStore interface {
	// Read returns the current projection for (table, id), including
	// tombstones. ErrNotFound when the record was never seen.
	Read(ctx context.Context, table, id string) (*models.SyncRecord, error)

	// WriteAll applies reconciled remote records. Tombstoned records are
	// marked deleted identically, not just cleared. Records written here
	// are not considered dirty.
	WriteAll(ctx context.Context, table string, records []models.SyncRecord) error

	// ListDirtySince returns records changed locally since the watermark.
	// A zero since returns every record, tombstones included, for a full
	// resync.
	ListDirtySince(ctx context.Context, since time.Time) ([]models.SyncRecord, error)

	// MarkPushed clears the dirty flag after a successful push.
	MarkPushed(ctx context.Context, records []models.SyncRecord) error

	// LastSyncAt returns the persisted watermark, zero when never synced.
	LastSyncAt(ctx context.Context) (time.Time, error)
	SetLastSyncAt(ctx context.Context, at time.Time) error
}

// Remote is the engine's view of the sync endpoint.
type Remote interface {
	// Push sends one batch of local changes. At-least-once: replays are
	// safe because the remote stores records keyed by (table, id).
	Push(ctx context.Context, changes []models.SyncRecord) (int, error)

	// Pull fetches one page of remote changes. A zero since asks for the
	// full change log; cursor resumes a paginated pull.
	Pull(ctx context.Context, since time.Time, cursor string, limit int) (*models.PullResponse, error)
}
