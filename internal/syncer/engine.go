package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/prudhvinik1/homesync/internal/models"
)

// DefaultPullLimit is the page size requested from the remote.
const DefaultPullLimit = 500

// Gate blocks sync while the local replica predates the sync contract.
type Gate interface {
	CheckMigrationNeeded(ctx context.Context) (bool, error)
}

// Engine executes one complete sync round: push local dirty changes,
// then pull remote changes since the watermark, reconciling by
// last-write-wins on updated_at. Callers must serialize invocations;
// the Scheduler owns that guarantee.
type Engine struct {
	store     LocalStore
	remote    Remote
	gate      Gate
	pullLimit int
	now       func() time.Time
}

func NewEngine(store LocalStore, remote Remote, gate Gate) *Engine {
	return &Engine{
		store:     store,
		remote:    remote,
		gate:      gate,
		pullLimit: DefaultPullLimit,
		now:       time.Now,
	}
}

// PerformSync runs push-then-pull. force ignores the watermark on both
// phases for a full resync. Failures never corrupt local state: the
// watermark only advances after a fully successful round, so the next
// attempt re-covers the same window.
func (e *Engine) PerformSync(ctx context.Context, force bool) models.SyncResult {
	needsMigration, err := e.gate.CheckMigrationNeeded(ctx)
	if err != nil {
		return failure(fmt.Errorf("migration check failed: %w", err))
	}
	if needsMigration {
		return failure(ErrMigrationRequired)
	}

	// The watermark advances to the sync-start time, not the newest
	// record timestamp, so records written remotely during this round
	// are re-covered by the next pull.
	start := e.now().UTC()

	watermark, err := e.store.LastSyncAt(ctx)
	if err != nil {
		return failure(fmt.Errorf("failed to load watermark: %w", err))
	}
	since := watermark
	if force {
		since = time.Time{}
	}

	pushed, err := e.push(ctx, since)
	if err != nil {
		return failure(fmt.Errorf("push failed: %w", err))
	}

	pulled, err := e.pull(ctx, since)
	if err != nil {
		return models.SyncResult{Pushed: pushed, Err: fmt.Errorf("pull failed: %w", err)}
	}

	if err := e.store.SetLastSyncAt(ctx, start); err != nil {
		return models.SyncResult{Pushed: pushed, Pulled: pulled, Err: fmt.Errorf("failed to advance watermark: %w", err)}
	}

	return models.SyncResult{Success: true, Pushed: pushed, Pulled: pulled, SyncedAt: start}
}

func (e *Engine) push(ctx context.Context, since time.Time) (int, error) {
	dirty, err := e.store.ListDirtySince(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(dirty) == 0 {
		return 0, nil
	}

	pushed, err := e.remote.Push(ctx, dirty)
	if err != nil {
		return 0, err
	}

	if err := e.store.MarkPushed(ctx, dirty); err != nil {
		return pushed, err
	}
	return pushed, nil
}

// pull accumulates every page since the watermark into one logical
// result, then reconciles it against the replica.
func (e *Engine) pull(ctx context.Context, since time.Time) (int, error) {
	var changes []models.SyncRecord
	cursor := ""
	for {
		page, err := e.remote.Pull(ctx, since, cursor, e.pullLimit)
		if err != nil {
			return 0, err
		}
		changes = append(changes, page.Changes...)
		if !page.HasMore {
			break
		}
		if page.NextCursor == "" {
			return 0, fmt.Errorf("%w: has_more without cursor", ErrRemoteRejected)
		}
		cursor = page.NextCursor
	}

	if err := e.reconcile(ctx, changes); err != nil {
		return 0, err
	}
	return len(changes), nil
}

// reconcile applies pulled records that strictly supersede the local
// copy. Ties on updated_at favor the remote, the serialization point
// across devices. Tombstones propagate as tombstones.
func (e *Engine) reconcile(ctx context.Context, changes []models.SyncRecord) error {
	apply := make(map[string][]models.SyncRecord)
	for _, remote := range changes {
		local, err := e.store.Read(ctx, remote.Table, remote.ID)
		if err != nil && err != ErrNotFound {
			return err
		}
		if local != nil && !remote.Supersedes(local) {
			continue
		}
		apply[remote.Table] = append(apply[remote.Table], remote)
	}

	for table, records := range apply {
		if err := e.store.WriteAll(ctx, table, records); err != nil {
			return err
		}
	}
	return nil
}

func failure(err error) models.SyncResult {
	return models.SyncResult{Err: err}
}
