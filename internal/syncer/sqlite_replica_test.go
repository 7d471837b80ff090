package syncer

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/prudhvinik1/homesync/internal/database"
	"github.com/prudhvinik1/homesync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReplica(t *testing.T) *SQLiteReplica {
	t.Helper()
	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "replica.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	replica, err := NewSQLiteReplica(db)
	require.NoError(t, err)
	return replica
}

func TestSQLiteReplica_FreshStartsAtCurrentVersion(t *testing.T) {
	replica := newTestReplica(t)

	version, err := replica.SchemaVersion(context.Background())

	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version, "a fresh replica needs no migration")
}

func TestSQLiteReplica_PutAndRead(t *testing.T) {
	replica := newTestReplica(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 20, 7, 0, 0, 0, time.UTC)

	err := replica.Put(ctx, "meals", "m1", json.RawMessage(`{"dish":"pasta"}`), at)
	require.NoError(t, err)

	got, err := replica.Read(ctx, "meals", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "meals", got.Table)
	assert.True(t, got.UpdatedAt.Equal(at))
	assert.Nil(t, got.DeletedAt)
	assert.JSONEq(t, `{"dish":"pasta"}`, string(got.Data))

	_, err = replica.Read(ctx, "meals", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteReplica_DeleteKeepsTombstone(t *testing.T) {
	replica := newTestReplica(t)
	ctx := context.Background()

	require.NoError(t, replica.Put(ctx, "chores", "c1", json.RawMessage(`{"task":"dishes"}`), time.Now().UTC()))

	deletedAt := time.Now().UTC().Add(time.Second).Truncate(time.Millisecond)
	require.NoError(t, replica.Delete(ctx, "chores", "c1", deletedAt))

	got, err := replica.Read(ctx, "chores", "c1")
	require.NoError(t, err, "tombstones stay readable so deletes can propagate")
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.DeletedAt.Equal(deletedAt))
	assert.Nil(t, got.Data)
}

func TestSQLiteReplica_DirtyTracking(t *testing.T) {
	replica := newTestReplica(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, replica.Put(ctx, "t", "a", json.RawMessage(`{"x":1}`), now))
	require.NoError(t, replica.Put(ctx, "t", "b", json.RawMessage(`{"x":2}`), now.Add(time.Second)))

	dirty, err := replica.ListDirtySince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, dirty, 2)

	// Clearing the flag removes them from the next batch
	require.NoError(t, replica.MarkPushed(ctx, dirty))
	dirty, err = replica.ListDirtySince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, dirty)

	// A zero since means full resync: everything comes back
	all, err := replica.ListDirtySince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// TestSQLiteReplica_MarkPushed_KeepsRewrittenRecordsDirty: a record the
// app rewrote while its old version was in flight must stay dirty.
func TestSQLiteReplica_MarkPushed_KeepsRewrittenRecordsDirty(t *testing.T) {
	replica := newTestReplica(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, replica.Put(ctx, "t", "a", json.RawMessage(`{"v":1}`), now))
	inFlight, err := replica.ListDirtySince(ctx, time.Time{}.Add(time.Nanosecond))
	require.NoError(t, err)
	require.Len(t, inFlight, 1)

	// App writes again mid-push
	require.NoError(t, replica.Put(ctx, "t", "a", json.RawMessage(`{"v":2}`), now.Add(time.Second)))

	require.NoError(t, replica.MarkPushed(ctx, inFlight))

	dirty, err := replica.ListDirtySince(ctx, time.Time{}.Add(time.Nanosecond))
	require.NoError(t, err)
	require.Len(t, dirty, 1, "the rewrite must survive for the next push")
	assert.JSONEq(t, `{"v":2}`, string(dirty[0].Data))
}

func TestSQLiteReplica_WriteAll_IsCleanAndSilent(t *testing.T) {
	replica := newTestReplica(t)
	ctx := context.Background()

	signals := 0
	replica.SetOnChange(func(table string) { signals++ })

	deletedAt := time.Now().UTC()
	records := []models.SyncRecord{
		{ID: "a", Data: json.RawMessage(`{"remote":true}`), UpdatedAt: deletedAt},
		{ID: "b", UpdatedAt: deletedAt, DeletedAt: &deletedAt},
	}
	require.NoError(t, replica.WriteAll(ctx, "t", records))

	assert.Zero(t, signals, "reconciliation writes must not re-trigger sync")

	dirty, err := replica.ListDirtySince(ctx, time.Time{}.Add(time.Nanosecond))
	require.NoError(t, err)
	assert.Empty(t, dirty, "reconciled records are not dirty")

	got, err := replica.Read(ctx, "t", "b")
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)
}

func TestSQLiteReplica_OnChangeFiresForLocalWrites(t *testing.T) {
	replica := newTestReplica(t)
	ctx := context.Background()

	var tables []string
	replica.SetOnChange(func(table string) { tables = append(tables, table) })

	require.NoError(t, replica.Put(ctx, "meals", "m1", json.RawMessage(`{}`), time.Now().UTC()))
	require.NoError(t, replica.Delete(ctx, "meals", "m1", time.Now().UTC()))

	assert.Equal(t, []string{"meals", "meals"}, tables)
}

func TestSQLiteReplica_Watermark(t *testing.T) {
	replica := newTestReplica(t)
	ctx := context.Background()

	at, err := replica.LastSyncAt(ctx)
	require.NoError(t, err)
	assert.True(t, at.IsZero(), "never-synced replica has a zero watermark")

	want := time.Date(2026, 8, 25, 18, 30, 0, 123456789, time.UTC)
	require.NoError(t, replica.SetLastSyncAt(ctx, want))

	got, err := replica.LastSyncAt(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(want))
}

func TestSQLiteReplica_BackfillTable(t *testing.T) {
	replica := newTestReplica(t)
	ctx := context.Background()

	// Simulate a pre-sync row without bookkeeping
	_, err := replica.db.Exec(
		`INSERT INTO records (table_name, id, data, updated_at, dirty) VALUES (?, ?, ?, '', 0)`,
		"meals", "legacy", `{"dish":"casserole"}`,
	)
	require.NoError(t, err)
	require.NoError(t, replica.Put(ctx, "meals", "modern", json.RawMessage(`{}`), time.Now().UTC()))

	migrated, err := replica.BackfillTable(ctx, "meals")
	require.NoError(t, err)
	assert.Equal(t, 1, migrated, "only the legacy row is rewritten")

	// Re-running touches nothing
	migrated, err = replica.BackfillTable(ctx, "meals")
	require.NoError(t, err)
	assert.Zero(t, migrated)

	got, err := replica.Read(ctx, "meals", "legacy")
	require.NoError(t, err)
	assert.False(t, got.UpdatedAt.IsZero(), "legacy row was stamped")
}

func TestSQLiteReplica_Tables(t *testing.T) {
	replica := newTestReplica(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, replica.Put(ctx, "meals", "m1", json.RawMessage(`{}`), now))
	require.NoError(t, replica.Put(ctx, "chores", "c1", json.RawMessage(`{}`), now))

	tables, err := replica.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chores", "meals"}, tables)
}
