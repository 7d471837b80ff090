package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/prudhvinik1/homesync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory LocalStore.
type fakeStore struct {
	records map[string]map[string]models.SyncRecord
	dirty   map[string]bool
	last    time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]map[string]models.SyncRecord),
		dirty:   make(map[string]bool),
	}
}

func dirtyKey(table, id string) string { return table + "/" + id }

func (s *fakeStore) put(rec models.SyncRecord, dirty bool) {
	if s.records[rec.Table] == nil {
		s.records[rec.Table] = make(map[string]models.SyncRecord)
	}
	s.records[rec.Table][rec.ID] = rec
	s.dirty[dirtyKey(rec.Table, rec.ID)] = dirty
}

func (s *fakeStore) Read(ctx context.Context, table, id string) (*models.SyncRecord, error) {
	rec, ok := s.records[table][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *fakeStore) WriteAll(ctx context.Context, table string, records []models.SyncRecord) error {
	for _, rec := range records {
		rec.Table = table
		s.put(rec, false)
	}
	return nil
}

func (s *fakeStore) ListDirtySince(ctx context.Context, since time.Time) ([]models.SyncRecord, error) {
	var out []models.SyncRecord
	for table, recs := range s.records {
		for id, rec := range recs {
			if since.IsZero() || s.dirty[dirtyKey(table, id)] {
				out = append(out, rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) MarkPushed(ctx context.Context, records []models.SyncRecord) error {
	for _, rec := range records {
		s.dirty[dirtyKey(rec.Table, rec.ID)] = false
	}
	return nil
}

func (s *fakeStore) LastSyncAt(ctx context.Context) (time.Time, error) { return s.last, nil }

func (s *fakeStore) SetLastSyncAt(ctx context.Context, at time.Time) error {
	s.last = at
	return nil
}

// fakeRemote mimics the server change log: records keyed by (table, id),
// overwritten only by equal-or-newer updated_at, pulled in ascending
// (updated_at, id) order with offset-based pages.
type fakeRemote struct {
	records   map[string]models.SyncRecord
	pushCalls int
	pushErr   error
	pullErr   error
	pageSize  int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]models.SyncRecord), pageSize: 100}
}

func (r *fakeRemote) Push(ctx context.Context, changes []models.SyncRecord) (int, error) {
	r.pushCalls++
	if r.pushErr != nil {
		return 0, r.pushErr
	}
	applied := 0
	for _, change := range changes {
		key := change.Table + "/" + change.ID
		if existing, ok := r.records[key]; ok && existing.UpdatedAt.After(change.UpdatedAt) {
			continue
		}
		r.records[key] = change
		applied++
	}
	return applied, nil
}

func (r *fakeRemote) Pull(ctx context.Context, since time.Time, cursor string, limit int) (*models.PullResponse, error) {
	if r.pullErr != nil {
		return nil, r.pullErr
	}

	var all []models.SyncRecord
	for _, rec := range r.records {
		if since.IsZero() || rec.UpdatedAt.After(since) {
			all = append(all, rec)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.Before(all[j].UpdatedAt)
		}
		return all[i].ID < all[j].ID
	})

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: bad cursor", ErrRemoteRejected)
		}
		offset = parsed
	}

	end := offset + r.pageSize
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	if end > len(all) {
		end = len(all)
	}

	resp := &models.PullResponse{
		Success:   true,
		Changes:   all[offset:end],
		Count:     end - offset,
		Timestamp: time.Now().UTC(),
	}
	if end < len(all) {
		resp.HasMore = true
		resp.NextCursor = strconv.Itoa(end)
	}
	return resp, nil
}

type fakeGate struct {
	needed bool
}

func (g *fakeGate) CheckMigrationNeeded(ctx context.Context) (bool, error) { return g.needed, nil }

func newTestEngine(store *fakeStore, remote *fakeRemote) *Engine {
	return NewEngine(store, remote, &fakeGate{})
}

func ts(sec int) time.Time {
	return time.Date(2026, 8, 1, 12, 0, sec, 0, time.UTC)
}

// TestEngine_PushThenPull_RoundTrip: a record that exists only locally
// survives a full round unchanged, and the remote now holds it too.
func TestEngine_PushThenPull_RoundTrip(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	engine := newTestEngine(store, remote)

	local := models.SyncRecord{ID: "a", Table: "t", Data: json.RawMessage(`{"x":1}`), UpdatedAt: ts(1)}
	store.put(local, true)

	// ACT
	result := engine.PerformSync(context.Background(), false)

	// ASSERT
	require.True(t, result.Success, "sync should succeed: %v", result.Err)
	assert.Equal(t, 1, result.Pushed)

	got, err := store.Read(context.Background(), "t", "a")
	require.NoError(t, err)
	assert.Equal(t, local.UpdatedAt, got.UpdatedAt)
	assert.JSONEq(t, `{"x":1}`, string(got.Data))

	pushed, ok := remote.records["t/a"]
	require.True(t, ok, "remote should hold the record")
	assert.JSONEq(t, `{"x":1}`, string(pushed.Data))
}

// TestEngine_Pull_NewerRemoteWins: remote T2 replaces local T1.
func TestEngine_Pull_NewerRemoteWins(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	engine := newTestEngine(store, remote)

	store.put(models.SyncRecord{ID: "a", Table: "t", Data: json.RawMessage(`{"v":1}`), UpdatedAt: ts(1)}, false)
	remote.records["t/a"] = models.SyncRecord{ID: "a", Table: "t", Data: json.RawMessage(`{"v":2}`), UpdatedAt: ts(2)}

	result := engine.PerformSync(context.Background(), false)

	require.True(t, result.Success)
	got, err := store.Read(context.Background(), "t", "a")
	require.NoError(t, err)
	assert.Equal(t, ts(2), got.UpdatedAt)
	assert.JSONEq(t, `{"v":2}`, string(got.Data))
}

// TestEngine_Pull_OlderRemoteIgnored: a stale remote copy never
// overwrites a newer local record.
func TestEngine_Pull_OlderRemoteIgnored(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	engine := newTestEngine(store, remote)

	store.put(models.SyncRecord{ID: "a", Table: "t", Data: json.RawMessage(`{"v":9}`), UpdatedAt: ts(5)}, false)
	remote.records["t/a"] = models.SyncRecord{ID: "a", Table: "t", Data: json.RawMessage(`{"v":1}`), UpdatedAt: ts(2)}

	result := engine.PerformSync(context.Background(), false)

	require.True(t, result.Success)
	got, err := store.Read(context.Background(), "t", "a")
	require.NoError(t, err)
	assert.Equal(t, ts(5), got.UpdatedAt)
	assert.JSONEq(t, `{"v":9}`, string(got.Data))
}

// TestEngine_Pull_TieFavorsRemote: equal updated_at applies the remote
// copy, the serialization point across devices.
func TestEngine_Pull_TieFavorsRemote(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	engine := newTestEngine(store, remote)

	store.put(models.SyncRecord{ID: "a", Table: "t", Data: json.RawMessage(`{"side":"local"}`), UpdatedAt: ts(3)}, false)
	remote.records["t/a"] = models.SyncRecord{ID: "a", Table: "t", Data: json.RawMessage(`{"side":"remote"}`), UpdatedAt: ts(3)}

	result := engine.PerformSync(context.Background(), false)

	require.True(t, result.Success)
	got, err := store.Read(context.Background(), "t", "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"side":"remote"}`, string(got.Data))
}

// TestEngine_TombstonePropagation: a remote tombstone removes the local
// record even when local data looks fresher but carries an older
// updated_at.
func TestEngine_TombstonePropagation(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	engine := newTestEngine(store, remote)

	store.put(models.SyncRecord{ID: "a", Table: "t", Data: json.RawMessage(`{"keep":"me"}`), UpdatedAt: ts(1)}, false)
	deletedAt := ts(3)
	remote.records["t/a"] = models.SyncRecord{ID: "a", Table: "t", UpdatedAt: ts(3), DeletedAt: &deletedAt}

	result := engine.PerformSync(context.Background(), false)

	require.True(t, result.Success)
	got, err := store.Read(context.Background(), "t", "a")
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt, "local record should be tombstoned")
	assert.True(t, got.DeletedAt.Equal(deletedAt))
}

// TestEngine_Pull_Pagination: a multi-page pull applies the same state
// as a single unpaginated one.
func TestEngine_Pull_Pagination(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	remote.pageSize = 2
	engine := newTestEngine(store, remote)

	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("rec-%d", i)
		remote.records["t/"+id] = models.SyncRecord{
			ID: id, Table: "t",
			Data:      json.RawMessage(fmt.Sprintf(`{"i":%d}`, i)),
			UpdatedAt: ts(i),
		}
	}

	result := engine.PerformSync(context.Background(), false)

	require.True(t, result.Success)
	assert.Equal(t, 7, result.Pulled)
	for i := 0; i < 7; i++ {
		got, err := store.Read(context.Background(), "t", fmt.Sprintf("rec-%d", i))
		require.NoError(t, err)
		assert.Equal(t, ts(i), got.UpdatedAt)
	}
}

// TestEngine_Push_Idempotent: forcing a second full push of the same
// batch leaves the remote state identical.
func TestEngine_Push_Idempotent(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	engine := newTestEngine(store, remote)

	store.put(models.SyncRecord{ID: "a", Table: "t", Data: json.RawMessage(`{"x":1}`), UpdatedAt: ts(1)}, true)
	store.put(models.SyncRecord{ID: "b", Table: "t", Data: json.RawMessage(`{"x":2}`), UpdatedAt: ts(2)}, true)

	result := engine.PerformSync(context.Background(), false)
	require.True(t, result.Success)
	first := make(map[string]models.SyncRecord, len(remote.records))
	for k, v := range remote.records {
		first[k] = v
	}

	// ACT: full resync replays everything
	result = engine.PerformSync(context.Background(), true)

	require.True(t, result.Success)
	assert.Equal(t, first, remote.records, "replaying the batch must not change remote state")
}

// TestEngine_MigrationRequired_FailsFast: the engine refuses to touch
// the network while a migration is pending.
func TestEngine_MigrationRequired_FailsFast(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	engine := NewEngine(store, remote, &fakeGate{needed: true})

	result := engine.PerformSync(context.Background(), false)

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrMigrationRequired)
	assert.Zero(t, remote.pushCalls, "remote must not be contacted")
}

// TestEngine_PullFailure_KeepsWatermark: push succeeded but pull failed;
// the round reports failure and the watermark stays put so the next
// attempt re-covers the window.
func TestEngine_PullFailure_KeepsWatermark(t *testing.T) {
	store := newFakeStore()
	store.last = ts(0)
	remote := newFakeRemote()
	remote.pullErr = ErrNetworkFailure
	engine := newTestEngine(store, remote)

	store.put(models.SyncRecord{ID: "a", Table: "t", Data: json.RawMessage(`{}`), UpdatedAt: ts(1)}, true)

	result := engine.PerformSync(context.Background(), false)

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrNetworkFailure)
	assert.Equal(t, 1, result.Pushed, "pushed data remains valid on the remote")
	assert.True(t, store.last.Equal(ts(0)), "watermark must not advance on failure")
	_, ok := remote.records["t/a"]
	assert.True(t, ok, "no compensating rollback for the pushed record")
}

// TestEngine_Watermark_AdvancesToStart: the watermark becomes the
// round's start time, not the newest record timestamp.
func TestEngine_Watermark_AdvancesToStart(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	engine := newTestEngine(store, remote)

	start := ts(30)
	engine.now = func() time.Time { return start }
	remote.records["t/a"] = models.SyncRecord{ID: "a", Table: "t", Data: json.RawMessage(`{}`), UpdatedAt: ts(45)}

	result := engine.PerformSync(context.Background(), false)

	require.True(t, result.Success)
	assert.True(t, store.last.Equal(start))
	assert.True(t, result.SyncedAt.Equal(start))
}
