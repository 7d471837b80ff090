package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prudhvinik1/homesync/internal/models"
)

const (
	metaLastSyncAt    = "last_sync_at"
	metaSchemaVersion = "schema_version"
)

const replicaSchema = `
CREATE TABLE IF NOT EXISTS records (
	table_name TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT,
	updated_at TEXT NOT NULL DEFAULT '',
	deleted_at TEXT,
	dirty INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (table_name, id)
);
CREATE INDEX IF NOT EXISTS idx_records_dirty ON records (dirty);
CREATE TABLE IF NOT EXISTS sync_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteReplica is the client-side Local Replica Store: per-table
// full-record JSON projections with timestamps, tombstones, and a dirty
// flag, plus the sync bookkeeping (watermark, schema version) in a
// key-value meta table. Writes are serialized to avoid SQLite lock
// contention between the app and the sync engine.
type SQLiteReplica struct {
	db       *sql.DB
	writeMu  sync.Mutex
	onChange func(table string)
}

func NewSQLiteReplica(db *sql.DB) (*SQLiteReplica, error) {
	if _, err := db.Exec(replicaSchema); err != nil {
		return nil, fmt.Errorf("failed to create replica schema: %w", err)
	}

	r := &SQLiteReplica{db: db}

	// A replica created by this version starts at the current schema; a
	// pre-existing data set without bookkeeping reports version 0 and
	// goes through the migration gate.
	version, err := r.SchemaVersion(context.Background())
	if err != nil {
		return nil, err
	}
	if version == 0 {
		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to inspect replica: %w", err)
		}
		if count == 0 {
			if err := r.SetSchemaVersion(context.Background(), CurrentSchemaVersion); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// SetOnChange registers the local-mutation signal consumed by the
// scheduler. Only app-originated writes (Put, Delete) fire it;
// reconciliation writes never do.
func (r *SQLiteReplica) SetOnChange(fn func(table string)) {
	r.onChange = fn
}

// Put is the app-facing write: a new projection of one domain record.
// Marks the record dirty for the next push.
func (r *SQLiteReplica) Put(ctx context.Context, table, id string, data json.RawMessage, at time.Time) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	query := `INSERT INTO records (table_name, id, data, updated_at, deleted_at, dirty)
	          VALUES (?, ?, ?, ?, NULL, 1)
	          ON CONFLICT (table_name, id) DO UPDATE
	          SET data = excluded.data, updated_at = excluded.updated_at, deleted_at = NULL, dirty = 1`

	_, err := r.db.ExecContext(ctx, query, table, id, string(data), formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to write record %s/%s: %w", table, id, err)
	}
	r.signal(table)
	return nil
}

// Delete tombstones a record. The row is kept so the deletion
// propagates on the next push.
func (r *SQLiteReplica) Delete(ctx context.Context, table, id string, at time.Time) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	ts := formatTime(at)
	query := `INSERT INTO records (table_name, id, data, updated_at, deleted_at, dirty)
	          VALUES (?, ?, NULL, ?, ?, 1)
	          ON CONFLICT (table_name, id) DO UPDATE
	          SET data = NULL, updated_at = excluded.updated_at, deleted_at = excluded.deleted_at, dirty = 1`

	_, err := r.db.ExecContext(ctx, query, table, id, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to tombstone record %s/%s: %w", table, id, err)
	}
	r.signal(table)
	return nil
}

func (r *SQLiteReplica) Read(ctx context.Context, table, id string) (*models.SyncRecord, error) {
	query := `SELECT id, data, updated_at, deleted_at FROM records WHERE table_name = ? AND id = ?`

	var rec models.SyncRecord
	var data, deletedAt sql.NullString
	var updatedAt string
	err := r.db.QueryRowContext(ctx, query, table, id).Scan(&rec.ID, &data, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s/%s: %w", table, id, err)
	}

	rec.Table = table
	if data.Valid {
		rec.Data = json.RawMessage(data.String)
	}
	rec.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt updated_at on %s/%s: %w", table, id, err)
	}
	if deletedAt.Valid {
		at, err := parseTime(deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt deleted_at on %s/%s: %w", table, id, err)
		}
		rec.DeletedAt = &at
	}
	return &rec, nil
}

// WriteAll applies reconciled remote records. Clean writes: the records
// came from the remote, so they are not dirty and fire no signal.
func (r *SQLiteReplica) WriteAll(ctx context.Context, table string, records []models.SyncRecord) error {
	if len(records) == 0 {
		return nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reconcile tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO records (table_name, id, data, updated_at, deleted_at, dirty)
	          VALUES (?, ?, ?, ?, ?, 0)
	          ON CONFLICT (table_name, id) DO UPDATE
	          SET data = excluded.data, updated_at = excluded.updated_at, deleted_at = excluded.deleted_at, dirty = 0`

	for _, rec := range records {
		var data interface{}
		if rec.Data != nil && !rec.Deleted() {
			data = string(rec.Data)
		}
		var deletedAt interface{}
		if rec.DeletedAt != nil {
			deletedAt = formatTime(*rec.DeletedAt)
		}
		_, err := tx.ExecContext(ctx, query, table, rec.ID, data, formatTime(rec.UpdatedAt), deletedAt)
		if err != nil {
			return fmt.Errorf("failed to reconcile record %s/%s: %w", table, rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reconcile tx: %w", err)
	}
	return nil
}

func (r *SQLiteReplica) ListDirtySince(ctx context.Context, since time.Time) ([]models.SyncRecord, error) {
	query := `SELECT table_name, id, data, updated_at, deleted_at FROM records WHERE dirty = 1 ORDER BY updated_at ASC, id ASC`
	if since.IsZero() {
		// Full resync: everything, tombstones included.
		query = `SELECT table_name, id, data, updated_at, deleted_at FROM records ORDER BY updated_at ASC, id ASC`
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty records: %w", err)
	}
	defer rows.Close()

	var records []models.SyncRecord
	for rows.Next() {
		var rec models.SyncRecord
		var data, deletedAt sql.NullString
		var updatedAt string
		if err := rows.Scan(&rec.Table, &rec.ID, &data, &updatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dirty record: %w", err)
		}
		if data.Valid {
			rec.Data = json.RawMessage(data.String)
		}
		rec.UpdatedAt, err = parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("corrupt updated_at on %s/%s: %w", rec.Table, rec.ID, err)
		}
		if deletedAt.Valid {
			at, err := parseTime(deletedAt.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt deleted_at on %s/%s: %w", rec.Table, rec.ID, err)
			}
			rec.DeletedAt = &at
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dirty records: %w", err)
	}
	return records, nil
}

// MarkPushed clears the dirty flag for records that made it to the
// remote. The updated_at match keeps a record dirty when the app wrote
// it again while the push was in flight.
func (r *SQLiteReplica) MarkPushed(ctx context.Context, records []models.SyncRecord) error {
	if len(records) == 0 {
		return nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mark tx: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE records SET dirty = 0 WHERE table_name = ? AND id = ? AND updated_at = ?`
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query, rec.Table, rec.ID, formatTime(rec.UpdatedAt)); err != nil {
			return fmt.Errorf("failed to mark record %s/%s: %w", rec.Table, rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mark tx: %w", err)
	}
	return nil
}

func (r *SQLiteReplica) LastSyncAt(ctx context.Context) (time.Time, error) {
	value, err := r.getMeta(ctx, metaLastSyncAt)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	return parseTime(value)
}

func (r *SQLiteReplica) SetLastSyncAt(ctx context.Context, at time.Time) error {
	return r.setMeta(ctx, metaLastSyncAt, formatTime(at))
}

func (r *SQLiteReplica) SchemaVersion(ctx context.Context) (int, error) {
	value, err := r.getMeta(ctx, metaSchemaVersion)
	if err != nil || value == "" {
		return 0, err
	}
	var version int
	if _, err := fmt.Sscanf(value, "%d", &version); err != nil {
		return 0, fmt.Errorf("corrupt schema version %q: %w", value, err)
	}
	return version, nil
}

func (r *SQLiteReplica) SetSchemaVersion(ctx context.Context, version int) error {
	return r.setMeta(ctx, metaSchemaVersion, fmt.Sprintf("%d", version))
}

func (r *SQLiteReplica) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT table_name FROM records ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

// BackfillTable stamps rows that predate sync bookkeeping with a fresh
// updated_at and marks them dirty so the first sync pushes them.
// Already-stamped rows are untouched, which makes re-runs no-ops.
func (r *SQLiteReplica) BackfillTable(ctx context.Context, table string) (int, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	query := `UPDATE records SET updated_at = ?, dirty = 1 WHERE table_name = ? AND updated_at = ''`
	result, err := r.db.ExecContext(ctx, query, formatTime(time.Now().UTC()), table)
	if err != nil {
		return 0, fmt.Errorf("failed to backfill table %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *SQLiteReplica) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteReplica) setMeta(ctx context.Context, key, value string) error {
	query := `INSERT INTO sync_meta (key, value) VALUES (?, ?)
	          ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteReplica) signal(table string) {
	if r.onChange != nil {
		r.onChange(table)
	}
}

func formatTime(at time.Time) string {
	return at.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
