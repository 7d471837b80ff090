package repositories

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/homesync/internal/models"
)

// ErrBadCursor is returned when a pull cursor cannot be decoded.
var ErrBadCursor = errors.New("invalid pull cursor")

// MaxPullLimit caps the page size of a single pull request.
const MaxPullLimit = 1000

type PostgresChangeLogRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresChangeLogRepository(pool *pgxpool.Pool) *PostgresChangeLogRepository {
	return &PostgresChangeLogRepository{pool: pool}
}

// scopeID is the owner key records are stored under: the household when
// the account belongs to one, otherwise the account itself.
func scopeID(scope SyncScope) uuid.UUID {
	if scope.HouseholdID != nil {
		return *scope.HouseholdID
	}
	return scope.AccountID
}

func (r *PostgresChangeLogRepository) UpsertBatch(ctx context.Context, scope SyncScope, changes []models.SyncRecord) (int, error) {
	if len(changes) == 0 {
		return 0, nil
	}

	// The WHERE clause on the conflict update makes replays of an
	// already-applied batch a no-op: a stored row is only overwritten by
	// an equal-or-newer updated_at.
	query := `INSERT INTO sync_records (scope_id, account_id, table_name, record_id, data, updated_at, deleted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (scope_id, table_name, record_id) DO UPDATE
	          SET account_id = EXCLUDED.account_id,
	              data = EXCLUDED.data,
	              updated_at = EXCLUDED.updated_at,
	              deleted_at = EXCLUDED.deleted_at
	          WHERE sync_records.updated_at <= EXCLUDED.updated_at`

	applied := 0
	owner := scopeID(scope)
	for _, change := range changes {
		if change.ID == "" || change.Table == "" {
			continue
		}
		result, err := r.pool.Exec(ctx, query,
			owner,
			scope.AccountID,
			change.Table,
			change.ID,
			change.Data,
			change.UpdatedAt,
			change.DeletedAt,
		)
		if err != nil {
			return applied, fmt.Errorf("failed to upsert change %s/%s: %w", change.Table, change.ID, err)
		}
		if result.RowsAffected() > 0 {
			applied++
		}
	}
	return applied, nil
}

func (r *PostgresChangeLogRepository) ListSince(ctx context.Context, scope SyncScope, since time.Time, cursor string, limit int) (*models.PullResponse, error) {
	if limit <= 0 || limit > MaxPullLimit {
		limit = MaxPullLimit
	}

	args := []interface{}{scopeID(scope), since}
	query := `SELECT table_name, record_id, data, updated_at, deleted_at
	          FROM sync_records
	          WHERE scope_id = $1 AND updated_at > $2`

	if cursor != "" {
		cursorAt, cursorID, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		query += ` AND (updated_at, record_id) > ($3, $4)`
		args = append(args, cursorAt, cursorID)
	}

	// Fetch one extra row to decide has_more without a second query.
	query += fmt.Sprintf(` ORDER BY updated_at ASC, record_id ASC LIMIT %d`, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	var changes []models.SyncRecord
	for rows.Next() {
		var rec models.SyncRecord
		err := rows.Scan(&rec.Table, &rec.ID, &rec.Data, &rec.UpdatedAt, &rec.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		changes = append(changes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes: %w", err)
	}

	resp := &models.PullResponse{
		Success:   true,
		Timestamp: time.Now().UTC(),
	}
	if len(changes) > limit {
		changes = changes[:limit]
		last := changes[len(changes)-1]
		resp.HasMore = true
		resp.NextCursor = EncodeCursor(last.UpdatedAt, last.ID)
	}
	resp.Changes = changes
	resp.Count = len(changes)
	return resp, nil
}

// EncodeCursor packs a (updated_at, record_id) keyset position into an
// opaque string. Clients echo it back verbatim on the next pull page.
func EncodeCursor(updatedAt time.Time, recordID string) string {
	raw := updatedAt.UTC().Format(time.RFC3339Nano) + "|" + recordID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", ErrBadCursor
	}
	at, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return time.Time{}, "", ErrBadCursor
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return time.Time{}, "", ErrBadCursor
	}
	return updatedAt, id, nil
}
