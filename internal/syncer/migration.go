package syncer

import (
	"context"
	"fmt"

	"github.com/prudhvinik1/homesync/internal/models"
)

// CurrentSchemaVersion is the replica shape the sync contract requires.
// Version 0 is a pre-sync replica with no bookkeeping columns.
const CurrentSchemaVersion = 2

// MigrationStore is the slice of the replica the gate needs: stored
// schema version plus per-table rewrite of records into sync shape
// (backfilled ids and updated_at). Implemented by *SQLiteReplica.
type MigrationStore interface {
	SchemaVersion(ctx context.Context) (int, error)
	SetSchemaVersion(ctx context.Context, version int) error
	Tables(ctx context.Context) ([]string, error)

	// BackfillTable rewrites rows missing sync bookkeeping in place,
	// keyed by existing record identity, and returns how many changed.
	// Safe to re-run: already-migrated rows are untouched.
	BackfillTable(ctx context.Context, table string) (int, error)
}

// MigrationGate blocks sync until a one-shot local migration completes.
// Detection is purely local; the remote is never contacted.
type MigrationGate struct {
	store MigrationStore
}

func NewMigrationGate(store MigrationStore) *MigrationGate {
	return &MigrationGate{store: store}
}

func (g *MigrationGate) CheckMigrationNeeded(ctx context.Context) (bool, error) {
	version, err := g.store.SchemaVersion(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version < CurrentSchemaVersion, nil
}

// PerformMigration rewrites every table into sync shape and bumps the
// stored schema version. Interruptions are safe: a retry re-runs the
// remaining backfills without duplicating or corrupting records, and
// the version only advances once every table succeeded.
func (g *MigrationGate) PerformMigration(ctx context.Context) models.MigrationResult {
	needed, err := g.CheckMigrationNeeded(ctx)
	if err != nil {
		return models.MigrationResult{Err: err}
	}
	if !needed {
		return models.MigrationResult{Success: true}
	}

	tables, err := g.store.Tables(ctx)
	if err != nil {
		return models.MigrationResult{Err: fmt.Errorf("failed to list tables: %w", err)}
	}

	result := models.MigrationResult{}
	for _, table := range tables {
		migrated, err := g.store.BackfillTable(ctx, table)
		if err != nil {
			result.Err = fmt.Errorf("failed to migrate table %s: %w", table, err)
			return result
		}
		result.RecordsMigrated += migrated
		result.TablesProcessed++
	}

	if err := g.store.SetSchemaVersion(ctx, CurrentSchemaVersion); err != nil {
		result.Err = fmt.Errorf("failed to record schema version: %w", err)
		return result
	}

	result.Success = true
	return result
}
