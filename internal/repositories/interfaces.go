package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/homesync/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type HouseholdRepository interface {
	Create(ctx context.Context, household *models.Household) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Household, error)
	AddMember(ctx context.Context, householdID, accountID uuid.UUID) error
}

type DeviceRepository interface {
	Create(ctx context.Context, device *models.Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Device, error)
	GetDevicesByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Device, error)
	TouchLastSync(ctx context.Context, id uuid.UUID, at time.Time) error
	Revoke(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error
}

// SyncScope identifies whose records a sync call may touch. HouseholdID
// is nil for accounts that do not belong to a household, in which case
// records are private to the account.
type SyncScope struct {
	AccountID   uuid.UUID
	HouseholdID *uuid.UUID
}

// ChangeLogRepository is the authoritative server-side change log.
// Rows are keyed by (scope, table, record id), soft-deleted only, and
// never physically removed so deletions propagate to late pullers.
type ChangeLogRepository interface {
	// UpsertBatch applies a pushed batch. A row is overwritten only when
	// the incoming updated_at is >= the stored one, which makes replays
	// of the same batch a no-op. Returns the number of records applied.
	UpsertBatch(ctx context.Context, scope SyncScope, changes []models.SyncRecord) (int, error)

	// ListSince returns one page of changes with updated_at > since (all
	// changes when since is zero), ordered ascending by
	// (updated_at, record_id) and resuming from cursor when non-empty.
	ListSince(ctx context.Context, scope SyncScope, since time.Time, cursor string, limit int) (*models.PullResponse, error)
}
