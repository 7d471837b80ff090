package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/homesync/internal/models"
)

type PostgresHouseholdRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresHouseholdRepository(pool *pgxpool.Pool) *PostgresHouseholdRepository {
	return &PostgresHouseholdRepository{pool: pool}
}

func (r *PostgresHouseholdRepository) Create(ctx context.Context, household *models.Household) error {
	query := `INSERT INTO households (name)
	          VALUES ($1)
	          RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, household.Name).
		Scan(&household.ID, &household.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create household: %w", err)
	}
	return nil
}

func (r *PostgresHouseholdRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Household, error) {
	query := `SELECT id, name, created_at, updated_at, deleted_at
	          FROM households WHERE id = $1 AND deleted_at IS NULL`

	var household models.Household
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&household.ID,
		&household.Name,
		&household.CreatedAt,
		&household.UpdatedAt,
		&household.DeletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get household: %w", err)
	}
	return &household, nil
}

// AddMember attaches an account to a household. Pushed records from the
// account are scoped household-wide from the next sync on.
func (r *PostgresHouseholdRepository) AddMember(ctx context.Context, householdID, accountID uuid.UUID) error {
	query := `UPDATE accounts SET household_id = $1, updated_at = NOW()
	          WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, householdID, accountID)
	if err != nil {
		return fmt.Errorf("failed to add household member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
