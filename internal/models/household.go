package models

import (
	"time"

	"github.com/google/uuid"
)

// Household groups accounts that share one synced data set. Records
// pushed by any member are visible to every member's devices.
type Household struct {
	ID uuid.UUID `json:"id"`
	Name string `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
