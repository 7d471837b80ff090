package models

import (
	"encoding/json"
	"time"
)

// SyncRecord is the unit of synchronization: a full projection of one
// domain record at one instant. The record with the greatest UpdatedAt
// for a given (Table, ID) is authoritative on both sides.
type SyncRecord struct {
	ID        string          `json:"id"`
	Table     string          `json:"table"`
	Data      json.RawMessage `json:"data,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

// Deleted reports whether the record is a tombstone. A tombstone takes
// precedence over whatever Data still carries.
func (r *SyncRecord) Deleted() bool {
	return r.DeletedAt != nil
}

// Supersedes reports whether r wins over other under last-write-wins.
// Ties go to the remote side, so callers pass the remote record as r.
func (r *SyncRecord) Supersedes(other *SyncRecord) bool {
	if other == nil {
		return true
	}
	return !r.UpdatedAt.Before(other.UpdatedAt)
}
