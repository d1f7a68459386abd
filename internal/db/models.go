// Package db provides database models for Vortex
package db

import (
	"database/sql"
	"time"

	"vortex/internal/types"
)

// WorkspaceRecord tracks a registered workspace and where its
// specification lives on disk.
type WorkspaceRecord struct {
	ID          string            `json:"id" db:"id"`
	Name        string            `json:"name" db:"name"`
	ConfigPath  string            `json:"config_path" db:"config_path"`
	StoragePath string            `json:"storage_path" db:"storage_path"`
	BackendKind types.BackendKind `json:"backend_kind" db:"backend_kind"`
	Origin      types.Origin      `json:"origin" db:"origin"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// SessionRecord is the authoritative record of one service's runtime
// instance. Its state only advances after the backend confirms the
// corresponding call; Error holds the per-service failure, if any.
type SessionRecord struct {
	ID            string             `json:"id" db:"id"`
	VMIdentity    string             `json:"vm_identity" db:"vm_identity"`
	WorkspaceName string             `json:"workspace_name" db:"workspace_name"`
	ServiceName   string             `json:"service_name" db:"service_name"`
	State         types.SessionState `json:"state" db:"state"`
	BackendKind   types.BackendKind  `json:"backend_kind" db:"backend_kind"`
	// Handle is the backend VM handle serialized as JSON
	Handle     sql.NullString `json:"handle,omitempty" db:"handle"`
	Error      sql.NullString `json:"error,omitempty" db:"error"`
	AttachedAt sql.NullTime   `json:"attached_at,omitempty" db:"attached_at"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}
