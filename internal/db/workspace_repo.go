package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vortex/internal/errors"
)

// WorkspaceRepository handles database operations for workspaces
type WorkspaceRepository struct {
	db *DB
}

// NewWorkspaceRepository creates a new workspace repository
func NewWorkspaceRepository(db *DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// Create registers a workspace
func (r *WorkspaceRepository) Create(ctx context.Context, ws *WorkspaceRecord) error {
	now := time.Now().UTC()
	ws.CreatedAt = now
	ws.UpdatedAt = now

	query := `
		INSERT INTO workspaces (id, name, config_path, storage_path, backend_kind, origin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		ws.ID, ws.Name, ws.ConfigPath, ws.StoragePath, ws.BackendKind, ws.Origin, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workspace record: %w", err)
	}
	return nil
}

// GetByName looks a workspace up by its unique name
func (r *WorkspaceRepository) GetByName(ctx context.Context, name string) (*WorkspaceRecord, error) {
	var ws WorkspaceRecord
	query := `
		SELECT id, name, config_path, storage_path, backend_kind, origin, created_at, updated_at
		FROM workspaces WHERE name = ?`
	if err := r.db.GetContext(ctx, &ws, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.WorkspaceNotFound(name)
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &ws, nil
}

// List returns all registered workspaces, newest first
func (r *WorkspaceRepository) List(ctx context.Context) ([]WorkspaceRecord, error) {
	var workspaces []WorkspaceRecord
	query := `
		SELECT id, name, config_path, storage_path, backend_kind, origin, created_at, updated_at
		FROM workspaces ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &workspaces, query); err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return workspaces, nil
}

// Update rewrites a workspace's mutable fields
func (r *WorkspaceRepository) Update(ctx context.Context, ws *WorkspaceRecord) error {
	ws.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE workspaces
		SET config_path = ?, storage_path = ?, backend_kind = ?, updated_at = ?
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		ws.ConfigPath, ws.StoragePath, ws.BackendKind, ws.UpdatedAt, ws.ID)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.WorkspaceNotFound(ws.Name)
	}
	return nil
}

// Delete removes a workspace record
func (r *WorkspaceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return nil
}
