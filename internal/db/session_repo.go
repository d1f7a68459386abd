package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vortex/internal/errors"
	"vortex/internal/types"
)

// SessionRepository handles database operations for sessions
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session record
func (r *SessionRepository) Create(ctx context.Context, s *SessionRecord) error {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	query := `
		INSERT INTO sessions (id, vm_identity, workspace_name, service_name, state, backend_kind, handle, error, attached_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.VMIdentity, s.WorkspaceName, s.ServiceName, s.State, s.BackendKind,
		s.Handle, s.Error, s.AttachedAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session record: %w", err)
	}
	return nil
}

// GetByVMIdentity looks a session up by its VM name
func (r *SessionRepository) GetByVMIdentity(ctx context.Context, vmIdentity string) (*SessionRecord, error) {
	var s SessionRecord
	query := `
		SELECT id, vm_identity, workspace_name, service_name, state, backend_kind, handle, error, attached_at, created_at, updated_at
		FROM sessions WHERE vm_identity = ?`
	if err := r.db.GetContext(ctx, &s, query, vmIdentity); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.SessionNotFound(vmIdentity)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// List returns sessions with optional filtering by workspace and state
func (r *SessionRepository) List(ctx context.Context, workspaceName string, state types.SessionState) ([]SessionRecord, error) {
	query := `
		SELECT id, vm_identity, workspace_name, service_name, state, backend_kind, handle, error, attached_at, created_at, updated_at
		FROM sessions WHERE 1=1`
	args := []interface{}{}

	if workspaceName != "" {
		query += " AND workspace_name = ?"
		args = append(args, workspaceName)
	}
	if state != "" {
		query += " AND state = ?"
		args = append(args, state)
	}
	query += " ORDER BY created_at DESC"

	var sessions []SessionRecord
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// UpdateState advances a session's state, recording the error text for
// failed transitions and clearing it otherwise.
func (r *SessionRepository) UpdateState(ctx context.Context, id string, state types.SessionState, errText string) error {
	errVal := sql.NullString{String: errText, Valid: errText != ""}
	query := `UPDATE sessions SET state = ?, error = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, state, errVal, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update session state: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.SessionNotFound(id)
	}
	return nil
}

// UpdateHandle stores the serialized backend handle for a session
func (r *SessionRepository) UpdateHandle(ctx context.Context, id string, handleJSON string) error {
	query := `UPDATE sessions SET handle = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		sql.NullString{String: handleJSON, Valid: handleJSON != ""}, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update session handle: %w", err)
	}
	return nil
}

// MarkAttached records the time an interactive session was attached;
// a zero time clears the attachment.
func (r *SessionRepository) MarkAttached(ctx context.Context, id string, at time.Time) error {
	attached := sql.NullTime{Time: at, Valid: !at.IsZero()}
	state := types.SessionAttached
	if at.IsZero() {
		state = types.SessionRunning
	}
	query := `UPDATE sessions SET state = ?, attached_at = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, state, attached, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark session attached: %w", err)
	}
	return nil
}

// Delete removes a session record. Callers only do this after the
// backend has confirmed the VM is gone.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
