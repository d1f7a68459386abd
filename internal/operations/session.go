package operations

import (
	"context"

	"vortex/internal/backend"
	"vortex/internal/db"
	"vortex/internal/errors"
	"vortex/internal/orchestrator"
)

// SessionOperations provides shared backend functions for session
// management
type SessionOperations struct {
	orch *orchestrator.Orchestrator
}

// NewSessionOperations creates a new SessionOperations instance
func NewSessionOperations(orch *orchestrator.Orchestrator) *SessionOperations {
	return &SessionOperations{orch: orch}
}

// ListSessions returns session records, optionally scoped to one
// workspace, after reconciling them against the backend's view.
func (so *SessionOperations) ListSessions(ctx context.Context, workspaceName string) ([]db.SessionRecord, error) {
	if err := so.orch.Reconcile(ctx); err != nil && !errors.HasCode(err, errors.ErrBackendUnavailable) {
		return nil, err
	}
	return so.orch.Sessions(ctx, workspaceName)
}

// AttachSession connects an interactive stream to a running session and
// blocks until it ends.
func (so *SessionOperations) AttachSession(ctx context.Context, vmIdentity string, opts backend.AttachOptions) error {
	return so.orch.Attach(ctx, vmIdentity, opts)
}

// DetectOrphans surfaces backend VMs carrying the managed prefix that
// no session record claims.
func (so *SessionOperations) DetectOrphans(ctx context.Context) ([]*errors.VortexError, error) {
	return so.orch.DetectOrphans(ctx)
}
