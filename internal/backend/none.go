package backend

import (
	"context"

	"vortex/internal/errors"
	"vortex/internal/types"
)

// NoneBackend is the backend used when no hypervisor is installed.
// Configuration-level operations still work against it; every lifecycle
// call fails with an explicit unavailability error rather than silently
// doing nothing.
type NoneBackend struct{}

func (b *NoneBackend) Kind() types.BackendKind { return types.BackendNone }

func (b *NoneBackend) Available(ctx context.Context) bool { return false }

func (b *NoneBackend) Create(ctx context.Context, cfg CreateConfig) (*VmHandle, error) {
	return nil, errors.BackendUnavailable(string(types.BackendNone))
}

func (b *NoneBackend) Start(ctx context.Context, handle *VmHandle) error {
	return errors.BackendUnavailable(string(types.BackendNone))
}

func (b *NoneBackend) Stop(ctx context.Context, handle *VmHandle) error {
	return errors.BackendUnavailable(string(types.BackendNone))
}

func (b *NoneBackend) Delete(ctx context.Context, handle *VmHandle) error {
	return errors.BackendUnavailable(string(types.BackendNone))
}

func (b *NoneBackend) List(ctx context.Context) ([]string, error) {
	return nil, errors.BackendUnavailable(string(types.BackendNone))
}

func (b *NoneBackend) Attach(ctx context.Context, handle *VmHandle, opts AttachOptions) error {
	return errors.BackendUnavailable(string(types.BackendNone))
}

func (b *NoneBackend) Exec(ctx context.Context, handle *VmHandle, command []string) (*ExecResult, error) {
	return nil, errors.BackendUnavailable(string(types.BackendNone))
}

func (b *NoneBackend) CopyIn(ctx context.Context, handle *VmHandle, hostPath, guestPath string) error {
	return errors.BackendUnavailable(string(types.BackendNone))
}

func (b *NoneBackend) CopyOut(ctx context.Context, handle *VmHandle, guestPath, hostPath string) error {
	return errors.BackendUnavailable(string(types.BackendNone))
}
