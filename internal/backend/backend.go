package backend

import (
	"context"
	"io"

	"vortex/internal/errors"
	"vortex/internal/types"
)

// Backend defines the interface for microVM hypervisor operations.
// It abstracts the underlying virtualization technology.
type Backend interface {
	// Kind returns the backend kind
	Kind() types.BackendKind

	// Available checks if the backend is usable on this system
	Available(ctx context.Context) bool

	// Create provisions a VM for the given configuration
	Create(ctx context.Context, cfg CreateConfig) (*VmHandle, error)

	// Start boots a created VM
	Start(ctx context.Context, handle *VmHandle) error

	// Stop halts a running VM
	Stop(ctx context.Context, handle *VmHandle) error

	// Delete removes a VM. Deleting a VM that no longer exists is a
	// no-op, never an error, so teardown can be retried after a crash.
	Delete(ctx context.Context, handle *VmHandle) error

	// List returns the names of all VMs known to the backend,
	// managed or not.
	List(ctx context.Context) ([]string, error)

	// Attach connects an interactive stream to the VM. It blocks until
	// the session ends or ctx is cancelled.
	Attach(ctx context.Context, handle *VmHandle, opts AttachOptions) error

	// Exec runs a command inside the VM and returns its outcome
	Exec(ctx context.Context, handle *VmHandle, command []string) (*ExecResult, error)

	// CopyIn copies a host file or tree into the VM
	CopyIn(ctx context.Context, handle *VmHandle, hostPath, guestPath string) error

	// CopyOut copies a guest file or tree out to the host
	CopyOut(ctx context.Context, handle *VmHandle, guestPath, hostPath string) error
}

// CreateConfig holds configuration for provisioning a VM
type CreateConfig struct {
	Name      string
	Image     string
	MemoryMiB int
	CPUs      int
	Ports     []types.PortMapping
	Volumes   []types.VolumeMount
	Command   string
	Env       map[string]string
}

// VmHandle identifies a VM managed by a backend. It carries enough of
// the creating configuration to start, attach to, and copy files for
// the VM after a process restart, and serializes into the session store.
type VmHandle struct {
	Name    string              `json:"name"`
	Kind    types.BackendKind   `json:"kind"`
	Command string              `json:"command,omitempty"`
	Env     map[string]string   `json:"env,omitempty"`
	Volumes []types.VolumeMount `json:"volumes,omitempty"`
}

// ExecResult is the outcome of an Exec call
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// AttachOptions controls where an interactive session's streams go.
// Nil streams fall back to the calling process's own stdio.
type AttachOptions struct {
	Command string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// New creates a backend of the requested kind. The executor may be nil,
// in which case commands run through os/exec directly.
func New(kind types.BackendKind, executor CommandExecutor) (Backend, error) {
	if executor == nil {
		executor = &DefaultCommandExecutor{}
	}
	switch kind {
	case types.BackendKrunVm:
		return NewKrunvmBackend(executor), nil
	case types.BackendNone:
		return &NoneBackend{}, nil
	case types.BackendFirecracker:
		return nil, errors.BackendUnavailable(string(kind))
	default:
		return nil, errors.ValidationFailed("backend", string(kind), "unknown backend kind")
	}
}

// Detect returns the first available backend on this system, falling
// back to the none backend so configuration-only operations still work.
func Detect(ctx context.Context, executor CommandExecutor) Backend {
	if executor == nil {
		executor = &DefaultCommandExecutor{}
	}
	krunvm := NewKrunvmBackend(executor)
	if krunvm.Available(ctx) {
		return krunvm
	}
	return &NoneBackend{}
}
