package testutil

import (
	"context"
	"sync"

	"vortex/internal/backend"
	"vortex/internal/errors"
	"vortex/internal/types"
)

// MockBackend is an in-memory Backend for orchestrator tests. VM names
// appear in List after Start and disappear on Delete. Per-operation
// failures can be injected by VM name.
type MockBackend struct {
	mu sync.Mutex

	created map[string]bool
	started map[string]bool

	// Calls records every operation as "op:name"
	Calls []string

	// CreateConfigs records the full config passed to Create per VM name
	CreateConfigs map[string]backend.CreateConfig

	// FailCreate, FailStart, and FailExec inject failures for the named VMs
	FailCreate map[string]bool
	FailStart  map[string]bool
	FailExec   map[string]int

	// ExtraVMs are names List reports beyond managed ones
	ExtraVMs []string
}

// NewMockBackend creates an empty mock backend
func NewMockBackend() *MockBackend {
	return &MockBackend{
		created:       map[string]bool{},
		started:       map[string]bool{},
		CreateConfigs: map[string]backend.CreateConfig{},
		FailCreate:    map[string]bool{},
		FailStart:     map[string]bool{},
		FailExec:      map[string]int{},
	}
}

func (m *MockBackend) record(op, name string) {
	m.Calls = append(m.Calls, op+":"+name)
}

func (m *MockBackend) Kind() types.BackendKind { return types.BackendKrunVm }

func (m *MockBackend) Available(ctx context.Context) bool { return true }

func (m *MockBackend) Create(ctx context.Context, cfg backend.CreateConfig) (*backend.VmHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create", cfg.Name)
	m.CreateConfigs[cfg.Name] = cfg
	if m.FailCreate[cfg.Name] {
		return nil, errors.BackendCallFailed("create", cfg.Name, errors.New(errors.ErrInternal, "injected create failure"))
	}
	m.created[cfg.Name] = true
	return &backend.VmHandle{
		Name:    cfg.Name,
		Kind:    types.BackendKrunVm,
		Command: cfg.Command,
		Env:     cfg.Env,
		Volumes: cfg.Volumes,
	}, nil
}

func (m *MockBackend) Start(ctx context.Context, handle *backend.VmHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("start", handle.Name)
	if m.FailStart[handle.Name] {
		return errors.BackendCallFailed("start", handle.Name, errors.New(errors.ErrInternal, "injected start failure"))
	}
	m.started[handle.Name] = true
	return nil
}

func (m *MockBackend) Stop(ctx context.Context, handle *backend.VmHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("stop", handle.Name)
	delete(m.started, handle.Name)
	delete(m.created, handle.Name)
	return nil
}

func (m *MockBackend) Delete(ctx context.Context, handle *backend.VmHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete", handle.Name)
	// Idempotent: deleting an unknown VM is a no-op
	delete(m.started, handle.Name)
	delete(m.created, handle.Name)
	return nil
}

func (m *MockBackend) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := append([]string{}, m.ExtraVMs...)
	for name := range m.started {
		names = append(names, name)
	}
	return names, nil
}

func (m *MockBackend) Attach(ctx context.Context, handle *backend.VmHandle, opts backend.AttachOptions) error {
	m.mu.Lock()
	m.record("attach", handle.Name)
	m.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (m *MockBackend) Exec(ctx context.Context, handle *backend.VmHandle, command []string) (*backend.ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("exec", handle.Name)
	return &backend.ExecResult{ExitCode: m.FailExec[handle.Name]}, nil
}

func (m *MockBackend) CopyIn(ctx context.Context, handle *backend.VmHandle, hostPath, guestPath string) error {
	m.record("copy-in", handle.Name)
	return nil
}

func (m *MockBackend) CopyOut(ctx context.Context, handle *backend.VmHandle, guestPath, hostPath string) error {
	m.record("copy-out", handle.Name)
	return nil
}
