// Package orchestrator drives service VMs through their lifecycle.
// Session records never advance ahead of the backend: every transition
// is recorded only after the corresponding backend call returns.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"vortex/internal/backend"
	"vortex/internal/constants"
	"vortex/internal/db"
	"vortex/internal/errors"
	"vortex/internal/logger"
	"vortex/internal/naming"
	"vortex/internal/types"
	"vortex/internal/workspace"
)

// Orchestrator coordinates backend calls and session records. Only the
// orchestrator mutates records; concurrent service starts share nothing
// but the record store behind its lock.
type Orchestrator struct {
	backend  backend.Backend
	sessions *db.SessionRepository

	// mu serializes all record writes (single-writer discipline)
	mu sync.Mutex

	readinessTimeout time.Duration
	pollInterval     time.Duration
	hookTimeout      time.Duration

	defaultMemoryMiB int
	defaultCPUs      int
}

// New creates an orchestrator over the given backend and session store
func New(be backend.Backend, sessions *db.SessionRepository) *Orchestrator {
	return &Orchestrator{
		backend:          be,
		sessions:         sessions,
		readinessTimeout: constants.DefaultReadinessTimeout,
		pollInterval:     constants.DefaultReadinessPollInterval,
		hookTimeout:      constants.DefaultHookTimeout,
		defaultMemoryMiB: constants.DefaultVMMemoryMiB,
		defaultCPUs:      constants.DefaultVMCPUs,
	}
}

// SetVMDefaults overrides the guest memory and vCPU count used for
// services that do not pin their own. Zero values keep the built-in
// defaults.
func (o *Orchestrator) SetVMDefaults(memoryMiB, cpus int) {
	if memoryMiB > 0 {
		o.defaultMemoryMiB = memoryMiB
	}
	if cpus > 0 {
		o.defaultCPUs = cpus
	}
}

// ServiceResult reports the outcome of one service within a workspace
// operation.
type ServiceResult struct {
	ServiceName string
	VMIdentity  string
	State       types.SessionState
	Skipped     bool
	Err         error
}

// StartWorkspace starts every service of the spec in dependency order:
// data stores first, then backends and workers, then frontends.
// Services within a tier start concurrently. A failed service does not
// roll back its siblings, but services in later tiers are not attempted
// once an earlier tier has a failure.
func (o *Orchestrator) StartWorkspace(ctx context.Context, spec *workspace.WorkspaceSpec) ([]ServiceResult, error) {
	known, err := o.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	knownSet := make(map[string]bool, len(known))
	for _, name := range known {
		knownSet[name] = true
	}

	tiers := groupByTier(spec.Services)

	var results []ServiceResult
	tierFailed := false
	for _, tier := range tiers {
		if tierFailed {
			for _, svc := range tier {
				results = append(results, ServiceResult{
					ServiceName: svc.Name,
					VMIdentity:  naming.VMIdentity(spec.Name, svc.Name),
					State:       types.SessionPlanned,
					Skipped:     true,
				})
			}
			continue
		}

		tierResults := make([]ServiceResult, len(tier))
		var wg sync.WaitGroup
		for i, svc := range tier {
			wg.Add(1)
			go func(i int, svc workspace.ServiceSpec) {
				defer wg.Done()
				tierResults[i] = o.startService(ctx, spec, svc, knownSet)
			}(i, svc)
		}
		wg.Wait()

		for _, res := range tierResults {
			if res.Err != nil {
				tierFailed = true
			}
			results = append(results, res)
		}
	}

	return results, nil
}

// startService runs one service through Planned -> Running, marking the
// record Failed at whatever step the backend rejects.
func (o *Orchestrator) startService(ctx context.Context, spec *workspace.WorkspaceSpec, svc workspace.ServiceSpec, knownVMs map[string]bool) ServiceResult {
	vmIdentity := naming.VMIdentity(spec.Name, svc.Name)
	result := ServiceResult{ServiceName: svc.Name, VMIdentity: vmIdentity}

	log := logger.WithFields(logger.Fields{
		"workspace": spec.Name,
		"service":   svc.Name,
		"vm":        vmIdentity,
	})

	// The backend list is the mutual-exclusion source of truth: a name
	// already present means another orchestrator (or a leftover VM)
	// owns it, and creating over it would be a collision.
	if knownVMs[vmIdentity] {
		result.State = types.SessionFailed
		result.Err = errors.VMNameInUse(vmIdentity)
		return result
	}

	record := &db.SessionRecord{
		ID:            xid.New().String(),
		VMIdentity:    vmIdentity,
		WorkspaceName: spec.Name,
		ServiceName:   svc.Name,
		State:         types.SessionPlanned,
		BackendKind:   o.backend.Kind(),
	}
	if err := o.createRecord(ctx, record); err != nil {
		result.State = types.SessionFailed
		result.Err = err
		return result
	}

	fail := func(err error) ServiceResult {
		o.setState(record, types.SessionFailed, err)
		result.State = types.SessionFailed
		result.Err = err
		log.WithError(err).Error("Service start failed")
		return result
	}

	// Create
	o.setState(record, types.SessionCreating, nil)
	handle, err := o.backend.Create(ctx, o.createConfig(vmIdentity, svc))
	if err != nil {
		if ctx.Err() != nil {
			return o.cancelled(record, result)
		}
		return fail(err)
	}
	o.storeHandle(record, handle)
	o.setState(record, types.SessionCreated, nil)

	// Start
	o.setState(record, types.SessionStarting, nil)
	if err := o.backend.Start(ctx, handle); err != nil {
		if ctx.Err() != nil {
			return o.cancelled(record, result)
		}
		return fail(err)
	}

	if err := o.awaitReady(ctx, vmIdentity); err != nil {
		if ctx.Err() != nil {
			o.bestEffortStop(record, handle)
			result.State = types.SessionStopped
			result.Err = err
			return result
		}
		return fail(err)
	}

	if svc.PostStartHook != "" {
		if err := o.runHook(ctx, handle, svc.PostStartHook); err != nil {
			return fail(err)
		}
	}

	o.setState(record, types.SessionRunning, nil)
	result.State = types.SessionRunning
	log.Info("Service running")
	return result
}

// StopWorkspace stops every active session of the named workspace
func (o *Orchestrator) StopWorkspace(ctx context.Context, workspaceName string) ([]ServiceResult, error) {
	sessions, err := o.sessions.List(ctx, workspaceName, "")
	if err != nil {
		return nil, err
	}

	var results []ServiceResult
	for i := range sessions {
		record := &sessions[i]
		if !record.State.Active() {
			continue
		}
		results = append(results, o.stopSession(ctx, record))
	}
	return results, nil
}

func (o *Orchestrator) stopSession(ctx context.Context, record *db.SessionRecord) ServiceResult {
	result := ServiceResult{ServiceName: record.ServiceName, VMIdentity: record.VMIdentity}

	handle, err := o.loadHandle(record)
	if err != nil {
		o.setState(record, types.SessionFailed, err)
		result.State = types.SessionFailed
		result.Err = err
		return result
	}

	o.setState(record, types.SessionStopping, nil)
	if err := o.backend.Stop(ctx, handle); err != nil {
		o.setState(record, types.SessionFailed, err)
		result.State = types.SessionFailed
		result.Err = err
		return result
	}
	o.setState(record, types.SessionStopped, nil)
	result.State = types.SessionStopped
	return result
}

// DeleteWorkspace tears down every session of the named workspace and
// removes their records once the backend confirms deletion.
func (o *Orchestrator) DeleteWorkspace(ctx context.Context, workspaceName string) ([]ServiceResult, error) {
	sessions, err := o.sessions.List(ctx, workspaceName, "")
	if err != nil {
		return nil, err
	}

	var results []ServiceResult
	for i := range sessions {
		record := &sessions[i]
		result := ServiceResult{ServiceName: record.ServiceName, VMIdentity: record.VMIdentity}

		handle, err := o.loadHandle(record)
		if err != nil {
			// No handle means no VM was ever created; drop the record
			o.deleteRecord(record)
			result.State = types.SessionDeleted
			results = append(results, result)
			continue
		}

		o.setState(record, types.SessionDeleting, nil)
		if err := o.backend.Delete(ctx, handle); err != nil {
			o.setState(record, types.SessionFailed, err)
			result.State = types.SessionFailed
			result.Err = err
			results = append(results, result)
			continue
		}
		// Record removal only after backend-confirmed deletion
		o.deleteRecord(record)
		result.State = types.SessionDeleted
		results = append(results, result)
	}
	return results, nil
}

// Attach connects an interactive stream to a running session. Attach is
// modeled apart from create/start so it can block and be cancelled
// without holding up other services.
func (o *Orchestrator) Attach(ctx context.Context, vmIdentity string, opts backend.AttachOptions) error {
	record, err := o.sessions.GetByVMIdentity(ctx, vmIdentity)
	if err != nil {
		return err
	}
	if record.State != types.SessionRunning {
		return errors.InvalidState("session", string(record.State), "attach")
	}
	handle, err := o.loadHandle(record)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.sessions.MarkAttached(context.Background(), record.ID, time.Now().UTC())
	o.mu.Unlock()

	err = o.backend.Attach(ctx, handle, opts)

	o.mu.Lock()
	o.sessions.MarkAttached(context.Background(), record.ID, time.Time{})
	o.mu.Unlock()

	return err
}

// Sessions returns a snapshot of session records, optionally filtered
// by workspace.
func (o *Orchestrator) Sessions(ctx context.Context, workspaceName string) ([]db.SessionRecord, error) {
	return o.sessions.List(ctx, workspaceName, "")
}

// DetectOrphans reports backend VMs that carry the managed-name prefix
// but have no session record. Orphans are warned about for manual
// cleanup, never deleted automatically.
func (o *Orchestrator) DetectOrphans(ctx context.Context) ([]*errors.VortexError, error) {
	known, err := o.backend.List(ctx)
	if err != nil {
		return nil, err
	}

	var orphans []*errors.VortexError
	for _, name := range known {
		if !naming.IsManaged(name) {
			continue
		}
		if _, err := o.sessions.GetByVMIdentity(ctx, name); err != nil {
			if errors.HasCode(err, errors.ErrSessionNotFound) {
				orphan := errors.OrphanDetected(name)
				logger.WithField("vm", name).Warn(orphan.Message)
				orphans = append(orphans, orphan)
				continue
			}
			return nil, err
		}
	}
	return orphans, nil
}

// Reconcile compares stored sessions against the backend's view and
// marks records whose VM has vanished as Failed. A VM that exited on
// its own is a crash, not a requested stop.
func (o *Orchestrator) Reconcile(ctx context.Context) error {
	known, err := o.backend.List(ctx)
	if err != nil {
		return err
	}
	knownSet := make(map[string]bool, len(known))
	for _, name := range known {
		knownSet[name] = true
	}

	sessions, err := o.sessions.List(ctx, "", "")
	if err != nil {
		return err
	}
	for i := range sessions {
		record := &sessions[i]
		if !record.State.Active() || knownSet[record.VMIdentity] {
			continue
		}
		err := fmt.Errorf("vm %s no longer reported by backend", record.VMIdentity)
		o.setState(record, types.SessionFailed, err)
		logger.WithField("vm", record.VMIdentity).Warn("Session VM vanished, marked failed")
	}
	return nil
}

// awaitReady polls the backend until the VM shows up or the readiness
// window closes.
func (o *Orchestrator) awaitReady(ctx context.Context, vmIdentity string) error {
	deadline := time.Now().Add(o.readinessTimeout)
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		known, err := o.backend.List(ctx)
		if err == nil {
			for _, name := range known {
				if name == vmIdentity {
					return nil
				}
			}
		}
		if time.Now().After(deadline) {
			return errors.Timeout("vm readiness for " + vmIdentity)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runHook executes the post-start hook inside the VM; a non-zero exit
// fails the service.
func (o *Orchestrator) runHook(ctx context.Context, handle *backend.VmHandle, hook string) error {
	hookCtx, cancel := context.WithTimeout(ctx, o.hookTimeout)
	defer cancel()

	result, err := o.backend.Exec(hookCtx, handle, []string{"sh", "-c", hook})
	if err != nil {
		if hookCtx.Err() != nil {
			return errors.Timeout("post-start hook for " + handle.Name)
		}
		return err
	}
	if result.ExitCode != 0 {
		return errors.BackendCallFailed("post-start hook", handle.Name,
			fmt.Errorf("exit code %d: %s", result.ExitCode, string(result.Stderr)))
	}
	return nil
}

// cancelled handles a service interrupted mid-create: best-effort
// teardown of whatever the backend may have provisioned.
func (o *Orchestrator) cancelled(record *db.SessionRecord, result ServiceResult) ServiceResult {
	handle, err := o.loadHandle(record)
	if err == nil {
		o.bestEffortStop(record, handle)
	} else {
		o.setState(record, types.SessionStopped, nil)
	}
	result.State = types.SessionStopped
	result.Err = context.Canceled
	return result
}

func (o *Orchestrator) bestEffortStop(record *db.SessionRecord, handle *backend.VmHandle) {
	// Detached context: the caller's is already cancelled
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultBackendCallTimeout)
	defer cancel()

	o.setState(record, types.SessionStopping, nil)
	if err := o.backend.Stop(ctx, handle); err != nil {
		o.setState(record, types.SessionFailed, err)
		return
	}
	o.setState(record, types.SessionStopped, nil)
}

func (o *Orchestrator) createRecord(ctx context.Context, record *db.SessionRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions.Create(ctx, record)
}

func (o *Orchestrator) setState(record *db.SessionRecord, state types.SessionState, cause error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	errText := ""
	if cause != nil {
		errText = cause.Error()
	}
	record.State = state
	if err := o.sessions.UpdateState(context.Background(), record.ID, state, errText); err != nil {
		logger.WithError(err).WithField("session", record.ID).Error("Failed to persist session state")
	}
}

func (o *Orchestrator) deleteRecord(record *db.SessionRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.sessions.Delete(context.Background(), record.ID); err != nil {
		logger.WithError(err).WithField("session", record.ID).Error("Failed to delete session record")
	}
}

func (o *Orchestrator) storeHandle(record *db.SessionRecord, handle *backend.VmHandle) {
	data, err := json.Marshal(handle)
	if err != nil {
		logger.WithError(err).Error("Failed to serialize vm handle")
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.sessions.UpdateHandle(context.Background(), record.ID, string(data)); err != nil {
		logger.WithError(err).WithField("session", record.ID).Error("Failed to persist vm handle")
	}
	record.Handle.String = string(data)
	record.Handle.Valid = true
}

func (o *Orchestrator) loadHandle(record *db.SessionRecord) (*backend.VmHandle, error) {
	if !record.Handle.Valid || record.Handle.String == "" {
		return nil, errors.SessionNotFound(record.VMIdentity)
	}
	var handle backend.VmHandle
	if err := json.Unmarshal([]byte(record.Handle.String), &handle); err != nil {
		return nil, fmt.Errorf("corrupt vm handle for %s: %w", record.VMIdentity, err)
	}
	return &handle, nil
}

func (o *Orchestrator) createConfig(vmIdentity string, svc workspace.ServiceSpec) backend.CreateConfig {
	memory := svc.MemoryMiB
	if memory == 0 {
		memory = o.defaultMemoryMiB
	}
	cpus := svc.CPUs
	if cpus == 0 {
		cpus = o.defaultCPUs
	}
	return backend.CreateConfig{
		Name:      vmIdentity,
		Image:     svc.Image,
		MemoryMiB: memory,
		CPUs:      cpus,
		Ports:     svc.Ports,
		Volumes:   svc.Volumes,
		Command:   svc.Command,
		Env:       svc.Env,
	}
}

// groupByTier buckets services by start tier, ordered lowest first.
// Within a tier the spec order is preserved.
func groupByTier(services []workspace.ServiceSpec) [][]workspace.ServiceSpec {
	buckets := map[int][]workspace.ServiceSpec{}
	for _, svc := range services {
		tier := svc.ServiceType.StartTier()
		buckets[tier] = append(buckets[tier], svc)
	}

	tiers := make([]int, 0, len(buckets))
	for tier := range buckets {
		tiers = append(tiers, tier)
	}
	sort.Ints(tiers)

	out := make([][]workspace.ServiceSpec, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, buckets[tier])
	}
	return out
}
