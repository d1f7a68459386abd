// Package operations provides the use-case layer shared by the CLI and
// the daemon API. Each operation maps onto one configuration-model or
// lifecycle action.
package operations

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"vortex/internal/db"
	"vortex/internal/devcontainer"
	"vortex/internal/discovery"
	"vortex/internal/errors"
	"vortex/internal/logger"
	"vortex/internal/orchestrator"
	"vortex/internal/storage"
	"vortex/internal/types"
	"vortex/internal/workspace"
)

// WorkspaceOperations provides shared backend functions for workspace
// management
type WorkspaceOperations struct {
	workspaces *db.WorkspaceRepository
	storage    *storage.Manager
	orch       *orchestrator.Orchestrator
}

// NewWorkspaceOperations creates a new WorkspaceOperations instance
func NewWorkspaceOperations(workspaces *db.WorkspaceRepository, st *storage.Manager, orch *orchestrator.Orchestrator) *WorkspaceOperations {
	return &WorkspaceOperations{
		workspaces: workspaces,
		storage:    st,
		orch:       orch,
	}
}

// InitWorkspaceRequest contains parameters for initializing a workspace
// from a project tree
type InitWorkspaceRequest struct {
	// Path is the project root to scan; defaults to the current directory
	Path string
	// Name overrides the detected workspace name
	Name string
	// Template selects a built-in environment template instead of
	// scanning the project tree
	Template string
	// Backend selects the hypervisor backend
	Backend types.BackendKind
	// ServiceNames maps discovered relative paths to explicit names
	ServiceNames map[string]string
	// ServicePorts pins explicit port mappings per service name
	ServicePorts map[string][]types.PortMapping
	// ConfigOnly skips registration and only renders the config file
	ConfigOnly bool
}

// InitWorkspace compiles a workspace spec, writes it next to the project
// root, and registers the workspace. The spec comes from scanning the
// project tree, or from a built-in template when one is named.
func (wo *WorkspaceOperations) InitWorkspace(ctx context.Context, req InitWorkspaceRequest) (*workspace.WorkspaceSpec, error) {
	root := req.Path
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(errors.ErrFileSystem, "failed to get current directory", err)
		}
		root = cwd
	}

	var spec *workspace.WorkspaceSpec
	if req.Template != "" {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.Wrap(errors.ErrFileSystem, "failed to resolve project path", err)
		}
		root = absRoot
		tplSpec, err := workspace.FromTemplate(req.Template, req.Name, root)
		if err != nil {
			return nil, err
		}
		if req.Backend != "" {
			tplSpec.BackendKind = req.Backend
			if err := tplSpec.Validate(); err != nil {
				return nil, err
			}
		}
		spec = tplSpec
	} else {
		scanner := discovery.NewScanner(0)
		project, err := scanner.Scan(root)
		if err != nil {
			return nil, err
		}
		spec, err = workspace.Compile(project, workspace.Overrides{
			Name:         req.Name,
			Backend:      req.Backend,
			ServiceNames: req.ServiceNames,
			ServicePorts: req.ServicePorts,
		})
		if err != nil {
			return nil, err
		}
		root = project.RootPath
	}

	configPath := filepath.Join(root, workspace.ConfigFileName)
	if err := spec.Save(configPath); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"workspace": spec.Name,
		"services":  len(spec.Services),
		"config":    configPath,
	}).Info("Workspace initialized")

	if req.ConfigOnly {
		return spec, nil
	}

	record := &db.WorkspaceRecord{
		ID:          uuid.NewString(),
		Name:        spec.Name,
		ConfigPath:  configPath,
		BackendKind: spec.BackendKind,
		Origin:      spec.Origin,
	}
	if err := wo.workspaces.Create(ctx, record); err != nil {
		return nil, err
	}
	return spec, nil
}

// ImportWorkspaceRequest contains parameters for importing a
// devcontainer-based project
type ImportWorkspaceRequest struct {
	// DescriptorPath points at a devcontainer.json document
	DescriptorPath string
	// ProjectPath is the source tree to copy into workspace storage
	ProjectPath string
}

// ImportWorkspace converts a descriptor into a workspace spec, copies
// the project into managed storage, and registers the workspace.
func (wo *WorkspaceOperations) ImportWorkspace(ctx context.Context, req ImportWorkspaceRequest) (*workspace.WorkspaceSpec, error) {
	importer := devcontainer.NewImporter(wo.storage)
	result, err := importer.Import(ctx, req.DescriptorPath, req.ProjectPath)
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(result.StoragePath, workspace.ConfigFileName)
	if err := result.Spec.Save(configPath); err != nil {
		wo.storage.Delete(result.WorkspaceID)
		return nil, err
	}

	record := &db.WorkspaceRecord{
		ID:          result.WorkspaceID,
		Name:        result.Spec.Name,
		ConfigPath:  configPath,
		StoragePath: result.StoragePath,
		BackendKind: result.Spec.BackendKind,
		Origin:      result.Spec.Origin,
	}
	if err := wo.workspaces.Create(ctx, record); err != nil {
		wo.storage.Delete(result.WorkspaceID)
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"workspace": result.Spec.Name,
		"files":     result.Copied.Files,
		"bytes":     result.Copied.Bytes,
	}).Info("Workspace imported")

	return result.Spec, nil
}

// StartWorkspace loads the named workspace's spec and starts its
// services in dependency order.
func (wo *WorkspaceOperations) StartWorkspace(ctx context.Context, name string) ([]orchestrator.ServiceResult, error) {
	spec, _, err := wo.loadSpec(ctx, name)
	if err != nil {
		return nil, err
	}
	return wo.orch.StartWorkspace(ctx, spec)
}

// StopWorkspace stops all active sessions of the named workspace
func (wo *WorkspaceOperations) StopWorkspace(ctx context.Context, name string) ([]orchestrator.ServiceResult, error) {
	if _, err := wo.workspaces.GetByName(ctx, name); err != nil {
		return nil, err
	}
	return wo.orch.StopWorkspace(ctx, name)
}

// DeleteWorkspace tears down the workspace's sessions, then removes its
// storage and registration. Session records disappear only after the
// backend confirms each deletion.
func (wo *WorkspaceOperations) DeleteWorkspace(ctx context.Context, name string) ([]orchestrator.ServiceResult, error) {
	record, err := wo.workspaces.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	results, err := wo.orch.DeleteWorkspace(ctx, name)
	if err != nil {
		return results, err
	}
	for _, res := range results {
		if res.Err != nil {
			// Leave storage and registration for inspection
			return results, res.Err
		}
	}

	if record.StoragePath != "" {
		if err := wo.storage.Delete(record.ID); err != nil {
			logger.WithError(err).WithField("workspace", name).Warn("Failed to remove workspace storage")
		}
	}
	if err := wo.workspaces.Delete(ctx, record.ID); err != nil {
		return results, err
	}

	logger.WithField("workspace", name).Info("Workspace deleted")
	return results, nil
}

// ListWorkspaces returns all registered workspaces
func (wo *WorkspaceOperations) ListWorkspaces(ctx context.Context) ([]db.WorkspaceRecord, error) {
	return wo.workspaces.List(ctx)
}

// ResolveName maps an empty name to the workspace whose config file
// governs the current directory.
func (wo *WorkspaceOperations) ResolveName(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(errors.ErrFileSystem, "failed to get current directory", err)
	}
	configPath, err := workspace.Find(cwd)
	if err != nil {
		return "", err
	}
	spec, err := workspace.Load(configPath)
	if err != nil {
		return "", err
	}
	return spec.Name, nil
}

func (wo *WorkspaceOperations) loadSpec(ctx context.Context, name string) (*workspace.WorkspaceSpec, *db.WorkspaceRecord, error) {
	record, err := wo.workspaces.GetByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	spec, err := workspace.Load(record.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	return spec, record, nil
}
