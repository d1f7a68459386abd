// Package workspace defines the canonical workspace description and the
// compiler that turns a discovered project topology into one.
package workspace

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vortex/internal/constants"
	"vortex/internal/errors"
	"vortex/internal/types"
)

// ConfigFileName is the workspace configuration file written into a project
const ConfigFileName = "vortex.toml"

// ServiceSpec describes one deployable unit: a single VM within a workspace
type ServiceSpec struct {
	Name        string              `toml:"name" json:"name"`
	ServiceType types.ServiceType   `toml:"service_type" json:"service_type"`
	Language    types.Language      `toml:"language" json:"language"`
	Image       string              `toml:"image" json:"image"`
	Ports       []types.PortMapping `toml:"ports,omitempty" json:"ports,omitempty"`
	Volumes     []types.VolumeMount `toml:"volumes,omitempty" json:"volumes,omitempty"`
	SourcePath  string              `toml:"source_path,omitempty" json:"source_path,omitempty"`
	Command     string              `toml:"command,omitempty" json:"command,omitempty"`
	Env         map[string]string   `toml:"env,omitempty" json:"env,omitempty"`

	// PostStartHook is run inside the VM after it reaches Running. Imported
	// descriptors carry their postCreateCommand here verbatim.
	PostStartHook string `toml:"post_start_hook,omitempty" json:"post_start_hook,omitempty"`

	MemoryMiB int `toml:"memory_mib,omitempty" json:"memory_mib,omitempty"`
	CPUs      int `toml:"cpus,omitempty" json:"cpus,omitempty"`
}

// WorkspaceSpec is the canonical, serializable workspace description
type WorkspaceSpec struct {
	Name        string            `toml:"name" json:"name"`
	Description string            `toml:"description,omitempty" json:"description,omitempty"`
	BackendKind types.BackendKind `toml:"backend_kind" json:"backend_kind"`
	Origin      types.Origin      `toml:"origin" json:"origin"`
	CreatedAt   time.Time         `toml:"created_at,omitempty" json:"created_at,omitempty"`
	Services    []ServiceSpec     `toml:"services" json:"services"`

	// EditorCustomizations holds imported editor metadata verbatim (raw JSON)
	// so a workspace can be exported back to its source descriptor without
	// loss. Never interpreted.
	EditorCustomizations string `toml:"editor_customizations,omitempty" json:"editor_customizations,omitempty"`
}

// Service returns the service with the given name, or nil
func (w *WorkspaceSpec) Service(name string) *ServiceSpec {
	for i := range w.Services {
		if w.Services[i].Name == name {
			return &w.Services[i]
		}
	}
	return nil
}

// Validate checks the invariants every persisted workspace must hold:
// a non-empty service list, unique service names, unique host ports across
// services, and ports within the valid range.
func (w *WorkspaceSpec) Validate() error {
	if w.Name == "" {
		return errors.ValidationFailed("name", "", "workspace name is required")
	}
	if len(w.Services) == 0 {
		return errors.ValidationFailed("services", "", "workspace has no services")
	}

	switch w.BackendKind {
	case types.BackendKrunVm, types.BackendFirecracker, types.BackendNone:
	default:
		return errors.ValidationFailed("backend_kind", string(w.BackendKind), "unknown backend")
	}

	names := make(map[string]bool, len(w.Services))
	hostPorts := make(map[int]string)
	for _, svc := range w.Services {
		if svc.Name == "" {
			return errors.ValidationFailed("service.name", "", "service name is required")
		}
		if names[svc.Name] {
			return errors.ValidationFailed("service.name", svc.Name, "duplicate service name")
		}
		names[svc.Name] = true

		if svc.Image == "" {
			return errors.ValidationFailed("service.image", svc.Name, "service image is required")
		}

		for _, p := range svc.Ports {
			if p.Host < constants.MinPortNumber || p.Host > constants.MaxPortNumber {
				return errors.InvalidPort(p.Host, "host port outside valid range")
			}
			if p.Guest < constants.MinPortNumber || p.Guest > constants.MaxPortNumber {
				return errors.InvalidPort(p.Guest, "guest port outside valid range")
			}
			if owner, taken := hostPorts[p.Host]; taken {
				return errors.ValidationFailed("service.ports", svc.Name,
					"host port "+p.String()+" already claimed by service "+owner)
			}
			hostPorts[p.Host] = svc.Name
		}
	}
	return nil
}

// Save serializes the spec as TOML at path. CreatedAt is stamped on first save
// so compilation itself stays deterministic.
func (w *WorkspaceSpec) Save(path string) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	data, err := toml.Marshal(w)
	if err != nil {
		return errors.Wrap(errors.ErrConfigInvalid, "failed to marshal workspace spec", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.Wrap(errors.ErrFileWrite, "failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.Wrap(errors.ErrFileWrite, "failed to write workspace spec", err)
	}
	return nil
}

// Marshal renders the spec as TOML without touching the filesystem. Used by
// the config-only mode, where output must be byte-identical across runs.
func (w *WorkspaceSpec) Marshal() ([]byte, error) {
	data, err := toml.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "failed to marshal workspace spec", err)
	}
	return data, nil
}

// Load reads and re-validates a workspace spec; hand-edited files go through
// the same invariant checks as freshly compiled ones.
func Load(path string) (*WorkspaceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(errors.ErrFileRead, "failed to read workspace spec", err)
	}

	var spec WorkspaceSpec
	if err := toml.Unmarshal(data, &spec); err != nil {
		return nil, errors.ConfigParseError(err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Find walks up from dir looking for a workspace config file
func Find(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.InvalidPath(dir, err.Error())
	}
	for {
		candidate := filepath.Join(current, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", errors.ConfigNotFound(filepath.Join(dir, ConfigFileName))
		}
		current = parent
	}
}
