package workspace

import (
	"fmt"
	"path/filepath"

	"vortex/internal/discovery"
	"vortex/internal/errors"
	"vortex/internal/naming"
	"vortex/internal/types"
)

// GuestWorkdir is where a service's source tree is mounted inside its VM
const GuestWorkdir = "/workspace"

// Overrides carries user-supplied values that always win over discovery
type Overrides struct {
	// Name replaces the derived workspace name
	Name string
	// Backend selects the hypervisor backend; empty means krunvm
	Backend types.BackendKind
	// ServiceNames maps a discovered relative path to an explicit service name
	ServiceNames map[string]string
	// ServicePorts maps a service name to explicit port pairs
	ServicePorts map[string][]types.PortMapping
}

// Compile turns a discovered topology into a validated workspace spec.
//
// Compilation is deterministic: the same project and overrides always produce
// byte-identical output. Host-port collisions between services are resolved by
// incrementing until free; an unresolvable collision or duplicate name is a
// validation error, never a silent drop.
func Compile(project *discovery.Project, overrides Overrides) (*WorkspaceSpec, error) {
	if project == nil || len(project.Entries) == 0 {
		return nil, errors.ValidationFailed("project", "", "nothing discovered to compile")
	}

	name := project.Name
	if overrides.Name != "" {
		name = overrides.Name
	}
	backend := overrides.Backend
	if backend == "" {
		backend = types.BackendKrunVm
	}

	spec := &WorkspaceSpec{
		Name:        name,
		Description: describe(project),
		BackendKind: backend,
		Origin:      types.OriginScanned,
	}

	allocator := naming.NewPortAllocator()
	seen := make(map[string]bool)

	for _, entry := range project.Entries {
		svcName := serviceName(project, entry, overrides)
		if seen[svcName] {
			// An override colliding with a discovered name is an error, not a
			// silent overwrite.
			return nil, errors.ValidationFailed("service.name", svcName, "duplicate service name")
		}
		seen[svcName] = true

		svc := ServiceSpec{
			Name:        svcName,
			ServiceType: entry.ServiceType,
			Language:    entry.Language,
			Image:       naming.DefaultImage(entry.Language, entry.ServiceType),
			SourcePath:  entry.RelPath,
			Volumes: []types.VolumeMount{
				{HostPath: hostSourcePath(project, entry), GuestPath: GuestWorkdir},
			},
		}

		ports, err := resolvePorts(allocator, svcName, entry, overrides)
		if err != nil {
			return nil, err
		}
		svc.Ports = ports

		spec.Services = append(spec.Services, svc)
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// resolvePorts applies explicit overrides first (they always win) and falls
// back to the (language, service type) default table, shifting the host side
// on collision.
func resolvePorts(allocator *naming.PortAllocator, svcName string, entry discovery.Entry, overrides Overrides) ([]types.PortMapping, error) {
	if explicit, ok := overrides.ServicePorts[svcName]; ok {
		resolved := make([]types.PortMapping, 0, len(explicit))
		for _, p := range explicit {
			if allocator.Claimed(p.Host) {
				// Explicit ports are never rewritten behind the user's back.
				return nil, errors.ValidationFailed("service.ports", svcName,
					fmt.Sprintf("host port %d already claimed", p.Host))
			}
			host, err := allocator.Claim(svcName, p.Host)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, types.PortMapping{Host: host, Guest: p.Guest})
		}
		return resolved, nil
	}

	guess := naming.DefaultPort(entry.Language, entry.ServiceType)
	if guess == 0 {
		return nil, nil
	}
	host, err := allocator.Claim(svcName, guess)
	if err != nil {
		return nil, err
	}
	return []types.PortMapping{{Host: host, Guest: guess}}, nil
}

func serviceName(project *discovery.Project, entry discovery.Entry, overrides Overrides) string {
	if name, ok := overrides.ServiceNames[entry.RelPath]; ok && name != "" {
		return name
	}
	if entry.RelPath == "." {
		return project.Name
	}
	return filepath.Base(entry.RelPath)
}

func hostSourcePath(project *discovery.Project, entry discovery.Entry) string {
	if entry.RelPath == "." {
		return project.RootPath
	}
	return filepath.Join(project.RootPath, entry.RelPath)
}

func describe(project *discovery.Project) string {
	desc := "Scanned from " + project.RootPath
	if project.GitBranch != "" {
		desc += " (branch " + project.GitBranch + ")"
	}
	if project.GitRemote != "" {
		desc += " [" + project.GitRemote + "]"
	}
	return desc
}
