package devcontainer

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"vortex/internal/constants"
	"vortex/internal/discovery"
	"vortex/internal/errors"
	"vortex/internal/logger"
	"vortex/internal/naming"
	"vortex/internal/storage"
	"vortex/internal/types"
	"vortex/internal/workspace"
)

// Importer turns an external descriptor plus its project files into a
// workspace backed by persistent storage.
type Importer struct {
	storage *storage.Manager
}

// NewImporter creates an importer writing into the given storage manager
func NewImporter(st *storage.Manager) *Importer {
	return &Importer{storage: st}
}

// Result pairs the imported spec with where its files now live
type Result struct {
	Spec        *workspace.WorkspaceSpec
	WorkspaceID string
	StoragePath string
	Copied      storage.CopyStats
}

// Import normalizes a descriptor into a workspace spec and copies the source
// project into workspace storage. The copy is verified before the spec is
// considered valid; a partial copy fails the whole import.
func (i *Importer) Import(ctx context.Context, descriptorPath, sourceProjectPath string) (*Result, error) {
	descriptor, err := ParseDescriptor(descriptorPath)
	if err != nil {
		return nil, err
	}

	workspaceID := uuid.NewString()
	storagePath := i.storage.WorkspaceDir(workspaceID)

	spec, err := i.buildSpec(descriptor, descriptorPath, sourceProjectPath, storagePath)
	if err != nil {
		return nil, err
	}

	copyCtx, cancel := context.WithTimeout(ctx, constants.DefaultCopyTimeout)
	defer cancel()
	copied, err := i.storage.CopyIn(copyCtx, workspaceID, sourceProjectPath)
	if err != nil {
		return nil, err
	}

	if err := spec.Validate(); err != nil {
		i.storage.Delete(workspaceID)
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"workspace": spec.Name,
		"services":  len(spec.Services),
		"origin":    "devcontainer",
	}).Info("Descriptor imported")

	return &Result{
		Spec:        spec,
		WorkspaceID: workspaceID,
		StoragePath: storagePath,
		Copied:      copied,
	}, nil
}

func (i *Importer) buildSpec(d *Descriptor, descriptorPath, sourceProjectPath, storagePath string) (*workspace.WorkspaceSpec, error) {
	name := d.Name
	if name == "" {
		name = filepath.Base(sourceProjectPath)
	}

	spec := &workspace.WorkspaceSpec{
		Name:        name,
		Description: "Imported from " + descriptorPath,
		BackendKind: types.BackendKrunVm,
		Origin:      types.OriginImported,
	}
	if len(d.Customizations) > 0 {
		spec.EditorCustomizations = string(d.Customizations)
	}

	if d.DockerComposeFile != "" {
		services, err := i.composeServices(d, descriptorPath, storagePath)
		if err != nil {
			return nil, err
		}
		spec.Services = services
		return spec, nil
	}

	if d.Image == "" {
		return nil, errors.ImportIncomplete("descriptor has neither image nor dockerComposeFile")
	}

	svc := workspace.ServiceSpec{
		Name:          name,
		ServiceType:   types.ServiceTypeUnknown,
		Language:      types.LanguageUnknown,
		Image:         d.Image,
		Env:           d.ContainerEnv,
		PostStartHook: joinHooks(d.PostCreateCommand, d.PostStartCommand),
	}

	// workspaceFolder wins; otherwise remoteUser anchors the tree under
	// that user's home, matching where editors expect to land.
	workdir := d.WorkspaceFolder
	if workdir == "" && d.RemoteUser != "" {
		workdir = "/home/" + d.RemoteUser + "/" + name
	}
	if workdir == "" {
		workdir = workspace.GuestWorkdir
	}
	svc.Volumes = append(svc.Volumes, types.VolumeMount{HostPath: storagePath, GuestPath: workdir})
	for _, mount := range d.Mounts {
		if vm, ok := ParseMount(mount); ok {
			svc.Volumes = append(svc.Volumes, vm)
		}
	}

	// forwardPorts map host == guest unless the entry itself declared a
	// host side; a portsAttributes hostPort overrides both. Order is
	// preserved exactly as declared.
	for _, pf := range d.ForwardPorts {
		host := pf.Guest
		if pf.Host != 0 {
			host = pf.Host
		}
		if attrs, ok := d.PortsAttributes[strconv.Itoa(pf.Guest)]; ok && attrs.HostPort != 0 {
			host = attrs.HostPort
		}
		svc.Ports = append(svc.Ports, types.PortMapping{Host: host, Guest: pf.Guest})
	}

	spec.Services = []workspace.ServiceSpec{svc}
	return spec, nil
}

// composeServices expands a dockerComposeFile reference into one service per
// compose entry, with host-port collisions resolved the same way compilation
// resolves them.
func (i *Importer) composeServices(d *Descriptor, descriptorPath, storagePath string) ([]workspace.ServiceSpec, error) {
	composePath := d.DockerComposeFile
	if !filepath.IsAbs(composePath) {
		composePath = filepath.Join(filepath.Dir(descriptorPath), composePath)
	}

	names, services, err := parseComposeFile(composePath)
	if err != nil {
		return nil, err
	}

	allocator := naming.NewPortAllocator()
	specs := make([]workspace.ServiceSpec, 0, len(names))
	for _, svcName := range names {
		cs := services[svcName]
		st := discovery.DetectServiceType(svcName)

		svc := workspace.ServiceSpec{
			Name:        svcName,
			ServiceType: st,
			Language:    types.LanguageUnknown,
			Image:       cs.Image,
			Env:         map[string]string(cs.Environment),
			Volumes:     []types.VolumeMount{{HostPath: storagePath, GuestPath: workspace.GuestWorkdir}},
		}
		if svc.Image == "" {
			svc.Image = naming.DefaultImage(types.LanguageUnknown, st)
		}
		if len(cs.Command) > 0 {
			svc.Command = joinCommand(cs.Command)
		}

		for _, portStr := range cs.Ports {
			pm, err := types.ParsePortMapping(trimProtocol(portStr))
			if err != nil {
				return nil, errors.ImportIncomplete("compose service " + svcName + ": " + err.Error())
			}
			host, err := allocator.Claim(svcName, pm.Host)
			if err != nil {
				return nil, err
			}
			svc.Ports = append(svc.Ports, types.PortMapping{Host: host, Guest: pm.Guest})
		}
		specs = append(specs, svc)
	}
	return specs, nil
}

// joinHooks chains postCreateCommand and postStartCommand into the single
// post-start hook, in descriptor order.
func joinHooks(create, start string) string {
	switch {
	case create == "":
		return start
	case start == "":
		return create
	default:
		return create + " && " + start
	}
}

func joinCommand(argv []string) string {
	out := ""
	for idx, a := range argv {
		if idx > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func trimProtocol(port string) string {
	if idx := len(port) - len("/tcp"); idx > 0 && (port[idx:] == "/tcp" || port[idx:] == "/udp") {
		return port[:idx]
	}
	return port
}
