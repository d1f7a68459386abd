package workspace

import (
	"path/filepath"
	"sort"
	"strings"

	"vortex/internal/errors"
	"vortex/internal/types"
)

// Template is a ready-made single-service development environment. Unlike
// scanned or imported workspaces a template carries no source topology;
// the project directory is simply mounted at the template's workdir.
type Template struct {
	Name        string
	Description string
	Language    types.Language
	Image       string
	Workdir     string
	Env         map[string]string
	Ports       []types.PortMapping

	// SetupCommands run inside the VM once it is running, joined into
	// the service's post-start hook.
	SetupCommands []string
}

var builtinTemplates = map[string]Template{
	"python": {
		Name:        "python",
		Description: "Python environment with pip, virtualenv, and debugging tools",
		Language:    types.LanguagePython,
		Image:       "python:3.11-slim",
		Workdir:     "/workspace",
		Env: map[string]string{
			"PYTHONPATH":              "/workspace",
			"PIP_CACHE_DIR":           "/cache/pip",
			"PYTHONDONTWRITEBYTECODE": "1",
		},
		Ports: []types.PortMapping{{Host: 8000, Guest: 8000}, {Host: 8888, Guest: 8888}},
		SetupCommands: []string{
			"pip install --upgrade pip setuptools wheel",
			"pip install pytest black flake8 mypy ipython",
		},
	},
	"node": {
		Name:        "node",
		Description: "Node.js environment with npm, yarn, and development tools",
		Language:    types.LanguageNode,
		Image:       "node:18-slim",
		Workdir:     "/app",
		Env: map[string]string{
			"NODE_ENV":         "development",
			"NPM_CONFIG_CACHE": "/cache/npm",
		},
		Ports: []types.PortMapping{{Host: 3000, Guest: 3000}, {Host: 9229, Guest: 9229}},
		SetupCommands: []string{
			"npm install -g yarn typescript ts-node nodemon",
		},
	},
	"rust": {
		Name:        "rust",
		Description: "Rust environment with cargo, clippy, and rustfmt",
		Language:    types.LanguageRust,
		Image:       "rust:1.75-slim",
		Workdir:     "/workspace",
		Env: map[string]string{
			"CARGO_HOME":  "/cache/cargo",
			"RUSTUP_HOME": "/cache/rustup",
		},
		Ports: []types.PortMapping{{Host: 8000, Guest: 8000}},
		SetupCommands: []string{
			"rustup component add clippy rustfmt",
		},
	},
	"go": {
		Name:        "go",
		Description: "Go environment with modules and delve",
		Language:    types.LanguageGo,
		Image:       "golang:1.21-alpine",
		Workdir:     "/workspace",
		Env: map[string]string{
			"GO111MODULE": "on",
			"GOCACHE":     "/cache/go",
			"GOMODCACHE":  "/cache/gomod",
		},
		Ports: []types.PortMapping{{Host: 8080, Guest: 8080}, {Host: 2345, Guest: 2345}},
		SetupCommands: []string{
			"go install github.com/go-delve/delve/cmd/dlv@latest",
		},
	},
	"ai": {
		Name:        "ai",
		Description: "Python ML environment with PyTorch and Jupyter",
		Language:    types.LanguagePython,
		Image:       "python:3.11-slim",
		Workdir:     "/workspace",
		Env: map[string]string{
			"PYTHONPATH":         "/workspace",
			"JUPYTER_ENABLE_LAB": "yes",
		},
		Ports: []types.PortMapping{{Host: 8888, Guest: 8888}, {Host: 6006, Guest: 6006}},
		SetupCommands: []string{
			"pip install --upgrade pip",
			"pip install torch jupyter pandas numpy scikit-learn",
		},
	},
}

// Templates returns the built-in template catalog, sorted by name
func Templates() []Template {
	out := make([]Template, 0, len(builtinTemplates))
	for _, tpl := range builtinTemplates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupTemplate returns the named built-in template
func LookupTemplate(name string) (*Template, error) {
	tpl, ok := builtinTemplates[name]
	if !ok {
		return nil, errors.TemplateNotFound(name)
	}
	return &tpl, nil
}

// FromTemplate builds a single-service workspace spec from a built-in
// template. The project directory is mounted at the template's workdir;
// the workspace name defaults to the directory name.
func FromTemplate(templateName, workspaceName, projectPath string) (*WorkspaceSpec, error) {
	tpl, err := LookupTemplate(templateName)
	if err != nil {
		return nil, err
	}

	if workspaceName == "" {
		workspaceName = filepath.Base(projectPath)
	}

	svc := ServiceSpec{
		Name:          tpl.Name,
		ServiceType:   types.ServiceTypeUnknown,
		Language:      tpl.Language,
		Image:         tpl.Image,
		Ports:         append([]types.PortMapping(nil), tpl.Ports...),
		SourcePath:    projectPath,
		Env:           tpl.Env,
		PostStartHook: strings.Join(tpl.SetupCommands, " && "),
		Volumes: []types.VolumeMount{
			{HostPath: projectPath, GuestPath: tpl.Workdir},
		},
	}

	spec := &WorkspaceSpec{
		Name:        workspaceName,
		Description: "From template " + tpl.Name,
		BackendKind: types.BackendKrunVm,
		Origin:      types.OriginTemplate,
		Services:    []ServiceSpec{svc},
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}
