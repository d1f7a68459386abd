package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vortex/internal/errors"
	"vortex/internal/types"
)

func validSpec() *WorkspaceSpec {
	return &WorkspaceSpec{
		Name:        "demo",
		BackendKind: types.BackendKrunVm,
		Origin:      types.OriginScanned,
		Services: []ServiceSpec{
			{
				Name:  "api",
				Image: "golang:1.21-alpine",
				Ports: []types.PortMapping{{Host: 8080, Guest: 8080}},
			},
			{
				Name:  "web",
				Image: "node:18-alpine",
				Ports: []types.PortMapping{{Host: 3000, Guest: 3000}},
			},
		},
	}
}

func TestValidateAcceptsWellFormedSpec(t *testing.T) {
	require.NoError(t, validSpec().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*WorkspaceSpec)
	}{
		{"missing name", func(s *WorkspaceSpec) { s.Name = "" }},
		{"no services", func(s *WorkspaceSpec) { s.Services = nil }},
		{"unknown backend", func(s *WorkspaceSpec) { s.BackendKind = "qemu" }},
		{"empty service name", func(s *WorkspaceSpec) { s.Services[0].Name = "" }},
		{"duplicate service name", func(s *WorkspaceSpec) { s.Services[1].Name = "api" }},
		{"missing image", func(s *WorkspaceSpec) { s.Services[0].Image = "" }},
		{"duplicate host port", func(s *WorkspaceSpec) { s.Services[1].Ports[0].Host = 8080 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(spec)
			err := spec.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrValidationFailed))
		})
	}
}

func TestValidatePortRange(t *testing.T) {
	spec := validSpec()
	spec.Services[0].Ports[0].Host = 0
	err := spec.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidPort))

	spec = validSpec()
	spec.Services[0].Ports[0].Guest = 70000
	err = spec.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidPort))
}

func TestSaveStampsCreatedAtOnce(t *testing.T) {
	spec := validSpec()
	path := filepath.Join(t.TempDir(), ConfigFileName)

	require.True(t, spec.CreatedAt.IsZero())
	require.NoError(t, spec.Save(path))
	stamped := spec.CreatedAt
	require.False(t, stamped.IsZero())

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, spec.Save(path))
	assert.Equal(t, stamped, spec.CreatedAt)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	spec := validSpec()
	spec.Services[0].Env = map[string]string{"DEBUG": "1"}
	spec.Services[0].PostStartHook = "make setup"
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, spec.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, spec.Name, loaded.Name)
	require.Len(t, loaded.Services, 2)
	assert.Equal(t, "make setup", loaded.Services[0].PostStartHook)
	assert.Equal(t, map[string]string{"DEBUG": "1"}, loaded.Services[0].Env)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), ConfigFileName))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrConfigNotFound))
}

func TestLoadRevalidates(t *testing.T) {
	// A hand-edited file with a duplicate service name fails on load even
	// though it is syntactically valid TOML.
	spec := validSpec()
	spec.Services[1].Name = "api"
	data, err := spec.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrValidationFailed))
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("name = [unclosed"), 0644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, validSpec().Save(filepath.Join(root, ConfigFileName)))

	found, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ConfigFileName), found)
}

func TestFindNotFound(t *testing.T) {
	_, err := Find(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrConfigNotFound))
}
