package devcontainer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vortex/internal/errors"
)

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devcontainer.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseDescriptorToleratesComments(t *testing.T) {
	path := writeDescriptor(t, `{
		// the base image
		"name": "demo",
		"image": "node:18", /* pinned */
		"forwardPorts": [3000,],
	}`)

	d, err := ParseDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", d.Name)
	assert.Equal(t, "node:18", d.Image)
	assert.Equal(t, []PortForward{{Guest: 3000}}, d.ForwardPorts)
}

func TestParseDescriptorForwardPortForms(t *testing.T) {
	path := writeDescriptor(t, `{
		"image": "x",
		"forwardPorts": [3000, "8080:80", "9000"]
	}`)

	d, err := ParseDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, []PortForward{{Guest: 3000}, {Host: 8080, Guest: 80}, {Guest: 9000}}, d.ForwardPorts)
}

func TestParseDescriptorCommandForms(t *testing.T) {
	path := writeDescriptor(t, `{
		"image": "x",
		"postCreateCommand": ["npm", "install"],
		"postStartCommand": "npm start"
	}`)

	d, err := ParseDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "npm install", d.PostCreateCommand)
	assert.Equal(t, "npm start", d.PostStartCommand)
}

func TestParseDescriptorComposeFileForms(t *testing.T) {
	path := writeDescriptor(t, `{"dockerComposeFile": ["docker-compose.yml", "override.yml"]}`)
	d, err := ParseDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "docker-compose.yml", d.DockerComposeFile)

	path = writeDescriptor(t, `{"dockerComposeFile": "compose.yaml"}`)
	d, err = ParseDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "compose.yaml", d.DockerComposeFile)
}

func TestParseDescriptorPreservesUnknownFields(t *testing.T) {
	path := writeDescriptor(t, `{
		"image": "x",
		"features": {"ghcr.io/devcontainers/features/go:1": {}},
		"customizations": {"vscode": {"extensions": ["golang.go"]}}
	}`)

	d, err := ParseDescriptor(path)
	require.NoError(t, err)
	assert.Contains(t, d.Unknown, "features")
	assert.JSONEq(t, `{"vscode": {"extensions": ["golang.go"]}}`, string(d.Customizations))
}

func TestParseDescriptorPortsAttributes(t *testing.T) {
	path := writeDescriptor(t, `{
		"image": "x",
		"forwardPorts": [5432],
		"portsAttributes": {"5432": {"label": "db", "hostPort": 15432}}
	}`)

	d, err := ParseDescriptor(path)
	require.NoError(t, err)
	require.Contains(t, d.PortsAttributes, "5432")
	assert.Equal(t, 15432, d.PortsAttributes["5432"].HostPort)
	assert.Equal(t, "db", d.PortsAttributes["5432"].Label)
}

func TestParseDescriptorMissingFile(t *testing.T) {
	_, err := ParseDescriptor(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrConfigNotFound))
}

func TestParseDescriptorInvalidJSON(t *testing.T) {
	path := writeDescriptor(t, `{"name": `)
	_, err := ParseDescriptor(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrImportIncomplete))
}

func TestParseMount(t *testing.T) {
	vm, ok := ParseMount("source=/var/data,target=/data,type=bind")
	require.True(t, ok)
	assert.Equal(t, "/var/data", vm.HostPath)
	assert.Equal(t, "/data", vm.GuestPath)

	vm, ok = ParseMount("src=/a,dst=/b")
	require.True(t, ok)
	assert.Equal(t, "/a", vm.HostPath)
	assert.Equal(t, "/b", vm.GuestPath)

	_, ok = ParseMount("type=volume,target=/data")
	assert.False(t, ok)

	_, ok = ParseMount("nonsense")
	assert.False(t, ok)
}
