package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vortex/internal/types"
)

func TestParsePortFlags(t *testing.T) {
	out, err := parsePortFlags([]string{"api=8080:80", "api=9090", "web=3000:3000"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]types.PortMapping{
		"api": {{Host: 8080, Guest: 80}, {Host: 9090, Guest: 9090}},
		"web": {{Host: 3000, Guest: 3000}},
	}, out)

	out, err = parsePortFlags(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = parsePortFlags([]string{"missing-equals"})
	assert.Error(t, err)
	_, err = parsePortFlags([]string{"api=not-a-port"})
	assert.Error(t, err)
}

func TestFindDescriptor(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, ".devcontainer"), 0755))
	nested := filepath.Join(project, ".devcontainer", "devcontainer.json")
	require.NoError(t, os.WriteFile(nested, []byte("{}"), 0644))

	found, err := findDescriptor(project)
	require.NoError(t, err)
	assert.Equal(t, nested, found)

	bare := t.TempDir()
	top := filepath.Join(bare, ".devcontainer.json")
	require.NoError(t, os.WriteFile(top, []byte("{}"), 0644))
	found, err = findDescriptor(bare)
	require.NoError(t, err)
	assert.Equal(t, top, found)

	_, err = findDescriptor(t.TempDir())
	assert.Error(t, err)
}
