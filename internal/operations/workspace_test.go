package operations

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vortex/internal/db"
	"vortex/internal/errors"
	"vortex/internal/orchestrator"
	"vortex/internal/storage"
	"vortex/internal/testutil"
	"vortex/internal/types"
	"vortex/internal/workspace"
)

type fixture struct {
	ops  *WorkspaceOperations
	mock *testutil.MockBackend
	repo *db.WorkspaceRepository
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database := testutil.SetupTestDB(t)
	wsRepo := db.NewWorkspaceRepository(database)
	sessRepo := db.NewSessionRepository(database)
	st, err := storage.NewAt(filepath.Join(t.TempDir(), "workspaces"))
	require.NoError(t, err)
	mock := testutil.NewMockBackend()
	orch := orchestrator.New(mock, sessRepo)
	return &fixture{
		ops:  NewWorkspaceOperations(wsRepo, st, orch),
		mock: mock,
		repo: wsRepo,
	}
}

func scaffoldProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "api"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "frontend"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "api", "go.mod"), []byte("module api\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "frontend", "package.json"), []byte("{}"), 0644))
	return root
}

func TestInitWorkspace(t *testing.T) {
	f := setup(t)
	root := scaffoldProject(t)

	spec, err := f.ops.InitWorkspace(context.Background(), InitWorkspaceRequest{Path: root})
	require.NoError(t, err)
	require.Len(t, spec.Services, 2)

	// the config file lands next to the project root
	loaded, err := workspace.Load(filepath.Join(root, workspace.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, spec.Name, loaded.Name)

	record, err := f.repo.GetByName(context.Background(), spec.Name)
	require.NoError(t, err)
	assert.Equal(t, types.BackendKrunVm, record.BackendKind)
	assert.Equal(t, types.OriginScanned, record.Origin)
}

func TestInitWorkspaceFromTemplate(t *testing.T) {
	f := setup(t)
	root := t.TempDir()

	spec, err := f.ops.InitWorkspace(context.Background(), InitWorkspaceRequest{
		Path:     root,
		Template: "go",
	})
	require.NoError(t, err)
	assert.Equal(t, types.OriginTemplate, spec.Origin)
	require.Len(t, spec.Services, 1)
	assert.Equal(t, "golang:1.21-alpine", spec.Services[0].Image)
	assert.Equal(t, root, spec.Services[0].Volumes[0].HostPath)

	// the rendered config reloads and the registration carries the origin
	loaded, err := workspace.Load(filepath.Join(root, workspace.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, types.OriginTemplate, loaded.Origin)

	record, err := f.repo.GetByName(context.Background(), spec.Name)
	require.NoError(t, err)
	assert.Equal(t, types.OriginTemplate, record.Origin)
}

func TestInitWorkspaceUnknownTemplate(t *testing.T) {
	f := setup(t)

	_, err := f.ops.InitWorkspace(context.Background(), InitWorkspaceRequest{
		Path:     t.TempDir(),
		Template: "haskell",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
}

func TestInitWorkspaceConfigOnly(t *testing.T) {
	f := setup(t)
	root := scaffoldProject(t)

	spec, err := f.ops.InitWorkspace(context.Background(), InitWorkspaceRequest{Path: root, ConfigOnly: true})
	require.NoError(t, err)

	_, err = f.repo.GetByName(context.Background(), spec.Name)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrWorkspaceNotFound))
}

func TestInitWorkspaceNameOverride(t *testing.T) {
	f := setup(t)
	root := scaffoldProject(t)

	spec, err := f.ops.InitWorkspace(context.Background(), InitWorkspaceRequest{Path: root, Name: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", spec.Name)
}

func TestStartStopDeleteWorkspace(t *testing.T) {
	f := setup(t)
	root := scaffoldProject(t)
	ctx := context.Background()

	spec, err := f.ops.InitWorkspace(ctx, InitWorkspaceRequest{Path: root, Name: "flow"})
	require.NoError(t, err)

	results, err := f.ops.StartWorkspace(ctx, "flow")
	require.NoError(t, err)
	require.Len(t, results, len(spec.Services))
	for _, res := range results {
		assert.Equal(t, types.SessionRunning, res.State)
	}

	results, err = f.ops.StopWorkspace(ctx, "flow")
	require.NoError(t, err)
	for _, res := range results {
		assert.Equal(t, types.SessionStopped, res.State)
	}

	_, err = f.ops.DeleteWorkspace(ctx, "flow")
	require.NoError(t, err)
	_, err = f.repo.GetByName(ctx, "flow")
	require.Error(t, err)
}

func TestStartUnknownWorkspace(t *testing.T) {
	f := setup(t)
	_, err := f.ops.StartWorkspace(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrWorkspaceNotFound))
}

func TestImportWorkspace(t *testing.T) {
	f := setup(t)
	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, ".devcontainer"), 0755))
	descriptor := filepath.Join(project, ".devcontainer", "devcontainer.json")
	require.NoError(t, os.WriteFile(descriptor, []byte(`{
		"name": "imported",
		"image": "golang:1.21",
		"forwardPorts": [8080]
	}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(project, "main.go"), []byte("package main\n"), 0644))

	spec, err := f.ops.ImportWorkspace(context.Background(), ImportWorkspaceRequest{
		DescriptorPath: descriptor,
		ProjectPath:    project,
	})
	require.NoError(t, err)
	assert.Equal(t, "imported", spec.Name)
	assert.Equal(t, types.OriginImported, spec.Origin)

	record, err := f.repo.GetByName(context.Background(), "imported")
	require.NoError(t, err)
	require.NotEmpty(t, record.StoragePath)

	// the copied tree and the rendered config both live in storage
	_, err = os.Stat(filepath.Join(record.StoragePath, "main.go"))
	assert.NoError(t, err)
	_, err = os.Stat(record.ConfigPath)
	assert.NoError(t, err)
}

func TestImportWorkspaceDuplicateNameCleansStorage(t *testing.T) {
	f := setup(t)
	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, ".devcontainer"), 0755))
	descriptor := filepath.Join(project, ".devcontainer", "devcontainer.json")
	require.NoError(t, os.WriteFile(descriptor, []byte(`{"name": "dup", "image": "alpine"}`), 0644))

	req := ImportWorkspaceRequest{DescriptorPath: descriptor, ProjectPath: project}
	_, err := f.ops.ImportWorkspace(context.Background(), req)
	require.NoError(t, err)

	_, err = f.ops.ImportWorkspace(context.Background(), req)
	require.Error(t, err)
}

func TestResolveNameExplicit(t *testing.T) {
	f := setup(t)
	name, err := f.ops.ResolveName("given")
	require.NoError(t, err)
	assert.Equal(t, "given", name)
}
