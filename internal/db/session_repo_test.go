package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vortex/internal/db"
	"vortex/internal/errors"
	"vortex/internal/testutil"
	"vortex/internal/types"
)

func sessionRecord(id, vm, workspace, service string) *db.SessionRecord {
	return &db.SessionRecord{
		ID:            id,
		VMIdentity:    vm,
		WorkspaceName: workspace,
		ServiceName:   service,
		State:         types.SessionPlanned,
		BackendKind:   types.BackendKrunVm,
	}
}

func TestSessionRepoCreateAndGet(t *testing.T) {
	repo := db.NewSessionRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	s := sessionRecord("s-1", "vortex-shop-api", "shop", "api")
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.GetByVMIdentity(ctx, "vortex-shop-api")
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.ID)
	assert.Equal(t, types.SessionPlanned, got.State)
	assert.False(t, got.Handle.Valid)
	assert.False(t, got.Error.Valid)
}

func TestSessionRepoGetMissing(t *testing.T) {
	repo := db.NewSessionRepository(testutil.SetupTestDB(t))

	_, err := repo.GetByVMIdentity(context.Background(), "vortex-ghost")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSessionNotFound))
}

func TestSessionRepoUniqueVMIdentity(t *testing.T) {
	repo := db.NewSessionRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sessionRecord("s-1", "vortex-shop-api", "shop", "api")))
	assert.Error(t, repo.Create(ctx, sessionRecord("s-2", "vortex-shop-api", "shop", "api")))
}

func TestSessionRepoListFilters(t *testing.T) {
	repo := db.NewSessionRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sessionRecord("s-1", "vortex-shop-api", "shop", "api")))
	require.NoError(t, repo.Create(ctx, sessionRecord("s-2", "vortex-shop-web", "shop", "web")))
	require.NoError(t, repo.Create(ctx, sessionRecord("s-3", "vortex-blog-api", "blog", "api")))
	require.NoError(t, repo.UpdateState(ctx, "s-1", types.SessionRunning, ""))

	all, err := repo.List(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	shop, err := repo.List(ctx, "shop", "")
	require.NoError(t, err)
	assert.Len(t, shop, 2)

	running, err := repo.List(ctx, "shop", types.SessionRunning)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "s-1", running[0].ID)
}

func TestSessionRepoUpdateState(t *testing.T) {
	repo := db.NewSessionRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sessionRecord("s-1", "vortex-shop-api", "shop", "api")))

	require.NoError(t, repo.UpdateState(ctx, "s-1", types.SessionFailed, "create rejected"))
	got, err := repo.GetByVMIdentity(ctx, "vortex-shop-api")
	require.NoError(t, err)
	assert.Equal(t, types.SessionFailed, got.State)
	require.True(t, got.Error.Valid)
	assert.Equal(t, "create rejected", got.Error.String)

	// a clean transition clears the error text
	require.NoError(t, repo.UpdateState(ctx, "s-1", types.SessionRunning, ""))
	got, err = repo.GetByVMIdentity(ctx, "vortex-shop-api")
	require.NoError(t, err)
	assert.False(t, got.Error.Valid)

	err = repo.UpdateState(ctx, "s-404", types.SessionRunning, "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSessionNotFound))
}

func TestSessionRepoHandleRoundTrip(t *testing.T) {
	repo := db.NewSessionRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sessionRecord("s-1", "vortex-shop-api", "shop", "api")))
	require.NoError(t, repo.UpdateHandle(ctx, "s-1", `{"name":"vortex-shop-api","kind":"krunvm"}`))

	got, err := repo.GetByVMIdentity(ctx, "vortex-shop-api")
	require.NoError(t, err)
	require.True(t, got.Handle.Valid)
	assert.Contains(t, got.Handle.String, `"vortex-shop-api"`)
}

func TestSessionRepoMarkAttached(t *testing.T) {
	repo := db.NewSessionRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sessionRecord("s-1", "vortex-shop-api", "shop", "api")))

	at := time.Now().UTC()
	require.NoError(t, repo.MarkAttached(ctx, "s-1", at))
	got, err := repo.GetByVMIdentity(ctx, "vortex-shop-api")
	require.NoError(t, err)
	assert.Equal(t, types.SessionAttached, got.State)
	assert.True(t, got.AttachedAt.Valid)

	require.NoError(t, repo.MarkAttached(ctx, "s-1", time.Time{}))
	got, err = repo.GetByVMIdentity(ctx, "vortex-shop-api")
	require.NoError(t, err)
	assert.Equal(t, types.SessionRunning, got.State)
	assert.False(t, got.AttachedAt.Valid)
}

func TestSessionRepoDelete(t *testing.T) {
	repo := db.NewSessionRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sessionRecord("s-1", "vortex-shop-api", "shop", "api")))
	require.NoError(t, repo.Delete(ctx, "s-1"))

	_, err := repo.GetByVMIdentity(ctx, "vortex-shop-api")
	require.Error(t, err)
	assert.NoError(t, repo.Delete(ctx, "s-1"))
}
