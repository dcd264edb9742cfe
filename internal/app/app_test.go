package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biyonik/orgtree-api/internal/config"
	"github.com/biyonik/orgtree-api/internal/rowmodel"
	"github.com/biyonik/orgtree-api/internal/testutil"
	"github.com/biyonik/orgtree-api/pkg/auth"
)

func sqliteConfig() *config.Config {
	cfg := config.Load(zerolog.Nop())
	cfg.App.Env = "test"
	cfg.DB.Driver = "sqlite"
	cfg.DB.DSN = testutil.SQLiteDSN
	cfg.Cache.Driver = "memory"
	cfg.Events.Driver = config.EventsLocal
	cfg.Hierarchy.OrderInterval = 100
	return cfg
}

func TestApp_WiresDepartmentStack(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, sqliteConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	require.NoError(t, a.Migrate(ctx))
	require.NoError(t, a.Migrate(ctx), "migrations are idempotent")

	admin := &auth.Requester{ID: "admin", Permissions: []string{auth.PermissionDepartmentReadAll, auth.PermissionDepartmentWrite}}
	root, err := a.DepartmentService.Create(ctx, admin, map[string]any{"name": "Root", "code": "ROOT"})
	require.NoError(t, err)
	_, err = a.DepartmentService.Create(ctx, admin, map[string]any{"name": "Child", "code": "CHILD", "parentId": root.ID})
	require.NoError(t, err)

	res, err := a.DepartmentService.GetRows(ctx, rowmodel.Request{EndRow: 10}, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)

	written, err := a.RebuildAncestry(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, written)
}

func TestApp_RejectsInvalidConfig(t *testing.T) {
	cfg := sqliteConfig()
	cfg.Cache.Driver = "file"

	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestApp_CloseIsSafeOnPartialSetup(t *testing.T) {
	assert.NoError(t, (&App{}).Close())
}
