package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/repairdesk/pkg/schema"
)

func TestMigrate_MemToSQL(t *testing.T) {
	ctx := context.Background()
	src := NewMemStore(nil, nil)
	u, a := seedAdmin(t, src, "owner@repair.cz", schema.RoleSuperadmin, true)

	require.NoError(t, src.PutCategory(ctx, schema.Category{ID: "c1", Slug: "phones", IsActive: true}))
	require.NoError(t, src.PutService(ctx, schema.Service{ID: "s1", IsActive: true}))
	require.NoError(t, src.PutModel(ctx, schema.DeviceModel{ID: "m1", CategoryID: "c1", Slug: "pixel-8", IsActive: true}))
	require.NoError(t, src.PutCategoryService(ctx, schema.CategoryService{ID: "cs1", CategoryID: "c1", ServiceID: "s1"}))
	require.NoError(t, src.PutPrice(ctx, schema.Price{ID: "p1", ModelID: "m1", ServiceID: "s1", Amount: 1990, Currency: "CZK"}))
	require.NoError(t, src.PutArticle(ctx, schema.Article{ID: "art1", Slug: "hello", Published: true}))
	require.NoError(t, src.AppendAudit(ctx, &schema.AuditEntry{AdminID: a.ID, Action: schema.ActionCreate, TableName: schema.TablePrices}))

	dst := newSQLiteStore(t)
	require.NoError(t, Migrate(ctx, src, dst))
	// re-running is harmless
	require.NoError(t, Migrate(ctx, src, dst))

	got, err := dst.FindActiveAdmin(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)

	p, err := dst.GetPrice(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1990), p.Amount)

	entries, err := dst.ListAudit(ctx, AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries, "audit history is not copied")
}

func TestOpenEmbeddedRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, closeFn, err := Open(ctx, "", dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.PutCategory(ctx, schema.Category{ID: "c1", Slug: "phones", IsActive: true}))
	require.NoError(t, closeFn())

	again, closeAgain, err := Open(ctx, "", dir, nil)
	require.NoError(t, err)
	defer closeAgain()
	c, err := again.GetCategory(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "phones", c.Slug)
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	s, closeFn, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "open.db"), "", nil)
	require.NoError(t, err)
	defer closeFn()
	_, ok := s.(*SQLStore)
	assert.True(t, ok)
}
