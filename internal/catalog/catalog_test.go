package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/repairdesk/internal/audit"
	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/internal/metrics"
	"github.com/celerix-dev/repairdesk/internal/session"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

type fixture struct {
	store    *engine.MemStore
	sessions *session.Manager
	metrics  *metrics.Metrics
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := engine.NewMemStore(nil, nil)
	seed, err := LoadSeedFile("testdata/seed.yaml")
	require.NoError(t, err)
	require.NoError(t, seed.Apply(context.Background(), store))

	f := &fixture{
		store:    store,
		sessions: session.NewManager([]byte("catalog-test-key"), "repairdesk", time.Hour),
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	}
	resolver := audit.NewResolver(f.sessions, store, nil, f.metrics)
	recorder := audit.NewRecorder(resolver, store, nil, f.metrics)
	f.svc = NewService(store, resolver, recorder, nil, f.metrics)
	f.svc.now = func() time.Time { return *at("2026-05-10T12:00:00Z") }
	return f
}

func (f *fixture) as(t *testing.T, email string, role schema.Role) session.Context {
	t.Helper()
	ctx := context.Background()
	u := &schema.UserRecord{Email: email, PasswordHash: "hash"}
	require.NoError(t, f.store.CreateUser(ctx, u))
	if role != "" {
		require.NoError(t, f.store.CreateAdmin(ctx, &schema.AdminRecord{UserID: u.ID, Email: u.Email, Role: role, IsActive: true}))
	}
	token, _, err := f.sessions.Issue(schema.Subject{ID: u.ID, Email: u.Email})
	require.NoError(t, err)
	return session.BearerContext(token)
}

func (f *fixture) trail(t *testing.T) []schema.AuditEntry {
	t.Helper()
	entries, err := f.store.ListAudit(context.Background(), engine.AuditFilter{})
	require.NoError(t, err)
	return entries
}

func TestLoadSeedRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "categorys: []",
		"dangling model":   "models: [{id: m, category_id: nope, slug: m}]",
		"duplicate id":     "services: [{id: s}, {id: s}]",
		"missing id":       "services: [{sort_order: 1}]",
		"bad discount":     "categories: [{id: c, slug: c}]\nservices: [{id: s}]\nmodels: [{id: m, category_id: c, slug: m}]\nprices: [{id: p, model_id: m, service_id: s, amount: 1, discount: {kind: percent, value: 200}}]",
		"slug with spaces": "categories: [{id: c, slug: 'a b'}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSeed(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}

	s, err := LoadSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, s.Categories)
}

func TestBrowse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cats, err := f.svc.Categories(ctx, schema.LangEN)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Phones", cats[0].Name)

	_, err = f.svc.Models(ctx, "consoles", schema.LangEN)
	assert.True(t, IsNotFound(err), "inactive category is hidden")

	models, err := f.svc.Models(ctx, "phones", schema.LangCZ)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "iphone-15", models[0].ID)
	require.Len(t, models[0].Images, 1)
	assert.Equal(t, "iPhone 15 front", models[0].Images[0].Alt, "falls back when Czech is missing")

	_, err = f.svc.PriceTable(ctx, "iphone-x", schema.LangEN)
	assert.True(t, IsNotFound(err))

	table, err := f.svc.PriceTable(ctx, "iphone-15", schema.LangRU)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	screen := table.Rows[0]
	assert.Equal(t, "Замена экрана", screen.Service)
	require.NotNil(t, screen.Amount)
	assert.Equal(t, int64(4990), *screen.Amount)
	assert.Equal(t, int64(4491), *screen.Final)
	assert.NotNil(t, screen.Discount)

	battery := table.Rows[1]
	assert.Equal(t, "battery", battery.ServiceID)
	assert.Nil(t, battery.Amount, "linked but unpriced")
}

func TestContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	anns, err := f.svc.Announcements(ctx, schema.LangCZ)
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, "Весенние скидки", anns[0].Title)

	ended := *at("2026-05-01T00:00:00Z")
	require.NoError(t, f.store.PutAnnouncement(ctx, schema.Announcement{ID: "old", IsActive: true, EndsAt: &ended}))
	anns, err = f.svc.Announcements(ctx, schema.LangEN)
	require.NoError(t, err)
	assert.Len(t, anns, 1)

	arts, err := f.svc.Articles(ctx, schema.LangEN)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Empty(t, arts[0].Body)

	art, err := f.svc.Article(ctx, "battery-care", schema.LangEN)
	require.NoError(t, err)
	assert.Equal(t, "Do not leave it at zero percent.", art.Body)

	_, err = f.svc.Article(ctx, "draft", schema.LangEN)
	assert.True(t, IsNotFound(err))
}

func TestMutationsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.as(t, "customer@repair.cz", "")

	for _, sc := range []session.Context{session.Anonymous, customer} {
		_, err := f.svc.CreateCategory(ctx, sc, schema.Category{Slug: "tablets", Name: schema.Localized{EN: "Tablets"}})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.SetPrice(ctx, sc, schema.Price{ModelID: "iphone-15", ServiceID: "battery", Amount: 1})
		assert.ErrorIs(t, err, ErrForbidden)
		assert.ErrorIs(t, f.svc.RemoveImage(ctx, sc, "img-15"), ErrForbidden)
	}
	// unauthorized requests do not learn whether the record exists
	assert.ErrorIs(t, f.svc.DeleteCategory(ctx, customer, "missing"), ErrForbidden)
	assert.Empty(t, f.trail(t))
}

func TestEditorCannotDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	editor := f.as(t, "editor@repair.cz", schema.RoleEditor)

	assert.ErrorIs(t, f.svc.DeletePrice(ctx, editor, "p-15-screen"), ErrForbidden)
	_, err := f.svc.AuditTrail(ctx, editor, engine.AuditFilter{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.SetModelActive(ctx, editor, "iphone-x", true)
	require.NoError(t, err)
	entries := f.trail(t)
	require.Len(t, entries, 1)
	assert.Equal(t, schema.ActionToggle, entries[0].Action)
	assert.Equal(t, schema.TableDeviceModels, entries[0].TableName)
}

func TestCategoryLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.as(t, "admin@repair.cz", schema.RoleAdmin)

	c, err := f.svc.CreateCategory(ctx, admin, schema.Category{Slug: "tablets", Name: schema.Localized{EN: "Tablets"}, IsActive: true})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	_, err = f.svc.CreateCategory(ctx, admin, schema.Category{Slug: "phones", Name: schema.Localized{EN: "Dup"}})
	assert.ErrorIs(t, err, engine.ErrConflict)
	_, err = f.svc.CreateCategory(ctx, admin, schema.Category{Slug: "x"})
	assert.ErrorIs(t, err, ErrInvalid)

	c.Name.RU = "Планшеты"
	c.IsActive = false
	updated, err := f.svc.UpdateCategory(ctx, admin, *c)
	require.NoError(t, err)
	assert.True(t, updated.IsActive, "update keeps the active flag")

	_, err = f.svc.SetCategoryActive(ctx, admin, c.ID, false)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteCategory(ctx, admin, c.ID))

	assert.ErrorIs(t, f.svc.DeleteCategory(ctx, admin, "phones"), ErrInUse)
	assert.True(t, IsNotFound(f.svc.DeleteCategory(ctx, admin, c.ID)))

	var actions []schema.AuditAction
	for _, e := range f.trail(t) {
		assert.Equal(t, schema.TableDeviceCategories, e.TableName)
		actions = append(actions, e.Action)
	}
	assert.ElementsMatch(t, []schema.AuditAction{
		schema.ActionCreate, schema.ActionUpdate, schema.ActionToggle, schema.ActionDelete,
	}, actions)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Mutations.WithLabelValues("device_categories", "DELETE")))
}

func TestSetPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	editor := f.as(t, "editor@repair.cz", schema.RoleEditor)

	p, err := f.svc.SetPrice(ctx, editor, schema.Price{ModelID: "iphone-15", ServiceID: "battery", Amount: 1490})
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, p.Currency)

	again, err := f.svc.SetPrice(ctx, editor, schema.Price{ModelID: "iphone-15", ServiceID: "screen", Amount: 5290, Currency: "czk"})
	require.NoError(t, err)
	assert.Equal(t, "p-15-screen", again.ID, "existing price is replaced in place")
	assert.Equal(t, "CZK", again.Currency)

	_, err = f.svc.SetPrice(ctx, editor, schema.Price{ModelID: "nope", ServiceID: "screen", Amount: 1})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.svc.SetPrice(ctx, editor, schema.Price{ModelID: "iphone-15", ServiceID: "screen", Amount: -1})
	assert.ErrorIs(t, err, ErrInvalid)

	entries := f.trail(t)
	require.Len(t, entries, 2)
	byAction := map[schema.AuditAction]schema.AuditEntry{}
	for _, e := range entries {
		byAction[e.Action] = e
	}
	update := byAction[schema.ActionUpdate]
	require.NotNil(t, update.OldData)
	assert.Contains(t, *update.OldData, `"amount":4990`)
	assert.Contains(t, *update.NewData, `"amount":5290`)
	assert.Equal(t, "p-15-screen", *update.RecordID)
}

func TestImagesAndLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.as(t, "admin@repair.cz", schema.RoleAdmin)

	img, err := f.svc.AddImage(ctx, admin, schema.DeviceImage{ModelID: "iphone-15", URL: "/img/back.png"})
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveImage(ctx, admin, img.ID))

	_, err = f.svc.AddImage(ctx, admin, schema.DeviceImage{ModelID: "iphone-15"})
	assert.ErrorIs(t, err, ErrInvalid)

	assert.ErrorIs(t, f.svc.DeleteService(ctx, admin, "screen"), ErrInUse)

	link, err := f.svc.LinkService(ctx, admin, "phones", "hdmi")
	require.NoError(t, err)
	_, err = f.svc.LinkService(ctx, admin, "phones", "hdmi")
	assert.ErrorIs(t, err, engine.ErrConflict)
	require.NoError(t, f.svc.UnlinkService(ctx, admin, link.ID))
	require.NoError(t, f.svc.UnlinkService(ctx, admin, "consoles-hdmi"))
	require.NoError(t, f.svc.DeleteService(ctx, admin, "hdmi"))

	counts := map[schema.AuditAction]int{}
	for _, e := range f.trail(t) {
		counts[e.Action]++
	}
	assert.Equal(t, map[schema.AuditAction]int{
		schema.ActionUpload: 1,
		schema.ActionRemove: 1,
		schema.ActionCreate: 1,
		schema.ActionDelete: 3,
	}, counts)

	trail, err := f.svc.AuditTrail(ctx, admin, engine.AuditFilter{TableName: schema.TableDeviceImages})
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

type brokenAudit struct{ *engine.MemStore }

func (brokenAudit) AppendAudit(context.Context, *schema.AuditEntry) error {
	return errors.New("audit table locked")
}

func TestMutationSurvivesAuditFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.as(t, "admin@repair.cz", schema.RoleAdmin)

	resolver := audit.NewResolver(f.sessions, f.store, nil, f.metrics)
	f.svc.recorder = audit.NewRecorder(resolver, brokenAudit{f.store}, nil, f.metrics)

	_, err := f.svc.SetServiceActive(ctx, admin, "battery", false)
	require.NoError(t, err)

	svc, err := f.store.GetService(ctx, "battery")
	require.NoError(t, err)
	assert.False(t, svc.IsActive)
	assert.Empty(t, f.trail(t))
}
