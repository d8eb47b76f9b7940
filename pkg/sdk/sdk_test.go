package sdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/repairdesk/internal/api"
	"github.com/celerix-dev/repairdesk/internal/audit"
	"github.com/celerix-dev/repairdesk/internal/catalog"
	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/internal/metrics"
	"github.com/celerix-dev/repairdesk/internal/ratelimit"
	"github.com/celerix-dev/repairdesk/internal/session"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

const seedYAML = `
categories:
  - {id: phones, slug: phones, name: {ru: Телефоны, en: Phones}, sort_order: 1, is_active: true}
services:
  - {id: screen, name: {ru: Замена экрана, en: Screen replacement}, sort_order: 1, is_active: true}
models:
  - {id: iphone-15, category_id: phones, slug: iphone-15, name: {en: iPhone 15}, is_active: true}
links:
  - {id: phones-screen, category_id: phones, service_id: screen}
`

const password = "correct horse battery"

// startServer runs the full API over an in-memory store.
func startServer(t *testing.T) (*httptest.Server, *engine.MemStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := engine.NewMemStore(nil, nil)
	seed, err := catalog.LoadSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.NoError(t, seed.Apply(context.Background(), store))

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	sessions := session.NewManager([]byte("sdk-test-key"), "repairdesk", time.Hour)
	resolver := audit.NewResolver(sessions, store, nil, m)
	recorder := audit.NewRecorder(resolver, store, nil, m)

	h := &api.Handler{
		Catalog:  catalog.NewService(store, resolver, recorder, nil, m),
		Auth:     session.NewAuthenticator(store, sessions),
		Sessions: sessions,
		Resolver: resolver,
		Guard:    ratelimit.NewGuard(ratelimit.NewMemoryLimiter(), "login:", 10, time.Minute, nil, m),
		Cookie:   session.CookieConfig{Name: "repairdesk_session", SameSite: http.SameSiteLaxMode},
		Metrics:  m,
	}
	srv := httptest.NewServer(api.NewRouter(h, api.RouterOptions{Gatherer: registry}))
	t.Cleanup(srv.Close)
	return srv, store
}

func addUser(t *testing.T, store *engine.MemStore, email string, role schema.Role) {
	t.Helper()
	ctx := context.Background()
	hash, err := session.HashPassword(password)
	require.NoError(t, err)
	u := &schema.UserRecord{Email: email, PasswordHash: hash}
	require.NoError(t, store.CreateUser(ctx, u))
	if role != "" {
		require.NoError(t, store.CreateAdmin(ctx, &schema.AdminRecord{UserID: u.ID, Email: u.Email, Role: role, IsActive: true}))
	}
}

func TestConnect(t *testing.T) {
	_, err := Connect("ftp://repair.example")
	assert.Error(t, err)

	c, err := Connect("https://repair.example/", WithLanguage(schema.LangCZ))
	require.NoError(t, err)
	assert.Equal(t, "https://repair.example", c.baseURL.String())
	assert.Equal(t, schema.LangCZ, c.lang)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("REPAIRDESK_URL", "")
	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7002", c.baseURL.String())

	t.Setenv("REPAIRDESK_URL", "https://desk.internal:8443")
	t.Setenv("REPAIRDESK_INSECURE_TLS", "true")
	c, err = FromEnv()
	require.NoError(t, err)
	tr, ok := c.http.Transport.(*http.Transport)
	require.True(t, ok)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestPublicReads(t *testing.T) {
	srv, _ := startServer(t)
	ctx := context.Background()

	c, err := Connect(srv.URL, WithLanguage(schema.LangEN))
	require.NoError(t, err)

	cats, err := c.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Phones", cats[0].Name)

	models, err := c.Models(ctx, "phones")
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "iPhone 15", models[0].Name)

	table, err := c.Prices(ctx, "iphone-15")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Nil(t, table.Rows[0].Amount, "unpriced services have no amount")

	_, err = c.Prices(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Article(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSignInAndBackOffice(t *testing.T) {
	srv, store := startServer(t)
	addUser(t, store, "boss@repair.cz", schema.RoleAdmin)
	ctx := context.Background()

	c, err := Connect(srv.URL)
	require.NoError(t, err)

	_, err = c.SignIn(ctx, "boss@repair.cz", "wrong password")
	assert.ErrorIs(t, err, ErrUnauthorized)

	me, err := c.SignIn(ctx, "boss@repair.cz", password)
	require.NoError(t, err)
	assert.NotEmpty(t, c.Token())
	require.NotNil(t, me.Admin)
	assert.Equal(t, schema.RoleAdmin, me.Admin.Role)

	cat, err := c.CreateCategory(ctx, schema.Category{Slug: "tablets", Name: schema.Localized{EN: "Tablets"}, IsActive: true})
	require.NoError(t, err)
	require.NotEmpty(t, cat.ID)

	price, err := c.SetPrice(ctx, schema.Price{ModelID: "iphone-15", ServiceID: "screen", Amount: 4990})
	require.NoError(t, err)
	assert.Equal(t, "CZK", price.Currency)

	require.NoError(t, c.SetActive(ctx, schema.TableDeviceCategories, cat.ID, false))
	assert.ErrorIs(t, c.SetActive(ctx, schema.TablePrices, price.ID, false), ErrInvalid)

	entries, err := c.Audit(ctx, AuditQuery{AdminID: me.Admin.ID})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, schema.ActionToggle, entries[0].Action)

	entries, err = c.Audit(ctx, AuditQuery{Table: schema.TablePrices, Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].RecordID)
	assert.Equal(t, price.ID, *entries[0].RecordID)

	require.NoError(t, c.SignOut(ctx))
	assert.Empty(t, c.Token())
	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestEditorCannotDelete(t *testing.T) {
	srv, store := startServer(t)
	addUser(t, store, "tech@repair.cz", schema.RoleEditor)
	addUser(t, store, "visitor@repair.cz", "")
	ctx := context.Background()

	editor, err := Connect(srv.URL)
	require.NoError(t, err)
	_, err = editor.SignIn(ctx, "tech@repair.cz", password)
	require.NoError(t, err)

	assert.ErrorIs(t, editor.DeleteCategory(ctx, "phones"), ErrForbidden)
	_, err = editor.Audit(ctx, AuditQuery{})
	assert.ErrorIs(t, err, ErrForbidden)

	visitor, err := Connect(srv.URL)
	require.NoError(t, err)
	me, err := visitor.SignIn(ctx, "visitor@repair.cz", password)
	require.NoError(t, err)
	assert.Nil(t, me.Admin)
	_, err = visitor.CreateService(ctx, schema.Service{Name: schema.Localized{EN: "Cleaning"}})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestReadsAreRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < maxAttempts {
			http.Error(w, `{"error":"warming up"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := Connect(srv.URL)
	require.NoError(t, err)
	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cats)
	assert.Equal(t, int32(maxAttempts), calls.Load())
}

func TestMutationsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := Connect(srv.URL, WithToken("t"))
	require.NoError(t, err)
	err = c.DeletePrice(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int32(1), calls.Load())
}
