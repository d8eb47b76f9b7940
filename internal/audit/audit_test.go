package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/internal/metrics"
	"github.com/celerix-dev/repairdesk/internal/session"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// countingAdmins records how often the admins table is consulted.
type countingAdmins struct {
	engine.AdminReader
	calls int
	err   error
}

func (c *countingAdmins) FindActiveAdmin(ctx context.Context, userID schema.SubjectID) (*schema.AdminRecord, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.AdminReader.FindActiveAdmin(ctx, userID)
}

type failingAudit struct{ calls int }

func (f *failingAudit) AppendAudit(context.Context, *schema.AuditEntry) error {
	f.calls++
	return errors.New("insert failed: connection reset")
}

type erringSessions struct{ err error }

func (p erringSessions) CurrentUser(context.Context, session.Context) (*schema.Subject, error) {
	return nil, p.err
}

type fixture struct {
	store    *engine.MemStore
	sessions *session.Manager
	admins   *countingAdmins
	metrics  *metrics.Metrics
	resolver *Resolver
	recorder *Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := engine.NewMemStore(nil, nil)
	f := &fixture{
		store:    store,
		sessions: session.NewManager([]byte("audit-test-key"), "repairdesk", time.Hour),
		admins:   &countingAdmins{AdminReader: store},
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	}
	f.resolver = NewResolver(f.sessions, f.admins, nil, f.metrics)
	f.recorder = NewRecorder(f.resolver, store, nil, f.metrics)
	return f
}

// signIn creates a user, optionally with an admin grant, and returns a
// bearer session for them.
func (f *fixture) signIn(t *testing.T, email string, role schema.Role, active bool) (session.Context, *schema.UserRecord, *schema.AdminRecord) {
	t.Helper()
	ctx := context.Background()
	u := &schema.UserRecord{Email: email, PasswordHash: "hash"}
	require.NoError(t, f.store.CreateUser(ctx, u))

	var a *schema.AdminRecord
	if role != "" {
		a = &schema.AdminRecord{UserID: u.ID, Email: u.Email, Role: role, IsActive: active}
		require.NoError(t, f.store.CreateAdmin(ctx, a))
	}
	token, _, err := f.sessions.Issue(schema.Subject{ID: u.ID, Email: u.Email})
	require.NoError(t, err)
	return session.BearerContext(token), u, a
}

func (f *fixture) audit(t *testing.T) []schema.AuditEntry {
	t.Helper()
	entries, err := f.store.ListAudit(context.Background(), engine.AuditFilter{})
	require.NoError(t, err)
	return entries
}

func TestResolveWithoutSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for name, sc := range map[string]session.Context{
		"anonymous": session.Anonymous,
		"garbage":   session.BearerContext("not-a-token"),
		"cookie":    {Token: "still-not-a-token", FromCookie: true},
	} {
		t.Run(name, func(t *testing.T) {
			id, ok := f.resolver.ResolveCurrentAdminID(ctx, sc)
			assert.False(t, ok)
			assert.Empty(t, id)
		})
	}
	assert.Zero(t, f.admins.calls, "admins must not be consulted without a subject")
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.ResolverOutcomes.WithLabelValues(metrics.ResolveNoSession)))
}

func TestResolveWithoutActiveGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plain, _, _ := f.signIn(t, "customer@repair.cz", "", false)
	inactive, _, _ := f.signIn(t, "former@repair.cz", schema.RoleAdmin, false)

	for _, sc := range []session.Context{plain, inactive} {
		_, ok := f.resolver.ResolveCurrentAdmin(ctx, sc)
		assert.False(t, ok)
	}
	assert.Equal(t, 2, f.admins.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ResolverOutcomes.WithLabelValues(metrics.ResolveNotAdmin)))
}

func TestResolveReturnsAdminRowID(t *testing.T) {
	f := newFixture(t)
	sc, u, a := f.signIn(t, "boss@repair.cz", schema.RoleSuperadmin, true)

	id, ok := f.resolver.ResolveCurrentAdminID(context.Background(), sc)
	require.True(t, ok)
	assert.Equal(t, a.ID, id)
	assert.NotEqual(t, string(u.ID), string(id))

	rec, ok := f.resolver.ResolveCurrentAdmin(context.Background(), sc)
	require.True(t, ok)
	assert.Equal(t, schema.RoleSuperadmin, rec.Role)
}

func TestResolveFailsClosed(t *testing.T) {
	t.Run("admins lookup error", func(t *testing.T) {
		f := newFixture(t)
		sc, _, _ := f.signIn(t, "boss@repair.cz", schema.RoleAdmin, true)
		f.admins.err = errors.New("db down")

		_, ok := f.resolver.ResolveCurrentAdminID(context.Background(), sc)
		assert.False(t, ok)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ResolverOutcomes.WithLabelValues(metrics.ResolveError)))
	})

	t.Run("session error", func(t *testing.T) {
		r := NewResolver(erringSessions{err: context.Canceled}, engine.NewMemStore(nil, nil), nil, nil)
		_, ok := r.ResolveCurrentAdminID(context.Background(), session.BearerContext("x"))
		assert.False(t, ok)
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newFixture(t)
		sc, _, _ := f.signIn(t, "boss@repair.cz", schema.RoleAdmin, true)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, ok := f.resolver.ResolveCurrentAdminID(ctx, sc)
		assert.False(t, ok)
	})
}

func TestRecordEventRejectsMissingFields(t *testing.T) {
	f := newFixture(t)
	_, _, a := f.signIn(t, "boss@repair.cz", schema.RoleAdmin, true)
	ctx := context.Background()

	cases := map[string]struct {
		admin  schema.AdminID
		action schema.AuditAction
		table  schema.AuditTable
	}{
		"no admin":      {"", schema.ActionCreate, schema.TablePrices},
		"no action":     {a.ID, "", schema.TablePrices},
		"no table":      {a.ID, schema.ActionCreate, ""},
		"unknown table": {a.ID, schema.ActionCreate, "users"},
		"unknown verb":  {a.ID, "TRUNCATE", schema.TablePrices},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, f.recorder.RecordEvent(ctx, tc.admin, tc.action, tc.table, "P1", nil, map[string]int{"price": 1}))
		})
	}
	assert.Empty(t, f.audit(t))
}

func TestRecordEventRoundTripsPayloads(t *testing.T) {
	f := newFixture(t)
	_, _, a := f.signIn(t, "boss@repair.cz", schema.RoleAdmin, true)

	before := time.Now().UTC()
	old := map[string]any{"name": map[string]any{"ru": "Экран", "en": "Screen"}, "sort_order": 2.0}
	updated := map[string]any{"name": map[string]any{"ru": "Дисплей", "en": "Display"}, "sort_order": 3.0}
	require.True(t, f.recorder.RecordEvent(context.Background(), a.ID, schema.ActionUpdate, schema.TableServices, "S1", old, updated))

	entries := f.audit(t)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.Before(before.Add(-time.Second)))

	var gotOld, gotNew map[string]any
	require.NoError(t, json.Unmarshal([]byte(*e.OldData), &gotOld))
	require.NoError(t, json.Unmarshal([]byte(*e.NewData), &gotNew))
	assert.Equal(t, old, gotOld)
	assert.Equal(t, updated, gotNew)
}

func TestRecordEventNullableFields(t *testing.T) {
	f := newFixture(t)
	_, _, a := f.signIn(t, "boss@repair.cz", schema.RoleAdmin, true)

	var typedNil *schema.Price
	require.True(t, f.recorder.RecordEvent(context.Background(), a.ID, schema.ActionDelete, schema.TablePrices, "", typedNil, nil))

	entries := f.audit(t)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].RecordID)
	assert.Nil(t, entries[0].OldData)
	assert.Nil(t, entries[0].NewData)
}

func TestRecordEventUnencodablePayload(t *testing.T) {
	f := newFixture(t)
	_, _, a := f.signIn(t, "boss@repair.cz", schema.RoleAdmin, true)

	ok := f.recorder.RecordEvent(context.Background(), a.ID, schema.ActionCreate, schema.TablePrices, "P1", nil, math.Inf(1))
	assert.False(t, ok)
	assert.Empty(t, f.audit(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuditWrites.WithLabelValues("CREATE", metrics.AuditRejected)))
}

func TestLogWrappersRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer, _, _ := f.signIn(t, "customer@repair.cz", "", false)

	for _, sc := range []session.Context{session.Anonymous, customer} {
		assert.False(t, f.recorder.LogCreate(ctx, sc, schema.TablePrices, "P1", map[string]int{"price": 1}))
		assert.False(t, f.recorder.LogUpdate(ctx, sc, schema.TablePrices, "P1", map[string]int{"price": 1}, map[string]int{"price": 2}))
		assert.False(t, f.recorder.LogDelete(ctx, sc, schema.TablePrices, "P1", map[string]int{"price": 2}))
		assert.False(t, f.recorder.LogUpload(ctx, sc, "I1", map[string]string{"url": "/a.png"}))
		assert.False(t, f.recorder.LogRemove(ctx, sc, "I1", map[string]string{"url": "/a.png"}))
		assert.False(t, f.recorder.LogToggle(ctx, sc, schema.TableServices, "S1", map[string]bool{"is_active": true}, map[string]bool{"is_active": false}))
	}
	assert.Empty(t, f.audit(t))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.AuditWrites.WithLabelValues("UPDATE", metrics.AuditUnresolved)))
}

func TestLogUpdatePriceScenario(t *testing.T) {
	f := newFixture(t)
	sc, u, a := f.signIn(t, "boss@repair.cz", schema.RoleAdmin, true)

	ok := f.recorder.LogUpdate(context.Background(), sc, schema.TablePrices, "P1",
		map[string]int{"price": 100}, map[string]int{"price": 120})
	require.True(t, ok)

	entries := f.audit(t)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, a.ID, e.AdminID)
	assert.NotEqual(t, string(u.ID), string(e.AdminID))
	assert.Equal(t, schema.ActionUpdate, e.Action)
	assert.Equal(t, schema.TablePrices, e.TableName)
	require.NotNil(t, e.RecordID)
	assert.Equal(t, "P1", *e.RecordID)
	assert.JSONEq(t, `{"price":100}`, *e.OldData)
	assert.JSONEq(t, `{"price":120}`, *e.NewData)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuditWrites.WithLabelValues("UPDATE", metrics.AuditOK)))
}

func TestLogWrapperActions(t *testing.T) {
	f := newFixture(t)
	sc, _, _ := f.signIn(t, "boss@repair.cz", schema.RoleEditor, true)
	ctx := context.Background()

	require.True(t, f.recorder.LogCreate(ctx, sc, schema.TableDeviceModels, "M1", map[string]string{"slug": "iphone-15"}))
	require.True(t, f.recorder.LogUpload(ctx, sc, "I1", map[string]string{"url": "/img/iphone-15.png"}))
	require.True(t, f.recorder.LogRemove(ctx, sc, "I1", map[string]string{"url": "/img/iphone-15.png"}))
	require.True(t, f.recorder.LogToggle(ctx, sc, schema.TableDeviceModels, "M1", map[string]bool{"is_active": true}, map[string]bool{"is_active": false}))
	require.True(t, f.recorder.LogDelete(ctx, sc, schema.TableDeviceModels, "M1", map[string]string{"slug": "iphone-15"}))

	entries := f.audit(t)
	require.Len(t, entries, 5)
	got := map[schema.AuditAction]schema.AuditTable{}
	for _, e := range entries {
		got[e.Action] = e.TableName
		switch e.Action {
		case schema.ActionCreate, schema.ActionUpload:
			assert.Nil(t, e.OldData)
			assert.NotNil(t, e.NewData)
		case schema.ActionDelete, schema.ActionRemove:
			assert.NotNil(t, e.OldData)
			assert.Nil(t, e.NewData)
		}
	}
	assert.Equal(t, map[schema.AuditAction]schema.AuditTable{
		schema.ActionCreate: schema.TableDeviceModels,
		schema.ActionUpload: schema.TableDeviceImages,
		schema.ActionRemove: schema.TableDeviceImages,
		schema.ActionToggle: schema.TableDeviceModels,
		schema.ActionDelete: schema.TableDeviceModels,
	}, got)
}

func TestDeactivationMidSession(t *testing.T) {
	f := newFixture(t)
	sc, _, a := f.signIn(t, "boss@repair.cz", schema.RoleAdmin, true)
	ctx := context.Background()

	require.True(t, f.recorder.LogCreate(ctx, sc, schema.TableServices, "S1", map[string]string{"id": "S1"}))

	require.NoError(t, f.store.SetAdminActive(ctx, a.ID, false))

	_, ok := f.resolver.ResolveCurrentAdminID(ctx, sc)
	assert.False(t, ok)
	assert.False(t, f.recorder.LogCreate(ctx, sc, schema.TableServices, "S2", map[string]string{"id": "S2"}))
	assert.Len(t, f.audit(t), 1)
}

func TestRecordEventSwallowsStoreFailure(t *testing.T) {
	f := newFixture(t)
	sc, _, a := f.signIn(t, "boss@repair.cz", schema.RoleAdmin, true)
	broken := &failingAudit{}
	rec := NewRecorder(f.resolver, broken, nil, f.metrics)

	assert.NotPanics(t, func() {
		assert.False(t, rec.RecordEvent(context.Background(), a.ID, schema.ActionCreate, schema.TablePrices, "P1", nil, map[string]int{"price": 1}))
		assert.False(t, rec.LogDelete(context.Background(), sc, schema.TablePrices, "P1", map[string]int{"price": 1}))
	})
	assert.Equal(t, 2, broken.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuditWrites.WithLabelValues("CREATE", metrics.AuditFailed)))
}

func TestRecordEventUnknownAdminRow(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.recorder.RecordEvent(context.Background(), "no-such-admin", schema.ActionCreate, schema.TablePrices, "P1", nil, nil))
	assert.Empty(t, f.audit(t))
}
