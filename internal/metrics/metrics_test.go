package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	m.RecordAudit("CREATE", AuditOK)
	m.RecordAudit("CREATE", AuditOK)
	m.RecordAudit("DELETE", AuditFailed)
	m.RecordResolve(ResolveNotAdmin)
	m.RecordLogin("success")
	m.RecordRateLimitError()
	m.RecordMutation("prices", "UPDATE")
	m.ObserveHTTP("GET", "/api/categories", 200, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuditWrites.WithLabelValues("CREATE", AuditOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWrites.WithLabelValues("DELETE", AuditFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolverOutcomes.WithLabelValues(ResolveNotAdmin)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("prices", "UPDATE")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAudit("CREATE", AuditOK)
		m.RecordResolve(ResolveOK)
		m.RecordLogin("invalid")
		m.RecordRateLimitError()
		m.RecordMutation("services", "CREATE")
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordAudit("UPDATE", AuditOK)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `repairdesk_audit_writes_total{action="UPDATE",result="ok"} 1`))
}
