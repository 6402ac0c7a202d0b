package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	t.Parallel()

	m := New()
	m.Observe("login", OutcomeOK)
	m.Observe("login", OutcomeOK)
	m.Observe("login", OutcomeDenied)
	m.EventFailed("logout")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("login", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("login", OutcomeDenied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("logout")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `auth_session_operations_total{operation="login",outcome="ok"} 2`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("refresh", OutcomeError)
		m.EventFailed("login")
	})
}
