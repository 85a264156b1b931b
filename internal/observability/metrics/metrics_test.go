package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveHTTPRequest(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest("/infogenai", http.MethodPost, http.StatusOK, 10*time.Millisecond)
	m.ObserveHTTPRequest("/infogenai", http.MethodPost, http.StatusInternalServerError, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/infogenai", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/infogenai", "POST")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestAgentAndDispatchCounters(t *testing.T) {
	m := New()
	m.ObserveAgent("wordstats", "ok", time.Millisecond)
	m.ObserveAgent("wordstats", "timeout", time.Second)
	m.ObserveDispatch("analyze", "agent_failed", time.Second)
	m.SetAgents(3)

	assert.Equal(t, 2, testutil.CollectAndCount(m.agentCalls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("analyze", "agent_failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.agents))
}

func TestHandlerServesExposition(t *testing.T) {
	m := New()
	m.SetAgents(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "infogenai_agents_loaded 2")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTPRequest("/", "GET", 200, time.Millisecond)
	m.ObserveAgent("a", "ok", time.Millisecond)
	m.ObserveDispatch("list", "success", 0)
	m.SetAgents(1)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
