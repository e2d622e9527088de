package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *AuthMetrics
	assert.NotPanics(t, func() {
		m.ObserveAuthentication(AuthAttempt{Kind: "structured"})
		m.AuthorizationDenied("INSUFFICIENT_ROLE")
		m.SessionOp("create", ResultSuccess)
		m.AuditWritten()
		m.AuditDropped()
		m.AuditFailed(errors.New("x"))
	})
	assert.Nil(t, m.Registry())

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})
	assert.NotNil(t, m.Instrument("/x", h))
}

func TestObserveAuthentication(t *testing.T) {
	m := New()
	m.ObserveAuthentication(AuthAttempt{Kind: "structured", Method: "identity_platform", Duration: time.Millisecond})
	m.ObserveAuthentication(AuthAttempt{Kind: "development_shortcut", Method: "development", Code: "AUTHENTICATION_FAILED"})

	assert.InDelta(t, 1, testutil.ToFloat64(m.authAttempts.WithLabelValues("structured", "identity_platform", ResultSuccess, "")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.authAttempts.WithLabelValues("development_shortcut", "development", ResultFailure, "AUTHENTICATION_FAILED")), 0)

	m.AuditDropped()
	m.AuditDropped()
	assert.InDelta(t, 2, testutil.ToFloat64(m.auditDropped), 0)
}

func TestHandlerAndInstrument(t *testing.T) {
	m := New()
	h := m.Instrument("GET /api/auth/me", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `authcore_http_requests_total{method="GET",route="GET /api/auth/me",status="418"} 1`), body)
}
