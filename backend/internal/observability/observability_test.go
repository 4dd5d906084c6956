package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
		enabled zapcore.Level
	}{
		{"json info", "info", "json", false, zapcore.InfoLevel},
		{"console debug", "DEBUG", "console", false, zapcore.DebugLevel},
		{"text alias", "warn", "text", false, zapcore.WarnLevel},
		{"bad level", "loud", "json", true, 0},
		{"bad format", "info", "xml", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.enabled-1))
		})
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	m.GateDecision("SIGNAL_DELETE", "allowed")
	m.GateDecision("SIGNAL_DELETE", "allowed")
	m.GateDecision("SIGNAL_DELETE", "rate_limited")
	m.RateLimitCheck("denied")
	m.SessionEvent("invalid", "fingerprint_mismatch")
	m.AuditEvent("dropped")
	m.SetAuditQueueDepth(3)
	m.ObserveHTTP("GET", "/healthz", 200, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues("SIGNAL_DELETE", "allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues("SIGNAL_DELETE", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitChecks.WithLabelValues("denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionEvents.WithLabelValues("invalid", "fingerprint_mismatch")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AuditQueueDepth))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `gate_decisions_total{operation="SIGNAL_DELETE",outcome="allowed"} 2`))
	assert.Contains(t, body, "http_requests_total")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.GateDecision("op", "allowed")
		m.RateLimitCheck("allowed")
		m.SessionEvent("created", "")
		m.AuditEvent("queued")
		m.SetAuditQueueDepth(1)
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.InFlight(1)
	})
}
