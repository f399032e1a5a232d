package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"GET /api/oauth/{provider}/connect", "/api/oauth/:provider/connect"},
		{"/api/webhooks/{path...}", "/api/webhooks/:path"},
		{"GET /health", "/health"},
		{"", "unmatched"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.pattern), tt.pattern)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordHTTPRequest("GET", "/health", 200, 5*time.Millisecond)
	RecordWebhookCall("POST", "accepted")
	RecordOAuth("slack", "connect", "redirected")
	RecordDispatch("WEBHOOK", true)
	RecordRequeued(2)
	RecordScheduleFire("fired")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"flowgent_http_requests_total",
		"flowgent_webhook_calls_total",
		"flowgent_oauth_flows_total",
		"flowgent_executions_dispatched_total",
		"flowgent_executions_requeued_total",
		"flowgent_schedule_fires_total",
	} {
		assert.True(t, strings.Contains(body, name), name)
	}
}
