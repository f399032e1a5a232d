// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgent_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowgent_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowgent_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowgent_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	dbConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowgent_db_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)

	webhookCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgent_webhook_calls_total",
			Help: "Inbound webhook calls by outcome",
		},
		[]string{"method", "outcome"},
	)

	oauthFlows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgent_oauth_flows_total",
			Help: "OAuth connect and callback requests by provider and outcome",
		},
		[]string{"provider", "stage", "outcome"},
	)

	executionsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgent_executions_dispatched_total",
			Help: "Executions created by trigger mode and publish result",
		},
		[]string{"mode", "result"},
	)

	executionsRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowgent_executions_requeued_total",
			Help: "Executions republished by the reconciler",
		},
	)

	scheduleFires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgent_schedule_fires_total",
			Help: "Schedule trigger fires by outcome",
		},
		[]string{"outcome"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func IncrementInFlight() {
	httpRequestsInFlight.Inc()
}

func DecrementInFlight() {
	httpRequestsInFlight.Dec()
}

func UpdateDBStats(open, inUse int) {
	dbConnectionsOpen.Set(float64(open))
	dbConnectionsInUse.Set(float64(inUse))
}

// RecordWebhookCall counts a webhook request. outcome is a short reason such as
// "accepted", "not_found" or "inactive_workflow".
func RecordWebhookCall(method, outcome string) {
	webhookCalls.WithLabelValues(method, outcome).Inc()
}

// RecordOAuth counts one step of the OAuth flow. stage is "connect" or "callback".
func RecordOAuth(provider, stage, outcome string) {
	oauthFlows.WithLabelValues(provider, stage, outcome).Inc()
}

func RecordDispatch(mode string, ok bool) {
	result := "published"
	if !ok {
		result = "publish_failed"
	}
	executionsDispatched.WithLabelValues(mode, result).Inc()
}

func RecordRequeued(n int) {
	executionsRequeued.Add(float64(n))
}

// RecordScheduleFire counts a due trigger. outcome is "fired", "skipped" when
// another instance claimed it first, or "failed".
func RecordScheduleFire(outcome string) {
	scheduleFires.WithLabelValues(outcome).Inc()
}

// NormalizePath turns a ServeMux pattern such as "GET /api/oauth/{provider}/connect"
// into a low-cardinality label like "/api/oauth/:provider/connect". Requests
// that matched no pattern are labelled "unmatched".
func NormalizePath(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	if _, rest, ok := strings.Cut(pattern, " "); ok {
		pattern = rest
	}

	var sb strings.Builder
	inParam := false
	for _, ch := range pattern {
		switch {
		case ch == '{':
			inParam = true
			sb.WriteByte(':')
		case ch == '}':
			inParam = false
		case inParam && ch == '.':
			// "{path...}" wildcards keep only their name.
		default:
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}
