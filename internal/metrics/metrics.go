// Package metrics provides Prometheus metrics collection for the application.
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

// Outcome label values for metrics.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Telegram update metrics
	UpdatesTotal        *prometheus.CounterVec
	CommandsTotal       *prometheus.CounterVec
	CallbacksTotal      prometheus.Counter
	MessagesSentTotal   *prometheus.CounterVec
	UsersRegistered     prometheus.Counter

	// Lead metrics
	LeadsCreatedTotal   *prometheus.CounterVec
	WizardSessionsTotal *prometheus.CounterVec

	// Notification metrics
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	FollowupsScheduled  prometheus.Counter
	FollowupsFired      prometheus.Counter
	FollowupsCanceled   prometheus.Counter

	// AI provider metrics
	AICallsTotal        *prometheus.CounterVec
	AICallDuration      *prometheus.HistogramVec
	CircuitBreakerState *prometheus.GaugeVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge

	// Rate limiting metrics
	RateLimitHitsTotal prometheus.Counter

	// Registry used for this metrics instance
	registry prometheus.Gatherer
}

// NewMetrics creates a new Metrics instance with all collectors registered on
// the default registry.
func NewMetrics() *Metrics {
	m := newMetricsWithRegistry(prometheus.DefaultRegisterer)
	m.registry = prometheus.DefaultGatherer
	return m
}

// NewMetricsWithRegistry creates metrics using a custom registry (for testing).
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	m := newMetricsWithRegistry(reg)
	m.registry = reg
	return m
}

func newMetricsWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadbot_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status code",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadbot_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadbot_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		UpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadbot_telegram_updates_total",
				Help: "Total number of Telegram updates received by kind",
			},
			[]string{"kind"}, // "message", "command", "callback", "other"
		),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadbot_telegram_commands_total",
				Help: "Total number of bot commands handled",
			},
			[]string{"command"},
		),
		CallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leadbot_telegram_callbacks_total",
				Help: "Total number of inline keyboard callbacks handled",
			},
		),
		MessagesSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadbot_telegram_messages_sent_total",
				Help: "Total number of outbound Telegram messages by outcome",
			},
			[]string{"outcome"},
		),
		UsersRegistered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leadbot_users_registered_total",
				Help: "Total number of new user registrations",
			},
		),

		LeadsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadbot_leads_created_total",
				Help: "Total number of leads created by source",
			},
			[]string{"source"},
		),
		WizardSessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadbot_wizard_sessions_total",
				Help: "Total number of lead wizard sessions by outcome",
			},
			[]string{"outcome"}, // "completed", "canceled"
		),

		NotificationsSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leadbot_notifications_sent_total",
				Help: "Total number of notification messages delivered",
			},
		),
		NotificationsFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leadbot_notifications_failed_total",
				Help: "Total number of notification deliveries that failed",
			},
		),
		FollowupsScheduled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leadbot_followups_scheduled_total",
				Help: "Total number of follow-up reminders scheduled",
			},
		),
		FollowupsFired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leadbot_followups_fired_total",
				Help: "Total number of follow-up reminders delivered",
			},
		),
		FollowupsCanceled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leadbot_followups_canceled_total",
				Help: "Total number of follow-up reminders canceled by activity",
			},
		),

		AICallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadbot_ai_calls_total",
				Help: "Total number of AI provider calls by provider and status",
			},
			[]string{"provider", "status"}, // status: "success", "failure", "circuit_open"
		),
		AICallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadbot_ai_call_duration_seconds",
				Help:    "Duration of AI provider calls",
				Buckets: []float64{.25, .5, 1, 2, 5, 10, 15, 30},
			},
			[]string{"provider"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leadbot_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"provider"},
		),

		DBConnectionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadbot_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadbot_db_connections_in_use",
				Help: "Number of database connections currently in use",
			},
		),

		RateLimitHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leadbot_rate_limit_hits_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

// Handler returns the Prometheus HTTP handler for scraping metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware returns an HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		// Normalize path to avoid high cardinality
		path := normalizePath(r.URL.Path)

		m.HTTPRequestsTotal.WithLabelValues(
			r.Method,
			path,
			strconv.Itoa(wrapped.statusCode),
		).Inc()

		m.HTTPRequestDuration.WithLabelValues(
			r.Method,
			path,
		).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// normalizePath normalizes URL paths to prevent high cardinality labels.
// The Telegram webhook path embeds the bot token, so it is always collapsed.
func normalizePath(path string) string {
	switch path {
	case "/", "/health", "/ready", "/live", "/metrics", "/reset-webhook", "/webhook/lead", "/export/leads.csv":
		return path
	}

	if strings.HasPrefix(path, "/webhook/telegram") {
		return "/webhook/telegram/:token"
	}

	return path
}

// Helper methods for recording specific events

// RecordUpdate records a received Telegram update.
func (m *Metrics) RecordUpdate(kind string) {
	m.UpdatesTotal.WithLabelValues(kind).Inc()
}

// RecordCommand records a handled bot command.
func (m *Metrics) RecordCommand(command string) {
	m.CommandsTotal.WithLabelValues(command).Inc()
}

// RecordCallback records a handled inline keyboard callback.
func (m *Metrics) RecordCallback() {
	m.CallbacksTotal.Inc()
}

// RecordMessageSent records an outbound Telegram message.
func (m *Metrics) RecordMessageSent(success bool) {
	outcome := outcomeFailure
	if success {
		outcome = outcomeSuccess
	}
	m.MessagesSentTotal.WithLabelValues(outcome).Inc()
}

// RecordUserRegistered records a first-time user registration.
func (m *Metrics) RecordUserRegistered() {
	m.UsersRegistered.Inc()
}

// RecordLeadCreated records a newly captured lead.
func (m *Metrics) RecordLeadCreated(source string) {
	m.LeadsCreatedTotal.WithLabelValues(source).Inc()
}

// RecordWizardOutcome records how a lead wizard session ended.
func (m *Metrics) RecordWizardOutcome(outcome string) {
	m.WizardSessionsTotal.WithLabelValues(outcome).Inc()
}

// RecordNotification records one notification delivery attempt.
func (m *Metrics) RecordNotification(success bool) {
	if success {
		m.NotificationsSent.Inc()
	} else {
		m.NotificationsFailed.Inc()
	}
}

// RecordFollowupScheduled records a scheduled follow-up reminder.
func (m *Metrics) RecordFollowupScheduled() {
	m.FollowupsScheduled.Inc()
}

// RecordFollowupFired records a delivered follow-up reminder.
func (m *Metrics) RecordFollowupFired() {
	m.FollowupsFired.Inc()
}

// RecordFollowupCanceled records a follow-up canceled by user activity.
func (m *Metrics) RecordFollowupCanceled() {
	m.FollowupsCanceled.Inc()
}

// RecordAICall records an AI provider call.
func (m *Metrics) RecordAICall(provider string, success bool, duration time.Duration) {
	status := outcomeFailure
	if success {
		status = outcomeSuccess
	}
	m.AICallsTotal.WithLabelValues(provider, status).Inc()
	m.AICallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordAICircuitOpen records a call rejected by an open circuit.
func (m *Metrics) RecordAICircuitOpen(provider string) {
	m.AICallsTotal.WithLabelValues(provider, "circuit_open").Inc()
}

// SetCircuitBreakerState sets the circuit breaker state for a provider.
// State: 0=closed, 1=open, 2=half-open
func (m *Metrics) SetCircuitBreakerState(provider string, state int) {
	m.CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}

// UpdateDBConnections updates database connection metrics.
func (m *Metrics) UpdateDBConnections(open, inUse int) {
	m.DBConnectionsOpen.Set(float64(open))
	m.DBConnectionsInUse.Set(float64(inUse))
}

// RecordRateLimitHit records a rate-limited request.
func (m *Metrics) RecordRateLimitHit() {
	m.RateLimitHitsTotal.Inc()
}
