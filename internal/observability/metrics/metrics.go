package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churchconsole_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "churchconsole_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churchconsole_api_client_requests_total",
		Help: "Outbound requests to the remote API",
	}, []string{"code", "method"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "churchconsole_api_client_request_duration_seconds",
		Help:    "Duration of outbound requests to the remote API",
		Buckets: prometheus.DefBuckets,
	}, []string{"code", "method"})

	apiInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "churchconsole_api_client_in_flight_requests",
		Help: "Outbound requests currently in flight",
	})

	refreshAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churchconsole_token_refresh_total",
		Help: "Token refresh flights by result",
	}, []string{"result"})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "churchconsole_token_refresh_duration_seconds",
		Help:    "Duration of token refresh flights",
		Buckets: prometheus.DefBuckets,
	})

	refreshWaiters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "churchconsole_token_refresh_joined_total",
		Help: "Callers that joined a refresh flight started by someone else",
	})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churchconsole_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	logouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churchconsole_logouts_total",
		Help: "Logouts by reason",
	}, []string{"reason"})

	sessionAuthorized = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "churchconsole_session_authorized",
		Help: "1 while the console session is authorized",
	})

	tenantSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churchconsole_tenant_switches_total",
		Help: "Active church or ministry changes",
	}, []string{"kind"})

	watchdogRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churchconsole_session_watchdog_runs_total",
		Help: "Session watchdog runs by result",
	}, []string{"result"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churchconsole_notifications_total",
		Help: "User notifications emitted by level",
	}, []string{"level"})

	apiCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "churchconsole_api_circuit_state",
		Help: "Remote API circuit: 0 closed, 1 half open, 2 open",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveRefresh records one refresh flight
func ObserveRefresh(result string, duration time.Duration) {
	refreshAttempts.WithLabelValues(result).Inc()
	refreshDuration.Observe(duration.Seconds())
}

// ObserveRefreshJoined counts a caller that shared another caller's flight
func ObserveRefreshJoined() {
	refreshWaiters.Inc()
}

// ObserveLogin records a login attempt
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// ObserveLogout records a logout and the reason for it
func ObserveLogout(reason string) {
	logouts.WithLabelValues(reason).Inc()
}

// SetSessionAuthorized sets the session gauge
func SetSessionAuthorized(authorized bool) {
	if authorized {
		sessionAuthorized.Set(1)
		return
	}
	sessionAuthorized.Set(0)
}

// ObserveTenantSwitch records a church or ministry selection
func ObserveTenantSwitch(kind string) {
	tenantSwitches.WithLabelValues(kind).Inc()
}

// ObserveWatchdog records a watchdog run
func ObserveWatchdog(result string) {
	watchdogRuns.WithLabelValues(result).Inc()
}

// ObserveNotification counts a user notification
func ObserveNotification(level string) {
	notifications.WithLabelValues(level).Inc()
}

// SetAPICircuitState records the remote API circuit state by name
func SetAPICircuitState(state string) {
	switch state {
	case "open":
		apiCircuitState.Set(2)
	case "half_open":
		apiCircuitState.Set(1)
	default:
		apiCircuitState.Set(0)
	}
}
