package app

import (
	"net/http"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/handler"
	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/api"
	"github.com/aryan0dhankhar/churchconsole/internal/observability/metrics"
	"github.com/aryan0dhankhar/churchconsole/internal/security/middleware"
	"github.com/aryan0dhankhar/churchconsole/internal/security/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler returns the gateway routes the browser talks to.
// The browser never sees the access token; the gateway attaches it
// to every request it proxies under /api/.
func (a *App) Handler() http.Handler {
	log := a.Logger

	sessionH := handler.NewSessionHandler(a.Sessions, a.Clock, log)
	contextH := handler.NewContextHandler(a.Sessions, a.Tenants, log)
	healthH := handler.NewHealthHandler(a.Store, log)
	notesH := handler.NewNotificationsHandler(a.Hub, log, a.Config.CORSAllowedOrigins)
	proxy := handler.NewAPIProxy(
		a.API.BaseURL(),
		api.NewAuthenticator(a.Sessions, a.Refresh, a.API.Transport()),
		a.Tenants,
		log,
	)

	mux := http.NewServeMux()
	mux.Handle("POST /session/login", middleware.RateLimit(a.loginLimiter(), log)(http.HandlerFunc(sessionH.Login)))
	mux.HandleFunc("POST /session/logout", sessionH.Logout)
	mux.HandleFunc("GET /session", sessionH.Get)
	mux.HandleFunc("GET /context", contextH.Get)
	mux.HandleFunc("PUT /context/church", contextH.SetChurch)
	mux.HandleFunc("PUT /context/ministry", contextH.SetMinistry)
	mux.Handle("GET /ws/notifications", notesH)
	mux.Handle("/api/", middleware.SanitizePath(log)(http.StripPrefix("/api", proxy)))
	mux.HandleFunc("GET /healthz", healthH.Health)
	mux.HandleFunc("GET /readyz", healthH.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	// request ID -> CORS -> metrics -> content type -> routes
	root := middleware.RequestID(log)(
		middleware.CORS(a.Config.CORSAllowedOrigins)(
			metrics.HTTPMetricsMiddleware(
				middleware.ValidateJSONContentType(log)(mux),
			),
		),
	)
	return otelhttp.NewHandler(root, "churchconsole-gateway")
}

// loginLimiter is shared by every handler built from this app
func (a *App) loginLimiter() *ratelimit.Limiter {
	a.limiterOnce.Do(func() {
		limit := a.Config.LoginRateLimit
		if limit <= 0 {
			limit = 10
		}
		a.limiter = ratelimit.NewLimiter(limit, time.Minute)
		a.closers = append(a.closers, func() error {
			a.limiter.Stop()
			return nil
		})
	})
	return a.limiter
}
