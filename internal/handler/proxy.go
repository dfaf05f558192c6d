package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/api"
	"github.com/aryan0dhankhar/churchconsole/internal/service"
)

// NewAPIProxy forwards requests to the remote API through transport, which
// is expected to attach the session's bearer token. Mount it behind
// http.StripPrefix so that /api/members reaches {target}/members.
func NewAPIProxy(target *url.URL, transport http.RoundTripper, tenants *service.TenantService, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()

			// the browser never holds a token; only the gateway's is sent
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("Cookie")
			api.SetTenantScope(pr.Out.Header, tenants.ActiveChurchID(), tenants.ActiveMinistryID())
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			status, msg := proxyFailure(err)
			logger.Warn("proxied request failed",
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.String("error", err.Error()),
			)
			writeError(w, status, msg)
		},
	}
}

func proxyFailure(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrSessionEnded), errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusUnauthorized, "session expired"
	case errors.Is(err, domain.ErrRefreshUnavailable), errors.Is(err, domain.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "remote api unavailable"
	default:
		return http.StatusBadGateway, "remote api error"
	}
}
