package api

import (
	"context"
	"net/http"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
)

// Tenant scope headers understood by the API
const (
	HeaderChurchID   = "X-Church-ID"
	HeaderMinistryID = "X-Ministry-ID"
)

type scopeKey struct{}

type tenantScope struct {
	church   domain.ID
	ministry domain.ID
}

// WithTenantScope makes requests sent with ctx carry the given church and ministry
func WithTenantScope(ctx context.Context, church, ministry domain.ID) context.Context {
	return context.WithValue(ctx, scopeKey{}, tenantScope{church: church, ministry: ministry})
}

// SetTenantScope writes the scope headers. Empty ids remove the header.
func SetTenantScope(h http.Header, church, ministry domain.ID) {
	h.Del(HeaderChurchID)
	h.Del(HeaderMinistryID)
	if church != "" {
		h.Set(HeaderChurchID, string(church))
	}
	if ministry != "" {
		h.Set(HeaderMinistryID, string(ministry))
	}
}

func applyScope(ctx context.Context, h http.Header) {
	if s, ok := ctx.Value(scopeKey{}).(tenantScope); ok {
		SetTenantScope(h, s.church, s.ministry)
	}
}
