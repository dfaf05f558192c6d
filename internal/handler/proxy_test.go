package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/mockapi"
	"github.com/aryan0dhankhar/churchconsole/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyAddsTenantScope(t *testing.T) {
	g := newGateway(t, mockapi.Config{})
	g.login(t, "leader@example.org")

	resp := g.do(t, http.MethodGet, "/api/members", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	members := decode[[]mockapi.Member](t, resp)
	require.NotEmpty(t, members)
	for _, m := range members {
		assert.Equal(t, domain.ID("1"), m.ChurchID)
		assert.Equal(t, domain.ID("10"), m.MinistryID)
	}
	assert.Contains(t, g.mock.SeenTokens(), g.sessions.Token())
}

func TestProxyWithoutSessionPassesThrough(t *testing.T) {
	g := newGateway(t, mockapi.Config{})

	resp := g.do(t, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, g.mock.SeenTokens())
}

func TestProxyRejectedRefreshEndsSession(t *testing.T) {
	g := newGateway(t, mockapi.Config{})
	g.login(t, "leader@example.org")

	notes, unsubscribe := g.hub.Subscribe()
	defer unsubscribe()

	stale, err := g.mock.IssueToken("200", 30*time.Second)
	require.NoError(t, err)
	g.sessions.SetAccessToken(stale)
	g.mock.RejectRenewals(true)

	resp := g.do(t, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "session expired", body.Error)

	assert.Equal(t, domain.StatusUnauthorized, g.sessions.Status())
	assert.Empty(t, g.mock.SeenTokens(), "nothing is sent after a failed refresh")
	assert.Equal(t, domain.ID(""), g.tenants.ActiveChurchID())

	select {
	case n := <-notes:
		assert.Equal(t, service.NotificationSessionExpired, n.Code)
		assert.Equal(t, domain.LevelError, n.Level)
	case <-time.After(time.Second):
		t.Fatal("expected a session expired notification")
	}
}

func TestProxyFailure(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: %w", domain.ErrSessionExpired, domain.ErrRefreshRejected), http.StatusUnauthorized},
		{domain.ErrSessionEnded, http.StatusUnauthorized},
		{fmt.Errorf("%w: boom", domain.ErrRefreshUnavailable), http.StatusServiceUnavailable},
		{domain.ErrCircuitOpen, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusBadGateway},
		{errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		status, _ := proxyFailure(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
