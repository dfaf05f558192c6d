package handler

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/mockapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLogin(t *testing.T) {
	g := newGateway(t, mockapi.Config{})

	resp := g.do(t, http.MethodPost, "/session/login", domain.Credentials{Email: "admin@example.org", Password: mockapi.DemoPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), g.sessions.Token(), "token must stay server side")
	assert.Contains(t, string(raw), `"status":"authorized"`)
	assert.Contains(t, string(raw), `"expiresAt"`)
	assert.Equal(t, domain.StatusAuthorized, g.sessions.Status())
}

func TestSessionLoginInvalidCredentials(t *testing.T) {
	g := newGateway(t, mockapi.Config{})

	resp := g.do(t, http.MethodPost, "/session/login", domain.Credentials{Email: "admin@example.org", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, domain.StatusUnauthorized, g.sessions.Status())
}

func TestSessionLoginRateLimited(t *testing.T) {
	g := newGateway(t, mockapi.Config{LoginLimit: 1, LoginWindow: time.Minute})

	first := g.do(t, http.MethodPost, "/session/login", domain.Credentials{Email: "admin@example.org", Password: "nope"})
	require.Equal(t, http.StatusUnauthorized, first.StatusCode)

	second := g.do(t, http.MethodPost, "/session/login", domain.Credentials{Email: "admin@example.org", Password: mockapi.DemoPassword})
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.NotEmpty(t, second.Header.Get("Retry-After"))
}

func TestSessionLoginValidatesBody(t *testing.T) {
	g := newGateway(t, mockapi.Config{})

	resp := g.do(t, http.MethodPost, "/session/login", domain.Credentials{Email: "admin@example.org"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionLogout(t *testing.T) {
	g := newGateway(t, mockapi.Config{})
	g.login(t, "admin@example.org")

	resp := g.do(t, http.MethodPost, "/session/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[SessionView](t, resp)
	assert.Equal(t, domain.StatusUnauthorized, view.Status)
	assert.Nil(t, view.User)

	// a second logout is harmless
	again := g.do(t, http.MethodPost, "/session/logout", nil)
	assert.Equal(t, http.StatusOK, again.StatusCode)
}

func TestSessionGetBeforeLogin(t *testing.T) {
	g := newGateway(t, mockapi.Config{})

	view := decode[SessionView](t, g.do(t, http.MethodGet, "/session", nil))
	assert.Equal(t, domain.StatusPending, view.Status)
	assert.Nil(t, view.ExpiresAt)
}
