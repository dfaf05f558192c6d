package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/api"
	"github.com/aryan0dhankhar/churchconsole/internal/mockapi"
	"github.com/aryan0dhankhar/churchconsole/internal/notify"
	"github.com/aryan0dhankhar/churchconsole/internal/repository"
	"github.com/aryan0dhankhar/churchconsole/internal/service"
	"github.com/aryan0dhankhar/churchconsole/pkg/cache"
	"github.com/stretchr/testify/require"
)

type gateway struct {
	mock     *mockapi.Server
	store    *cache.Cache
	sessions *service.SessionService
	tenants  *service.TenantService
	hub      *notify.Hub
	srv      *httptest.Server
}

func newGateway(t *testing.T, cfg mockapi.Config) *gateway {
	t.Helper()

	mock := mockapi.New(cfg, nil)
	require.NoError(t, mock.SeedDemo())
	upstream := httptest.NewServer(mock.Handler())
	t.Cleanup(func() {
		upstream.Close()
		mock.Close()
	})

	client, err := api.NewClient(api.Config{BaseURL: upstream.URL, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)

	store := cache.New()
	tenants := service.NewTenantService(repository.NewTenantRepository(store, nil), nil, nil)
	sessions := service.NewSessionService(client, repository.NewSessionRepository(store, nil), tenants, nil, nil, nil)
	hub := notify.NewHub(nil)
	coordinator := service.NewRefreshCoordinator(sessions, client, nil, hub, nil, service.RefreshConfig{}, nil)
	t.Cleanup(sessions.Close)

	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	sessionH := NewSessionHandler(sessions, nil, nil)
	contextH := NewContextHandler(sessions, tenants, nil)
	proxy := NewAPIProxy(target, api.NewAuthenticator(sessions, coordinator, client.Transport()), tenants, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session/login", sessionH.Login)
	mux.HandleFunc("POST /session/logout", sessionH.Logout)
	mux.HandleFunc("GET /session", sessionH.Get)
	mux.HandleFunc("GET /context", contextH.Get)
	mux.HandleFunc("PUT /context/church", contextH.SetChurch)
	mux.HandleFunc("PUT /context/ministry", contextH.SetMinistry)
	mux.Handle("GET /ws/notifications", NewNotificationsHandler(hub, nil, nil))
	mux.Handle("/api/", http.StripPrefix("/api", proxy))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &gateway{mock: mock, store: store, sessions: sessions, tenants: tenants, hub: hub, srv: srv}
}

func (g *gateway) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, g.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (g *gateway) login(t *testing.T, email string) {
	t.Helper()
	resp := g.do(t, http.MethodPost, "/session/login", domain.Credentials{Email: email, Password: mockapi.DemoPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
