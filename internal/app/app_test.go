package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/filestore"
	"github.com/aryan0dhankhar/churchconsole/internal/mockapi"
	"github.com/aryan0dhankhar/churchconsole/pkg/cache"
	"github.com/aryan0dhankhar/churchconsole/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(apiURL string) *config.Config {
	return &config.Config{
		Environment:        "test",
		ServerPort:         8080,
		APIBaseURL:         apiURL,
		APITimeout:         5 * time.Second,
		RefreshThreshold:   time.Minute,
		RefreshTimeout:     5 * time.Second,
		WatchdogSchedule:   "@every 30s",
		StorageBackend:     config.StorageMemory,
		CORSAllowedOrigins: []string{"http://console.local"},
		LoginRateLimit:     10,
	}
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mock := mockapi.New(mockapi.Config{}, nil)
	require.NoError(t, mock.SeedDemo())
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(func() {
		srv.Close()
		mock.Close()
	})
	return srv
}

func newApp(t *testing.T, cfg *config.Config, store domain.KVStore) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, nil, Options{Store: store})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewStartsUnauthorized(t *testing.T) {
	upstream := newUpstream(t)
	a := newApp(t, testConfig(upstream.URL), cache.New())

	assert.Equal(t, domain.StatusUnauthorized, a.Sessions.Status())
	assert.NotNil(t, a.Authed)
}

func TestNewRestoresPersistedSession(t *testing.T) {
	upstream := newUpstream(t)
	store := cache.New()
	cfg := testConfig(upstream.URL)

	first := newApp(t, cfg, store)
	require.NoError(t, first.Sessions.Login(context.Background(), domain.Credentials{Email: "admin@example.org", Password: mockapi.DemoPassword}))
	require.NoError(t, first.Tenants.SetActiveChurch(context.Background(), "2"))

	second := newApp(t, cfg, store)
	assert.Equal(t, domain.StatusAuthorized, second.Sessions.Status())
	assert.Equal(t, first.Sessions.Token(), second.Sessions.Token())
	assert.Equal(t, domain.ID("2"), second.Tenants.ActiveChurchID())

	var me domain.User
	require.NoError(t, second.Authed.Get(context.Background(), "/me", &me))
	assert.Equal(t, domain.ID("100"), me.ID)
}

func TestGatewayRoutes(t *testing.T) {
	upstream := newUpstream(t)
	a := newApp(t, testConfig(upstream.URL), cache.New())
	gw := httptest.NewServer(a.Handler())
	defer gw.Close()

	body, _ := json.Marshal(domain.Credentials{Email: "leader@example.org", Password: mockapi.DemoPassword})
	resp, err := http.Post(gw.URL+"/session/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(gw.URL + "/api/members")
	require.NoError(t, err)
	var members []mockapi.Member
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&members))
	resp.Body.Close()
	require.NotEmpty(t, members)
	assert.Equal(t, domain.ID("10"), members[0].MinistryID)

	resp, err = http.Get(gw.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(gw.URL + "/metrics")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Contains(t, buf.String(), "churchconsole_")
}

func TestGatewayRejectsFormLogin(t *testing.T) {
	upstream := newUpstream(t)
	a := newApp(t, testConfig(upstream.URL), cache.New())
	gw := httptest.NewServer(a.Handler())
	defer gw.Close()

	resp, err := http.Post(gw.URL+"/session/login", "application/x-www-form-urlencoded", bytes.NewBufferString("email=a"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestHandlerSharesLoginLimiter(t *testing.T) {
	upstream := newUpstream(t)
	a := newApp(t, testConfig(upstream.URL), cache.New())

	_ = a.Handler()
	limiter := a.limiter
	closers := len(a.closers)
	require.NotNil(t, limiter)

	_ = a.Handler()
	assert.Same(t, limiter, a.limiter)
	assert.Len(t, a.closers, closers)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	store, closer, err := OpenStore(ctx, &config.Config{StorageBackend: config.StorageMemory}, nil)
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.IsType(t, &cache.Cache{}, store)

	store, _, err = OpenStore(ctx, &config.Config{StorageBackend: config.StorageFile, StorageDir: t.TempDir(), StorageSecret: "s3cret"}, nil)
	require.NoError(t, err)
	fs, ok := store.(*filestore.Store)
	require.True(t, ok)
	assert.True(t, fs.Sealed())

	_, _, err = OpenStore(ctx, &config.Config{StorageBackend: "s3"}, nil)
	assert.Error(t, err)
}
