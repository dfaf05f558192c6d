package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/repository"
	"github.com/aryan0dhankhar/churchconsole/internal/security/audit"
	"github.com/aryan0dhankhar/churchconsole/internal/security/auth"
	"github.com/aryan0dhankhar/churchconsole/pkg/cache"
	"github.com/stretchr/testify/require"
)

var tokens = auth.NewTokenManager("test-secret", "")

func mustToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()
	tok, err := tokens.GenerateToken(userID, "", ttl)
	require.NoError(t, err)
	return tok
}

type fakeAuthAPI struct {
	mu          sync.Mutex
	loginResult *domain.LoginResult
	loginErr    error
	renewCalls  atomic.Int32
	renew       func(ctx context.Context, token string) (string, error)
}

func (f *fakeAuthAPI) Login(_ context.Context, _ domain.Credentials) (*domain.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	out := *f.loginResult
	return &out, nil
}

func (f *fakeAuthAPI) RenewToken(ctx context.Context, token string) (string, error) {
	f.renewCalls.Add(1)
	return f.renew(ctx, token)
}

func (f *fakeAuthAPI) setLogin(result *domain.LoginResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginResult, f.loginErr = result, err
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, n.Code)
	}
	return out
}

type fixture struct {
	store       *cache.Cache
	api         *fakeAuthAPI
	notes       *recordingNotifier
	tenants     *TenantService
	sessions    *SessionService
	coordinator *RefreshCoordinator
}

func newFixture(t *testing.T, cfg RefreshConfig) *fixture {
	t.Helper()
	f := &fixture{
		store: cache.New(),
		api:   &fakeAuthAPI{},
		notes: &recordingNotifier{},
	}
	auditLog := audit.NewLogger(nil)
	clock := auth.NewTokenClock()
	f.tenants = NewTenantService(repository.NewTenantRepository(f.store, nil), auditLog, nil)
	f.sessions = NewSessionService(f.api, repository.NewSessionRepository(f.store, nil), f.tenants, clock, auditLog, nil)
	f.coordinator = NewRefreshCoordinator(f.sessions, f.api, clock, f.notes, auditLog, cfg, nil)
	return f
}

// login authorizes the fixture's session with a token valid for ttl
func (f *fixture) login(t *testing.T, user domain.User, ttl time.Duration) string {
	t.Helper()
	tok := mustToken(t, string(user.ID), ttl)
	f.api.setLogin(&domain.LoginResult{Token: tok, User: user}, nil)
	require.NoError(t, f.sessions.Login(context.Background(), domain.Credentials{Email: user.Email, Password: "pw"}))
	return tok
}

var (
	churchA = domain.Church{ID: "a", Name: "Church A"}
	churchB = domain.Church{ID: "b", Name: "Church B"}
	churchC = domain.Church{ID: "c", Name: "Church C"}
)

func ministryUser() domain.User {
	a, b := churchA, churchB
	return domain.User{
		ID:    "u1",
		Name:  "Maria",
		Email: "maria@example.org",
		Roles: []domain.Role{domain.RoleMinistryUser},
		Ministries: []domain.Ministry{
			{ID: "m-a", Name: "Youth A", Church: &a},
			{ID: "m-b", Name: "Choir B", Church: &b},
		},
	}
}

func adminUser() domain.User {
	return domain.User{
		ID:       "u2",
		Name:     "Jon",
		Email:    "jon@example.org",
		Roles:    []domain.Role{domain.RoleAdmin},
		Churches: []domain.Church{churchA, churchB, churchC},
	}
}
