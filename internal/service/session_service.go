package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/observability/metrics"
	"github.com/aryan0dhankhar/churchconsole/internal/security/audit"
	"github.com/aryan0dhankhar/churchconsole/internal/security/auth"
)

// SessionService is the persisted login state machine.
// Token and user are set iff the status is authorized.
//
// Each login or successful hydration starts a new generation with its own
// lifetime context. Logout cancels that context, and token updates tagged
// with an older generation are dropped.
//
// Login, logout and hydrate hold transition until the tenant context has
// followed the session, so the two never disagree once a transition returns.
type SessionService struct {
	transition sync.Mutex
	mu         sync.RWMutex
	api        domain.AuthAPI
	repo       domain.SessionRepository
	tenants    *TenantService
	clock      *auth.TokenClock
	audit      *audit.Logger
	logger     *slog.Logger
	session    domain.Session
	generation uint64
	lifetime   context.Context
	cancel     context.CancelFunc
}

// NewSessionService creates a session service in the pending state
func NewSessionService(
	api domain.AuthAPI,
	repo domain.SessionRepository,
	tenants *TenantService,
	clock *auth.TokenClock,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = auth.NewTokenClock()
	}
	lifetime, cancel := context.WithCancel(context.Background())
	cancel()

	return &SessionService{
		api:      api,
		repo:     repo,
		tenants:  tenants,
		clock:    clock,
		audit:    auditLog,
		logger:   logger,
		session:  domain.Session{Status: domain.StatusPending},
		lifetime: lifetime,
		cancel:   cancel,
	}
}

// Login authenticates against the remote API and starts a new session.
// On failure an existing session is left untouched; a pending one becomes
// unauthorized. Failures are never retried here.
func (s *SessionService) Login(ctx context.Context, creds domain.Credentials) error {
	result, err := s.api.Login(ctx, creds)
	if err == nil && result.Token == "" {
		err = fmt.Errorf("login response carried no token")
	}
	if err != nil {
		s.mu.Lock()
		if s.session.Status == domain.StatusPending {
			s.session = domain.Session{Status: domain.StatusUnauthorized}
		}
		s.mu.Unlock()

		metrics.ObserveLogin(loginResult(err))
		s.audit.LogLogin(ctx, creds.Email, "failure", err.Error())
		return err
	}

	user := result.User.Clone()

	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	s.startGenerationLocked()
	s.session = domain.Session{
		Status: domain.StatusAuthorized,
		Token:  result.Token,
		User:   user,
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	metrics.ObserveLogin("success")
	metrics.SetSessionAuthorized(true)
	s.audit.LogLogin(ctx, string(user.ID), "success", "")
	s.logger.Info("session authorized",
		slog.String("user_id", string(user.ID)),
		slog.String("source", "login"),
	)

	s.tenants.Initialize(ctx, user)
	return nil
}

// Logout ends the session. Calling it again has no further effect.
// A login still in progress finishes first and is then ended.
func (s *SessionService) Logout(ctx context.Context) error {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	s.endSessionLocked(ctx, gen, "user")
	return nil
}

// endSession logs out only if gen is still the current generation.
// It reports whether an authorized session was ended by this call.
func (s *SessionService) endSession(ctx context.Context, gen uint64, reason string) bool {
	s.transition.Lock()
	defer s.transition.Unlock()
	return s.endSessionLocked(ctx, gen, reason)
}

func (s *SessionService) endSessionLocked(ctx context.Context, gen uint64, reason string) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	wasAuthorized := s.session.Status == domain.StatusAuthorized
	var userID string
	if s.session.User != nil {
		userID = string(s.session.User.ID)
	}

	s.cancel()
	s.generation++
	s.session = domain.Session{Status: domain.StatusUnauthorized}
	if err := s.repo.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear persisted session", slog.String("error", err.Error()))
	}
	s.mu.Unlock()

	s.tenants.Reset(ctx)
	metrics.SetSessionAuthorized(false)

	if wasAuthorized {
		metrics.ObserveLogout(reason)
		s.audit.LogLogout(ctx, userID, reason)
		s.logger.Info("session ended",
			slog.String("user_id", userID),
			slog.String("reason", reason),
		)
	}
	return wasAuthorized
}

// Hydrate restores the persisted session at process start. Absent,
// unreadable or expired records normalize to unauthorized and are cleared.
// It never refreshes the token.
func (s *SessionService) Hydrate(ctx context.Context) {
	s.transition.Lock()
	defer s.transition.Unlock()

	record, err := s.repo.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Debug("discarding unreadable session", slog.String("error", err.Error()))
		}
		s.discard(ctx)
		return
	}

	if record.Status != domain.StatusAuthorized || record.Token == "" || record.User == nil {
		s.logger.Debug("discarding incomplete session")
		s.discard(ctx)
		return
	}
	if s.clock.IsExpired(record.Token) {
		s.logger.Info("persisted session expired")
		s.discard(ctx)
		return
	}

	user := record.User.Clone()

	s.mu.Lock()
	s.startGenerationLocked()
	s.session = domain.Session{
		Status: domain.StatusAuthorized,
		Token:  record.Token,
		User:   user,
	}
	s.mu.Unlock()

	metrics.SetSessionAuthorized(true)
	s.logger.Info("session authorized",
		slog.String("user_id", string(user.ID)),
		slog.String("source", "hydrate"),
	)

	s.tenants.Initialize(ctx, user)
}

func (s *SessionService) discard(ctx context.Context) {
	s.mu.Lock()
	s.cancel()
	s.generation++
	s.session = domain.Session{Status: domain.StatusUnauthorized}
	if err := s.repo.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear persisted session", slog.String("error", err.Error()))
	}
	s.mu.Unlock()

	s.tenants.Reset(ctx)
	metrics.SetSessionAuthorized(false)
}

// SetAccessToken replaces the token of an authorized session.
// Status and user are left as they are.
func (s *SessionService) SetAccessToken(token string) {
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()
	s.SetAccessTokenFor(gen, token)
}

// SetAccessTokenFor replaces the token only if gen is still the current
// generation and the session is authorized. A refresh that completes after
// logout therefore cannot resurrect the session.
func (s *SessionService) SetAccessTokenFor(gen uint64, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.session.Status != domain.StatusAuthorized || token == "" {
		return false
	}
	s.session.Token = token
	s.persistLocked(context.Background())
	return true
}

// Status returns the current session status
func (s *SessionService) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Status
}

// User returns a copy of the logged-in user, or nil
func (s *SessionService) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.User.Clone()
}

// Token returns the current access token, or ""
func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

// Snapshot returns a copy of the session
func (s *SessionService) Snapshot() domain.Session {
	snap, _ := s.current()
	return snap
}

// Generation identifies the current session lifetime
func (s *SessionService) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Close cancels the current session lifetime without logging out
func (s *SessionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
}

func (s *SessionService) current() (domain.Session, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.session
	out.User = s.session.User.Clone()
	return out, s.generation
}

// lifetimeFor returns the lifetime context of generation gen.
// Stale generations get an already-cancelled context.
func (s *SessionService) lifetimeFor(gen uint64) context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if gen != s.generation {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.lifetime
}

func (s *SessionService) startGenerationLocked() {
	s.cancel()
	s.generation++
	s.lifetime, s.cancel = context.WithCancel(context.Background())
}

func (s *SessionService) persistLocked(ctx context.Context) {
	snapshot := s.session
	if err := s.repo.Save(ctx, &snapshot); err != nil {
		s.logger.Warn("failed to persist session", slog.String("error", err.Error()))
	}
}

func loginResult(err error) string {
	var rl *domain.RateLimitError
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.As(err, &rl):
		return "rate_limited"
	default:
		return "error"
	}
}
