package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/observability/metrics"
	"github.com/aryan0dhankhar/churchconsole/internal/security/audit"
	"github.com/aryan0dhankhar/churchconsole/internal/security/auth"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultRefreshTimeout bounds a single renew-token call
	DefaultRefreshTimeout = 10 * time.Second

	NotificationSessionExpired     = "session_expired"
	NotificationRefreshUnavailable = "refresh_unavailable"
)

// RefreshConfig tunes the coordinator
type RefreshConfig struct {
	Threshold time.Duration
	Timeout   time.Duration
}

// RefreshCoordinator keeps at most one renew-token call in flight per token.
// Concurrent callers share the outcome of that call.
type RefreshCoordinator struct {
	sessions  *SessionService
	api       domain.AuthAPI
	clock     *auth.TokenClock
	notifier  domain.Notifier
	audit     *audit.Logger
	logger    *slog.Logger
	threshold time.Duration
	timeout   time.Duration
	flights   singleflight.Group

	// shortLived is a token this coordinator obtained that was already
	// inside the threshold. It is used as is until it expires.
	mu         sync.Mutex
	shortLived string
}

// NewRefreshCoordinator creates a refresh coordinator
func NewRefreshCoordinator(
	sessions *SessionService,
	api domain.AuthAPI,
	clock *auth.TokenClock,
	notifier domain.Notifier,
	auditLog *audit.Logger,
	cfg RefreshConfig,
	logger *slog.Logger,
) *RefreshCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = auth.NewTokenClock()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = auth.DefaultRefreshThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRefreshTimeout
	}
	return &RefreshCoordinator{
		sessions:  sessions,
		api:       api,
		clock:     clock,
		notifier:  notifier,
		audit:     auditLog,
		logger:    logger,
		threshold: cfg.Threshold,
		timeout:   cfg.Timeout,
	}
}

// EnsureFresh returns a token that is not expiring soon, renewing it first
// when needed. A caller whose ctx ends stops waiting; the renew call keeps
// running for everyone else.
func (c *RefreshCoordinator) EnsureFresh(ctx context.Context) (string, error) {
	session, gen := c.sessions.current()
	if !session.Authorized() {
		return "", domain.ErrNotAuthorized
	}
	if !c.clock.IsExpiringSoon(session.Token, c.threshold) {
		return session.Token, nil
	}
	if c.isShortLived(session.Token) && !c.clock.IsExpired(session.Token) {
		return session.Token, nil
	}

	ch := c.flights.DoChan(session.Token, func() (interface{}, error) {
		return c.refresh(session.Token, gen)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.ObserveRefreshJoined()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *RefreshCoordinator) refresh(stale string, gen uint64) (string, error) {
	start := time.Now()

	// another flight may have finished between the caller's read and ours
	current, currentGen := c.sessions.current()
	if currentGen != gen || !current.Authorized() {
		return "", domain.ErrSessionEnded
	}
	if current.Token != stale && !c.clock.IsExpiringSoon(current.Token, c.threshold) {
		return current.Token, nil
	}

	lifetime := c.sessions.lifetimeFor(gen)
	ctx, cancel := context.WithTimeout(lifetime, c.timeout)
	defer cancel()

	userID := ""
	if current.User != nil {
		userID = string(current.User.ID)
	}

	token, err := c.api.RenewToken(ctx, current.Token)
	if err == nil && token == "" {
		err = errors.New("renew response carried no token")
	}

	switch {
	case err == nil:
		if !c.sessions.SetAccessTokenFor(gen, token) {
			metrics.ObserveRefresh("superseded", time.Since(start))
			return "", domain.ErrSessionEnded
		}
		metrics.ObserveRefresh("success", time.Since(start))
		c.audit.LogRefresh(ctx, userID, "success", "")
		if c.clock.IsExpiringSoon(token, c.threshold) {
			c.markShortLived(token)
			c.logger.Warn("renewed token expires within the refresh threshold",
				slog.Duration("threshold", c.threshold),
			)
		}
		c.logger.Debug("access token renewed", slog.Duration("took", time.Since(start)))
		return token, nil

	case lifetime.Err() != nil:
		metrics.ObserveRefresh("superseded", time.Since(start))
		return "", domain.ErrSessionEnded

	case errors.Is(err, domain.ErrRefreshRejected) || errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		metrics.ObserveRefresh("fatal", time.Since(start))
		c.audit.LogRefresh(ctx, userID, "failure", err.Error())
		c.logger.Warn("token refresh failed, ending session", slog.String("error", err.Error()))

		if !c.sessions.endSession(context.Background(), gen, "refresh_failed") {
			return "", domain.ErrSessionEnded
		}
		c.notify(domain.Notification{
			Level:   domain.LevelError,
			Code:    NotificationSessionExpired,
			Message: "Your session has expired. Please sign in again.",
		})
		return "", fmt.Errorf("%w: %w", domain.ErrSessionExpired, err)

	default:
		metrics.ObserveRefresh("unavailable", time.Since(start))
		c.audit.LogRefresh(ctx, userID, "failure", err.Error())
		c.logger.Warn("token refresh unavailable", slog.String("error", err.Error()))
		c.notify(domain.Notification{
			Level:   domain.LevelWarning,
			Code:    NotificationRefreshUnavailable,
			Message: "Could not renew your session. Retrying on the next request.",
		})
		return "", fmt.Errorf("%w: %w", domain.ErrRefreshUnavailable, err)
	}
}

func (c *RefreshCoordinator) isShortLived(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return token != "" && token == c.shortLived
}

func (c *RefreshCoordinator) markShortLived(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shortLived = token
}

func (c *RefreshCoordinator) notify(n domain.Notification) {
	if c.notifier == nil {
		return
	}
	n.At = c.clock.Now()
	c.notifier.Notify(context.Background(), n)
}
