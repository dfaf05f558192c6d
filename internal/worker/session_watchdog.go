package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/observability/metrics"
	"github.com/robfig/cron/v3"
)

// SessionReader exposes the current session
type SessionReader interface {
	Snapshot() domain.Session
}

// TokenSource renews the session token when it is about to expire
type TokenSource interface {
	EnsureFresh(ctx context.Context) (string, error)
}

// Watchdog outcomes, also used as the metric label
const (
	ResultIdle      = "idle"
	ResultFresh     = "fresh"
	ResultRefreshed = "refreshed"
	ResultExpired   = "expired"
	ResultFailed    = "failed"
)

// SessionWatchdog renews the token of an idle session on a cron schedule,
// so a session without traffic does not silently lapse.
type SessionWatchdog struct {
	sessions SessionReader
	tokens   TokenSource
	logger   *slog.Logger
	timeout  time.Duration
	schedule string
	cron     *cron.Cron
}

// NewSessionWatchdog creates a watchdog. schedule accepts standard cron
// expressions and descriptors such as "@every 30s".
func NewSessionWatchdog(sessions SessionReader, tokens TokenSource, schedule string, timeout time.Duration, logger *slog.Logger) (*SessionWatchdog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	w := &SessionWatchdog{
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		timeout:  timeout,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := w.cron.AddFunc(schedule, func() { w.Check(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid watchdog schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Start runs the schedule until ctx is done
func (w *SessionWatchdog) Start(ctx context.Context) {
	w.cron.Start()
	w.logger.Info("session watchdog started", slog.String("schedule", w.schedule))

	<-ctx.Done()
	<-w.cron.Stop().Done()
	w.logger.Info("session watchdog stopped")
}

// Check renews the token once if the session needs it
func (w *SessionWatchdog) Check(ctx context.Context) string {
	result := w.check(ctx)
	metrics.ObserveWatchdog(result)
	return result
}

func (w *SessionWatchdog) check(ctx context.Context) string {
	before := w.sessions.Snapshot()
	if !before.Authorized() {
		return ResultIdle
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	token, err := w.tokens.EnsureFresh(ctx)
	switch {
	case err == nil && token != before.Token:
		w.logger.Debug("watchdog renewed session token")
		return ResultRefreshed
	case err == nil:
		return ResultFresh
	case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrSessionEnded), errors.Is(err, domain.ErrNotAuthorized):
		w.logger.Info("watchdog observed session end", slog.String("error", err.Error()))
		return ResultExpired
	default:
		w.logger.Warn("watchdog refresh failed", slog.String("error", err.Error()))
		return ResultFailed
	}
}
