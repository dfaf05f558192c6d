package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/featureflags"
	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/api"
	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/filestore"
	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/postgres"
	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/churchconsole/internal/notify"
	"github.com/aryan0dhankhar/churchconsole/internal/repository"
	"github.com/aryan0dhankhar/churchconsole/internal/security/audit"
	"github.com/aryan0dhankhar/churchconsole/internal/security/auth"
	"github.com/aryan0dhankhar/churchconsole/internal/security/ratelimit"
	"github.com/aryan0dhankhar/churchconsole/internal/service"
	"github.com/aryan0dhankhar/churchconsole/pkg/cache"
	"github.com/aryan0dhankhar/churchconsole/pkg/config"
	"github.com/aryan0dhankhar/churchconsole/pkg/database"
)

// App holds the session core of one process. The gateway, the CLI and the
// watchdog all share the same instances.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    domain.KVStore
	Clock    *auth.TokenClock
	Audit    *audit.Logger
	Hub      *notify.Hub
	API      *api.Client
	Authed   *api.Client
	Sessions *service.SessionService
	Tenants  *service.TenantService
	Refresh  *service.RefreshCoordinator

	closers     []func() error
	limiterOnce sync.Once
	limiter     *ratelimit.Limiter
}

// Options adjusts how New builds the app
type Options struct {
	// Store overrides the configured storage backend
	Store domain.KVStore
	// Notifiers receive notifications in addition to the log and the hub
	Notifiers []domain.Notifier
}

// New builds the app and restores the persisted session
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	store := opts.Store
	if store == nil {
		var closer func() error
		var err error
		store, closer, err = OpenStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}
	a.Store = store

	client, err := api.NewClient(api.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
	}, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.API = client

	flags := featureflags.FromEnv()
	logger.Debug("feature flags loaded", slog.Any("enabled", flags))
	a.Clock = auth.NewTokenClock(auth.WithStrictDecode(flags.Enabled(featureflags.StrictTokenDecode)))
	a.Audit = audit.NewLogger(logger)
	a.Hub = notify.NewHub(logger)

	notifiers := notify.Fanout{notify.NewLogNotifier(logger), a.Hub}
	notifiers = append(notifiers, opts.Notifiers...)

	a.Tenants = service.NewTenantService(repository.NewTenantRepository(store, logger), a.Audit, logger)
	a.Sessions = service.NewSessionService(client, repository.NewSessionRepository(store, logger), a.Tenants, a.Clock, a.Audit, logger)
	a.Refresh = service.NewRefreshCoordinator(a.Sessions, client, a.Clock, notifiers, a.Audit, service.RefreshConfig{
		Threshold: cfg.RefreshThreshold,
		Timeout:   cfg.RefreshTimeout,
	}, logger)
	a.Authed = api.NewAuthenticatedClient(client, a.Sessions, a.Refresh)
	a.closers = append(a.closers, func() error {
		a.Sessions.Close()
		return nil
	})

	a.Sessions.Hydrate(ctx)
	return a, nil
}

// Close releases storage connections and cancels the session lifetime.
// The persisted session is kept.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// OpenStore connects the configured storage backend
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.KVStore, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return cache.New(), nil, nil

	case config.StorageRedis:
		client, err := redis.NewClient(cfg.RedisURL, cfg.RedisPrefix, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil

	case config.StoragePostgres:
		pool, err := database.NewConnectionPool(ctx, &database.Config{URL: cfg.DatabaseURL}, logger)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewStore(pool.GetDB(), logger)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case config.StorageFile, "":
		opts := []filestore.Option{filestore.WithLogger(logger)}
		if cfg.StorageSecret != "" {
			opts = append(opts, filestore.WithSecret(cfg.StorageSecret))
		} else {
			logger.Warn("file storage is not sealed; set STORAGE_SECRET to encrypt tokens at rest")
		}
		store, err := filestore.New(cfg.StorageDir, opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
