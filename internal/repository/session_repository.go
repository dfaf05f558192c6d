package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
)

// SessionRepository implements domain.SessionRepository over a KVStore
type SessionRepository struct {
	store  domain.KVStore
	logger *slog.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(store domain.KVStore, logger *slog.Logger) *SessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRepository{
		store:  store,
		logger: logger,
	}
}

// Load reads the persisted session.
// It returns domain.ErrKeyNotFound when nothing was stored.
func (r *SessionRepository) Load(ctx context.Context) (*domain.Session, error) {
	data, err := r.store.Get(ctx, domain.SessionStorageKey)
	if err != nil {
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Save writes the session record
func (r *SessionRepository) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.store.Set(ctx, domain.SessionStorageKey, data); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	r.logger.Debug("session stored", slog.String("status", string(session.Status)))
	return nil
}

// Clear removes the session record
func (r *SessionRepository) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, domain.SessionStorageKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
