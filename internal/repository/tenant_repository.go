package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
)

// TenantRepository implements domain.TenantRepository over a KVStore.
// Only the two active ids are stored.
type TenantRepository struct {
	store  domain.KVStore
	logger *slog.Logger
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(store domain.KVStore, logger *slog.Logger) *TenantRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantRepository{store: store, logger: logger}
}

// Load reads the persisted selection
func (r *TenantRepository) Load(ctx context.Context) (*domain.TenantRecord, error) {
	data, err := r.store.Get(ctx, domain.TenantStorageKey)
	if err != nil {
		return nil, err
	}

	var record domain.TenantRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tenant context: %w", err)
	}
	return &record, nil
}

// Save writes the selection
func (r *TenantRepository) Save(ctx context.Context, record *domain.TenantRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal tenant context: %w", err)
	}

	if err := r.store.Set(ctx, domain.TenantStorageKey, data); err != nil {
		return fmt.Errorf("failed to store tenant context: %w", err)
	}

	r.logger.Debug("tenant context stored",
		slog.String("church_id", string(record.ActiveChurchID)),
		slog.String("ministry_id", string(record.ActiveMinistryID)),
	)
	return nil
}
