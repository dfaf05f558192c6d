package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/observability/metrics"
	"github.com/aryan0dhankhar/churchconsole/internal/security"
	"github.com/aryan0dhankhar/churchconsole/internal/security/audit"
)

// TenantService owns the active church and ministry selection.
// After every mutation: a non-empty AvailableChurches means ActiveChurchID is
// one of them, and ActiveMinistryID is empty or bound to ActiveChurchID.
type TenantService struct {
	mu         sync.RWMutex
	repo       domain.TenantRepository
	audit      *audit.Logger
	logger     *slog.Logger
	user       *domain.User
	visibility security.Visibility
	state      domain.TenantContext
}

// NewTenantService creates a tenant service
func NewTenantService(repo domain.TenantRepository, auditLog *audit.Logger, logger *slog.Logger) *TenantService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantService{
		repo:       repo,
		audit:      auditLog,
		logger:     logger,
		visibility: security.VisibilityDirect,
	}
}

// Initialize recomputes the available collections for user and resolves the
// active selection, keeping the persisted one where it is still valid.
func (s *TenantService) Initialize(ctx context.Context, user *domain.User) {
	if user == nil {
		s.Reset(ctx)
		return
	}

	persisted := s.loadRecord(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = user.Clone()
	s.visibility = security.ClassifyVisibility(s.user.Roles)

	next := domain.TenantContext{
		AvailableChurches:   s.visibility.Churches(s.user),
		AvailableMinistries: s.visibility.Ministries(s.user),
	}

	switch {
	case persisted.ActiveChurchID != "" && containsChurch(next.AvailableChurches, persisted.ActiveChurchID):
		next.ActiveChurchID = persisted.ActiveChurchID
	case len(next.AvailableChurches) > 0:
		next.ActiveChurchID = next.AvailableChurches[0].ID
	}

	if s.visibility.SelectsMinistry() {
		next.ActiveMinistryID = pickMinistry(next.AvailableMinistries, next.ActiveChurchID, persisted.ActiveMinistryID)
	}

	s.state = next
	s.logger.Info("tenant context initialized",
		slog.String("user_id", string(s.user.ID)),
		slog.String("visibility", s.visibility.Name()),
		slog.String("church_id", string(next.ActiveChurchID)),
		slog.String("ministry_id", string(next.ActiveMinistryID)),
		slog.Int("churches", len(next.AvailableChurches)),
	)
	s.persistLocked(ctx)
}

// SetActiveChurch selects a church from AvailableChurches and re-derives
// the active ministry for it.
func (s *TenantService) SetActiveChurch(ctx context.Context, id domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !containsChurch(s.state.AvailableChurches, id) {
		return domain.ErrChurchNotAvailable
	}

	s.state.ActiveChurchID = id
	if s.visibility.SelectsMinistry() {
		s.state.ActiveMinistryID = pickMinistry(s.state.AvailableMinistries, id, s.state.ActiveMinistryID)
	} else {
		s.state.ActiveMinistryID = ""
	}

	s.persistLocked(ctx)
	metrics.ObserveTenantSwitch("church")
	s.audit.LogChurchSwitch(ctx, s.userIDLocked(), string(id))
	return nil
}

// SetActiveMinistry sets the active ministry directly. An empty id clears it.
// Church membership is not checked; callers offer MinistriesForActiveChurch.
func (s *TenantService) SetActiveMinistry(ctx context.Context, id domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" && !s.visibility.SelectsMinistry() {
		return domain.ErrMinistrySelectionNotAllowed
	}

	s.state.ActiveMinistryID = id
	s.persistLocked(ctx)
	metrics.ObserveTenantSwitch("ministry")
	s.audit.LogMinistrySwitch(ctx, s.userIDLocked(), string(id))
	return nil
}

// Reset clears the selection and the persisted record
func (s *TenantService) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.visibility = security.VisibilityDirect
	s.state = domain.TenantContext{}
	s.persistLocked(ctx)
}

// Context returns a copy of the current tenant context
func (s *TenantService) Context() domain.TenantContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.state
	out.AvailableChurches = append([]domain.Church(nil), s.state.AvailableChurches...)
	out.AvailableMinistries = append([]domain.Ministry(nil), s.state.AvailableMinistries...)
	return out
}

func (s *TenantService) ActiveChurchID() domain.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ActiveChurchID
}

func (s *TenantService) ActiveMinistryID() domain.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ActiveMinistryID
}

// MinistriesForActiveChurch lists the selectable ministries for the active church
func (s *TenantService) MinistriesForActiveChurch() []domain.Ministry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ministriesOf(s.state.AvailableMinistries, s.state.ActiveChurchID)
}

func (s *TenantService) loadRecord(ctx context.Context) domain.TenantRecord {
	record, err := s.repo.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("ignoring unreadable tenant context", slog.String("error", err.Error()))
		}
		return domain.TenantRecord{}
	}
	return *record
}

func (s *TenantService) persistLocked(ctx context.Context) {
	record := &domain.TenantRecord{
		ActiveChurchID:   s.state.ActiveChurchID,
		ActiveMinistryID: s.state.ActiveMinistryID,
	}
	if err := s.repo.Save(ctx, record); err != nil {
		s.logger.Warn("failed to persist tenant context", slog.String("error", err.Error()))
	}
}

func (s *TenantService) userIDLocked() string {
	if s.user == nil {
		return ""
	}
	return string(s.user.ID)
}

func containsChurch(churches []domain.Church, id domain.ID) bool {
	for _, c := range churches {
		if c.ID == id {
			return true
		}
	}
	return false
}

func ministriesOf(ministries []domain.Ministry, churchID domain.ID) []domain.Ministry {
	if churchID == "" {
		return nil
	}
	var out []domain.Ministry
	for _, m := range ministries {
		if m.ChurchID() == churchID {
			out = append(out, m)
		}
	}
	return out
}

// pickMinistry keeps current if it is bound to churchID, else takes the
// church's first ministry, else returns "".
func pickMinistry(ministries []domain.Ministry, churchID, current domain.ID) domain.ID {
	bound := ministriesOf(ministries, churchID)
	if current != "" {
		for _, m := range bound {
			if m.ID == current {
				return current
			}
		}
	}
	if len(bound) > 0 {
		return bound[0].ID
	}
	return ""
}
