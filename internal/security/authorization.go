package security

import (
	"github.com/aryan0dhankhar/churchconsole/internal/domain"
)

// Visibility decides which tenants a user can see.
// It is classified once from the user's roles.
type Visibility interface {
	Name() string
	// Churches returns the churches the user may act within, in display order
	Churches(u *domain.User) []domain.Church
	// Ministries returns the ministries the user may select
	Ministries(u *domain.User) []domain.Ministry
	// SelectsMinistry reports whether an active ministry is tracked at all
	SelectsMinistry() bool
}

var (
	// VisibilityDirect sees directly assigned churches and never selects a ministry
	VisibilityDirect Visibility = directVisibility{}
	// VisibilityMinistryScoped sees churches through ministry assignments
	VisibilityMinistryScoped Visibility = ministryScopedVisibility{}
)

// IsPrivileged reports whether the roles include superuser or admin
func IsPrivileged(roles []domain.Role) bool {
	for _, r := range roles {
		if r == domain.RoleSuperuser || r == domain.RoleAdmin {
			return true
		}
	}
	return false
}

// ClassifyVisibility picks the strategy for a role set.
// A ministry user is scoped only when holding neither privileged role.
func ClassifyVisibility(roles []domain.Role) Visibility {
	if IsPrivileged(roles) {
		return VisibilityDirect
	}
	for _, r := range roles {
		if r == domain.RoleMinistryUser {
			return VisibilityMinistryScoped
		}
	}
	return VisibilityDirect
}

type directVisibility struct{}

func (directVisibility) Name() string { return "direct" }

func (directVisibility) Churches(u *domain.User) []domain.Church {
	if u == nil {
		return nil
	}
	return append([]domain.Church(nil), u.Churches...)
}

func (directVisibility) Ministries(*domain.User) []domain.Ministry { return nil }

func (directVisibility) SelectsMinistry() bool { return false }

type ministryScopedVisibility struct{}

func (ministryScopedVisibility) Name() string { return "ministry_scoped" }

func (ministryScopedVisibility) Churches(u *domain.User) []domain.Church {
	if u == nil {
		return nil
	}
	seen := make(map[domain.ID]struct{})
	var out []domain.Church
	for _, m := range u.Ministries {
		if m.Church == nil || m.Church.ID == "" {
			continue
		}
		if _, ok := seen[m.Church.ID]; ok {
			continue
		}
		seen[m.Church.ID] = struct{}{}
		out = append(out, *m.Church)
	}
	return out
}

func (ministryScopedVisibility) Ministries(u *domain.User) []domain.Ministry {
	if u == nil {
		return nil
	}
	return u.Clone().Ministries
}

func (ministryScopedVisibility) SelectsMinistry() bool { return true }
