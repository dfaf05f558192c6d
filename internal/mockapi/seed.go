package mockapi

import "github.com/aryan0dhankhar/churchconsole/internal/domain"

// DemoPassword is the password of every seeded account
const DemoPassword = "changeme"

// SeedDemo registers an admin and a ministry-scoped user over two churches
func (s *Server) SeedDemo() error {
	north := domain.Church{ID: "1", Name: "North Church"}
	south := domain.Church{ID: "2", Name: "South Church"}

	accounts := []domain.User{
		{
			ID:       "100",
			Name:     "Admin",
			Email:    "admin@example.org",
			Roles:    []domain.Role{domain.RoleAdmin},
			Churches: []domain.Church{north, south},
		},
		{
			ID:    "200",
			Name:  "Ministry Leader",
			Email: "leader@example.org",
			Roles: []domain.Role{domain.RoleMinistryUser},
			Ministries: []domain.Ministry{
				{ID: "10", Name: "Youth", Church: &north},
				{ID: "20", Name: "Worship", Church: &south},
			},
		},
	}
	for _, u := range accounts {
		if err := s.users.AddUser(u, DemoPassword); err != nil {
			return err
		}
	}
	return nil
}
