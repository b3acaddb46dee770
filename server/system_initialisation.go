package server

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/go-auth-client/users"
)

const DefaultAdminEmail = "admin@interiors.local"

// InitialiseSystem seeds the admin account if it does not exist yet.
func (s *Server) InitialiseSystem() error {
	_, err := s.users.GetByEmail(DefaultAdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, users.ErrUserNotFound) {
		return fmt.Errorf("[Server InitialiseSystem] failed to look up admin: %w", err)
	}

	admin := &users.User{
		Name:                 "Administrator",
		Email:                DefaultAdminEmail,
		Role:                 users.RoleAdmin,
		IsVerified:           true,
		IsOnboardingComplete: true,
	}
	if err := s.users.Create(admin); err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to create admin: %w", err)
	}
	s.log.Info().Str("email", admin.Email).Msg("seeded admin account")
	return nil
}
