package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-dms/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetUser(ctx context.Context, id int64) (User, error)
	ListDrivers(ctx context.Context) ([]User, error)
}

// Service answers identity questions for the rest of the application.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListDrivers returns active driver accounts.
func (s *Service) ListDrivers(ctx context.Context) ([]User, error) {
	return s.repo.ListDrivers(ctx)
}

// DisplayName resolves a user's display name. Unresolvable users map to
// the empty string so callers can persist it verbatim.
func (s *Service) DisplayName(ctx context.Context, id int64) string {
	if id == 0 {
		return ""
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return ""
	}
	return user.Name
}

// VerifyCredential re-checks the acting user's password. Destructive
// operations call this before proceeding.
func (s *Service) VerifyCredential(ctx context.Context, id int64, password string) error {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return shared.ErrInvalidCredentials
		}
		return fmt.Errorf("users: verify credential: %w", err)
	}
	if !user.IsActive {
		return shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return shared.ErrInvalidCredentials
	}
	return nil
}
