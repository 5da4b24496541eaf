package filevault

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Register creates a user account. The password is stored as a bcrypt hash.
//
// Error types returned:
//   - ErrInvalidInput: a field failed validation
//   - ErrConflict: the email is already registered
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, fmt.Errorf("register: %w", err)
	}

	reg.Email = strings.TrimSpace(reg.Email)
	reg.Name = strings.TrimSpace(reg.Name)
	if err := s.validate.StructCtx(ctx, reg); err != nil {
		return User{}, fmt.Errorf("register: %w", s.validationError(err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("register: hash password: %w", err)
	}

	u, err := s.repo.CreateUser(ctx, NewUser{
		Email:        reg.Email,
		Name:         reg.Name,
		PasswordHash: string(hash),
	})
	if err != nil {
		return User{}, fmt.Errorf("register: %w", err)
	}

	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]UserSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users, err := s.repo.ListUsers(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Profile returns the user with their keys and files.
func (s *Service) Profile(ctx context.Context, user User) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, fmt.Errorf("profile: %w", err)
	}

	keys, err := s.repo.ListAPIKeys(ctx, user.ID)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: %w", err)
	}

	files, err := s.repo.ListFiles(ctx, user.ID)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: %w", err)
	}

	return Profile{User: user, APIKeys: keys, Files: files}, nil
}

func (s *Service) UpdateName(ctx context.Context, userID int64, name string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, fmt.Errorf("update name: %w", err)
	}

	name = strings.TrimSpace(name)
	if err := s.validate.VarCtx(ctx, name, "required,max=100"); err != nil {
		return User{}, fmt.Errorf("update name: %w", s.validationError(err))
	}

	u, err := s.repo.UpdateUserName(ctx, userID, name)
	if err != nil {
		return User{}, fmt.Errorf("update name: %w", err)
	}
	return u, nil
}
