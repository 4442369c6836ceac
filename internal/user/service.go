// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/erasure/internal/auth"
	"github.com/carterperez-dev/erasure/internal/core"
)

// Patch is a partial profile edit. Nil fields are left untouched.
type Patch struct {
	Name *string
	Role *string
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Accounts exposes the credential side of the user table to the auth
// service.
func (s *Service) Accounts() auth.UserProvider {
	return accounts{repo: s.repo}
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, fmt.Errorf("get user: %w", core.ErrUnauthorized)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

// IsActive is false while a deletion is pending or has failed.
func (s *Service) IsActive(ctx context.Context, userID string) (bool, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.Usable(), nil
}

// Edit applies p to the account. Accounts with a deletion in flight are
// frozen until the request is cancelled.
func (s *Service) Edit(ctx context.Context, id string, p Patch) (*User, error) {
	if p.Role != nil && *p.Role != RoleUser && *p.Role != RoleAdmin {
		return nil, fmt.Errorf(
			"edit user: invalid role %q: %w",
			*p.Role,
			core.ErrInvalidInput,
		)
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Lifecycle() != LifecycleActive {
		return nil, core.ConflictError("account has a deletion in progress")
	}

	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Role != nil {
		u.Role = *p.Role
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

type accounts struct {
	repo Repository
}

func (a accounts) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	u, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserInfo(u), nil
}

func (a accounts) GetByEmail(ctx context.Context, email string) (*auth.UserInfo, error) {
	u, err := a.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return toUserInfo(u), nil
}

func (a accounts) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.UserInfo, error) {
	u := &User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Role:         RoleUser,
	}
	if err := a.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return toUserInfo(u), nil
}

func (a accounts) IncrementTokenVersion(ctx context.Context, userID string) error {
	return a.repo.IncrementTokenVersion(ctx, userID)
}

func (a accounts) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return a.repo.UpdatePassword(ctx, userID, passwordHash)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Lifecycle:    u.Lifecycle(),
		TokenVersion: u.TokenVersion,
		CreatedAt:    u.CreatedAt,
	}
}
