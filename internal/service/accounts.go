// Package service contains application services for accounts and documents.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	pkgcrypto "github.com/and161185/doc-keeper/internal/crypto"
	"github.com/and161185/doc-keeper/internal/errs"
	"github.com/and161185/doc-keeper/internal/model"
	"github.com/and161185/doc-keeper/internal/repository"
)

// AccountService defines registration, authentication and administration of users.
type AccountService interface {
	// Register creates a user with empty projects and permissions.
	Register(ctx context.Context, username, password string) error
	// Authenticate checks a username/password pair.
	Authenticate(ctx context.Context, username, password string) (model.User, error)
	// Get loads a user by name.
	Get(ctx context.Context, username string) (model.User, error)
	// ListUsers returns users whose name contains filter, case-insensitively.
	ListUsers(ctx context.Context, filter string) ([]model.User, error)
	// UpdateUser replaces projects/permissions; an empty password leaves it unchanged.
	UpdateUser(ctx context.Context, username, password string, projects []string, perms []model.Permission) error
	// DeleteUser removes a user.
	DeleteUser(ctx context.Context, username string) error
}

type AccountServiceImpl struct {
	users repository.UserRepository
}

// NewAccountService constructs AccountService over the Account Store.
func NewAccountService(users repository.UserRepository) *AccountServiceImpl {
	return &AccountServiceImpl{users: users}
}

func validUsername(username string) bool {
	return username != "" && strings.TrimSpace(username) == username && !strings.ContainsAny(username, ",\x00")
}

// Register creates a new user record with a salted password hash.
func (s *AccountServiceImpl) Register(ctx context.Context, username, password string) error {
	if !validUsername(username) || password == "" {
		return fmt.Errorf("%w: empty or malformed username/password", errs.ErrInvalidInput)
	}
	hash, salt, err := pkgcrypto.NewPasswordHash(password)
	if err != nil {
		return err
	}
	u := &model.User{
		Username:    username,
		PwdHash:     hash,
		PwdSalt:     salt,
		Projects:    model.Projects{},
		Permissions: model.Permissions{},
	}
	return s.users.Create(ctx, u)
}

// Authenticate loads the user and verifies the password. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *AccountServiceImpl) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.User{}, errs.ErrInvalidCredentials
		}
		return model.User{}, err
	}
	if !pkgcrypto.VerifyPassword([]byte(password), u.PwdSalt, u.PwdHash) {
		return model.User{}, errs.ErrInvalidCredentials
	}
	return *u, nil
}

// Get loads a user by name.
func (s *AccountServiceImpl) Get(ctx context.Context, username string) (model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// ListUsers filters by case-insensitive substring of the username.
func (s *AccountServiceImpl) ListUsers(ctx context.Context, filter string) ([]model.User, error) {
	all, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(filter))
	out := make([]model.User, 0, len(all))
	for _, u := range all {
		if needle == "" || strings.Contains(strings.ToLower(u.Username), needle) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// UpdateUser validates the permission names and applies an administrator edit.
func (s *AccountServiceImpl) UpdateUser(ctx context.Context, username, password string, projects []string, perms []model.Permission) error {
	if username == "" {
		return fmt.Errorf("%w: empty username", errs.ErrInvalidInput)
	}
	set, err := model.NewPermissions(perms...)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}
	upd := model.UserUpdate{
		Username:    username,
		Projects:    model.NormalizeProjects(projects),
		Permissions: set,
	}
	for _, p := range upd.Projects {
		if strings.Contains(p, ",") {
			return fmt.Errorf("%w: project %q", errs.ErrInvalidInput, p)
		}
	}
	if password != "" {
		upd.PwdHash, upd.PwdSalt, err = pkgcrypto.NewPasswordHash(password)
		if err != nil {
			return err
		}
	}
	return s.users.Update(ctx, upd)
}

// DeleteUser removes a user.
func (s *AccountServiceImpl) DeleteUser(ctx context.Context, username string) error {
	if username == "" {
		return fmt.Errorf("%w: empty username", errs.ErrInvalidInput)
	}
	return s.users.Delete(ctx, username)
}
