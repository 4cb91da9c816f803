// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/doc-keeper/internal/model"
)

// UserRepository is the Account Store: unique-key insert, point lookup, update, delete.
type UserRepository interface {
	// Create inserts a new user; errs.ErrDuplicateUsername if the name is taken.
	Create(ctx context.Context, u *model.User) error
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// List returns all users ordered by username.
	List(ctx context.Context) ([]model.User, error)
	// Update replaces projects/permissions and, when set, the password.
	Update(ctx context.Context, upd model.UserUpdate) error
	// Delete removes a user.
	Delete(ctx context.Context, username string) error
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}
