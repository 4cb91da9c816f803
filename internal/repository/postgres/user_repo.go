package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/doc-keeper/internal/errs"
	"github.com/and161185/doc-keeper/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (username, password_hash, password_salt, projects, permissions)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, u.Username, u.PwdHash, u.PwdSalt, u.Projects.CSV(), u.Permissions.CSV())
	if isUniqueViolation(err) {
		return errs.ErrDuplicateUsername
	}
	return err
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `
SELECT username, password_hash, password_salt, projects, permissions, created_at
FROM users WHERE username=$1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// List selects all users ordered by username.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	const q = `
SELECT username, password_hash, password_salt, projects, permissions, created_at
FROM users ORDER BY username`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Update replaces projects/permissions and the password when a new hash is given.
func (r *UserRepo) Update(ctx context.Context, upd model.UserUpdate) error {
	var (
		q    string
		args []any
	)
	if upd.PwdHash != nil {
		q = `
UPDATE users
SET password_hash=$2, password_salt=$3, projects=$4, permissions=$5
WHERE username=$1`
		args = []any{upd.Username, upd.PwdHash, upd.PwdSalt, upd.Projects.CSV(), upd.Permissions.CSV()}
	} else {
		q = `
UPDATE users
SET projects=$2, permissions=$3
WHERE username=$1`
		args = []any{upd.Username, upd.Projects.CSV(), upd.Permissions.CSV()}
	}
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes the user row.
func (r *UserRepo) Delete(ctx context.Context, username string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE username=$1`, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Ping checks the pool.
func (r *UserRepo) Ping(ctx context.Context) error { return r.db.Pool.Ping(ctx) }

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u           model.User
		projects    string
		permissions string
		createdAt   time.Time
	)
	if err := row.Scan(&u.Username, &u.PwdHash, &u.PwdSalt, &projects, &permissions, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Projects = model.ParseProjects(projects)
	u.Permissions = model.ParsePermissions(permissions)
	u.CreatedAt = createdAt
	return &u, nil
}
