package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/doc-keeper/internal/errs"
	"github.com/and161185/doc-keeper/internal/model"
)

// UserRepo implements UserRepository on SQLite.
type UserRepo struct {
	db  *DB
	now func() time.Time
}

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db, now: time.Now} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (username, password_hash, password_salt, projects, permissions, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.SQL.ExecContext(ctx, q,
		u.Username, u.PwdHash, u.PwdSalt, u.Projects.CSV(), u.Permissions.CSV(), formatTS(r.now()))
	if isUniqueViolation(err) {
		return errs.ErrDuplicateUsername
	}
	return err
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `
SELECT username, password_hash, password_salt, projects, permissions, created_at
FROM users WHERE username=?`
	u, err := scanUser(r.db.SQL.QueryRowContext(ctx, q, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return u, err
}

// List selects all users ordered by username.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	const q = `
SELECT username, password_hash, password_salt, projects, permissions, created_at
FROM users ORDER BY username`
	rows, err := r.db.SQL.QueryContext(ctx, q)
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
		res sql.Result
		err error
	)
	if upd.PwdHash != nil {
		res, err = r.db.SQL.ExecContext(ctx,
			`UPDATE users SET password_hash=?, password_salt=?, projects=?, permissions=? WHERE username=?`,
			upd.PwdHash, upd.PwdSalt, upd.Projects.CSV(), upd.Permissions.CSV(), upd.Username)
	} else {
		res, err = r.db.SQL.ExecContext(ctx,
			`UPDATE users SET projects=?, permissions=? WHERE username=?`,
			upd.Projects.CSV(), upd.Permissions.CSV(), upd.Username)
	}
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// Delete removes the user row.
func (r *UserRepo) Delete(ctx context.Context, username string) error {
	res, err := r.db.SQL.ExecContext(ctx, `DELETE FROM users WHERE username=?`, username)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// Ping checks the handle.
func (r *UserRepo) Ping(ctx context.Context) error { return r.db.SQL.PingContext(ctx) }

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u                     model.User
		projects, permissions string
		createdAt             string
	)
	if err := row.Scan(&u.Username, &u.PwdHash, &u.PwdSalt, &projects, &permissions, &createdAt); err != nil {
		return nil, err
	}
	ts, err := parseTS(createdAt)
	if err != nil {
		return nil, fmt.Errorf("user %q created_at: %w", u.Username, err)
	}
	u.Projects = model.ParseProjects(projects)
	u.Permissions = model.ParsePermissions(permissions)
	u.CreatedAt = ts
	return &u, nil
}
