// Package store opens the configured relational backend and exposes its repositories.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/and161185/doc-keeper/internal/migrate"
	"github.com/and161185/doc-keeper/internal/repository"
	"github.com/and161185/doc-keeper/internal/repository/postgres"
	"github.com/and161185/doc-keeper/internal/repository/sqlite"
)

// Store bundles the Account Store and the Action Log of one backend.
type Store struct {
	Users repository.UserRepository
	Logs  repository.LogRepository

	closeFn func()
}

// Close releases the backend.
func (s *Store) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Options configures Open.
type Options struct {
	Driver string // migrate.DriverSQLite or migrate.DriverPostgres
	DSN    string
	// RetryFor bounds connection retries; zero disables retrying.
	RetryFor time.Duration
	Log      *zap.Logger
}

// Open migrates and connects to the backend, retrying with exponential backoff
// while the database is unreachable.
func Open(ctx context.Context, opt Options) (*Store, error) {
	if opt.Log == nil {
		opt.Log = zap.NewNop()
	}
	var connect func() (*Store, error)
	switch opt.Driver {
	case migrate.DriverSQLite:
		connect = func() (*Store, error) { return openSQLite(ctx, opt.DSN) }
	case migrate.DriverPostgres:
		connect = func() (*Store, error) { return openPostgres(ctx, opt.DSN) }
	default:
		return nil, fmt.Errorf("unsupported db driver %q", opt.Driver)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = opt.RetryFor

	var b backoff.BackOff = bo
	if opt.RetryFor <= 0 {
		b = &backoff.StopBackOff{}
	}

	var st *Store
	err := backoff.RetryNotify(func() error {
		var err error
		st, err = connect()
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		opt.Log.Warn("database not ready, retrying",
			zap.String("driver", opt.Driver),
			zap.Duration("next", next),
			zap.Error(err),
		)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func openSQLite(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlite.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{
		Users:   sqlite.NewUserRepo(db),
		Logs:    sqlite.NewLogRepo(db),
		closeFn: func() { _ = db.Close() },
	}, nil
}

func openPostgres(ctx context.Context, dsn string) (*Store, error) {
	if err := migrate.Up(ctx, migrate.DriverPostgres, dsn); err != nil {
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Pool.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{
		Users:   postgres.NewUserRepo(db),
		Logs:    postgres.NewLogRepo(db),
		closeFn: db.Close,
	}, nil
}
