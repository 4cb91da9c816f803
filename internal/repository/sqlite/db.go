// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/and161185/doc-keeper/internal/migrate"
)

// tsLayout is a fixed-width ISO 8601 layout, so text order equals time order.
const tsLayout = "2006-01-02T15:04:05.000000Z07:00"

// DB wraps a database/sql handle opened with the sqlite3 driver.
type DB struct{ SQL *sql.DB }

// Open opens (creating if needed) the database file and applies migrations.
func Open(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open(migrate.DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate.UpDB(ctx, db, migrate.DriverSQLite); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{SQL: db}, nil
}

// Close closes the handle.
func (db *DB) Close() error { return db.SQL.Close() }

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) (time.Time, error) { return time.Parse(tsLayout, s) }

// isUniqueViolation reports whether the error is a primary key / unique constraint violation.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique
}
