package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUp_SQLite_CreatesTablesIdempotently(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "dk.db")
	ctx := context.Background()

	require.NoError(t, Up(ctx, DriverSQLite, dsn))
	require.NoError(t, Up(ctx, DriverSQLite, dsn))

	db, err := sql.Open(DriverSQLite, dsn)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "logs"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestUp_UnknownDriver(t *testing.T) {
	db, err := sql.Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.Error(t, UpDB(context.Background(), db, "mysql"))
}
