// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dbmanager"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/migrations"
	"github.com/stretchr/testify/require"
)

// NewPool returns a pool over a fresh, fully migrated in-memory database. The database
// lives until the test ends. The pool holds a single connection, so callers must return
// connections before acquiring new ones.
func NewPool(t testing.TB) dbmanager.Pool {
	t.Helper()
	d, err := dbmanager.LookupDialect(config.DialectSQLite)
	require.NoError(t, err)

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	sqlDB, err := sql.Open(d.DriverName(), dsn)
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	pool := dbmanager.NewPoolWithDB(sqlDB, d, config.DBConfig{Dialect: config.DialectSQLite, Path: dsn}, dbmanager.RetryPolicy{Attempts: 1})
	m, err := migrations.New(pool)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	t.Cleanup(func() { sqlDB.Close() })
	return pool
}

// NewConn returns a connection from a fresh pool.
func NewConn(t testing.TB) dbmanager.Conn {
	t.Helper()
	pool := NewPool(t)
	conn, err := pool.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(context.Background()) })
	return conn
}
