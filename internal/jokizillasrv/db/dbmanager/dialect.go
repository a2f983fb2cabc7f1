// Package dbmanager owns the database/sql connection pool and the per-dialect behavior the
// rest of the server relies on: DSN construction, error classification, session setup and
// migration drivers. Statements run through sqlx, which rebinds placeholders per driver.
package dbmanager

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/golang-migrate/migrate/v4/database"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
)

// Dialect captures what differs between the supported databases.
type Dialect interface {
	// Name is the dialect name used in configuration.
	Name() string
	// DriverName is the name registered with database/sql.
	DriverName() string
	// DSN builds the driver connection string.
	DSN(cfg config.DBConfig) (string, error)
	// InsertReturnsID reports whether inserts return the key through RETURNING instead of
	// sql.Result.LastInsertId.
	InsertReturnsID() bool
	// LikeEscape is appended to LIKE predicates that use \ as escape character.
	LikeEscape() string
	// CharLength is the function counting the characters of a string.
	CharLength() string
	IsUniqueViolation(err error) bool
	IsForeignKeyViolation(err error) bool
	// IsTransient reports errors worth retrying on a fresh connection.
	IsTransient(err error) bool
	// SyncKeySequence realigns the key generator of table after a row was inserted with an
	// explicit key, so later generated keys do not collide with it.
	SyncKeySequence(ctx context.Context, q Querier, table string) error
	// SetupSession runs per-connection settings after acquisition.
	SetupSession(ctx context.Context, conn *sql.Conn, cfg config.DBConfig) error
	// MigrationDriver wraps db for golang-migrate.
	MigrationDriver(db *sql.DB) (database.Driver, error)
}

var dialects = map[string]Dialect{
	config.DialectPostgres: postgresDialect{},
	config.DialectMySQL:    mysqlDialect{},
	config.DialectSQLite:   sqliteDialect{},
}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect: %q", name)
	}
	return d, nil
}

// isTransientCommon covers failures shared by every driver: broken connections and
// network errors.
func isTransientCommon(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
