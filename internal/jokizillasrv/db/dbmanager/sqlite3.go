package dbmanager

import (
	"context"
	"database/sql"
	"errors"

	"github.com/golang-migrate/migrate/v4/database"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/mattn/go-sqlite3"
)

// sqliteDialect is used for local development and tests.
type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return config.DialectSQLite }
func (sqliteDialect) DriverName() string { return "sqlite3" }

func (sqliteDialect) DSN(cfg config.DBConfig) (string, error) {
	if cfg.Path == "" {
		return "", errors.New("sqlite3: path is required")
	}
	return cfg.Path, nil
}

func (sqliteDialect) InsertReturnsID() bool { return false }

// sqlite has no default LIKE escape character
func (sqliteDialect) LikeEscape() string { return ` ESCAPE '\'` }

func (sqliteDialect) CharLength() string { return "LENGTH" }

func sqliteErr(err error) (sqlite3.Error, bool) {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se, true
	}
	return se, false
}

func (sqliteDialect) IsUniqueViolation(err error) bool {
	se, ok := sqliteErr(err)
	return ok && (se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique)
}

func (sqliteDialect) IsForeignKeyViolation(err error) bool {
	se, ok := sqliteErr(err)
	return ok && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

func (sqliteDialect) IsTransient(err error) bool {
	if isTransientCommon(err) {
		return true
	}
	se, ok := sqliteErr(err)
	return ok && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked)
}

// rowid allocation always uses MAX(rowid)+1
func (sqliteDialect) SyncKeySequence(ctx context.Context, q Querier, table string) error {
	return nil
}

// SetupSession enables foreign key enforcement, which sqlite keeps per connection.
func (sqliteDialect) SetupSession(ctx context.Context, conn *sql.Conn, cfg config.DBConfig) error {
	_, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	return err
}

func (sqliteDialect) MigrationDriver(db *sql.DB) (database.Driver, error) {
	return migratesqlite.WithInstance(db, &migratesqlite.Config{})
}
