package dbmanager

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgconn"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRefused = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

func testPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestPingRetriesTransientFailures(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errRefused)
	mock.ExpectPing().WillReturnError(errRefused)
	mock.ExpectPing()

	p := NewPoolWithDB(db, sqliteDialect{}, config.DBConfig{}, testPolicy())
	require.NoError(t, p.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPingStopsOnPermanentFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("access denied"))

	p := NewPoolWithDB(db, sqliteDialect{}, config.DBConfig{}, testPolicy())
	err = p.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPingGivesUpAfterAttempts(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		mock.ExpectPing().WillReturnError(errRefused)
	}

	policy := testPolicy()
	policy.Attempts = 3
	p := NewPoolWithDB(db, sqliteDialect{}, config.DBConfig{}, policy)
	require.Error(t, p.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnRunsSessionSetup(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	mock.ExpectExec("PRAGMA foreign_keys = ON").WillReturnError(errRefused)
	mock.ExpectExec("PRAGMA foreign_keys = ON").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	p := NewPoolWithDB(db, sqliteDialect{}, config.DBConfig{}, testPolicy())
	ctx := context.Background()
	conn, err := p.Conn(ctx)
	require.NoError(t, err)

	var one int
	require.NoError(t, conn.QueryRowxContext(ctx, "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
	assert.Equal(t, config.DialectSQLite, conn.Dialect().Name())

	conn.Close(ctx)
	conn.Close(ctx)
	requests, returns := p.Stats()
	assert.Equal(t, uint64(1), requests)
	assert.Equal(t, uint64(1), returns)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionSetup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	for _, param := range []string{"lock_timeout", "statement_timeout", "idle_in_transaction_session_timeout"} {
		mock.ExpectExec(fmt.Sprintf(`SET "%s" = '5s'`, param)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	p := NewPoolWithDB(db, postgresDialect{}, config.DBConfig{StatementTimeout: "5s"}, testPolicy())
	conn, err := p.Conn(context.Background())
	require.NoError(t, err)
	conn.Close(context.Background())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnRebind(t *testing.T) {
	q := "SELECT id FROM countries WHERE name = ? AND id > ?"
	for _, tc := range []struct {
		dialect Dialect
		setup   string
		want    string
	}{
		{postgresDialect{}, "", "SELECT id FROM countries WHERE name = $1 AND id > $2"},
		{mysqlDialect{}, "", q},
		{sqliteDialect{}, "PRAGMA foreign_keys = ON", q},
	} {
		t.Run(tc.dialect.Name(), func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			if tc.setup != "" {
				mock.ExpectExec(tc.setup).WillReturnResult(sqlmock.NewResult(0, 0))
			}

			p := NewPoolWithDB(db, tc.dialect, config.DBConfig{}, testPolicy())
			conn, err := p.Conn(context.Background())
			require.NoError(t, err)
			defer conn.Close(context.Background())
			assert.Equal(t, tc.want, conn.Rebind(q))
		})
	}
}

func TestErrorClassification(t *testing.T) {
	pg, my, lite := postgresDialect{}, mysqlDialect{}, sqliteDialect{}

	wrap := func(err error) error { return fmt.Errorf("insert failed: %w", err) }

	assert.True(t, pg.IsUniqueViolation(wrap(&pgconn.PgError{Code: "23505"})))
	assert.False(t, pg.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, pg.IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, pg.IsTransient(&pgconn.PgError{Code: "08006"}))
	assert.True(t, pg.IsTransient(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, pg.IsTransient(&pgconn.PgError{Code: "42601"}))

	assert.True(t, my.IsUniqueViolation(wrap(&mysql.MySQLError{Number: 1062})))
	assert.True(t, my.IsForeignKeyViolation(&mysql.MySQLError{Number: 1452}))
	assert.True(t, my.IsTransient(&mysql.MySQLError{Number: 1213}))
	assert.True(t, my.IsTransient(mysql.ErrInvalidConn))
	assert.False(t, my.IsTransient(&mysql.MySQLError{Number: 1064}))

	pk := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}
	fk := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}
	assert.True(t, lite.IsUniqueViolation(wrap(pk)))
	assert.False(t, lite.IsUniqueViolation(fk))
	assert.True(t, lite.IsForeignKeyViolation(fk))
	assert.True(t, lite.IsTransient(sqlite3.Error{Code: sqlite3.ErrBusy}))

	for _, d := range []Dialect{pg, my, lite} {
		assert.True(t, d.IsTransient(driver.ErrBadConn), d.Name())
		assert.True(t, d.IsTransient(errRefused), d.Name())
		assert.False(t, d.IsTransient(context.Canceled), d.Name())
		assert.False(t, d.IsTransient(nil), d.Name())
	}
}

func TestDSN(t *testing.T) {
	cfg := config.DBConfig{Host: "db", Port: 3306, DBName: "jokizilla", User: "joki", Password: "secret", SSLMode: "require"}

	dsn, err := mysqlDialect{}.DSN(cfg)
	require.NoError(t, err)
	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "jokizilla", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.True(t, parsed.MultiStatements)

	cfg.Port = 0
	dsn, err = postgresDialect{}.DSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=joki password=secret dbname=jokizilla sslmode=require", dsn)

	_, err = sqliteDialect{}.DSN(config.DBConfig{})
	assert.Error(t, err)

	_, err = LookupDialect("oracle")
	assert.Error(t, err)
	d, err := LookupDialect(config.DialectMySQL)
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.DriverName())
}
