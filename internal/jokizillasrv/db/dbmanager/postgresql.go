package dbmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/lib/pq"
)

type postgresDialect struct{}

func (postgresDialect) Name() string       { return config.DialectPostgres }
func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) DSN(cfg config.DBConfig) (string, error) {
	if cfg.Host == "" || cfg.DBName == "" {
		return "", fmt.Errorf("postgresql: host and dbname are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.User, cfg.Password, cfg.DBName, sslMode), nil
}

func (postgresDialect) InsertReturnsID() bool { return true }
func (postgresDialect) LikeEscape() string    { return "" }
func (postgresDialect) CharLength() string    { return "CHAR_LENGTH" }

// PostgreSQL SQLSTATE codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (postgresDialect) IsUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func (postgresDialect) IsForeignKeyViolation(err error) bool {
	return pgCode(err) == pgForeignKeyViolation
}

func (postgresDialect) IsTransient(err error) bool {
	if isTransientCommon(err) || pgconn.Timeout(err) {
		return true
	}
	code := pgCode(err)
	switch {
	case code == "":
		return false
	case code[:2] == "08": // connection exception
		return true
	}
	switch code {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"53300", // too_many_connections
		"57P03": // cannot_connect_now
		return true
	}
	return false
}

func (postgresDialect) SyncKeySequence(ctx context.Context, q Querier, table string) error {
	query := fmt.Sprintf("SELECT setval(pg_get_serial_sequence(%s, 'id'), GREATEST((SELECT MAX(id) FROM %s), 1))",
		pq.QuoteLiteral(table), pq.QuoteIdentifier(table))
	_, err := q.ExecContext(ctx, query)
	return err
}

// SetupSession bounds statement and lock waits for the lifetime of the connection.
func (postgresDialect) SetupSession(ctx context.Context, conn *sql.Conn, cfg config.DBConfig) error {
	timeout := cfg.StatementTimeout
	if timeout == "" {
		return nil
	}
	sessionParams := map[string]string{
		"lock_timeout":                        timeout,
		"statement_timeout":                   timeout,
		"idle_in_transaction_session_timeout": timeout,
	}
	for param, value := range sessionParams {
		query := fmt.Sprintf("SET %s = %s", pq.QuoteIdentifier(param), pq.QuoteLiteral(value))
		if _, err := conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to set %s: %w", param, err)
		}
	}
	return nil
}

func (postgresDialect) MigrationDriver(db *sql.DB) (database.Driver, error) {
	return postgres.WithInstance(db, &postgres.Config{})
}
