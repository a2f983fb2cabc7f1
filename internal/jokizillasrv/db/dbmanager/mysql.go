package dbmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
)

// mysqlDialect serves MySQL and MariaDB.
type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return config.DialectMySQL }
func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) DSN(cfg config.DBConfig) (string, error) {
	if cfg.Host == "" || cfg.DBName == "" {
		return "", fmt.Errorf("mysql: host and dbname are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + strconv.Itoa(port)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.MultiStatements = true // migrations carry several statements per file
	mc.Loc = time.UTC
	mc.ClientFoundRows = true // RowsAffected counts matched rows, as on the other dialects
	return mc.FormatDSN(), nil
}

func (mysqlDialect) InsertReturnsID() bool { return false }
func (mysqlDialect) LikeEscape() string    { return "" }
func (mysqlDialect) CharLength() string    { return "CHAR_LENGTH" }

// MySQL / MariaDB server error numbers
const (
	myDupEntry          = 1062
	myNoReferencedRow   = 1452
	myNoReferencedRow2  = 1216
	myRowIsReferenced   = 1217
	myRowIsReferenced2  = 1451
	myTooManyConns      = 1040
	myLockWaitTimeout   = 1205
	myLockDeadlock      = 1213
	myServerShutdown    = 1053
	myConnCountExceeded = 1203
)

func mysqlNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func (mysqlDialect) IsUniqueViolation(err error) bool {
	return mysqlNumber(err) == myDupEntry
}

func (mysqlDialect) IsForeignKeyViolation(err error) bool {
	switch mysqlNumber(err) {
	case myNoReferencedRow, myNoReferencedRow2, myRowIsReferenced, myRowIsReferenced2:
		return true
	}
	return false
}

func (mysqlDialect) IsTransient(err error) bool {
	if isTransientCommon(err) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	switch mysqlNumber(err) {
	case myTooManyConns, myLockWaitTimeout, myLockDeadlock, myServerShutdown, myConnCountExceeded:
		return true
	}
	return false
}

// AUTO_INCREMENT already moves past explicit keys
func (mysqlDialect) SyncKeySequence(ctx context.Context, q Querier, table string) error {
	return nil
}

func (mysqlDialect) SetupSession(ctx context.Context, conn *sql.Conn, cfg config.DBConfig) error {
	return nil
}

func (mysqlDialect) MigrationDriver(db *sql.DB) (database.Driver, error) {
	return migratemysql.WithInstance(db, &migratemysql.Config{})
}
