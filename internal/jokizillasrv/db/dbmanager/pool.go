package dbmanager

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jmoiron/sqlx"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Querier is the subset of *sqlx.Conn and *sqlx.Tx used to run statements. Rebind turns ?
// placeholders into the driver's bind syntax.
type Querier interface {
	sqlx.ExecerContext
	sqlx.QueryerContext
	Rebind(query string) string
}

// Pool hands out request-scoped connections.
type Pool interface {
	// Conn acquires a connection, retrying transient failures.
	Conn(ctx context.Context) (Conn, error)
	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error
	Dialect() Dialect
	// DB returns the underlying pool, used by migrations.
	DB() *sql.DB
	// Stats returns the number of connection requests and returns.
	Stats() (requests, returns uint64)
	Close() error
}

// Conn is a single connection bound to one request. It is not safe for concurrent use.
type Conn interface {
	Querier
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	Dialect() Dialect
	// Close returns the connection to the pool.
	Close(ctx context.Context)
}

// RetryPolicy bounds retries of transient connection failures.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

func (p RetryPolicy) options(ctx context.Context, d Dialect, op string) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(p.Attempts),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(d.IsTransient),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Str("op", op).Msg("transient database failure, retrying")
		}),
	}
}

type sqlPool struct {
	db           *sql.DB
	xdb          *sqlx.DB
	dialect      Dialect
	cfg          config.DBConfig
	retry        RetryPolicy
	connRequests uint64
	connReturns  uint64
}

type sqlConn struct {
	*sqlx.Conn
	pool   *sqlPool
	cancel context.CancelFunc
}

// NewPool opens the pool described by cfg and waits, within the retry policy, for the
// database to answer a ping.
func NewPool(ctx context.Context, cfg config.DBConfig) (Pool, error) {
	d, err := LookupDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	dsn, err := d.DSN(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database connection")
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime != "" {
		sqlDB.SetConnMaxLifetime(cfg.GetConnMaxLifetime())
	}

	p := NewPoolWithDB(sqlDB, d, cfg, RetryPolicy{
		Attempts: cfg.MaxRetryCount,
		Delay:    250 * time.Millisecond,
		MaxDelay: cfg.GetMaxRetryDelay(),
	})
	if err := p.Ping(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	log.Ctx(ctx).Info().Str("dialect", d.Name()).Int("max_open_conns", cfg.MaxOpenConns).Msg("database pool ready")
	return p, nil
}

// NewPoolWithDB wraps an already opened *sql.DB.
func NewPoolWithDB(db *sql.DB, d Dialect, cfg config.DBConfig, policy RetryPolicy) Pool {
	if policy.Attempts == 0 {
		policy.Attempts = 1
	}
	return &sqlPool{db: db, xdb: sqlx.NewDb(db, d.DriverName()), dialect: d, cfg: cfg, retry: policy}
}

func (p *sqlPool) Ping(ctx context.Context) error {
	err := retry.Do(func() error {
		return p.db.PingContext(ctx)
	}, p.retry.options(ctx, p.dialect, "ping")...)
	return errors.Wrap(err, "failed to ping database")
}

func (p *sqlPool) Conn(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithCancel(ctx)

	var conn *sqlx.Conn
	err := retry.Do(func() error {
		c, err := p.xdb.Connx(ctx)
		if err != nil {
			return err
		}
		if err := p.dialect.SetupSession(ctx, c.Conn, p.cfg); err != nil {
			c.Close()
			return err
		}
		conn = c
		return nil
	}, p.retry.options(ctx, p.dialect, "conn")...)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to obtain database connection")
	}

	atomic.AddUint64(&p.connRequests, 1)
	return &sqlConn{Conn: conn, pool: p, cancel: cancel}, nil
}

func (p *sqlPool) Dialect() Dialect {
	return p.dialect
}

func (p *sqlPool) DB() *sql.DB {
	return p.db
}

func (p *sqlPool) Stats() (requests, returns uint64) {
	return atomic.LoadUint64(&p.connRequests), atomic.LoadUint64(&p.connReturns)
}

func (p *sqlPool) Close() error {
	return p.db.Close()
}

func (c *sqlConn) Dialect() Dialect {
	return c.pool.dialect
}

func (c *sqlConn) Close(ctx context.Context) {
	if c.Conn == nil {
		return
	}
	if err := c.Conn.Close(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to return connection to pool")
	}
	c.Conn = nil
	if c.cancel != nil {
		c.cancel()
	}
	atomic.AddUint64(&c.pool.connReturns, 1)
}
