// Package db owns the process-wide connection pool and hands each request its own
// connection through the context.
package db

import (
	"context"
	"fmt"

	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dbmanager"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/store"
	"github.com/rs/zerolog/log"
)

var pool dbmanager.Pool

// Init opens the pool described by cfg.
func Init(ctx context.Context, cfg config.DBConfig) error {
	p, err := dbmanager.NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	pool = p
	return nil
}

// SetPool replaces the process-wide pool.
func SetPool(p dbmanager.Pool) {
	pool = p
}

func Pool() dbmanager.Pool {
	return pool
}

// Conn returns a new database connection from the pool.
func Conn(ctx context.Context) (dbmanager.Conn, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	conn, err := pool.Conn(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to get db connection")
		return nil, err
	}
	return conn, nil
}

type ctxDbKeyType string

const ctxDbKey ctxDbKeyType = "JokizillaDb"

// ConnCtx adds a database connection to the context.
func ConnCtx(ctx context.Context) (context.Context, error) {
	conn, err := Conn(ctx)
	if err != nil {
		return nil, err
	}
	return WithConn(ctx, conn), nil
}

func WithConn(ctx context.Context, conn dbmanager.Conn) context.Context {
	return context.WithValue(ctx, ctxDbKey, conn)
}

// DB returns a store over the connection in the context, or nil if there is none.
func DB(ctx context.Context) *store.Store {
	if conn, ok := ctx.Value(ctxDbKey).(dbmanager.Conn); ok {
		return store.New(conn)
	}
	log.Ctx(ctx).Error().Msg("unable to get db connection from context")
	return nil
}

// Close returns the context's connection to the pool.
func Close(ctx context.Context) {
	if conn, ok := ctx.Value(ctxDbKey).(dbmanager.Conn); ok {
		conn.Close(context.Background()) // the request context may already be canceled
	}
}
