// Package store provides generic table access over the request-scoped connection. Queries
// are written with ? placeholders and rebound by sqlx for the connection's driver; rows are
// scanned by their db tags.
package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/jokizilla/jokizilla/internal/common/apperrors"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dberror"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dbmanager"
	"github.com/rs/zerolog/log"
)

// Store runs statements on one connection, or on a transaction started from it.
type Store struct {
	conn    dbmanager.Conn
	q       dbmanager.Querier
	dialect dbmanager.Dialect
}

func New(conn dbmanager.Conn) *Store {
	return &Store{conn: conn, q: conn, dialect: conn.Dialect()}
}

func (s *Store) Dialect() dbmanager.Dialect {
	return s.dialect
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.q.Rebind(query), args...)
}

// get scans a single row into dest, a struct pointer or a scalar pointer.
func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

// selectAll scans every row into dest, a pointer to a slice.
func (s *Store) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

// execNamed runs a statement with :column parameters taken from arg.
func (s *Store) execNamed(ctx context.Context, query string, arg any) (sql.Result, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return nil, err
	}
	return s.exec(ctx, q, args...)
}

// getNamed is execNamed for statements that return a row, such as INSERT ... RETURNING.
func (s *Store) getNamed(ctx context.Context, dest any, query string, arg any) error {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return err
	}
	return s.get(ctx, dest, q, args...)
}

// InTx runs fn inside a transaction. fn's error rolls the transaction back and is
// returned unchanged. Nested calls reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) (err error) {
	if s.conn == nil {
		return fn(s)
	}
	tx, errdb := s.conn.BeginTxx(ctx, &sql.TxOptions{})
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to start transaction")
		return dberror.ErrDatabase.Err(errdb)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				log.Ctx(ctx).Error().Err(rollbackErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = fn(&Store{q: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if errdb := tx.Commit(); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to commit transaction")
		return dberror.ErrDatabase.Err(errdb)
	}
	return nil
}

// classify maps a driver error raised by a write to the matching dberror value.
func (s *Store) classify(err error, msg string) apperrors.Error {
	switch {
	case s.dialect.IsUniqueViolation(err):
		return dberror.ErrAlreadyExists.MsgErr(msg+": already exists", err)
	case s.dialect.IsForeignKeyViolation(err):
		return dberror.ErrReferenceViolation.MsgErr(msg+": referenced entity does not exist or is still referenced", err)
	}
	return dberror.ErrDatabase.MsgErr(msg, err)
}
