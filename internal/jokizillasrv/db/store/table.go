package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx/reflectx"
	"github.com/jokizilla/jokizilla/internal/common/apperrors"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dberror"
	"github.com/rs/zerolog/log"
)

// KeyColumn is the primary key column of every entity table.
const KeyColumn = "id"

// noLimit stands in for an absent LIMIT, which MySQL requires whenever OFFSET is used.
const noLimit = 1 << 62

// mapper resolves columns the same way sqlx does when scanning.
var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Query narrows a List. Where uses ? placeholders bound to Args. Column names in Where and
// OrderBy must come from the table's own columns.
type Query struct {
	Where   string
	Args    []any
	OrderBy []Order
	Limit   int
	Offset  int
}

// Table maps the entity type T onto a table. Columns are the db tags of T's top level
// fields; fields tagged "-" are not persisted.
type Table[T any] struct {
	name    string
	columns []string
	keyBits int
}

// NewTable derives the column mapping of T. It panics when T has no id column, which is a
// programming error.
func NewTable[T any](name string) *Table[T] {
	t := &Table[T]{name: name}
	rt := reflect.TypeOf((*T)(nil)).Elem()
	sm := mapper.TypeMap(rt)
	for _, fi := range sm.Index {
		if len(fi.Index) != 1 || fi.Name == "" {
			continue
		}
		t.columns = append(t.columns, fi.Name)
	}
	key := sm.GetByPath(KeyColumn)
	if key == nil || len(key.Index) != 1 {
		panic(fmt.Sprintf("store: %s has no %q column", rt.Name(), KeyColumn))
	}
	t.keyBits = key.Field.Type.Bits()
	return t
}

func (t *Table[T]) Name() string {
	return t.name
}

// Columns returns the persisted columns in declaration order.
func (t *Table[T]) Columns() []string {
	return append([]string(nil), t.columns...)
}

// HasColumn reports whether col is one of the table's columns.
func (t *Table[T]) HasColumn(col string) bool {
	for _, c := range t.columns {
		if c == col {
			return true
		}
	}
	return false
}

// Key returns the key value of row.
func (t *Table[T]) Key(row *T) uint64 {
	return mapper.FieldByName(reflect.ValueOf(row), KeyColumn).Uint()
}

// KeyBits is the size of the key type in bits.
func (t *Table[T]) KeyBits() int {
	return t.keyBits
}

func (t *Table[T]) SetKey(row *T, id uint64) {
	mapper.FieldByName(reflect.ValueOf(row), KeyColumn).SetUint(id)
}

func (t *Table[T]) valueColumns(skipKey bool) []string {
	if !skipKey {
		return t.columns
	}
	cols := make([]string, 0, len(t.columns)-1)
	for _, c := range t.columns {
		if c != KeyColumn {
			cols = append(cols, c)
		}
	}
	return cols
}

func (t *Table[T]) selectList() string {
	return strings.Join(t.columns, ", ")
}

// List returns the rows matching q.
func (t *Table[T]) List(ctx context.Context, s *Store, q Query) ([]T, apperrors.Error) {
	var b strings.Builder
	args := append([]any(nil), q.Args...)
	fmt.Fprintf(&b, "SELECT %s FROM %s", t.selectList(), t.name)
	if q.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(q.Where)
	}
	if len(q.OrderBy) > 0 {
		terms := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			if !t.HasColumn(o.Column) {
				return nil, dberror.ErrInvalidInput.Msg("unknown column in order: " + o.Column)
			}
			terms[i] = o.Column
			if o.Desc {
				terms[i] += " DESC"
			}
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	}
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = noLimit
		}
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
		if q.Offset > 0 {
			b.WriteString(" OFFSET ?")
			args = append(args, q.Offset)
		}
	}

	result := []T{}
	if err := s.selectAll(ctx, &result, b.String(), args...); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", t.name).Msg("failed to list rows")
		return nil, dberror.ErrDatabase.MsgErr("unable to list "+t.name, err)
	}
	return result, nil
}

// Count returns the number of rows matching where.
func (t *Table[T]) Count(ctx context.Context, s *Store, where string, args ...any) (int64, apperrors.Error) {
	query := "SELECT COUNT(*) FROM " + t.name
	if where != "" {
		query += " WHERE " + where
	}
	var n int64
	if err := s.get(ctx, &n, query, args...); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", t.name).Msg("failed to count rows")
		return 0, dberror.ErrDatabase.MsgErr("unable to count "+t.name, err)
	}
	return n, nil
}

// Get returns the row with key id or dberror.ErrNotFound.
func (t *Table[T]) Get(ctx context.Context, s *Store, id uint64) (*T, apperrors.Error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", t.selectList(), t.name, KeyColumn)
	var row T
	err := s.get(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dberror.ErrNotFound.Msg(fmt.Sprintf("%s %d not found", t.name, id))
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", t.name).Uint64("id", id).Msg("failed to get row")
		return nil, dberror.ErrDatabase.MsgErr("unable to get "+t.name, err)
	}
	return &row, nil
}

// Exists reports whether a row with key id exists.
func (t *Table[T]) Exists(ctx context.Context, s *Store, id uint64) (bool, apperrors.Error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", t.name, KeyColumn)
	var one int
	err := s.get(ctx, &one, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", t.name).Uint64("id", id).Msg("failed to check row existence")
		return false, dberror.ErrDatabase.MsgErr("unable to check "+t.name, err)
	}
	return true, nil
}

// Insert adds row. A zero key lets the database assign one, which is written back to row.
func (t *Table[T]) Insert(ctx context.Context, s *Store, row *T) apperrors.Error {
	explicitKey := t.Key(row) != 0
	cols := t.valueColumns(!explicitKey)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)",
		t.name, strings.Join(cols, ", "), strings.Join(cols, ", :"))

	msg := "unable to insert into " + t.name
	if s.dialect.InsertReturnsID() {
		var id uint64
		if err := s.getNamed(ctx, &id, query+" RETURNING "+KeyColumn, row); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("table", t.name).Msg("failed to insert row")
			return s.classify(err, msg)
		}
		t.SetKey(row, id)
	} else {
		res, err := s.execNamed(ctx, query, row)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("table", t.name).Msg("failed to insert row")
			return s.classify(err, msg)
		}
		if !explicitKey {
			id, err := res.LastInsertId()
			if err != nil {
				return dberror.ErrDatabase.MsgErr(msg, err)
			}
			t.SetKey(row, uint64(id))
		}
	}

	if explicitKey {
		if err := s.dialect.SyncKeySequence(ctx, s.q, t.name); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("table", t.name).Msg("failed to sync key sequence")
			return dberror.ErrDatabase.MsgErr(msg, err)
		}
	}
	return nil
}

// Update writes every non-key column of row. A missing row is dberror.ErrNotFound.
func (t *Table[T]) Update(ctx context.Context, s *Store, row *T) apperrors.Error {
	cols := t.valueColumns(true)
	assignments := make([]string, len(cols))
	for i, c := range cols {
		assignments[i] = c + " = :" + c
	}
	id := t.Key(row)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s", t.name, strings.Join(assignments, ", "), KeyColumn, KeyColumn)
	res, err := s.execNamed(ctx, query, row)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", t.name).Uint64("id", id).Msg("failed to update row")
		return s.classify(err, "unable to update "+t.name)
	}
	return t.expectAffected(res, id)
}

// Delete removes the row with key id. A missing row is dberror.ErrNotFound.
func (t *Table[T]) Delete(ctx context.Context, s *Store, id uint64) apperrors.Error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.name, KeyColumn)
	res, err := s.exec(ctx, query, id)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", t.name).Uint64("id", id).Msg("failed to delete row")
		return s.classify(err, "unable to delete from "+t.name)
	}
	return t.expectAffected(res, id)
}

func (t *Table[T]) expectAffected(res sql.Result, id uint64) apperrors.Error {
	n, err := res.RowsAffected()
	if err != nil {
		return dberror.ErrDatabase.MsgErr("unable to read affected rows", err)
	}
	if n == 0 {
		return dberror.ErrNotFound.Msg(fmt.Sprintf("%s %d not found", t.name, id))
	}
	return nil
}
