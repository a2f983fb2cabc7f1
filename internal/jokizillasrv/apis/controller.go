package apis

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jokizilla/jokizilla/internal/common/apperrors"
	"github.com/jokizilla/jokizilla/internal/common/httpx"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/auth"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dberror"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/store"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/dto"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/mapping"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/odata"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const keyProperty = "Id"

// controller serves one entity set: E is the persisted entity, V its view and U its
// update shape.
type controller[E, V, U any] struct {
	name       string
	table      *store.Table[E]
	profile    *mapping.Profile[E, V, U]
	writeRoles []auth.Role

	// load fills the navigation data of rows before they are mapped. save persists the
	// navigation data of row in the transaction that wrote row.
	load func(ctx context.Context, s *store.Store, rows []E) apperrors.Error
	save func(ctx context.Context, s *store.Store, row *E) apperrors.Error

	api *API
	set *odata.EntitySet
}

// resource is the type-erased view of a controller used while building the API.
type resource interface {
	register(b *odata.ModelBuilder, opts Options)
	bind(api *API)
	handlers() []ResponseHandlerParam
}

func newController[E, V, U any](name string, table *store.Table[E], profile *mapping.Profile[E, V, U], writeRoles ...auth.Role) *controller[E, V, U] {
	return &controller[E, V, U]{
		name:       name,
		table:      table,
		profile:    profile,
		writeRoles: writeRoles,
	}
}

// withNavigation makes the set expandable.
func (c *controller[E, V, U]) withNavigation(
	load func(ctx context.Context, s *store.Store, rows []E) apperrors.Error,
	save func(ctx context.Context, s *store.Store, row *E) apperrors.Error,
) *controller[E, V, U] {
	c.load = load
	c.save = save
	return c
}

func (c *controller[E, V, U]) register(b *odata.ModelBuilder, opts Options) {
	sb := b.EntitySet(c.name, new(V)).
		HasKey(keyProperty).
		Filter().
		OrderBy().
		Page(opts.MaxTop, opts.PageSize).
		Select().
		Count()
	if c.load != nil {
		sb.Expand()
	}
}

func (c *controller[E, V, U]) bind(api *API) {
	set, ok := api.model.EntitySet(c.name)
	if !ok {
		panic("apis: entity set " + c.name + " is not registered")
	}
	c.api = api
	c.set = set
}

func (c *controller[E, V, U]) handlers() []ResponseHandlerParam {
	collection := "/" + c.name
	var h []ResponseHandlerParam
	h = append(h,
		ResponseHandlerParam{Method: http.MethodGet, Path: collection, Handler: c.list},
		ResponseHandlerParam{Method: http.MethodGet, Path: collection + "/$count", Handler: c.count},
		ResponseHandlerParam{Method: http.MethodPost, Path: collection, Handler: c.create, AllowedRoles: c.writeRoles},
	)
	// entities are addressed both as Set(1) and as Set/1
	for _, entity := range []string{collection + "({id})", collection + "/{id}"} {
		h = append(h,
			ResponseHandlerParam{Method: http.MethodGet, Path: entity, Handler: c.get},
			ResponseHandlerParam{Method: http.MethodPatch, Path: entity, Handler: c.patch, AllowedRoles: c.writeRoles},
			ResponseHandlerParam{Method: http.MethodDelete, Path: entity, Handler: c.delete, AllowedRoles: c.writeRoles},
		)
	}
	return h
}

func (c *controller[E, V, U]) list(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	opts, err := odata.ParseQueryOptions(r.Context(), r.URL.Query(), c.set)
	if err != nil {
		return nil, err
	}
	s, err := dbStore(ctx)
	if err != nil {
		return nil, err
	}
	where, args, err := filter(opts, s)
	if err != nil {
		return nil, err
	}

	limit, offset, paged := opts.Window(c.set)
	rows := []E{}
	if limit != 0 {
		q := store.Query{Where: where, Args: args, OrderBy: orderBy(opts), Limit: limit, Offset: offset}
		if paged {
			q.Limit = limit + 1 // one extra row tells whether a next page exists
		}
		if rows, err = c.table.List(ctx, s, q); err != nil {
			return nil, err
		}
	}

	root := c.api.root(r)
	coll := &odata.Collection{Context: opts.ContextURL(root, c.set, false)}
	if paged && len(rows) > limit {
		rows = rows[:limit]
		coll.NextLink = opts.NextLink(root, c.set, limit)
	}
	if opts.Count {
		n, err := c.table.Count(ctx, s, where, args...)
		if err != nil {
			return nil, err
		}
		coll.Count = &n
	}
	if err := c.loadNavigation(ctx, s, opts, rows); err != nil {
		return nil, err
	}

	views, err := c.profile.Views(rows)
	if err != nil {
		return nil, err
	}
	coll.Value = make([][]byte, 0, len(views))
	for i := range views {
		b, err := c.encode(opts, &views[i])
		if err != nil {
			return nil, err
		}
		coll.Value = append(coll.Value, b)
	}
	body, jerr := coll.MarshalJSON()
	if jerr != nil {
		return nil, ErrEncoding.Err(jerr)
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   body,
	}, nil
}

func (c *controller[E, V, U]) count(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	opts, err := odata.ParseQueryOptions(r.Context(), r.URL.Query(), c.set)
	if err != nil {
		return nil, err
	}
	s, err := dbStore(ctx)
	if err != nil {
		return nil, err
	}
	where, args, err := filter(opts, s)
	if err != nil {
		return nil, err
	}
	n, err := c.table.Count(ctx, s, where, args...)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode:  http.StatusOK,
		ContentType: "text/plain",
		Response:    strconv.FormatInt(n, 10),
	}, nil
}

func (c *controller[E, V, U]) get(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	id, err := c.key(r)
	if err != nil {
		return nil, err
	}
	opts, err := odata.ParseEntityOptions(r.Context(), r.URL.Query(), c.set)
	if err != nil {
		return nil, err
	}
	s, err := dbStore(ctx)
	if err != nil {
		return nil, err
	}
	row, err := c.table.Get(ctx, s, id)
	if err != nil {
		return nil, err
	}
	rows := []E{*row}
	if err := c.loadNavigation(ctx, s, opts, rows); err != nil {
		return nil, err
	}
	body, err := c.entity(r, opts, &rows[0])
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   body,
	}, nil
}

// create inserts the posted entity. The body may carry the key; a failed insert whose key
// turns out to be taken is a conflict.
func (c *controller[E, V, U]) create(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	body, err := httpx.ReadRequestBody(r)
	if err != nil {
		return nil, err
	}
	id, body, aerr := c.bodyKey(body)
	if aerr != nil {
		return nil, aerr
	}
	u := new(U)
	if err := httpx.DecodeStrict(body, u); err != nil {
		return nil, err
	}
	if err := dto.Validate(u); err != nil {
		return nil, err
	}
	row := new(E)
	if err := c.profile.Apply(u, row); err != nil {
		return nil, err
	}
	c.table.SetKey(row, id)

	s, aerr := dbStore(ctx)
	if aerr != nil {
		return nil, aerr
	}
	if err := c.write(ctx, s, row, c.table.Insert); err != nil {
		if id != 0 {
			exists, xerr := c.table.Exists(ctx, s, id)
			if xerr == nil && exists {
				log.Ctx(ctx).Info().Str("set", c.name).Uint64("id", id).Msg("key already in use")
				return nil, dberror.ErrAlreadyExists.Msg(fmt.Sprintf("%s with key %d already exists", c.name, id))
			}
		}
		return nil, err
	}

	id = c.table.Key(row)
	log.Ctx(ctx).Info().Str("set", c.name).Uint64("id", id).Msg("entity created")
	rsp, aerr := c.entity(r, &odata.QueryOptions{Top: -1}, row)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   fmt.Sprintf("%s/%s(%d)", c.api.root(r), c.name, id),
		Response:   rsp,
	}, nil
}

// patch merges the posted delta onto the current update shape of the entity, so that
// properties absent from the delta keep their values.
func (c *controller[E, V, U]) patch(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	id, aerr := c.key(r)
	if aerr != nil {
		return nil, aerr
	}
	delta, err := httpx.ReadRequestBody(r)
	if err != nil {
		return nil, err
	}
	// reject malformed deltas before looking the entity up
	if err := httpx.DecodeStrict(delta, new(U)); err != nil {
		return nil, err
	}
	if aerr := rejectNulls(delta, c.set.EntityType); aerr != nil {
		return nil, aerr
	}

	s, aerr := dbStore(ctx)
	if aerr != nil {
		return nil, aerr
	}
	row, aerr := c.table.Get(ctx, s, id)
	if aerr != nil {
		return nil, aerr
	}
	if c.load != nil {
		rows := []E{*row}
		if err := c.load(ctx, s, rows); err != nil {
			return nil, err
		}
		row = &rows[0]
	}

	u, aerr := c.profile.Update(row)
	if aerr != nil {
		return nil, aerr
	}
	if err := httpx.DecodeStrict(delta, u); err != nil {
		return nil, err
	}
	if err := dto.Validate(u); err != nil {
		return nil, err
	}
	if err := c.profile.Apply(u, row); err != nil {
		return nil, err
	}
	if err := c.write(ctx, s, row, c.table.Update); err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().Str("set", c.name).Uint64("id", id).Msg("entity updated")
	rsp, aerr := c.entity(r, &odata.QueryOptions{Top: -1}, row)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

// rejectNulls fails when delta sets a property that cannot hold null to null. Decoding
// would otherwise keep the current value.
func rejectNulls(delta []byte, et *odata.EntityType) apperrors.Error {
	var aerr apperrors.Error
	gjson.ParseBytes(delta).ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.Null {
			return true
		}
		if p, ok := et.Property(k.String()); ok && !p.Nullable {
			aerr = ErrBadRequest.Msg(fmt.Sprintf("the property '%s' of %s cannot be null", p.Name, et.Name))
			return false
		}
		return true
	})
	return aerr
}

func (c *controller[E, V, U]) delete(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	id, err := c.key(r)
	if err != nil {
		return nil, err
	}
	s, err := dbStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.table.Delete(ctx, s, id); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("set", c.name).Uint64("id", id).Msg("entity deleted")
	return &httpx.Response{
		StatusCode: http.StatusNoContent,
	}, nil
}

// write runs op and the navigation save in one transaction.
func (c *controller[E, V, U]) write(ctx context.Context, s *store.Store, row *E,
	op func(context.Context, *store.Store, *E) apperrors.Error) error {
	return s.InTx(ctx, func(tx *store.Store) error {
		if err := op(ctx, tx, row); err != nil {
			return err
		}
		if c.save != nil {
			if err := c.save(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *controller[E, V, U]) loadNavigation(ctx context.Context, s *store.Store, opts *odata.QueryOptions, rows []E) apperrors.Error {
	if c.load == nil || len(opts.Expand) == 0 {
		return nil
	}
	return c.load(ctx, s, rows)
}

// entity renders a single entity response.
func (c *controller[E, V, U]) entity(r *http.Request, opts *odata.QueryOptions, row *E) ([]byte, apperrors.Error) {
	v, err := c.profile.View(row)
	if err != nil {
		return nil, err
	}
	projected, err := c.encode(opts, v)
	if err != nil {
		return nil, err
	}
	body, jerr := odata.Entity(opts.ContextURL(c.api.root(r), c.set, true), projected)
	if jerr != nil {
		return nil, ErrEncoding.Err(jerr)
	}
	return body, nil
}

func (c *controller[E, V, U]) encode(opts *odata.QueryOptions, v *V) ([]byte, apperrors.Error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, ErrEncoding.Err(err)
	}
	projected, err := opts.Project(raw, c.set.EntityType)
	if err != nil {
		return nil, ErrEncoding.Err(err)
	}
	return projected, nil
}

func (c *controller[E, V, U]) key(r *http.Request) (uint64, apperrors.Error) {
	s := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(s, 10, c.table.KeyBits())
	if err != nil {
		return 0, ErrInvalidKey.Msg(fmt.Sprintf("the key value '%s' is not valid for %s", s, c.name))
	}
	return id, nil
}

// bodyKey takes the optional key out of a create body. A missing, null or zero key lets
// the database assign one.
func (c *controller[E, V, U]) bodyKey(body []byte) (uint64, []byte, apperrors.Error) {
	v := gjson.GetBytes(body, keyProperty)
	if !v.Exists() {
		return 0, body, nil
	}
	var id uint64
	switch v.Type {
	case gjson.Null:
	case gjson.Number:
		var err error
		if id, err = strconv.ParseUint(v.Raw, 10, c.table.KeyBits()); err != nil {
			return 0, nil, ErrInvalidKey.Msg(fmt.Sprintf("the key value %s is not valid for %s", v.Raw, c.name))
		}
	default:
		return 0, nil, ErrInvalidKey.Msg(fmt.Sprintf("the key of %s must be a number", c.name))
	}
	body, err := sjson.DeleteBytes(body, keyProperty)
	if err != nil {
		return 0, nil, ErrBadRequest.MsgErr("unable to parse request data", err)
	}
	return id, body, nil
}

func dbStore(ctx context.Context) (*store.Store, apperrors.Error) {
	s := db.DB(ctx)
	if s == nil {
		return nil, dberror.ErrNoConnection
	}
	return s, nil
}

// filter renders the $filter of opts as a WHERE clause.
func filter(opts *odata.QueryOptions, s *store.Store) (string, []any, apperrors.Error) {
	if opts.Filter == nil {
		return "", nil, nil
	}
	where, args, err := odata.RenderFilter(opts.Filter, s.Dialect())
	if err != nil {
		return "", nil, odata.ErrInvalidQuery.MsgErr("unable to apply $filter", err)
	}
	return where, args, nil
}

// orderBy maps $orderby onto columns and appends the key so that paging is stable.
func orderBy(opts *odata.QueryOptions) []store.Order {
	order := make([]store.Order, 0, len(opts.OrderBy)+1)
	keyed := false
	for _, item := range opts.OrderBy {
		order = append(order, store.Order{Column: item.Property.Column, Desc: item.Desc})
		keyed = keyed || item.Property.Column == store.KeyColumn
	}
	if !keyed {
		order = append(order, store.Order{Column: store.KeyColumn})
	}
	return order
}
