package apis

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jokizilla/jokizilla/internal/common/httpx"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/auth"
)

// ResponseHandlerParam binds a handler to a route. Callers must hold one of AllowedRoles;
// routes without roles are open to anonymous callers.
type ResponseHandlerParam struct {
	Method       string
	Path         string
	Handler      httpx.RequestHandler
	AllowedRoles []auth.Role
}

func (a *API) handlers() []ResponseHandlerParam {
	h := []ResponseHandlerParam{
		{
			Method:  http.MethodGet,
			Path:    "/",
			Handler: a.serviceDocument,
		},
		{
			Method:  http.MethodGet,
			Path:    "/$metadata",
			Handler: a.metadata,
		},
		{
			Method:  http.MethodGet,
			Path:    "/TestCount()",
			Handler: a.testCount,
		},
	}
	for _, res := range a.resources {
		h = append(h, res.handlers()...)
	}
	return h
}

// Router registers the API routes on r. Reads are anonymous; writes are wrapped with the
// role check of their set.
func (a *API) Router(r chi.Router) chi.Router {
	var restricted []ResponseHandlerParam
	r.Group(func(r chi.Router) {
		for _, handler := range a.handlers() {
			if len(handler.AllowedRoles) > 0 {
				restricted = append(restricted, handler)
				continue
			}
			r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
		}
	})

	for _, handler := range restricted {
		r.With(auth.RequireRoles(handler.AllowedRoles...)).
			Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
	return r
}
