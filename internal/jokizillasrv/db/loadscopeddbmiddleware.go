package db

import (
	"net/http"

	"github.com/jokizilla/jokizilla/internal/common/httpx"
	"github.com/rs/zerolog/log"
)

// LoadScopedDBMiddleware attaches a connection to the request context and returns it to
// the pool after the request is served.
func LoadScopedDBMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := ConnCtx(r.Context())
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("unable to get db connection")
			httpx.ErrApplicationError("unable to service request at this time").Send(w)
			return
		}
		defer Close(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
