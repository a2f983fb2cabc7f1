package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jokizilla/jokizilla/internal/common/httpx"
	"github.com/jokizilla/jokizilla/internal/common/logtrace"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Jokizilla-Request-ID"

// RequestLogger assigns a request id, attaches a request-scoped logger to the context and
// logs the request on arrival and on completion.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := newRequestId()
		ctx := logtrace.WithRequestId(r.Context(), requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		rw := httpx.NewResponseWriter(w)
		rw.Header().Set(RequestIDHeader, requestID)

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		log.Ctx(ctx).Info().
			Str("requestURL", fmt.Sprintf("%s://%s%s", scheme, r.Host, r.RequestURI)).
			Str("requestMethod", r.Method).
			Str("requestPath", r.URL.Path).
			Str("remoteIP", r.RemoteAddr).
			Str("proto", r.Proto).
			Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Int("status", rw.Status()).
				Int64("bytes", rw.Size()).
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

func newRequestId() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return u.String()
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}
