// Package middleware provides HTTP middleware components for request logging, timeout handling,
// panic recovery, request metrics and API version negotiation.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/jokizilla/jokizilla/internal/common/httpx"
	"github.com/jokizilla/jokizilla/internal/common/logtrace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var HTTPPanicsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jokizilla_http_panics_total",
		Help: "Total number of handler panics recovered, by method",
	},
	[]string{"method"},
)

// PanicHandler turns a handler panic into a 500 that carries the request id, so a caller
// can quote it when reporting the failure. The panic is counted and logged with its stack.
// http.ErrAbortHandler is passed through to net/http.
func PanicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := httpx.NewResponseWriter(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			HTTPPanicsTotal.WithLabelValues(r.Method).Inc()
			log.Ctx(r.Context()).Error().
				Str("panic", fmt.Sprintf("%v", rec)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("stack_trace", string(debug.Stack())).
				Msg("handler panicked")

			if rw.Written() {
				return
			}
			msg := "unable to process request"
			if id := logtrace.RequestIdFromContext(r.Context()); id != "" {
				msg += " (request id " + id + ")"
			}
			httpx.ErrApplicationError(msg).Send(rw)
		}()
		next.ServeHTTP(rw, r)
	})
}
