package auth

import (
	"net/http"
	"strings"

	"github.com/jokizilla/jokizilla/internal/common/httpx"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/srvcommon"
	"github.com/rs/zerolog/log"
)

// Authenticate attaches the caller's principal when the request carries a bearer token.
// Requests without one pass through anonymously; an invalid token is rejected with 401.
func Authenticate(v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				log.Ctx(ctx).Warn().Msg("invalid authorization header")
				httpx.ErrUnAuthorized("invalid authorization header").Send(w)
				return
			}

			principal, err := v.Validate(ctx, strings.TrimSpace(token))
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("token validation failed")
				httpx.ErrUnAuthorized("invalid bearer token").Send(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(srvcommon.WithPrincipal(ctx, principal)))
		})
	}
}

// RequireRoles admits callers holding any of roles: 401 for anonymous callers, 403 for
// callers holding none of them.
func RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	names := roleNames(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := srvcommon.GetPrincipal(r.Context())
			if principal == nil {
				httpx.ErrUnAuthorized("authentication required").Send(w)
				return
			}
			if !principal.HasAnyRole(names...) {
				log.Ctx(r.Context()).Warn().Str("subject", principal.Subject).Strs("required", names).Msg("caller lacks required role")
				httpx.ErrForbidden("caller lacks a required role").Send(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
