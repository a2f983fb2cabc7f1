package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/jokizilla/jokizilla/internal/common/httpx"
)

const (
	APIVersionParam            = "api-version"
	APIVersionHeader           = "X-Api-Version"
	APISupportedVersionsHeader = "api-supported-versions"
)

type apiVersionKeyType string

const apiVersionKey apiVersionKeyType = "apiVersion"

// APIVersion reports the supported versions on every response and validates a requested
// version taken from the api-version query parameter or the X-Api-Version header. Endpoints
// are version neutral, so any well-formed version is accepted; a malformed one is a 400.
func APIVersion(supported []string) func(http.Handler) http.Handler {
	reported := strings.Join(supported, ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reported != "" {
				w.Header().Set(APISupportedVersionsHeader, reported)
			}
			requested := r.URL.Query().Get(APIVersionParam)
			if requested == "" {
				requested = r.Header.Get(APIVersionHeader)
			}
			if requested == "" {
				next.ServeHTTP(w, r)
				return
			}
			v, err := semver.NewVersion(requested)
			if err != nil {
				httpx.ErrInvalidRequest("invalid api-version: " + requested).Send(w)
				return
			}
			ctx := context.WithValue(r.Context(), apiVersionKey, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIVersionFromContext returns the requested API version, nil when the client sent none.
func APIVersionFromContext(ctx context.Context) *semver.Version {
	v, _ := ctx.Value(apiVersionKey).(*semver.Version)
	return v
}
