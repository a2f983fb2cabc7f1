package auth

import (
	"net/http"

	"github.com/jokizilla/jokizilla/internal/common/apperrors"
)

var (
	ErrAuth apperrors.Error = apperrors.New("auth error").SetStatusCode(http.StatusInternalServerError)

	ErrUnauthorized       apperrors.Error = ErrAuth.New("unauthorized").SetStatusCode(http.StatusUnauthorized)
	ErrInvalidToken       apperrors.Error = ErrUnauthorized.New("invalid token")
	ErrUnableToParseToken apperrors.Error = ErrInvalidToken.New("unable to parse token")
	ErrForbidden          apperrors.Error = ErrAuth.New("forbidden").SetStatusCode(http.StatusForbidden)
	ErrKeySet             apperrors.Error = ErrAuth.New("unable to load signing keys").SetStatusCode(http.StatusServiceUnavailable)
)
