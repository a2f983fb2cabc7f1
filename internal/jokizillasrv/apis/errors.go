package apis

import (
	"net/http"

	"github.com/jokizilla/jokizilla/internal/common/apperrors"
)

var (
	ErrBadRequest apperrors.Error = apperrors.New("Bad Request").SetStatusCode(http.StatusBadRequest)
	ErrInvalidKey apperrors.Error = ErrBadRequest.New("invalid key").SetStatusCode(http.StatusBadRequest)
)

var ErrEncoding apperrors.Error = apperrors.New("unable to encode response").SetStatusCode(http.StatusInternalServerError)
