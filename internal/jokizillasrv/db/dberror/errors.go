package dberror

import (
	"net/http"

	"github.com/jokizilla/jokizilla/internal/common/apperrors"
)

var (
	ErrDatabase      apperrors.Error = apperrors.New("db error").SetStatusCode(http.StatusInternalServerError)
	ErrAlreadyExists apperrors.Error = ErrDatabase.New("already exists").SetStatusCode(http.StatusConflict)
	ErrNotFound      apperrors.Error = ErrDatabase.New("not found").SetStatusCode(http.StatusNotFound)
	ErrInvalidInput  apperrors.Error = ErrDatabase.New("invalid input").SetStatusCode(http.StatusBadRequest)
	// ErrReferenceViolation is raised when a foreign key does not resolve. It is a server
	// error: the create and update flows only classify key collisions as client errors.
	ErrReferenceViolation apperrors.Error = ErrDatabase.New("reference violation").SetStatusCode(http.StatusInternalServerError)
	ErrNoConnection       apperrors.Error = ErrDatabase.New("no database connection in context").SetStatusCode(http.StatusInternalServerError)
)
