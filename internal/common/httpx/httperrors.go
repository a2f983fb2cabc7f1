package httpx

import (
	"fmt"
	"net/http"

	"github.com/jokizilla/jokizilla/internal/common/apperrors"
)

// Error represents an HTTP error response with status code, description and optional
// per-field details.
type Error struct {
	Description string              `json:"description"`
	StatusCode  int                 `json:"http_status_code"`
	Details     map[string][]string `json:"details,omitempty"`
}

type errorRsp struct {
	Result  int                 `json:"result"`
	Error   string              `json:"error"`
	Details map[string][]string `json:"details,omitempty"`
}

// Failure represents the error result code in error responses.
const Failure int = 0

// Send writes the error response to the provided ResponseWriter.
// If the writer is nil, no action is taken.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	rsp := &errorRsp{
		Result:  Failure,
		Error:   e.Description,
		Details: e.Details,
	}
	rspJson, err := json.Marshal(rsp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Unable to parse error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	w.Write(rspJson)
}

func (e *Error) Error() string {
	return e.Description
}

// Is reports whether the error matches the target error.
func (e *Error) Is(other error) bool {
	return other != nil && e.Error() == other.Error()
}

// SendError sends an application error as an HTTP error response.
// If the error is nil, no action is taken.
func SendError(w http.ResponseWriter, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	httperror := &Error{
		StatusCode:  statusCode,
		Description: err.ErrorAll(),
		Details:     err.Details(),
	}
	httperror.Send(w)
}

func firstOr(s []string, def string) string {
	if len(s) > 0 {
		return s[0]
	}
	return def
}

// Common Errors

func ErrReqMethodNotSupported() *Error {
	return &Error{
		Description: "request method not supported",
		StatusCode:  http.StatusMethodNotAllowed,
	}
}

func ErrUnableToParseReqData() *Error {
	return &Error{
		Description: "unable to parse request data",
		StatusCode:  http.StatusBadRequest,
	}
}

func ErrUnableToReadRequest() *Error {
	return &Error{
		Description: "unable to read request data",
		StatusCode:  http.StatusBadRequest,
	}
}

// ErrApplicationError returns an error for application-level failures.
func ErrApplicationError(err ...string) *Error {
	return &Error{
		Description: firstOr(err, "unable to process request"),
		StatusCode:  http.StatusInternalServerError,
	}
}

// ErrUnAuthorized returns an error for unauthenticated requests.
func ErrUnAuthorized(str ...string) *Error {
	return &Error{
		Description: firstOr(str, "unable to authenticate request"),
		StatusCode:  http.StatusUnauthorized,
	}
}

// ErrForbidden returns an error for authenticated callers lacking permission.
func ErrForbidden(str ...string) *Error {
	return &Error{
		Description: firstOr(str, "access denied"),
		StatusCode:  http.StatusForbidden,
	}
}

// ErrInvalidRequest returns an error for invalid request data.
func ErrInvalidRequest(str ...string) *Error {
	return &Error{
		Description: firstOr(str, "invalid request data or empty request values"),
		StatusCode:  http.StatusBadRequest,
	}
}

func ErrNotFound(str ...string) *Error {
	return &Error{
		Description: firstOr(str, "not found"),
		StatusCode:  http.StatusNotFound,
	}
}

func ErrUnableToServeRequest() *Error {
	return &Error{
		Description: "unable to serve request",
		StatusCode:  http.StatusInternalServerError,
	}
}

func ErrServiceUnavailable(str ...string) *Error {
	return &Error{
		Description: firstOr(str, "unable to service request at this time"),
		StatusCode:  http.StatusServiceUnavailable,
	}
}

func ErrRequestTimeout() *Error {
	return &Error{
		Description: "request timed out",
		StatusCode:  http.StatusRequestTimeout,
	}
}

// ErrRequestTooLarge returns an error when request body exceeds size limit.
func ErrRequestTooLarge(limit int64) *Error {
	return &Error{
		Description: fmt.Sprintf("request body too large (limit: %d bytes)", limit),
		StatusCode:  http.StatusRequestEntityTooLarge,
	}
}
