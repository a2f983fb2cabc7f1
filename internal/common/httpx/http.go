// Package httpx provides HTTP request/response handling utilities. Handlers return a
// Response or an error; WrapHttpRsp turns either into a wire response so that error
// rendering is uniform across the API.
package httpx

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jokizilla/jokizilla/internal/common/apperrors"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReadRequestBody reads the full body of a POST, PUT or PATCH request. Bodies larger than
// a configured http.MaxBytesReader limit are reported as ErrRequestTooLarge.
func ReadRequestBody(r *http.Request) ([]byte, error) {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil, ErrReqMethodNotSupported()
	}
	if r.Body == nil || r.Body == http.NoBody {
		log.Ctx(r.Context()).Error().Msg("Empty request body")
		return nil, ErrUnableToParseReqData()
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrRequestTooLarge(maxErr.Limit)
		}
		return nil, ErrUnableToReadRequest()
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, ErrUnableToParseReqData()
	}
	return b, nil
}

// GetRequestData parses the JSON request body into the provided data structure.
// Unknown properties are rejected.
func GetRequestData(r *http.Request, data any) error {
	b, err := ReadRequestBody(r)
	if err != nil {
		return err
	}
	return DecodeStrict(b, data)
}

// DecodeStrict decodes a single JSON document into data and fails on unknown properties
// or trailing content.
func DecodeStrict(b []byte, data any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(data); err != nil {
		return ErrInvalidRequest("unable to parse request data: " + trimDecodeError(err))
	}
	if dec.More() {
		return ErrInvalidRequest("unable to parse request data: trailing content")
	}
	return nil
}

// jsoniter prefixes errors with the decoder function name; strip it for clients.
func trimDecodeError(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 && strings.Contains(msg[:i], ".") {
		msg = msg[i+2:]
	}
	if i := strings.Index(msg, ", error found in"); i > 0 {
		msg = msg[:i]
	}
	return msg
}

// Response represents an HTTP response with configurable status code, content type and headers.
type Response struct {
	StatusCode  int
	Location    string
	Response    any
	ContentType string
	Headers     map[string]string
}

// RequestHandler defines a function type for handling HTTP requests.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp wraps a RequestHandler to provide standardized HTTP response handling,
// including error handling and content type management.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			SendErr(r, w, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		for k, v := range rsp.Headers {
			w.Header().Set(k, v)
		}
		if rsp.StatusCode == http.StatusNoContent {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		switch {
		case strings.HasPrefix(rsp.ContentType, "application/json"):
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
		case rsp.ContentType == "text/plain":
			s, ok := rsp.Response.(string)
			if !ok {
				ErrApplicationError("unsupported response body").Send(w)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(rsp.StatusCode)
			w.Write([]byte(s))
		default:
			ErrApplicationError("unsupported response type").Send(w)
		}
	})
}

// SendErr renders err as an error body. httpx and apperrors errors keep their status code;
// anything else is a 500.
func SendErr(r *http.Request, w http.ResponseWriter, err error) {
	var httperror *Error
	if errors.As(err, &httperror) {
		httperror.Send(w)
		return
	}
	if appErr, ok := err.(apperrors.Error); ok {
		SendError(w, appErr)
		return
	}
	log.Ctx(r.Context()).Error().Err(err).Msg("unhandled error")
	ErrApplicationError().Send(w)
}
